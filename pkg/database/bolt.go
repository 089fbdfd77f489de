package database

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
)

var accountsBucket = []byte("accounts")

type Bolt struct {
	db *bolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Storage("open bolt database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Storage("create accounts bucket", err)
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(boltTx{bucket: tx.Bucket(accountsBucket)})
	})
}

func (b *Bolt) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(boltTx{bucket: tx.Bucket(accountsBucket)})
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

type boltTx struct {
	bucket *bolt.Bucket
}

func (t boltTx) Get(key pkg.PublicKey) (*pkg.Account, error) {
	val := t.bucket.Get(key[:])
	if val == nil {
		return nil, nil
	}
	var acct pkg.Account
	if err := msgpack.Unmarshal(val, &acct); err != nil {
		return nil, errors.Storage("decode account "+key.String(), err)
	}
	return &acct, nil
}

func (t boltTx) Empty() (bool, error) {
	k, _ := t.bucket.Cursor().First()
	return k == nil, nil
}

func (t boltTx) Put(acct *pkg.Account) error {
	val, err := msgpack.Marshal(acct)
	if err != nil {
		return errors.Storage("encode account "+acct.Key.String(), err)
	}
	if err := t.bucket.Put(acct.Key[:], val); err != nil {
		return errors.Storage("put account "+acct.Key.String(), err)
	}
	return nil
}
