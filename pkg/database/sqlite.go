package database

import (
	"context"
	"database/sql"
	stderrors "errors"

	_ "github.com/mattn/go-sqlite3"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
)

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Storage("open sqlite database", err)
	}
	// sqlite allows a single writer; one connection keeps Update serialized.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			pubkey BLOB PRIMARY KEY,
			owner BLOB NOT NULL,
			lamports INTEGER NOT NULL,
			executable BOOLEAN NOT NULL,
			data BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, errors.Storage("create accounts table", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, nil, fn)
}

func (s *SQLite) run(ctx context.Context, opts *sql.TxOptions, fn func(Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return errors.Storage("begin transaction", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Storage("commit transaction", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t sqliteTx) Get(key pkg.PublicKey) (*pkg.Account, error) {
	query := `SELECT owner, lamports, executable, data FROM accounts WHERE pubkey = ?`

	var (
		owner    []byte
		lamports int64
		acct     = pkg.Account{Key: key}
	)
	err := t.tx.QueryRowContext(t.ctx, query, key[:]).Scan(&owner, &lamports, &acct.Executable, &acct.Data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Storage("get account "+key.String(), err)
	}

	copy(acct.Owner[:], owner)
	acct.Lamports = uint64(lamports)
	return &acct, nil
}

func (t sqliteTx) Empty() (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx, `SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists)
	if err != nil {
		return false, errors.Storage("count accounts", err)
	}
	return !exists, nil
}

func (t sqliteTx) Put(acct *pkg.Account) error {
	query := `
		INSERT INTO accounts (pubkey, owner, lamports, executable, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (pubkey) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			executable = excluded.executable,
			data = excluded.data
	`

	data := acct.Data
	if data == nil {
		data = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx, query,
		acct.Key[:],
		acct.Owner[:],
		int64(acct.Lamports),
		acct.Executable,
		data,
	)
	if err != nil {
		return errors.Storage("put account "+acct.Key.String(), err)
	}
	return nil
}
