package ledger

import (
	"bytes"
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"tweetledger/pkg"
	"tweetledger/pkg/database"
	"tweetledger/pkg/errors"
)

// AccountInfo is an account as seen by a program during one instruction.
type AccountInfo struct {
	*pkg.Account
	IsSigner   bool
	IsWritable bool
}

// Invocation carries everything a program receives for one instruction.
type Invocation struct {
	ProgramID pkg.PublicKey
	Accounts  []*AccountInfo
	Data      []byte
	Clock     Clock
	System    System
}

// Program is an on-ledger program addressed by its ID.
type Program interface {
	ID() pkg.PublicKey
	Process(ctx context.Context, inv *Invocation) error
}

// Receipt describes a committed transaction.
type Receipt struct {
	Signature pkg.Signature `json:"signature"`
	Timestamp int64         `json:"timestamp"`
}

type Ledger struct {
	store    database.Store
	clock    Clock
	mu       sync.Mutex
	programs map[pkg.PublicKey]Program
}

func New(store database.Store, clock Clock, programs ...Program) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	l := &Ledger{
		store:    store,
		clock:    clock,
		programs: make(map[pkg.PublicKey]Program),
	}
	for _, p := range programs {
		l.Register(p)
	}
	return l
}

func (l *Ledger) Register(p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[p.ID()] = p
}

func (l *Ledger) program(id pkg.PublicKey) (Program, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.programs[id]
	return p, ok
}

// Submit executes tx against the ledger clock.
func (l *Ledger) Submit(ctx context.Context, tx *Transaction) (*Receipt, error) {
	return l.Execute(ctx, tx, l.clock)
}

// Execute verifies tx and runs its instructions in one store transaction.
// Either every instruction succeeds and all writable accounts are persisted,
// or nothing is.
func (l *Ledger) Execute(ctx context.Context, tx *Transaction, clock Clock) (*Receipt, error) {
	var receipt *Receipt
	err := l.store.Update(ctx, func(dbtx database.Tx) error {
		var err error
		receipt, err = l.execute(ctx, dbtx, tx, clock)
		return err
	})
	if err != nil {
		return nil, err
	}
	Logger().Info("transaction committed", zap.Stringer("tx", receipt.Signature), zap.Int64("timestamp", receipt.Timestamp))
	return receipt, nil
}

func (l *Ledger) execute(ctx context.Context, dbtx database.Tx, tx *Transaction, clock Clock) (*Receipt, error) {
	log := Logger().With(zap.Stringer("tx", tx.ID()))

	if err := tx.Verify(); err != nil {
		log.Info("transaction rejected", zap.Error(err))
		return nil, err
	}

	sysvar := &txClock{src: clock}
	loaded := make(map[pkg.PublicKey]*pkg.Account)
	writable := make(map[pkg.PublicKey]bool)

	for i, ix := range tx.Message.Instructions {
		program, ok := l.program(ix.ProgramID)
		if !ok {
			return nil, errors.New(errors.PhaseRuntime, errors.KindProgramNotFound).
				Account(ix.ProgramID.String()).
				Build()
		}

		inv := &Invocation{
			ProgramID: ix.ProgramID,
			Data:      ix.Data,
			Clock:     sysvar,
		}
		for _, meta := range ix.Accounts {
			acct, err := load(dbtx, loaded, meta.Key)
			if err != nil {
				return nil, err
			}
			if meta.IsWritable {
				writable[meta.Key] = true
			}
			inv.Accounts = append(inv.Accounts, &AccountInfo{
				Account:    acct,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
			})
		}

		before := snapshot(inv.Accounts)
		if err := program.Process(ctx, inv); err != nil {
			log.Info("instruction failed", zap.Int("index", i), zap.Error(err))
			return nil, err
		}
		if err := checkReadOnly(inv.Accounts, before); err != nil {
			return nil, err
		}
	}

	for key := range writable {
		if loaded[key].IsUnused() {
			continue
		}
		if err := dbtx.Put(loaded[key]); err != nil {
			return nil, err
		}
	}

	receipt := &Receipt{Signature: tx.ID()}
	if sysvar.read && sysvar.err == nil {
		receipt.Timestamp = sysvar.ts
	}
	return receipt, nil
}

func load(dbtx database.Tx, loaded map[pkg.PublicKey]*pkg.Account, key pkg.PublicKey) (*pkg.Account, error) {
	if acct, ok := loaded[key]; ok {
		return acct, nil
	}
	acct, err := dbtx.Get(key)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		acct = &pkg.Account{Key: key, Owner: pkg.SystemProgramID}
	}
	loaded[key] = acct
	return acct, nil
}

func snapshot(infos []*AccountInfo) []*pkg.Account {
	out := make([]*pkg.Account, len(infos))
	for i, info := range infos {
		out[i] = info.Clone()
	}
	return out
}

func checkReadOnly(infos []*AccountInfo, before []*pkg.Account) error {
	for i, info := range infos {
		if info.IsWritable {
			continue
		}
		b := before[i]
		if info.Lamports != b.Lamports || info.Owner != b.Owner || !bytes.Equal(info.Data, b.Data) {
			return errors.New(errors.PhaseRuntime, errors.KindConstraintMut).
				Account(info.Key.String()).
				Detail("read-only account modified").
				Build()
		}
	}
	return nil
}

// Airdrop credits lamports to a system account, creating it if needed.
func (l *Ledger) Airdrop(ctx context.Context, key pkg.PublicKey, lamports uint64) error {
	err := l.store.Update(ctx, func(dbtx database.Tx) error {
		return airdrop(dbtx, key, lamports)
	})
	if err != nil {
		return err
	}
	Logger().Info("airdrop", zap.Stringer("account", key), zap.Uint64("lamports", lamports))
	return nil
}

func airdrop(dbtx database.Tx, key pkg.PublicKey, lamports uint64) error {
	if lamports == 0 {
		return errors.InvalidData(errors.PhaseRuntime, "airdrop of zero lamports")
	}
	acct, err := dbtx.Get(key)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &pkg.Account{Key: key, Owner: pkg.SystemProgramID}
	}
	if acct.Owner != pkg.SystemProgramID {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Account(key.String()).
			Detail("airdrop target is not a system account").
			Build()
	}
	if acct.Lamports > math.MaxUint64-lamports {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Account(key.String()).
			Detail("airdrop of %d lamports overflows balance %d", lamports, acct.Lamports).
			Build()
	}
	acct.Lamports += lamports
	return dbtx.Put(acct)
}

// Batch applies several ledger operations in a single store transaction.
// Nothing is persisted unless fn returns nil.
func (l *Ledger) Batch(ctx context.Context, fn func(b *Batch) error) error {
	return l.store.Update(ctx, func(dbtx database.Tx) error {
		return fn(&Batch{ledger: l, dbtx: dbtx})
	})
}

// Batch is a view of the ledger inside Ledger.Batch. It must not be used
// after fn returns.
type Batch struct {
	ledger *Ledger
	dbtx   database.Tx
}

func (b *Batch) Execute(ctx context.Context, tx *Transaction, clock Clock) (*Receipt, error) {
	return b.ledger.execute(ctx, b.dbtx, tx, clock)
}

func (b *Batch) Airdrop(_ context.Context, key pkg.PublicKey, lamports uint64) error {
	return airdrop(b.dbtx, key, lamports)
}

// Empty reports whether the ledger holds no accounts.
func (b *Batch) Empty() (bool, error) {
	return b.dbtx.Empty()
}

// Account returns the account stored at key.
func (l *Ledger) Account(ctx context.Context, key pkg.PublicKey) (*pkg.Account, error) {
	var acct *pkg.Account
	err := l.store.View(ctx, func(dbtx database.Tx) error {
		var err error
		acct, err = dbtx.Get(key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errors.NotFound(key.String())
	}
	return acct, nil
}
