package ledger

import (
	"context"
	stderrors "errors"
	"math"
	"path/filepath"
	"testing"

	"tweetledger/pkg"
	"tweetledger/pkg/database"
	"tweetledger/pkg/errors"
)

type fakeProgram struct {
	id pkg.PublicKey
	fn func(inv *Invocation) error
}

func (p fakeProgram) ID() pkg.PublicKey { return p.id }

func (p fakeProgram) Process(_ context.Context, inv *Invocation) error { return p.fn(inv) }

// creator allocates accounts[1] paid by accounts[0], then stamps the clock
// into its first byte. It fails when the instruction data is non-empty.
func creator(id pkg.PublicKey) fakeProgram {
	return fakeProgram{id: id, fn: func(inv *Invocation) error {
		payer, target := inv.Accounts[0], inv.Accounts[1]
		if err := inv.System.CreateAccount(payer, target, MinimumBalance(16), 16, id); err != nil {
			return err
		}
		ts, err := inv.Clock.UnixTimestamp()
		if err != nil {
			return err
		}
		target.Data[0] = byte(ts)
		if len(inv.Data) > 0 {
			return errors.Custom(7, "Requested", "requested failure")
		}
		return nil
	}}
}

func newTestLedger(t *testing.T, clock Clock, programs ...Program) *Ledger {
	t.Helper()
	store, err := database.OpenBolt(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, clock, programs...)
}

func createIx(programID, payer, target pkg.PublicKey, fail bool) Instruction {
	ix := Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Key: payer, IsSigner: true, IsWritable: true},
			{Key: target, IsSigner: true, IsWritable: true},
		},
	}
	if fail {
		ix.Data = []byte{1}
	}
	return ix
}

func TestLedger_Execute(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	l := newTestLedger(t, FixedClock(42), creator(programID))

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)
	if err := l.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	tx := NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target)
	receipt, err := l.Submit(ctx, tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Timestamp != 42 || receipt.Signature != tx.ID() {
		t.Errorf("receipt: got %+v", receipt)
	}

	acct, err := l.Account(ctx, targetPub)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Owner != programID || len(acct.Data) != 16 || acct.Data[0] != 42 {
		t.Errorf("created account: got %+v", acct)
	}
	if acct.Lamports != MinimumBalance(16) {
		t.Errorf("lamports: got %d, want %d", acct.Lamports, MinimumBalance(16))
	}

	p, err := l.Account(ctx, payerPub)
	if err != nil {
		t.Fatal(err)
	}
	if p.Lamports != 1_000_000_000-MinimumBalance(16) {
		t.Errorf("payer lamports: got %d", p.Lamports)
	}
}

func TestLedger_ExecuteRollsBack(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	l := newTestLedger(t, FixedClock(1), creator(programID))

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)
	if err := l.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	tx := NewTransaction(createIx(programID, payerPub, targetPub, true)).Sign(payer, target)
	_, err := l.Submit(ctx, tx)
	if !errors.Is(err, errors.Custom(7, "", "")) {
		t.Fatalf("expected custom error 7, got %v", err)
	}

	if _, err := l.Account(ctx, targetPub); !errors.Is(err, errors.NotFound("")) {
		t.Errorf("target account exists after failed transaction: %v", err)
	}
	p, err := l.Account(ctx, payerPub)
	if err != nil {
		t.Fatal(err)
	}
	if p.Lamports != 1_000_000_000 {
		t.Errorf("payer charged by failed transaction: %d", p.Lamports)
	}
}

func TestLedger_Errors(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	l := newTestLedger(t, FixedClock(1), creator(programID))

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)

	tests := []struct {
		name string
		tx   *Transaction
		kind errors.Kind
	}{
		{
			name: "unknown program",
			tx:   NewTransaction(createIx(pkg.PublicKey{0xFF}, payerPub, targetPub, false)).Sign(payer, target),
			kind: errors.KindProgramNotFound,
		},
		{
			name: "unfunded payer",
			tx:   NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target),
			kind: errors.KindInsufficientFunds,
		},
		{
			name: "unsigned",
			tx:   NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer),
			kind: errors.KindMissingSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Submit(ctx, tt.tx)
			var e *errors.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", e.Kind, tt.kind)
			}
		})
	}
}

func TestLedger_AccountAlreadyInUse(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	l := newTestLedger(t, FixedClock(1), creator(programID))

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)
	if err := l.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Submit(ctx, NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target)); err != nil {
		t.Fatal(err)
	}
	_, err := l.Submit(ctx, NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target))

	want := &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindAccountAlreadyInUse}
	if !errors.Is(err, want) {
		t.Errorf("expected account already in use, got %v", err)
	}
}

func TestLedger_ClockSampledOnce(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}

	calls := 0
	clock := ClockFunc(func() (int64, error) {
		calls++
		return int64(100 + calls), nil
	})
	l := newTestLedger(t, clock, creator(programID))

	payer, payerPub := newKey(t)
	a, aPub := newKey(t)
	b, bPub := newKey(t)
	if err := l.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	tx := NewTransaction(
		createIx(programID, payerPub, aPub, false),
		createIx(programID, payerPub, bPub, false),
	).Sign(payer, a, b)
	receipt, err := l.Submit(ctx, tx)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("clock read %d times, want 1", calls)
	}
	if receipt.Timestamp != 101 {
		t.Errorf("timestamp: got %d, want 101", receipt.Timestamp)
	}
	for _, key := range []pkg.PublicKey{aPub, bPub} {
		acct, err := l.Account(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if acct.Data[0] != 101 {
			t.Errorf("%s stamped %d, want 101", key, acct.Data[0])
		}
	}
}

func TestLedger_ClockFailure(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	boom := stderrors.New("no clock")
	l := newTestLedger(t, ClockFunc(func() (int64, error) { return 0, boom }), creator(programID))

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)
	if err := l.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	_, err := l.Submit(ctx, NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target))
	if !stderrors.Is(err, boom) {
		t.Errorf("expected clock error, got %v", err)
	}
}

func TestLedger_ReadOnlyAccount(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC1}
	thief := fakeProgram{id: programID, fn: func(inv *Invocation) error {
		inv.Accounts[0].Lamports = 0
		return nil
	}}
	l := newTestLedger(t, FixedClock(1), thief)

	signer, signerPub := newKey(t)
	_, victim := newKey(t)
	if err := l.Airdrop(ctx, victim, 500); err != nil {
		t.Fatal(err)
	}

	tx := NewTransaction(Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Key: victim},
			{Key: signerPub, IsSigner: true},
		},
	}).Sign(signer)
	_, err := l.Submit(ctx, tx)

	want := &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindConstraintMut}
	if !errors.Is(err, want) {
		t.Fatalf("expected read-only violation, got %v", err)
	}
	acct, err := l.Account(ctx, victim)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Lamports != 500 {
		t.Errorf("victim lamports: got %d, want 500", acct.Lamports)
	}
}

func TestLedger_Airdrop(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	l := newTestLedger(t, FixedClock(1), creator(programID))

	_, key := newKey(t)
	if err := l.Airdrop(ctx, key, 0); err == nil {
		t.Error("expected error for zero airdrop")
	}
	for i := 0; i < 2; i++ {
		if err := l.Airdrop(ctx, key, 10); err != nil {
			t.Fatal(err)
		}
	}
	acct, err := l.Account(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Lamports != 20 || acct.Owner != pkg.SystemProgramID {
		t.Errorf("got %+v", acct)
	}

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)
	if err := l.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Submit(ctx, NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target)); err != nil {
		t.Fatal(err)
	}
	if err := l.Airdrop(ctx, targetPub, 1); err == nil {
		t.Error("expected error when airdropping to a program account")
	}
}

func TestLedger_AirdropOverflow(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, FixedClock(1))

	_, key := newKey(t)
	if err := l.Airdrop(ctx, key, 10); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		lamports uint64
	}{
		{"max", math.MaxUint64},
		{"just over", math.MaxUint64 - 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Airdrop(ctx, key, tt.lamports)
			var e *errors.Error
			if !errors.As(err, &e) || e.Kind != errors.KindInvalidData {
				t.Fatalf("expected invalid data, got %v", err)
			}
			acct, err := l.Account(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if acct.Lamports != 10 {
				t.Errorf("balance changed by rejected airdrop: %d", acct.Lamports)
			}
		})
	}

	if err := l.Airdrop(ctx, key, math.MaxUint64-10); err != nil {
		t.Fatalf("airdrop up to the limit: %v", err)
	}
	acct, err := l.Account(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Lamports != math.MaxUint64 {
		t.Errorf("got %d, want max", acct.Lamports)
	}
}

func TestLedger_Batch(t *testing.T) {
	ctx := context.Background()
	programID := pkg.PublicKey{0xC0}
	l := newTestLedger(t, FixedClock(5), creator(programID))

	payer, payerPub := newKey(t)
	target, targetPub := newKey(t)

	err := l.Batch(ctx, func(b *Batch) error {
		empty, err := b.Empty()
		if err != nil {
			return err
		}
		if !empty {
			t.Error("new ledger is not empty")
		}
		if err := b.Airdrop(ctx, payerPub, 1_000_000_000); err != nil {
			return err
		}
		if empty, _ := b.Empty(); empty {
			t.Error("batch does not see its own airdrop")
		}
		_, err = b.Execute(ctx, NewTransaction(createIx(programID, payerPub, targetPub, false)).Sign(payer, target), FixedClock(9))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	acct, err := l.Account(ctx, targetPub)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Data[0] != 9 {
		t.Errorf("batch clock not used: %d", acct.Data[0])
	}

	// A failure anywhere discards every change made in the batch.
	other, otherPub := newKey(t)
	_, funded := newKey(t)
	err = l.Batch(ctx, func(b *Batch) error {
		if err := b.Airdrop(ctx, funded, 7); err != nil {
			return err
		}
		_, err := b.Execute(ctx, NewTransaction(createIx(programID, payerPub, otherPub, true)).Sign(payer, other), FixedClock(9))
		return err
	})
	if !errors.Is(err, errors.Custom(7, "", "")) {
		t.Fatalf("expected custom error 7, got %v", err)
	}
	if _, err := l.Account(ctx, funded); !errors.Is(err, errors.NotFound("")) {
		t.Errorf("airdrop survived a failed batch: %v", err)
	}
}

func TestMinimumBalance(t *testing.T) {
	tests := []struct {
		space int
		want  uint64
	}{
		{0, 890880},
		{pkg.TweetLength, (128 + 1376) * 3480 * 2},
		{pkg.LegacyTweetLength, (128 + 1344) * 3480 * 2},
	}
	for _, tt := range tests {
		if got := MinimumBalance(tt.space); got != tt.want {
			t.Errorf("MinimumBalance(%d) = %d, want %d", tt.space, got, tt.want)
		}
	}
}
