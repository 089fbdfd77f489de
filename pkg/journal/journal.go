// Package journal keeps an append-only log of every committed ledger change.
// Each line is base64(gzip(msgpack(Entry))). Importing a journal into an
// empty store rebuilds the same accounts.
package journal

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
	"tweetledger/pkg/ledger"
)

const (
	KindAirdrop     = "airdrop"
	KindTransaction = "transaction"
)

// maxLineSize bounds a single encoded entry.
const maxLineSize = 1 << 20

type Airdrop struct {
	Account  pkg.PublicKey `msgpack:"account"`
	Lamports uint64        `msgpack:"lamports"`
}

// Entry is one committed change.
type Entry struct {
	Kind        string              `msgpack:"kind"`
	Transaction *ledger.Transaction `msgpack:"transaction,omitempty"`
	Airdrop     *Airdrop            `msgpack:"airdrop,omitempty"`
	// Timestamp is the ledger time the change committed at. Transactions
	// replay against a clock fixed to it.
	Timestamp int64 `msgpack:"timestamp"`
}

type Journal struct {
	mu   sync.Mutex
	file *os.File
}

func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Storage("open journal", err)
	}
	return &Journal{file: file}, nil
}

func (j *Journal) Close() error {
	return j.file.Close()
}

// Append writes e as one line.
func (j *Journal) Append(e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.write(e)
}

// Record runs commit and appends the entry it returns while holding the
// journal lock, so lines follow commit order. A commit error is returned
// unchanged and nothing is written.
func (j *Journal) Record(commit func() (*Entry, error)) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, err := commit()
	if err != nil {
		return err
	}
	return j.write(e)
}

func (j *Journal) write(e *Entry) error {
	line, err := Encode(e)
	if err != nil {
		return err
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return errors.Storage("append journal", err)
	}
	return nil
}

func (j *Journal) AppendTransaction(tx *ledger.Transaction, receipt *ledger.Receipt) error {
	return j.Append(TransactionEntry(tx, receipt))
}

func (j *Journal) AppendAirdrop(key pkg.PublicKey, lamports uint64, ts int64) error {
	return j.Append(AirdropEntry(key, lamports, ts))
}

func TransactionEntry(tx *ledger.Transaction, receipt *ledger.Receipt) *Entry {
	return &Entry{Kind: KindTransaction, Transaction: tx, Timestamp: receipt.Timestamp}
}

func AirdropEntry(key pkg.PublicKey, lamports uint64, ts int64) *Entry {
	return &Entry{Kind: KindAirdrop, Airdrop: &Airdrop{Account: key, Lamports: lamports}, Timestamp: ts}
}

// Encode returns the journal line for e, without the newline.
func Encode(e *Entry) ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSerialize, errors.KindInvalidData, err, "marshal journal entry")
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return nil, errors.Wrap(errors.PhaseSerialize, errors.KindInvalidData, err, "compress journal entry")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(errors.PhaseSerialize, errors.KindInvalidData, err, "compress journal entry")
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(out, buf.Bytes())
	return out, nil
}

// Decode parses one journal line.
func Decode(line []byte) (*Entry, error) {
	gzData := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(gzData, line)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "base64")
	}

	zr, err := gzip.NewReader(bytes.NewReader(gzData[:n]))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "gzip")
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "gzip")
	}

	e := &Entry{}
	if err := msgpack.Unmarshal(data, e); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "msgpack")
	}
	switch {
	case e.Kind == KindTransaction && e.Transaction != nil:
	case e.Kind == KindAirdrop && e.Airdrop != nil:
	default:
		return nil, errors.InvalidData(errors.PhaseDecode, "malformed journal entry of kind "+e.Kind)
	}
	return e, nil
}

type decoded struct {
	line  int
	entry *Entry
}

// Replay reads the journal at path and calls fn for every entry, in order.
// Lines that cannot be decoded are logged and skipped. It returns the number
// of entries passed to fn.
func Replay(ctx context.Context, path string, fn func(*Entry) error) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Storage("open journal", err)
	}
	defer file.Close()

	log := Logger().With(zap.String("journal", path))

	// Decoding runs ahead of fn; order is kept because there is one decoder.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	entries := make(chan decoded, 100)
	scanErr := make(chan error, 1)

	go func() {
		defer close(entries)
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Bytes()
			if len(text) == 0 {
				continue
			}
			e, err := Decode(text)
			if err != nil {
				log.Warn("skipping journal line", zap.Int("line", line), zap.Error(err))
				continue
			}
			select {
			case entries <- decoded{line: line, entry: e}:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	count := 0
	for d := range entries {
		if err := fn(d.entry); err != nil {
			return count, errors.New(errors.PhaseRuntime, errors.KindInvalidData).
				Cause(err).
				Detail("replay journal line %d", d.line).
				Build()
		}
		count++
		if count%100 == 0 {
			log.Info("replaying journal", zap.Int("entries", count))
		}
	}
	if err := ctx.Err(); err != nil {
		return count, err
	}
	if err := <-scanErr; err != nil {
		return count, errors.Storage("read journal", err)
	}
	return count, nil
}

// Import replays the journal at path into l, which must hold no accounts.
// The whole replay commits in one store transaction: if any entry fails,
// nothing is imported.
func Import(ctx context.Context, path string, l *ledger.Ledger) (int, error) {
	var n int
	err := l.Batch(ctx, func(b *ledger.Batch) error {
		empty, err := b.Empty()
		if err != nil {
			return err
		}
		if !empty {
			return errors.InvalidData(errors.PhaseRuntime, "store already holds accounts, import needs an empty store")
		}
		n, err = Replay(ctx, path, func(e *Entry) error {
			return Apply(ctx, b, e)
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Applier is what an entry is applied to: a *ledger.Ledger or a
// *ledger.Batch.
type Applier interface {
	Airdrop(ctx context.Context, key pkg.PublicKey, lamports uint64) error
	Execute(ctx context.Context, tx *ledger.Transaction, clock ledger.Clock) (*ledger.Receipt, error)
}

// Apply re-executes a single entry against l.
func Apply(ctx context.Context, l Applier, e *Entry) error {
	switch e.Kind {
	case KindAirdrop:
		return l.Airdrop(ctx, e.Airdrop.Account, e.Airdrop.Lamports)
	case KindTransaction:
		_, err := l.Execute(ctx, e.Transaction, ledger.FixedClock(e.Timestamp))
		return err
	default:
		return errors.InvalidData(errors.PhaseRuntime, "unknown journal entry kind "+e.Kind)
	}
}
