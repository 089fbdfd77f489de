package ledger

import (
	"sync"
	"time"
)

// Clock is the source of the ledger's current UNIX time.
type Clock interface {
	UnixTimestamp() (int64, error)
}

type SystemClock struct{}

func (SystemClock) UnixTimestamp() (int64, error) {
	return time.Now().Unix(), nil
}

// FixedClock always reports the same time.
type FixedClock int64

func (c FixedClock) UnixTimestamp() (int64, error) {
	return int64(c), nil
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() (int64, error)

func (f ClockFunc) UnixTimestamp() (int64, error) {
	return f()
}

// txClock samples its source once so every instruction in a transaction
// observes the same time.
type txClock struct {
	src  Clock
	once sync.Once
	read bool
	ts   int64
	err  error
}

func (c *txClock) UnixTimestamp() (int64, error) {
	c.once.Do(func() {
		c.read = true
		c.ts, c.err = c.src.UnixTimestamp()
	})
	return c.ts, c.err
}
