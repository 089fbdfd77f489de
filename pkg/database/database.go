package database

import (
	"context"
	"fmt"

	"tweetledger/pkg"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Tx is a view of the account table inside one store transaction.
type Tx interface {
	// Get returns nil, nil when the account does not exist.
	Get(key pkg.PublicKey) (*pkg.Account, error)
	Put(acct *pkg.Account) error
	// Empty reports whether no account is stored.
	Empty() (bool, error)
}

// Store persists ledger accounts. Update runs fn in a single write
// transaction that is rolled back if fn returns an error.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Open opens the account store for the configured driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverBolt, "":
		return OpenBolt(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
