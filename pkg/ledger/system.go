package ledger

import (
	"go.uber.org/zap"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
)

// Rent parameters. An account holding at least MinimumBalance lamports is
// rent exempt and lives indefinitely.
const (
	AccountStorageOverhead = 128
	LamportsPerByteYear    = 3480
	ExemptionThreshold     = 2
)

// MinimumBalance returns the rent exempt balance for an account of space bytes.
func MinimumBalance(space int) uint64 {
	return uint64(AccountStorageOverhead+space) * LamportsPerByteYear * ExemptionThreshold
}

// System is the built-in program that allocates accounts. Programs reach it
// through Invocation.System.
type System struct{}

// CreateAccount funds target from payer, allocates space zeroed bytes and
// assigns target to owner.
func (System) CreateAccount(payer, target *AccountInfo, lamports uint64, space int, owner pkg.PublicKey) error {
	if !payer.IsSigner {
		return errors.Constraint(errors.KindConstraintSigner, payer.Key.String(), "payer must sign")
	}
	if !payer.IsWritable {
		return errors.Constraint(errors.KindConstraintMut, payer.Key.String(), "payer must be writable")
	}
	if !target.IsSigner {
		return errors.Constraint(errors.KindConstraintSigner, target.Key.String(), "new account must sign")
	}
	if !target.IsWritable {
		return errors.Constraint(errors.KindConstraintMut, target.Key.String(), "new account must be writable")
	}
	if !target.IsUnused() {
		return errors.New(errors.PhaseRuntime, errors.KindAccountAlreadyInUse).
			Account(target.Key.String()).
			Build()
	}
	if payer.Owner != pkg.SystemProgramID || len(payer.Data) != 0 {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Account(payer.Key.String()).
			Detail("payer must be a system account without data").
			Build()
	}
	if payer.Lamports < lamports {
		return errors.New(errors.PhaseRuntime, errors.KindInsufficientFunds).
			Account(payer.Key.String()).
			Detail("need %d lamports, have %d", lamports, payer.Lamports).
			Build()
	}

	payer.Lamports -= lamports
	target.Lamports += lamports
	target.Data = make([]byte, space)
	target.Owner = owner

	Logger().Debug("account created",
		zap.Stringer("account", target.Key),
		zap.Stringer("owner", owner),
		zap.Int("space", space),
		zap.Uint64("lamports", lamports))
	return nil
}
