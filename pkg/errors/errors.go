// Package errors provides the structured error type shared by the ledger,
// the tweet program and the storage layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). Program-defined errors use KindCustom and carry a
// numeric code and a fixed message:
//
//	err := errors.New(errors.PhaseConstraint, errors.KindConstraintSigner).
//		Account("author").
//		Detail("missing signature").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode     Phase = "decode"     // instruction or account decoding
	PhaseVerify     Phase = "verify"     // signature verification
	PhaseConstraint Phase = "constraint" // account preconditions
	PhaseExecute    Phase = "execute"    // instruction handler
	PhaseSerialize  Phase = "serialize"  // writing account data
	PhaseRuntime    Phase = "runtime"    // ledger runtime
	PhaseStorage    Phase = "storage"    // account store
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData                 Kind = "invalid_data"
	KindInstructionFallbackNotFound Kind = "instruction_fallback_not_found"
	KindProgramNotFound             Kind = "program_not_found"
	KindNotFound                    Kind = "not_found"
	KindMissingSignature            Kind = "missing_signature"
	KindInvalidSignature            Kind = "invalid_signature"
	KindNotEnoughAccountKeys        Kind = "not_enough_account_keys"
	KindConstraintSigner            Kind = "constraint_signer"
	KindConstraintMut               Kind = "constraint_mut"
	KindConstraintAddress           Kind = "constraint_address"
	KindConstraintOwner             Kind = "constraint_owner"
	KindConstraintSpace             Kind = "constraint_space"
	KindAccountAlreadyInUse         Kind = "account_already_in_use"
	KindAccountNotInitialized       Kind = "account_not_initialized"
	KindAccountDiscriminator        Kind = "account_discriminator_mismatch"
	KindAccountDidNotSerialize      Kind = "account_did_not_serialize"
	KindInsufficientFunds           Kind = "insufficient_funds"
	KindClockUnavailable            Kind = "clock_unavailable"
	KindStorage                     Kind = "storage"
	KindCustom                      Kind = "custom"
)

// Error is the structured error type used throughout the ledger
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Code    uint32 // set for KindCustom
	Name    string // program error name, e.g. TopicTooLong
	Account string // instruction account name or address
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	if e.Kind == KindCustom && e.Name != "" {
		b.WriteString(e.Name)
		fmt.Fprintf(&b, " (%d)", e.Code)
	} else {
		b.WriteString(string(e.Kind))
	}

	if e.Account != "" {
		b.WriteString(" at ")
		b.WriteString(e.Account)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Custom errors also match on code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Phase != t.Phase || e.Kind != t.Kind {
		return false
	}
	return e.Kind != KindCustom || e.Code == t.Code
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

func (b *Builder) Account(name string) *Builder {
	b.err.Account = name
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Custom creates a program-defined error with a fixed message.
func Custom(code uint32, name, msg string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindCustom,
		Code:   code,
		Name:   name,
		Detail: msg,
	}
}

// Constraint creates an account precondition failure
func Constraint(kind Kind, account, detail string) *Error {
	return &Error{
		Phase:   PhaseConstraint,
		Kind:    kind,
		Account: account,
		Detail:  detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// NotFound creates a missing account error
func NotFound(account string) *Error {
	return &Error{
		Phase:   PhaseStorage,
		Kind:    KindNotFound,
		Account: account,
		Detail:  "account not found",
	}
}

// Storage wraps a storage backend failure
func Storage(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseStorage,
		Kind:   KindStorage,
		Detail: op,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsCustom reports whether err is a program-defined error and returns it.
func IsCustom(err error) (*Error, bool) {
	var e *Error
	if !As(err, &e) || e.Kind != KindCustom {
		return nil, false
	}
	return e, true
}
