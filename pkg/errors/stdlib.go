package errors

import stderrors "errors"

// Re-exports so callers need a single errors import.

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
