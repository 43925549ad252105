package cli

import (
	"errors"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// exitErr carries the exit code an error should produce.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

// userError marks err as caused by the invocation rather than the system.
func userError(err error) error {
	return &exitErr{code: exitUserError, err: err}
}

// userErrors are the sentinel errors a caller can fix by changing the input.
var userErrors = []error{
	types.ErrNoPrimaryKey,
	types.ErrInvalidKeyArity,
	types.ErrInvalidField,
	types.ErrMissingPrimaryKey,
	types.ErrDuplicateKey,
	types.ErrTableNotFound,
	types.ErrTableNameEmpty,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrSyncStrategyUnknown,
	types.ErrFormatUnknown,
	types.ErrSourceMissing,
	types.ErrDatabaseMissing,
	types.ErrDuplicateTableName,
}

// exitCode maps err onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
