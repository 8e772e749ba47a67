package utils

import "fmt"

// AppError tags a failure with the engine operation that raised it. Ops use
// the package.Method form the storage layer emits ("store.InsertSummary",
// "store.UpdateAction"), so log lines group by operation without parsing
// the message text.
type AppError struct {
	Op  string // operation identifier, package.Method form
	Msg string // what was being attempted
	Err error  // underlying cause, nil for domain-level failures
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Msg
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

// Unwrap exposes the cause so sentinel checks like store.ErrNotFound keep
// working through errors.Is chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError wraps err with its operation and message.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
