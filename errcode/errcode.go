package errcode

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Registration and lifecycle.
	Duplicate    Code = "duplicate_registration"
	UnknownID    Code = "unknown_id"
	InUse        Code = "resource_in_use"
	AddrConflict Code = "address_conflict"
	AdapterFull  Code = "adapter_full"

	// Transaction level.
	Timeout     Code = "timeout"
	Xfer        Code = "transfer_error"
	InvalidKind Code = "invalid_transaction_kind"

	InvalidParams Code = "invalid_params"
	DataShape     Code = "data_shape"
	Unsupported   Code = "unsupported"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Transient reports whether an error is worth retrying at the
// transaction level. Registration and validation failures are not.
func Transient(err error) bool {
	switch Of(err) {
	case Timeout, Xfer:
		return true
	}
	return false
}
