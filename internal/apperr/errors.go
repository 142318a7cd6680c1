package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Lookup failures. Each wraps ErrNotFound so transports can map them with a single check.
	ErrContractNotFound = wrapNotFound("contract not found")
	ErrSchemaNotFound   = wrapNotFound("schema not found")
	ErrRecordNotFound   = wrapNotFound("record not found")

	ErrMalformedSchema         = errors.New("malformed schema")
	ErrUnsupportedPattern      = errors.New("unsupported pattern construct")
	ErrIncompatibleConstraints = errors.New("incompatible constraints")
)

type notFound struct{ msg string }

func wrapNotFound(msg string) error { return &notFound{msg: msg} }

func (e *notFound) Error() string { return e.msg }

func (e *notFound) Unwrap() error { return ErrNotFound }
