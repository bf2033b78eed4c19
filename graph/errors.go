package graph

import "errors"

// Validation errors. Callers wrap these with errors.WrapInvalid.
var (
	ErrInvalidTriple    = errors.New("invalid triple")
	ErrInvalidRelation  = errors.New("invalid relation")
	ErrInvalidValueType = errors.New("invalid value type")
	ErrInvalidKey       = errors.New("invalid composite key")
)
