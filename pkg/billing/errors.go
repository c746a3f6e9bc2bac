package billing

import "errors"

var (
	ErrInvalidCatalog  = errors.New("billing: invalid catalog")
	ErrUnknownKind     = errors.New("billing: unknown kind")
	ErrUnknownPlan     = errors.New("billing: unknown plan")
	ErrInvalidAmount   = errors.New("billing: invalid amount")
	ErrInvalidCurrency = errors.New("billing: invalid currency")
	ErrMissingField    = errors.New("billing: missing required field")
)
