package lifecycle

import "errors"

var (
	ErrNotFound          = errors.New("lifecycle: entity not found")
	ErrAlreadyExists     = errors.New("lifecycle: entity already exists")
	ErrValidation        = errors.New("lifecycle: validation failed")
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	ErrActivationFailed  = errors.New("lifecycle: activation failed")
	ErrInvalidPolicy     = errors.New("lifecycle: invalid policy")
	ErrUnknownMethod     = errors.New("lifecycle: unknown method")
)
