package engine

import "errors"

var ErrUnknownBackend = errors.New("engine: unknown store backend")
