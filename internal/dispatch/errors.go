package dispatch

import "errors"

// ErrInvalidSender is returned when Send is called without a tenant.
var ErrInvalidSender = errors.New("dispatch: sender is nil or has no id")
