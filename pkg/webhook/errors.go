package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrQueueFull            = errors.New("webhook queue is full")
	ErrClosed               = errors.New("webhook notifier is closed")
	ErrPermanentFailure     = errors.New("permanent webhook failure")
	ErrDeliveryFailed       = errors.New("webhook delivery failed")
)
