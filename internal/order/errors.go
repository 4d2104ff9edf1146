package order

import "errors"

var (
	// ErrNotFound means the order id or number did not resolve.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition means the requested target is not an edge from
	// the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyTerminal means the current status has no outgoing edges.
	ErrAlreadyTerminal = errors.New("order is in a terminal status")
	// ErrConflict means a concurrent writer changed the status between read
	// and compare-and-set write.
	ErrConflict = errors.New("order was modified concurrently, retry")
	// ErrAlreadyReviewed means feedback was already submitted for the order.
	ErrAlreadyReviewed = errors.New("order already has feedback")
	// ErrInvalidPromo covers unknown, inactive, expired and below-minimum
	// promo codes; the wrapped message carries the specific reason.
	ErrInvalidPromo = errors.New("invalid promo code")
	// ErrValidation covers malformed checkout payloads.
	ErrValidation = errors.New("validation failed")
)
