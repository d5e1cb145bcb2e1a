package orderbook

import "errors"

var (
	// ErrInvalidOrder covers non-positive price or quantity. Checked
	// before any book access, never auto-retried.
	ErrInvalidOrder = errors.New("invalid order: price and qty must be positive")
	// ErrUnsupportedQualifier rejects qualifiers the book does not know.
	ErrUnsupportedQualifier = errors.New("unsupported order qualifier")
)
