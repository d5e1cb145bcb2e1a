package matching

import "errors"

var (
	// ErrBackend marks storage-layer failures (unreachable Redis,
	// serialization faults). Distinct from domain errors; callers may
	// retry with backoff. Never swallowed: a lost append risks an
	// undetectable sequence gap.
	ErrBackend = errors.New("matching store backend error")

	// ErrSequenceRegression means an event tried to move the log
	// backwards. The log is corrupt for the affected instrument.
	ErrSequenceRegression = errors.New("event log sequence regression")

	// ErrInstrumentHalted rejects admission for an instrument whose
	// log or backend hit an invariant violation. Matching must not
	// continue against possibly corrupted state.
	ErrInstrumentHalted = errors.New("instrument halted")
)
