package tacos

import "errors"

// Sentinel errors returned by the state machine and synthesizers, checkable
// with errors.Is.
var (
	// ErrNonProductiveMatch is returned when a caller asks the state machine
	// to match a (link, chunk) pair that is not currently productive: the
	// link is busy, the chunk has not arrived at the source, the chunk is
	// already present (or en route) at the destination, or the destination
	// does not need the chunk.
	ErrNonProductiveMatch = errors.New("tacos: non-productive link/chunk match")

	// ErrDeadlock is returned by a synthesizer when the postcondition is
	// still unsatisfied but no productive match remains and the event queue
	// is empty — no further progress is possible.
	ErrDeadlock = errors.New("tacos: deadlock, no productive matches remain")

	// ErrNonFinite is returned when a topology parameter or computed delay
	// is not a finite, usable number (NaN or +/-Inf).
	ErrNonFinite = errors.New("tacos: non-finite value")

	// ErrVerificationFailed is returned by the schedule verifier when an
	// invariant does not hold.
	ErrVerificationFailed = errors.New("tacos: schedule verification failed")

	// ErrNoIncumbent is returned by the ILP solver when the time limit is
	// reached before any feasible solution is found.
	ErrNoIncumbent = errors.New("tacos: no feasible incumbent found within time limit")
)
