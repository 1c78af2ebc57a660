package models

// LookupStatus distinguishes the three outcomes of a [Lookup].
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupFailed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not found"
	default:
		return "failed"
	}
}

// Lookup is the outcome of a local or remote lookup.
//
// Callers decide per status whether a miss is a skip or an abort; a zero Value never stands in for a miss.
type Lookup[T any] struct {
	Value  T
	Status LookupStatus
	Err    error
}

// Found wraps a successful lookup.
func Found[T any](v T) Lookup[T] {
	return Lookup[T]{Value: v, Status: LookupFound}
}

// NotFound reports that the lookup completed but no record exists.
func NotFound[T any]() Lookup[T] {
	return Lookup[T]{Status: LookupNotFound}
}

// Failed reports a transient or transport failure.
func Failed[T any](err error) Lookup[T] {
	return Lookup[T]{Status: LookupFailed, Err: err}
}

func (l Lookup[T]) IsFound() bool    { return l.Status == LookupFound }
func (l Lookup[T]) IsNotFound() bool { return l.Status == LookupNotFound }
func (l Lookup[T]) IsFailed() bool   { return l.Status == LookupFailed }
