package metadata

/*
ErrorCause is a closed, canonical classification used exclusively for
observability (logging, metrics, reporting).

Rules:
  - ErrorCause MUST NOT influence control flow.
  - ErrorCause MUST NOT be used for retry or abort decisions.
  - Packages MAY map their local errors to ErrorCause,
    but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

const (
	CauseUnknown ErrorCause = iota
	// The cache lock was not acquired within its budget.
	CauseLockContention
	// The cache refused a new key because it is full.
	CauseCapacityExceeded
	// A caller supplied a key or record that could not be accepted.
	CauseInvalidInput
)

func (c ErrorCause) String() string {
	switch c {
	case CauseLockContention:
		return "lock_contention"
	case CauseCapacityExceeded:
		return "capacity_exceeded"
	case CauseInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

type Operation string

const (
	OpLookup Operation = "lookup"
	OpStore  Operation = "store"
)

// Stats is an aggregate view of what a Recorder has observed.
type Stats struct {
	Hits         int
	Misses       int
	Stores       int
	StoreErrors  int
	LockTimeouts int
}
