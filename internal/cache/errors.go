package cache

import (
	"fmt"

	"github.com/rohmanhakim/dns-cache/pkg/failure"
)

type CacheErrorCause string

const (
	ErrCauseAllocation  CacheErrorCause = "storage limit reached"
	ErrCauseLockTimeout CacheErrorCause = "lock acquisition timed out"
)

// Sentinels for errors.Is; matching is by cause.
var (
	ErrAllocation  = &CacheError{Cause: ErrCauseAllocation}
	ErrLockTimeout = &CacheError{Cause: ErrCauseLockTimeout, Retryable: true}
)

type CacheError struct {
	Message   string
	Retryable bool
	Cause     CacheErrorCause
}

func (e *CacheError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cache error: %s", e.Cause)
	}
	return fmt.Sprintf("cache error: %s, %s", e.Cause, e.Message)
}

func (e *CacheError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *CacheError) IsRetryable() bool {
	return e.Retryable
}

func (e *CacheError) Is(target error) bool {
	t, ok := target.(*CacheError)
	return ok && t.Cause == e.Cause
}
