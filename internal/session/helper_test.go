package session_test

import (
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/rohmanhakim/dns-cache/internal/cache"
	"github.com/rohmanhakim/dns-cache/internal/config"
	"github.com/rohmanhakim/dns-cache/internal/metadata"
	"github.com/rohmanhakim/dns-cache/pkg/failure"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cacheMock struct {
	mock.Mock
}

func (c *cacheMock) TryFind(key string, timeout time.Duration) (*cache.Record, bool, failure.ClassifiedError) {
	args := c.Called(key, timeout)
	var record *cache.Record
	if args.Get(0) != nil {
		record = args.Get(0).(*cache.Record)
	}
	var err failure.ClassifiedError
	if args.Get(2) != nil {
		err = args.Get(2).(failure.ClassifiedError)
	}
	return record, args.Bool(1), err
}

func (c *cacheMock) TryUpsert(key string, record cache.Record, timeout time.Duration) failure.ClassifiedError {
	args := c.Called(key, record, timeout)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(failure.ClassifiedError)
}

func (c *cacheMock) Snapshot() iter.Seq2[string, *cache.Record] {
	args := c.Called()
	return args.Get(0).(iter.Seq2[string, *cache.Record])
}

func (c *cacheMock) Len() int {
	return c.Called().Int(0)
}

type sinkMock struct {
	mock.Mock
}

func (s *sinkMock) RecordLookup(domain string, hit bool, attempts int) {
	s.Called(domain, hit, attempts)
}

func (s *sinkMock) RecordStore(domain string, attempts int) {
	s.Called(domain, attempts)
}

func (s *sinkMock) RecordLockTimeout(op metadata.Operation, domain string, attempt int) {
	s.Called(op, domain, attempt)
}

func (s *sinkMock) RecordError(op metadata.Operation, domain string, cause metadata.ErrorCause, details string) {
	s.Called(op, domain, cause, details)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig keeps retries fast and deterministic.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.WithDefault().
		WithLockTimeout(10 * time.Millisecond).
		WithMaxAttempt(3).
		WithBackoffInitialDuration(time.Millisecond).
		WithBackoffMaxDuration(2 * time.Millisecond).
		WithJitter(0).
		WithRandomSeed(1).
		Build()
	require.NoError(t, err)
	return cfg
}

func lockTimeout() *cache.CacheError {
	return &cache.CacheError{Cause: cache.ErrCauseLockTimeout, Retryable: true, Message: "busy"}
}
