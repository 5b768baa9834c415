package session

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/rohmanhakim/dns-cache/internal/cache"
	"github.com/rohmanhakim/dns-cache/internal/config"
	"github.com/rohmanhakim/dns-cache/internal/metadata"
	"github.com/rohmanhakim/dns-cache/internal/report"
	"github.com/rohmanhakim/dns-cache/pkg/domainutil"
	"github.com/rohmanhakim/dns-cache/pkg/failure"
	"github.com/rohmanhakim/dns-cache/pkg/hashutil"
	"github.com/rohmanhakim/dns-cache/pkg/retry"
	"github.com/rohmanhakim/dns-cache/pkg/timeutil"
)

// TimedCache is the slice of cache.MemoryCache a session drives.
type TimedCache interface {
	TryFind(key string, timeout time.Duration) (*cache.Record, bool, failure.ClassifiedError)
	TryUpsert(key string, record cache.Record, timeout time.Duration) failure.ClassifiedError
	Snapshot() iter.Seq2[string, *cache.Record]
	Len() int
}

/*
Session is the driver-side facade over one shared cache.
Responsibilities:
  - turn user-supplied domains into canonical cache keys
  - retry operations whose lock budget ran out
  - report every outcome to the metadata sink

The cache itself never logs or retries; that all happens here.
Session is safe for concurrent use as long as the cache is.
*/
type Session struct {
	cache       TimedCache
	sink        metadata.MetadataSink
	logger      *slog.Logger
	lockTimeout time.Duration
	retryParam  retry.RetryParam
	format      report.Format
	hashAlgo    hashutil.HashAlgo
}

func New(c TimedCache, cfg config.Config, sink metadata.MetadataSink, logger *slog.Logger) *Session {
	return &Session{
		cache:       c,
		sink:        sink,
		logger:      logger,
		lockTimeout: cfg.LockTimeout(),
		retryParam: retry.NewRetryParam(
			cfg.Jitter(),
			cfg.RandomSeed(),
			cfg.MaxAttempt(),
			timeutil.NewBackoffParam(
				cfg.BackoffInitialDuration(),
				cfg.BackoffMultiplier(),
				cfg.BackoffMaxDuration(),
			),
		),
		format:   cfg.ReportFormat(),
		hashAlgo: cfg.HashAlgo(),
	}
}

type lookupResult struct {
	record *cache.Record
	found  bool
}

// Lookup finds the record for domain. A miss is reported through found,
// not through err.
func (s *Session) Lookup(domain string) (*cache.Record, bool, error) {
	key, err := domainutil.Canonicalize(domain)
	if err != nil {
		s.sink.RecordError(metadata.OpLookup, domain, metadata.CauseInvalidInput, err.Error())
		return nil, false, err
	}

	attempt := 0
	result := retry.Retry(s.retryParam, func() (lookupResult, failure.ClassifiedError) {
		attempt++
		record, found, err := s.cache.TryFind(key, s.lockTimeout)
		if err != nil {
			s.noteLockTimeout(metadata.OpLookup, key, attempt, err)
			return lookupResult{}, err
		}
		return lookupResult{record: record, found: found}, nil
	})
	if result.IsFailure() {
		err := result.Err()
		s.sink.RecordError(metadata.OpLookup, key, mapCacheErrorToMetadataCause(err), err.Error())
		return nil, false, err
	}

	s.sink.RecordLookup(key, result.Value().found, result.Attempts())
	return result.Value().record, result.Value().found, nil
}

// Store publishes a new record for domain.
func (s *Session) Store(domain string, info string) error {
	key, err := domainutil.Canonicalize(domain)
	if err != nil {
		s.sink.RecordError(metadata.OpStore, domain, metadata.CauseInvalidInput, err.Error())
		return err
	}

	attempt := 0
	result := retry.Retry(s.retryParam, func() (struct{}, failure.ClassifiedError) {
		attempt++
		if err := s.cache.TryUpsert(key, cache.NewRecord(info), s.lockTimeout); err != nil {
			s.noteLockTimeout(metadata.OpStore, key, attempt, err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if result.IsFailure() {
		err := result.Err()
		s.sink.RecordError(metadata.OpStore, key, mapCacheErrorToMetadataCause(err), err.Error())
		return err
	}

	s.sink.RecordStore(key, result.Attempts())
	return nil
}

// Seed stores every entry in domain order and stops at the first failure.
func (s *Session) Seed(entries map[string]string) error {
	for _, domain := range slices.Sorted(maps.Keys(entries)) {
		if err := s.Store(domain, entries[domain]); err != nil {
			return fmt.Errorf("seed %s: %w", domain, err)
		}
	}
	s.logger.Debug("cache seeded", "entries", len(entries))
	return nil
}

// Report renders the cache contents in the configured format.
func (s *Session) Report() (string, error) {
	return report.Render(s.cache, s.format, s.hashAlgo)
}

// Len reports how many domains the cache holds.
func (s *Session) Len() int {
	return s.cache.Len()
}

// Fingerprint digests the current cache contents with the configured algorithm.
func (s *Session) Fingerprint() (string, error) {
	return report.Fingerprint(s.cache, s.hashAlgo)
}

func (s *Session) noteLockTimeout(op metadata.Operation, key string, attempt int, err error) {
	if errors.Is(err, cache.ErrLockTimeout) {
		s.sink.RecordLockTimeout(op, key, attempt)
	}
}

// mapCacheErrorToMetadataCause maps cache-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapCacheErrorToMetadataCause(err error) metadata.ErrorCause {
	var cacheErr *cache.CacheError
	if !errors.As(err, &cacheErr) {
		return metadata.CauseUnknown
	}
	switch cacheErr.Cause {
	case cache.ErrCauseLockTimeout:
		return metadata.CauseLockContention
	case cache.ErrCauseAllocation:
		return metadata.CauseCapacityExceeded
	default:
		return metadata.CauseUnknown
	}
}
