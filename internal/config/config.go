package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rohmanhakim/dns-cache/internal/report"
	"github.com/rohmanhakim/dns-cache/pkg/domainutil"
	"github.com/rohmanhakim/dns-cache/pkg/hashutil"
	"gopkg.in/yaml.v3"
)

type Config struct {
	//===============
	// Cache
	//===============
	// Records loaded into the cache before any command runs, keyed by domain.
	entries map[string]string
	// Maximum number of distinct domains. 0 means unbounded.
	maxEntries int
	// How long one lookup or store may wait for the cache lock.
	// 0 waits indefinitely.
	lockTimeout time.Duration

	//===============
	// Retry
	//===============
	// Attempts per operation when the lock budget runs out
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration
	// Randomized variation added on top of each backoff delay
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64

	//===============
	// Output
	//===============
	reportFormat report.Format
	hashAlgo     hashutil.HashAlgo
	logLevel     string
	// Empty means stderr
	logFile string

	// Whether reportFormat came from a file or an override rather than the default
	reportFormatSet bool
}

type configDTO struct {
	Entries                map[string]string `json:"entries,omitempty" yaml:"entries,omitempty"`
	MaxEntries             int               `json:"maxEntries,omitempty" yaml:"maxEntries,omitempty"`
	LockTimeout            time.Duration     `json:"lockTimeout,omitempty" yaml:"lockTimeout,omitempty"`
	MaxAttempt             int               `json:"maxAttempt,omitempty" yaml:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration     `json:"backoffInitialDuration,omitempty" yaml:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64           `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration     `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
	Jitter                 time.Duration     `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	RandomSeed             int64             `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	ReportFormat           string            `json:"reportFormat,omitempty" yaml:"reportFormat,omitempty"`
	HashAlgo               string            `json:"hashAlgo,omitempty" yaml:"hashAlgo,omitempty"`
	LogLevel               string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFile                string            `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault()

	// For every field, only override if non-zero value is provided
	if len(dto.Entries) > 0 {
		cfg.entries = dto.Entries
	}
	if dto.MaxEntries != 0 {
		cfg.maxEntries = dto.MaxEntries
	}
	if dto.LockTimeout != 0 {
		cfg.lockTimeout = dto.LockTimeout
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.ReportFormat != "" {
		cfg.WithReportFormat(report.Format(dto.ReportFormat))
	}
	if dto.HashAlgo != "" {
		cfg.hashAlgo = hashutil.HashAlgo(dto.HashAlgo)
	}
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}
	if dto.LogFile != "" {
		cfg.logFile = dto.LogFile
	}

	return cfg.Build()
}

// WithConfigFile loads a JSON or YAML config file, chosen by extension
// (.yaml / .yml for YAML, anything else JSON). Durations are nanosecond
// integers in JSON and Go duration strings ("250ms") in YAML.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configContent, &cfgDTO)
	default:
		err = json.Unmarshal(configContent, &cfgDTO)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config with default values for all fields.
func WithDefault() *Config {
	defaultConfig := Config{
		entries:                map[string]string{},
		maxEntries:             0,
		lockTimeout:            100 * time.Millisecond,
		maxAttempt:             3,
		backoffInitialDuration: 5 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     200 * time.Millisecond,
		jitter:                 2 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		reportFormat:           report.FormatText,
		hashAlgo:               hashutil.HashAlgoBLAKE3,
		logLevel:               "info",
		logFile:                "",
	}
	return &defaultConfig
}

// Builder returns an editable copy of a built config so that later
// overrides (e.g. CLI flags) can be layered on top of a config file.
func (c Config) Builder() *Config {
	edit := c
	edit.entries = c.Entries()
	return &edit
}

func (c *Config) WithEntries(entries map[string]string) *Config {
	c.entries = entries
	return c
}

// WithEntry adds or replaces a single seed record.
func (c *Config) WithEntry(domain string, info string) *Config {
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.entries[domain] = info
	return c
}

func (c *Config) WithMaxEntries(n int) *Config {
	c.maxEntries = n
	return c
}

func (c *Config) WithLockTimeout(timeout time.Duration) *Config {
	c.lockTimeout = timeout
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithReportFormat(format report.Format) *Config {
	c.reportFormat = format
	c.reportFormatSet = true
	return c
}

func (c *Config) WithHashAlgo(algo hashutil.HashAlgo) *Config {
	c.hashAlgo = algo
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithLogFile(path string) *Config {
	c.logFile = path
	return c
}

// Build validates the config and canonicalizes seed domains.
func (c *Config) Build() (Config, error) {
	if c.maxEntries < 0 {
		return Config{}, fmt.Errorf("%w: maxEntries cannot be negative", ErrInvalidConfig)
	}
	if c.lockTimeout < 0 {
		return Config{}, fmt.Errorf("%w: lockTimeout cannot be negative", ErrInvalidConfig)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1", ErrInvalidConfig)
	}

	format, err := report.ParseFormat(string(c.reportFormat))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	c.reportFormat = format

	if _, err := hashutil.ParseHashAlgo(string(c.hashAlgo)); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	entries := make(map[string]string, len(c.entries))
	for domain, info := range c.entries {
		key, err := domainutil.Canonicalize(domain)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		entries[key] = info
	}
	if c.maxEntries > 0 && len(entries) > c.maxEntries {
		return Config{}, fmt.Errorf("%w: %d seed entries exceed maxEntries %d", ErrInvalidConfig, len(entries), c.maxEntries)
	}
	c.entries = entries

	built := *c
	built.entries = maps.Clone(entries)
	return built, nil
}

func (c Config) Entries() map[string]string {
	entries := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		entries[k] = v
	}
	return entries
}

func (c Config) MaxEntries() int {
	return c.maxEntries
}

func (c Config) LockTimeout() time.Duration {
	return c.lockTimeout
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) ReportFormat() report.Format {
	return c.reportFormat
}

// ReportFormatSet reports whether the format was chosen explicitly,
// by a config file or a WithReportFormat override.
func (c Config) ReportFormatSet() bool {
	return c.reportFormatSet
}

func (c Config) HashAlgo() hashutil.HashAlgo {
	return c.hashAlgo
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) LogFile() string {
	return c.logFile
}
