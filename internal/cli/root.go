package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rohmanhakim/dns-cache/internal/build"
	"github.com/rohmanhakim/dns-cache/internal/cache"
	"github.com/rohmanhakim/dns-cache/internal/config"
	"github.com/rohmanhakim/dns-cache/internal/metadata"
	"github.com/rohmanhakim/dns-cache/internal/report"
	"github.com/rohmanhakim/dns-cache/internal/session"
	"github.com/rohmanhakim/dns-cache/pkg/fileutil"
	"github.com/rohmanhakim/dns-cache/pkg/hashutil"
	"github.com/rohmanhakim/dns-cache/pkg/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	entries     []string
	maxEntries  int
	lockTimeout time.Duration
	maxAttempt  int
	format      string
	hashAlgo    string
	logLevel    string
	logFile     string

	outputPath string

	stressWorkers int
	stressOps     int
)

// parseEntries converts "domain=info" pairs into a map.
// Only the first '=' separates domain from info.
func parseEntries(pairs []string) (map[string]string, error) {
	parsed := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		domain, info, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(domain) == "" {
			return nil, fmt.Errorf("%w: entry %q must look like domain=info", config.ErrInvalidConfig, pair)
		}
		parsed[domain] = info
	}
	return parsed, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dns-cache",
	Short: "A concurrent in-memory domain record cache.",
	Long: `dns-cache keeps immutable domain records in a map shared by many
concurrent readers and occasional writers.

Lookups take a shared lock, stores take an exclusive lock, and records
handed out by a lookup never change after a later store.`,
	SilenceUsage: true,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Print an empty cache, store 123 -> 123:456, and print it again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}
		// demo always starts from an empty cache
		sr, err := newSession(cfg.Builder().WithEntries(nil), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer sr.close()
		s := sr.session
		out := cmd.OutOrStdout()

		if err := printReport(out, s); err != nil {
			return err
		}
		if err := printLookup(out, s, "123"); err != nil {
			return err
		}
		if err := printReport(out, s); err != nil {
			return err
		}
		if err := s.Store("123", "123:456"); err != nil {
			return err
		}
		if err := printLookup(out, s, "123"); err != nil {
			return err
		}
		if err := printReport(out, s); err != nil {
			return err
		}

		sr.logStats()
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup DOMAIN...",
	Short: "Seed the cache, then look up each domain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}
		sr, err := newSeededSession(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer sr.close()
		s := sr.session
		out := cmd.OutOrStdout()

		var failed int
		for _, domain := range args {
			if err := printLookup(out, s, domain); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "lookup %s: %v\n", domain, err)
				failed++
			}
		}
		if err := printReport(out, s); err != nil {
			return err
		}

		sr.logStats()
		if failed > 0 {
			return fmt.Errorf("%d of %d lookups failed", failed, len(args))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Seed the cache and print its contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}
		if outputPath != "" && !cfg.ReportFormatSet() {
			if inferred, ok := report.FormatForExtension(fileutil.GetFileExtension(outputPath)); ok {
				cfg, err = cfg.Builder().WithReportFormat(inferred).Build()
				if err != nil {
					return err
				}
			}
		}

		sr, err := newSeededSession(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer sr.close()
		s := sr.session

		if outputPath == "" {
			if err := printReport(cmd.OutOrStdout(), s); err != nil {
				return err
			}
		} else {
			rendered, err := s.Report()
			if err != nil {
				return err
			}
			if err := fileutil.WriteFile(outputPath, []byte(rendered)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", outputPath)
		}

		sr.logStats()
		return nil
	},
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run concurrent store/lookup workers on disjoint domains and verify the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}
		sr, err := newSession(cfg.Builder().WithEntries(nil), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer sr.close()

		result, err := sr.session.Stress(cmd.Context(), stressWorkers, stressOps)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "stress ok: %d workers x %d ops in %v\n",
			result.Workers, result.Ops, result.Duration.Round(time.Millisecond))
		sr.logStats()
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.Describe())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteArgs runs the root command with args, writing to out and errOut.
func ExecuteArgs(args []string, out io.Writer, errOut io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path, .json or .yaml (e.g., /home/myuser/dns-cache.yaml)")
	rootCmd.PersistentFlags().StringArrayVar(&entries, "entry", []string{}, "seed record as domain=info (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&maxEntries, "max-entries", 0, "maximum number of cached domains (0 for unbounded)")
	rootCmd.PersistentFlags().DurationVar(&lockTimeout, "lock-timeout", 0, "how long one operation may wait for the cache lock")
	rootCmd.PersistentFlags().IntVar(&maxAttempt, "max-attempt", 0, "attempts per operation when the lock budget runs out")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "report format: text, markdown or html")
	rootCmd.PersistentFlags().StringVar(&hashAlgo, "hash-algo", "", "report fingerprint algorithm: sha256 or blake3")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	showCmd.Flags().StringVar(&outputPath, "output", "", "write the report to this file; .md and .html pick the format unless --format or the config file sets one")

	stressCmd.Flags().IntVar(&stressWorkers, "workers", 8, "number of concurrent workers")
	stressCmd.Flags().IntVar(&stressOps, "ops", 1000, "store/lookup pairs per worker")

	rootCmd.AddCommand(demoCmd, lookupCmd, showCmd, stressCmd, versionCmd)
}

// InitConfigWithError reads in the config file if set and layers CLI flags on top.
func InitConfigWithError() (config.Config, error) {
	configBuilder := config.WithDefault()

	if cfgFile != "" {
		fileCfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		configBuilder = fileCfg.Builder()
	}

	flagEntries, err := parseEntries(entries)
	if err != nil {
		return config.Config{}, err
	}
	for domain, info := range flagEntries {
		configBuilder = configBuilder.WithEntry(domain, info)
	}

	if maxEntries > 0 {
		configBuilder = configBuilder.WithMaxEntries(maxEntries)
	}

	if lockTimeout > 0 {
		configBuilder = configBuilder.WithLockTimeout(lockTimeout)
	}

	if maxAttempt > 0 {
		configBuilder = configBuilder.WithMaxAttempt(maxAttempt)
	}

	if format != "" {
		configBuilder = configBuilder.WithReportFormat(report.Format(format))
	}

	if hashAlgo != "" {
		configBuilder = configBuilder.WithHashAlgo(hashutil.HashAlgo(hashAlgo))
	}

	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}

	if logFile != "" {
		configBuilder = configBuilder.WithLogFile(logFile)
	}

	return configBuilder.Build()
}

// sessionRun is one command's session together with the resources it
// must release when the command returns.
type sessionRun struct {
	session  *session.Session
	recorder *metadata.Recorder

	// nil when logging to errOut
	logs io.Closer
}

func newSession(builder *config.Config, errOut io.Writer) (*sessionRun, error) {
	cfg, err := builder.Build()
	if err != nil {
		return nil, err
	}

	var logs io.Closer
	if cfg.LogFile() != "" {
		logs, err = log.Init(cfg.LogFile(), cfg.LogLevel())
		if err != nil {
			return nil, fmt.Errorf("init log: %w", err)
		}
	} else {
		slog.SetDefault(log.New(errOut, cfg.LogLevel()))
	}

	recorder := metadata.NewRecorder(slog.Default())
	c := cache.NewMemoryCache(
		cache.WithMaxEntries(cfg.MaxEntries()),
		cache.WithLockTimeout(cfg.LockTimeout()),
	)
	slog.Debug("session started", "session", recorder.SessionID(), "maxEntries", cfg.MaxEntries(), "lockTimeout", cfg.LockTimeout())

	return &sessionRun{
		session:  session.New(c, cfg, recorder, slog.Default()),
		recorder: recorder,
		logs:     logs,
	}, nil
}

func newSeededSession(cfg config.Config, errOut io.Writer) (*sessionRun, error) {
	sr, err := newSession(cfg.Builder(), errOut)
	if err != nil {
		return nil, err
	}
	if err := sr.session.Seed(cfg.Entries()); err != nil {
		sr.close()
		return nil, err
	}
	return sr, nil
}

// logStats writes the end-of-run summary.
func (sr *sessionRun) logStats() {
	stats := sr.recorder.Stats()
	fingerprint, err := sr.session.Fingerprint()
	if err != nil {
		slog.Warn("fingerprint failed", "session", sr.recorder.SessionID(), "error", err)
	}
	slog.Info("session finished",
		"session", sr.recorder.SessionID(),
		"records", sr.session.Len(),
		"fingerprint", fingerprint,
		"hits", stats.Hits,
		"misses", stats.Misses,
		"stores", stats.Stores,
		"storeErrors", stats.StoreErrors,
		"lockTimeouts", stats.LockTimeouts,
	)
}

func (sr *sessionRun) close() {
	if sr.logs == nil {
		return
	}
	if err := sr.logs.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
}

func printReport(out io.Writer, s *session.Session) error {
	rendered, err := s.Report()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, rendered)
	return nil
}

func printLookup(out io.Writer, s *session.Session, domain string) error {
	record, found, err := s.Lookup(domain)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(out, "%s: not found\n", domain)
		return nil
	}
	fmt.Fprintf(out, "%s: %s\n", domain, record.Info())
	return nil
}

func ResetFlags() {
	cfgFile = ""
	entries = []string{}
	maxEntries = 0
	lockTimeout = 0
	maxAttempt = 0
	format = ""
	hashAlgo = ""
	logLevel = ""
	logFile = ""
	outputPath = ""
	stressWorkers = 8
	stressOps = 1000
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetEntriesForTest(pairs []string) {
	entries = pairs
}

func SetMaxEntriesForTest(n int) {
	maxEntries = n
}

func SetFormatForTest(f string) {
	format = f
}
