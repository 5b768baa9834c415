package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu sync.Mutex
)

// Init configures the default slog logger to write text records to path
// (stderr when empty) at the given level. Closing the returned io.Closer
// closes the log file and puts the previous default logger back.
func Init(path string, level string) (io.Closer, error) {
	mu.Lock()
	defer mu.Unlock()

	previous := slog.Default()
	if path == "" {
		slog.SetDefault(New(os.Stderr, level))
		return &restorer{previous: previous}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(New(f, level))
	return &restorer{previous: previous, file: f}, nil
}

type restorer struct {
	previous *slog.Logger
	file     *os.File
	once     sync.Once
	err      error
}

func (r *restorer) Close() error {
	r.once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		slog.SetDefault(r.previous)
		if r.file != nil {
			r.err = r.file.Close()
		}
	})
	return r.err
}

// New builds a text logger on w without touching the default logger.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps "debug", "warn" and "error" to their slog levels;
// anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
