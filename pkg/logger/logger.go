// Package logger wires the process-wide structured logger and the append-only
// audit trail. The main logger records operational events; the audit logger is
// reserved for actions with external consequences (funds moved, posts
// published) and always writes JSON to a size-rotated file.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes the main logger output.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig describes the audit trail file and its rotation limits.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type state struct {
	main    *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
}

var (
	mu      sync.Mutex
	current *state
)

// Init builds the global loggers from cfg. Calling Init twice is an error;
// callers that only read logs via L or Audit never need to call it.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return errors.New("logger 已经初始化")
	}

	st := &state{}
	sink, err := st.openSinks(cfg.OutputPaths)
	if err != nil {
		st.closeAll()
		return err
	}

	opts := &slog.HandlerOptions{Level: levelFromString(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(sink, opts)
	} else {
		handler = slog.NewJSONHandler(sink, opts)
	}
	st.main = slog.New(handler)
	st.audit = st.main

	if cfg.Audit.Enabled {
		if cfg.Audit.Path == "" {
			st.closeAll()
			return errors.New("启用审计日志时必须配置文件路径")
		}
		rotating, err := newRotatingWriter(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
		if err != nil {
			st.closeAll()
			return err
		}
		st.closers = append(st.closers, rotating)
		st.audit = slog.New(slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	current = st
	return nil
}

func (st *state) openSinks(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		switch strings.ToLower(path) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("创建日志目录失败: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("打开日志文件 %s 失败: %w", path, err)
			}
			st.closers = append(st.closers, file)
			writers = append(writers, file)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (st *state) closeAll() {
	for _, c := range st.closers {
		_ = c.Close()
	}
	st.closers = nil
}

func levelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the main logger. Before Init it falls back to a JSON logger on
// stdout, which keeps library code and tests safe to log from.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = &state{main: slog.New(slog.NewJSONHandler(os.Stdout, nil))}
		current.audit = current.main
	}
	return current.main
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	L()
	mu.Lock()
	defer mu.Unlock()
	return current.audit
}

// Sync closes every file the loggers opened. Call it once on shutdown.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	var err error
	for _, c := range current.closers {
		err = errors.Join(err, c.Close())
	}
	current.closers = nil
	return err
}
