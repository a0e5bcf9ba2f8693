package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/config"
)

// LogFileName is the file written under paths.log_dir by NewFromConfig.
const LogFileName = "reelsmith.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths accepts "stdout", "stderr" or file paths; files are appended.
	OutputPaths []string
	// Source adds file:line to every record. Debug level implies it.
	Source bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	w, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	h, err := newHandler(w, opts.Format, parseLevel(opts.Level), opts.Source)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// NewFromConfig creates the run logger: console output on stdout in the
// configured format and, when a log directory is set, every record appended
// as JSON to reelsmith.log. Sinks run at the most verbose level any stage
// override asks for; the returned logger enforces logging.level on top, and
// ForStage swaps that floor per stage.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	global := parseLevel(cfg.Logging.Level)
	sinkLevel := lowestLevel(cfg.Logging.Level, cfg.Logging.StageOverrides)

	console, err := newHandler(os.Stdout, cfg.Logging.Format, sinkLevel, false)
	if err != nil {
		return nil, err
	}
	sinks := []slog.Handler{console}

	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		w, err := openOutputs([]string{filepath.Join(dir, LogFileName)})
		if err != nil {
			return nil, err
		}
		file, err := newHandler(w, "json", sinkLevel, false)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	}
	return slog.New(floorHandler{inner: TeeHandler(sinks...), min: global}), nil
}

func newHandler(w io.Writer, format string, level slog.Level, source bool) (slog.Handler, error) {
	source = source || level <= slog.LevelDebug
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newPrettyHandler(w, level, source), nil
	case "json":
		return newJSONHandler(w, level, source), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func openOutputs(paths []string) (io.Writer, error) {
	seen := map[string]bool{}
	var writers []io.Writer
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory for %s: %w", path, err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// newJSONHandler emits {"ts","level","msg",...} with lowercase levels and
// UTC timestamps so log files from different hosts sort together.
func newJSONHandler(w io.Writer, level slog.Level, source bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: source,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
