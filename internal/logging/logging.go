// Package logging builds the zap logger every keywork component writes to.
//
// Entries go to .keywork/logs/<file> as JSON so failures can be inspected
// after a terminal closes. Warnings and errors are echoed to stderr; with
// verbose set, everything is.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kingrea/keywork/internal/config"
)

// Logger couples the zap logger with the file it owns.
type Logger struct {
	*zap.Logger
	file *os.File
}

// Option customizes New.
type Option func(*options)

type options struct {
	verbose bool
	console io.Writer
}

// WithVerbose lowers both cores to debug.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// WithConsole redirects the stderr echo. nil disables it.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// New opens (or reuses) the log file configured in cfg.
func New(cfg *config.Config, opts ...Option) (*Logger, error) {
	o := options{console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.LogsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	fileLevel, err := zapcore.ParseLevel(cfg.Settings.Log.Level)
	if err != nil {
		fileLevel = zapcore.InfoLevel
	}
	consoleLevel := zapcore.WarnLevel
	if o.verbose {
		fileLevel = zapcore.DebugLevel
		consoleLevel = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zap.NewAtomicLevelAt(fileLevel)),
	}
	if o.console != nil {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCfg.TimeKey = ""
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(zapcore.AddSync(o.console)),
			zap.NewAtomicLevelAt(consoleLevel),
		))
	}

	logger := zap.New(zapcore.NewTee(cores...)).With(zap.Int("pid", os.Getpid()))
	return &Logger{Logger: logger, file: f}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close flushes buffered entries and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.Logger == nil {
		return nil
	}
	_ = l.Logger.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// For returns the named child logger handed to a component.
func (l *Logger) For(component string) *zap.Logger {
	if l == nil || l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger.Named(component)
}
