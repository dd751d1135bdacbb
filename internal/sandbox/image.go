package sandbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/command"
	"github.com/kingrea/keywork/internal/config"
)

const queryTimeout = 10 * time.Second

// ImageManager keeps the sandbox image in step with its Dockerfile.
type ImageManager struct {
	cfg     *config.Config
	run     command.Runner
	factory command.Factory
	logger  *zap.Logger
}

// ImageOption customizes an ImageManager.
type ImageOption func(*ImageManager)

func WithImageRunner(run command.Runner) ImageOption {
	return func(m *ImageManager) { m.run = run }
}

func WithImageFactory(factory command.Factory) ImageOption {
	return func(m *ImageManager) { m.factory = factory }
}

func WithImageLogger(logger *zap.Logger) ImageOption {
	return func(m *ImageManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewImageManager manages the image named in cfg.
func NewImageManager(cfg *config.Config, opts ...ImageOption) *ImageManager {
	m := &ImageManager{
		cfg:     cfg,
		run:     command.Run,
		factory: command.New,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure builds the image when it is missing or older than the Dockerfile.
// Progress and build output are passed to onOutput line by line. It reports
// whether the image is ready.
func (m *ImageManager) Ensure(ctx context.Context, onOutput func(string)) bool {
	emit := outputFunc(onOutput)
	image := m.cfg.Settings.Image
	dockerfile := m.cfg.DockerfilePath()

	switch {
	case !m.exists(ctx):
		emit("Sandbox image not found, building...")
	case m.stale(ctx, dockerfile):
		emit("Dockerfile changed since last build, rebuilding...")
	default:
		emit("Sandbox image is up to date.")
		return true
	}

	if !fileExists(dockerfile) {
		emit("ERROR: Dockerfile not found at " + dockerfile)
		return false
	}

	emit(fmt.Sprintf("=== Building sandbox image (%s) ===", image))
	cmd := m.factory(ctx, m.cfg.Settings.Runtime, "build", "-t", image, "-f", dockerfile, m.cfg.SandboxDir())
	proc, err := start(cmd, emit, m.logger)
	if err != nil {
		if command.IsNotFound(err) {
			emit("ERROR: Docker not found. Cannot build sandbox image.")
		} else {
			emit(fmt.Sprintf("ERROR: Failed to build sandbox image: %v", err))
		}
		return false
	}
	if err := proc.Wait(); err != nil {
		if code, ok := command.ExitCode(err); ok {
			emit(fmt.Sprintf("ERROR: Image build failed with exit code %d", code))
		} else {
			emit(fmt.Sprintf("ERROR: Failed to build sandbox image: %v", err))
		}
		m.logger.Warn("image build failed", zap.String("image", image), zap.Error(err))
		return false
	}
	emit("Sandbox image built successfully.")
	m.logger.Info("image built", zap.String("image", image))
	return true
}

func (m *ImageManager) exists(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	out, err := m.run(ctx, m.cfg.Settings.Runtime, "images", "-q", m.cfg.Settings.Image)
	return err == nil && strings.TrimSpace(string(out)) != ""
}

// stale reports whether the Dockerfile was modified after the image was
// created. An unknown creation time counts as stale; a missing Dockerfile
// does not.
func (m *ImageManager) stale(ctx context.Context, dockerfile string) bool {
	info, err := os.Stat(dockerfile)
	if err != nil {
		return false
	}
	created, ok := m.created(ctx)
	if !ok {
		return true
	}
	return info.ModTime().After(created)
}

func (m *ImageManager) created(ctx context.Context) (time.Time, bool) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	out, err := m.run(ctx, m.cfg.Settings.Runtime, "inspect", "--format", "{{.Created}}", m.cfg.Settings.Image)
	if err != nil {
		return time.Time{}, false
	}
	return parseCreated(strings.TrimSpace(string(out)))
}

// parseCreated reads the runtime's RFC 3339 timestamp, which carries up to
// nanosecond precision.
func parseCreated(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func outputFunc(onOutput func(string)) func(string) {
	if onOutput == nil {
		return func(string) {}
	}
	return onOutput
}
