// Package registry tracks what this keywork process started: sandbox
// containers that must be stopped before exit and the terminal sessions
// opened on the user's behalf.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StopFunc stops one container by name.
type StopFunc func(ctx context.Context, name string) error

// Session is a terminal launched for a goal action.
type Session struct {
	ID        string
	Goal      string
	Repo      string
	Action    string
	Command   string
	Method    string
	StartedAt time.Time
	PID       int
}

// Registry is safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	containers []string
	sessions   []Session
	stop       StopFunc
	alive      func(pid int) bool
	now        func() time.Time
	logger     *zap.Logger
	closed     bool
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for teardown failures.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLiveness replaces the PID liveness probe.
func WithLiveness(alive func(pid int) bool) Option {
	return func(r *Registry) { r.alive = alive }
}

// WithClock stamps sessions with now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New builds a registry that tears containers down with stop.
func New(stop StopFunc, opts ...Option) *Registry {
	r := &Registry{
		stop:   stop,
		alive:  processAlive,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TrackContainer remembers a started container.
func (r *Registry) TrackContainer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers = append(r.containers, name)
}

// Containers returns the containers not yet stopped.
func (r *Registry) Containers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.containers...)
}

// AddSession records a session, filling in ID and StartedAt when unset, and
// returns the stored copy.
func (r *Registry) AddSession(s Session) Session {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return s
}

// Sessions returns every session recorded so far, oldest first.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Session(nil), r.sessions...)
}

// ActiveSessions returns sessions whose process still runs. Sessions without
// a PID cannot be probed and are always included.
func (r *Registry) ActiveSessions() []Session {
	var out []Session
	for _, s := range r.Sessions() {
		if s.PID == 0 || r.alive(s.PID) {
			out = append(out, s)
		}
	}
	return out
}

// Close stops every tracked container concurrently and forgets them. Stop
// failures are logged, not returned, so one stuck container never keeps the
// others running. Calling Close again is a no-op.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	names := r.containers
	r.containers = nil
	r.mu.Unlock()

	if r.stop == nil || len(names) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := r.stop(gctx, name); err != nil {
				r.logger.Warn("failed to stop container", zap.String("container", name), zap.Error(err))
				return nil
			}
			r.logger.Info("stopped container", zap.String("container", name))
			return nil
		})
	}
	return g.Wait()
}
