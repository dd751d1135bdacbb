package registry

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stopRecorder struct {
	mu      sync.Mutex
	stopped []string
	fail    map[string]bool
}

func (s *stopRecorder) stop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, name)
	if s.fail[name] {
		return errors.New("no such container")
	}
	return nil
}

func (s *stopRecorder) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.stopped...)
	sort.Strings(out)
	return out
}

func TestCloseStopsEveryContainerOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &stopRecorder{fail: map[string]bool{"b": true}}
	r := New(rec.stop)
	r.TrackContainer("a")
	r.TrackContainer("b")
	r.TrackContainer("c")
	assert.Equal(t, []string{"a", "b", "c"}, r.Containers())

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, rec.names())
	assert.Empty(t, r.Containers())

	require.NoError(t, r.Close(context.Background()))
	assert.Len(t, rec.names(), 3)
}

func TestCloseWithoutContainers(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert.NoError(t, New(nil).Close(context.Background()))
}

func TestConcurrentTracking(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &stopRecorder{}
	r := New(rec.stop)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.TrackContainer("c")
			r.AddSession(Session{Goal: "g"})
		}()
	}
	wg.Wait()
	assert.Len(t, r.Containers(), 50)
	assert.Len(t, r.Sessions(), 50)
	require.NoError(t, r.Close(context.Background()))
	assert.Len(t, rec.names(), 50)
}

func TestAddSessionFillsDefaults(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	r := New(nil, WithClock(func() time.Time { return at }))

	s := r.AddSession(Session{Goal: "g1", Action: "build"})
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, at, s.StartedAt)

	kept := r.AddSession(Session{ID: "fixed", StartedAt: at.Add(time.Hour)})
	assert.Equal(t, "fixed", kept.ID)
	assert.Equal(t, at.Add(time.Hour), kept.StartedAt)
	assert.Len(t, r.Sessions(), 2)
}

func TestActiveSessionsProbesPIDs(t *testing.T) {
	r := New(nil, WithLiveness(func(pid int) bool { return pid == 42 }))
	r.AddSession(Session{ID: "no-pid"})
	r.AddSession(Session{ID: "live", PID: 42})
	r.AddSession(Session{ID: "dead", PID: 7})

	var ids []string
	for _, s := range r.ActiveSessions() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"no-pid", "live"}, ids)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
}
