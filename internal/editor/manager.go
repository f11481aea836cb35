package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
	"github.com/gyaneshwarpardhi/sensoredit/internal/metrics"
)

// Manager keeps one session per sensor.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	deps.defaults()
	return &Manager{deps: deps, sessions: make(map[string]*Session)}
}

// Open returns the sensor's session, loading it on first use.
func (m *Manager) Open(ctx context.Context, sensorID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sensorID]; ok {
		return s, nil
	}
	s, err := Open(ctx, sensorID, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[sensorID] = s
	return s, nil
}

// Get returns an already open session.
func (m *Manager) Get(sensorID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sensorID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sensorID, ErrNoSession)
	}
	return s, nil
}

// Close ends a session, dropping unsaved changes.
func (m *Manager) Close(sensorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sensorID)
}

// Sessions returns the ids of open sessions.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Restart asks the host to reload its logic engine so saved
// configurations take effect, then waits until it reports ready.
func (m *Manager) Restart(ctx context.Context) error {
	m.mu.Lock()
	r, policy := m.deps.Reloader, m.deps.ReadyPolicy
	m.mu.Unlock()
	if r == nil {
		return ErrNoHost
	}
	if err := r.RequestReload(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	m.deps.Logger.Info("host reload requested")
	polls := 0
	err := host.AwaitReady(ctx, policy, m.deps.Scheduler, func(ctx context.Context) (bool, error) {
		if polls > 0 {
			metrics.HostRetries.WithLabelValues("ready").Inc()
		}
		polls++
		return r.Ready(ctx)
	})
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	m.deps.Logger.Info("host ready", "polls", polls)
	return nil
}

// SetPolicies replaces the retry policies of the manager and of every open
// session, e.g. after a settings reload.
func (m *Manager) SetPolicies(save, ready host.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps.SavePolicy, m.deps.ReadyPolicy = save, ready
	for _, s := range m.sessions {
		s.mu.Lock()
		s.deps.SavePolicy, s.deps.ReadyPolicy = save, ready
		s.mu.Unlock()
	}
}
