// Package editor holds editing sessions. A Session owns one sensor's
// configuration while it is being edited: every change goes through it,
// revalidates the whole configuration, and is persisted only by Save.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
	"github.com/gyaneshwarpardhi/sensoredit/internal/metrics"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

var (
	ErrSaveInProgress    = errors.New("a save is already in progress")
	ErrInvalid           = errors.New("configuration has errors")
	ErrNoSession         = errors.New("no editing session for sensor")
	ErrNeedsConfirmation = errors.New("delete needs confirmation")
	ErrNotTestable       = errors.New("only device actions can be tested")
	ErrNoHost            = errors.New("host operation not configured")
)

// Deps are the collaborators of a session. Store is required; the others
// disable the features that need them when nil.
type Deps struct {
	Store     host.Store
	Reloader  host.Reloader
	Invoker   host.DeviceInvoker
	Scenes    host.SceneManager
	Catalog   activity.ParamCatalog
	Scheduler host.Scheduler

	SavePolicy  host.Policy
	ReadyPolicy host.Policy

	Logger      *slog.Logger
	Now         func() time.Time
	TreeOptions []tree.Option
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Scheduler == nil {
		d.Scheduler = host.SystemScheduler
	}
	if d.SavePolicy == (host.Policy{}) {
		d.SavePolicy = host.DefaultSavePolicy
	}
	if d.ReadyPolicy == (host.Policy{}) {
		d.ReadyPolicy = host.DefaultReadyPolicy
	}
}

// Session is the editing state of one sensor.
type Session struct {
	id   string
	deps Deps
	log  *slog.Logger

	mu     sync.Mutex
	doc    *cdata.Document
	drafts map[string][]activity.Row
	report *validate.Report

	// saved is the encoding at the last load or save; Revert returns to it.
	saved     []byte
	savedHash uint64

	saving atomic.Bool
}

// Open loads a sensor's configuration and starts a session on it. A sensor
// that was never configured starts from an empty configuration.
func Open(ctx context.Context, sensorID string, deps Deps) (*Session, error) {
	deps.defaults()
	if deps.Store == nil {
		return nil, fmt.Errorf("open %s: no store", sensorID)
	}
	data, err := deps.Store.Load(ctx, sensorID)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sensorID, err)
	}
	doc, err := cdata.Decode(data, deps.TreeOptions...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sensorID, err)
	}
	s := &Session{
		id:     sensorID,
		deps:   deps,
		log:    deps.Logger.With("sensor", sensorID),
		doc:    doc,
		drafts: make(map[string][]activity.Row),
	}
	if err := s.setBaseline(); err != nil {
		return nil, fmt.Errorf("open %s: %w", sensorID, err)
	}
	s.revalidate()
	s.log.Info("session opened", "serial", doc.Serial, "conditions", doc.Conditions.Len())
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) setBaseline() error {
	data, err := cdata.Encode(s.doc)
	if err != nil {
		return err
	}
	s.saved = data
	s.savedHash = xxhash.Sum64(data)
	return nil
}

func (s *Session) revalidate() {
	s.report = s.doc.Validate(s.drafts)
	metrics.ValidationErrors.WithLabelValues(s.id).Set(float64(s.report.ErrorCount()))
}

// edit runs fn under the session lock and revalidates afterwards, also when
// fn fails part way.
func (s *Session) edit(op string, fn func(d *cdata.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.doc)
	s.revalidate()
	if err != nil {
		s.log.Debug("edit rejected", "op", op, "err", err)
		return err
	}
	metrics.Edits.WithLabelValues(op).Inc()
	return nil
}

// Modified reports whether the configuration differs from the last load or
// save. Unbuilt activity drafts count as changes.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified()
}

func (s *Session) modified() bool {
	if len(s.drafts) > 0 {
		return true
	}
	data, err := cdata.Encode(s.doc)
	if err != nil {
		return true
	}
	return xxhash.Sum64(data) != s.savedHash
}

// Report returns the current validation report. It is replaced, not
// mutated, by later edits.
func (s *Session) Report() *validate.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool { return s.saving.Load() }

// RuntimeState reads the engine's last published state for the sensor.
func (s *Session) RuntimeState(ctx context.Context) (*cdata.State, error) {
	data, err := s.deps.Store.LoadState(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("runtime state %s: %w", s.id, err)
	}
	return cdata.DecodeState(data)
}
