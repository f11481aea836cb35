package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
	"github.com/gyaneshwarpardhi/sensoredit/internal/metrics"
)

// SaveResult describes a completed save.
type SaveResult struct {
	Serial    int   `json:"serial"`
	Timestamp int64 `json:"timestamp"`
	// Removed are the notification slots collected because nothing
	// referred to them.
	Removed []string `json:"removed,omitempty"`
	// Released are host scenes deleted after the save.
	Released []int `json:"released,omitempty"`
}

// Save persists the configuration. Only one save runs at a time; a second
// caller gets ErrSaveInProgress. A configuration with errors is refused with
// ErrInvalid. The write works on a copy taken under the session lock; the
// lock is released while the host is called, so edits made in the meantime
// stay in the session and remain unsaved changes.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	if !s.saving.CompareAndSwap(false, true) {
		metrics.Saves.WithLabelValues("busy").Inc()
		return SaveResult{}, ErrSaveInProgress
	}
	defer s.saving.Store(false)

	start := time.Now()
	defer func() {
		metrics.SaveDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	snap, base, err := s.prepareSave()
	if err != nil {
		return SaveResult{}, err
	}
	coll := snap.CollectNotifications()
	metrics.NotificationsCollected.Add(float64(len(coll.Removed)))

	created, err := s.createScenes(ctx, snap)
	if err != nil {
		s.releaseScenes(ctx, created)
		metrics.Saves.WithLabelValues("failed").Inc()
		return SaveResult{}, fmt.Errorf("save %s: %w", s.id, err)
	}

	snap.Stamp(s.deps.Now())
	data, err := cdata.Encode(snap)
	if err != nil {
		s.releaseScenes(ctx, created)
		metrics.Saves.WithLabelValues("failed").Inc()
		return SaveResult{}, fmt.Errorf("save %s: %w", s.id, err)
	}

	err = host.Retry(ctx, s.deps.SavePolicy, s.deps.Scheduler, func(ctx context.Context) error {
		return s.deps.Store.Persist(ctx, s.id, data)
	}, func(attempt int, err error) {
		metrics.HostRetries.WithLabelValues("persist").Inc()
		s.log.Warn("persist failed, retrying", "attempt", attempt, "err", err)
	})
	if err != nil {
		s.releaseScenes(ctx, created)
		metrics.Saves.WithLabelValues("failed").Inc()
		s.log.Error("save failed", "err", err)
		return SaveResult{}, fmt.Errorf("save %s: %w", s.id, err)
	}

	s.commitSave(snap, data, base)
	s.releaseScenes(ctx, coll.Scenes)

	metrics.Saves.WithLabelValues("ok").Inc()
	s.log.Info("configuration saved", "serial", snap.Serial, "collected", len(coll.Removed))
	return SaveResult{
		Serial:    snap.Serial,
		Timestamp: snap.Timestamp,
		Removed:   coll.Removed,
		Released:  coll.Scenes,
	}, nil
}

// prepareSave checks the configuration and copies it under the lock. base
// is the hash of the session's configuration at that moment.
func (s *Session) prepareSave() (snap *cdata.Document, base uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revalidate()
	if len(s.drafts) > 0 || !s.report.CanSave() {
		metrics.Saves.WithLabelValues("invalid").Inc()
		return nil, 0, fmt.Errorf("save %s: %w (%d errors)", s.id, ErrInvalid, s.report.ErrorCount())
	}
	data, err := cdata.Encode(s.doc)
	if err == nil {
		snap, err = cdata.Decode(data, s.deps.TreeOptions...)
	}
	if err != nil {
		metrics.Saves.WithLabelValues("failed").Inc()
		return nil, 0, fmt.Errorf("save %s: %w", s.id, err)
	}
	return snap, xxhash.Sum64(data), nil
}

// commitSave makes the written copy the new baseline. When the session was
// edited during the write, the edits are kept and only the save bookkeeping
// is carried over.
func (s *Session) commitSave(snap *cdata.Document, data []byte, base uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := cdata.Encode(s.doc)
	if err == nil && xxhash.Sum64(cur) == base {
		s.doc = snap
	} else {
		s.doc.Serial, s.doc.Timestamp = snap.Serial, snap.Timestamp
		for _, id := range snap.Notifications.IDs() {
			if e := s.doc.Notifications.Get(id); e != nil && e.Scene == 0 {
				e.Scene = snap.Notifications.Get(id).Scene
			}
		}
		s.log.Info("edits made during save kept as unsaved changes")
	}
	s.saved = data
	s.savedHash = xxhash.Sum64(data)
	s.revalidate()
}

func (s *Session) createScenes(ctx context.Context, d *cdata.Document) ([]int, error) {
	if s.deps.Scenes == nil {
		return nil, nil
	}
	var created []int
	for _, id := range d.Notifications.IDs() {
		e := d.Notifications.Get(id)
		if !e.NeedsScene() {
			continue
		}
		scene, err := s.deps.Scenes.CreateNotifyScene(ctx, s.id, e)
		if err != nil {
			return created, fmt.Errorf("notification %s: create scene: %w", id, err)
		}
		created = append(created, scene)
		if err := d.Notifications.SetScene(id, scene); err != nil {
			return created, err
		}
	}
	return created, nil
}

// releaseScenes deletes host scenes on a best-effort basis; a scene left
// behind does no harm beyond clutter.
func (s *Session) releaseScenes(ctx context.Context, scenes []int) {
	if s.deps.Scenes == nil {
		return
	}
	for _, sc := range scenes {
		if err := s.deps.Scenes.DeleteScene(ctx, sc); err != nil {
			s.log.Warn("release scene", "scene", sc, "err", err)
		}
	}
}

// Revert discards all unsaved changes, drafts included.
func (s *Session) Revert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := cdata.Decode(s.saved, s.deps.TreeOptions...)
	if err != nil {
		return fmt.Errorf("revert %s: %w", s.id, err)
	}
	s.doc = doc
	s.drafts = make(map[string][]activity.Row)
	s.revalidate()
	metrics.Edits.WithLabelValues("revert").Inc()
	return nil
}
