package editor

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultSaveWorkers bounds how many sessions SaveAll writes at once.
const DefaultSaveWorkers = 4

// BulkResult is the outcome of saving one session in SaveAll.
type BulkResult struct {
	Sensor string      `json:"sensor"`
	Saved  bool        `json:"saved"`
	Result *SaveResult `json:"result,omitempty"`
	Err    string      `json:"error,omitempty"`
	err    error
}

// Error returns the save error, nil on success or when nothing was saved.
func (r BulkResult) Error() error { return r.err }

// SaveAll saves every modified session, at most workers at a time. One
// failed save does not stop the others. Results come back ordered by
// sensor id; unmodified sessions are left out.
func (m *Manager) SaveAll(ctx context.Context, workers int) []BulkResult {
	if workers <= 0 {
		workers = DefaultSaveWorkers
	}
	m.mu.Lock()
	var pending []*Session
	for _, s := range m.sessions {
		if s.Modified() {
			pending = append(pending, s)
		}
	}
	m.mu.Unlock()

	results := make([]BulkResult, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range pending {
		g.Go(func() error {
			res, err := s.Save(gctx)
			r := BulkResult{Sensor: s.ID(), Saved: err == nil, err: err}
			if err != nil {
				r.Err = err.Error()
			} else {
				r.Result = &res
			}
			results[i] = r
			// Failures are reported per sensor, never cancel the rest.
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Sensor < results[j].Sensor })
	return results
}
