package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
)

// InsertCondition appends a new condition of type typ to a group. Groups
// are created as empty AND groups.
func (s *Session) InsertCondition(parentID string, typ condition.Type) (condition.Wire, error) {
	var w condition.Wire
	err := s.edit("insert", func(d *cdata.Document) error {
		var (
			n   *condition.Node
			err error
		)
		if typ == condition.TypeGroup {
			n, err = d.Conditions.InsertGroup(parentID)
		} else {
			n, err = d.Conditions.InsertLeaf(parentID, typ)
		}
		if err != nil {
			return err
		}
		w = n.ToWire()
		return nil
	})
	return w, err
}

// UpdateCondition replaces the fields of a condition from w. A leaf whose
// type changes is retyped first, dropping options the new type cannot
// carry. Options and group children in w are ignored.
func (s *Session) UpdateCondition(id string, w condition.Wire) error {
	return s.edit("update", func(d *cdata.Document) error {
		cur := d.Conditions.Node(id)
		if cur == nil {
			return &tree.Error{Op: "update", ID: id, Err: tree.ErrNotFound}
		}
		w.ID, w.Options, w.Conditions = id, nil, nil
		if w.Type == "" {
			w.Type = cur.Type()
		}
		n, err := condition.FromWire(w)
		if err != nil {
			return fmt.Errorf("update %s: %w: %v", id, tree.ErrBadType, err)
		}
		if n.Type() != cur.Type() {
			if err := d.Retype(id, n.Type()); err != nil {
				return err
			}
		}
		if err := d.UpdateCondition(id, n.Body); err != nil {
			return err
		}
		if g := n.Group(); g != nil && g.Operator == condition.OpNul {
			s.dropDrafts(id)
		}
		return nil
	})
}

// dropDrafts forgets unbuilt rows of both activities of a group.
func (s *Session) dropDrafts(groupID string) {
	delete(s.drafts, activity.Key(groupID, true))
	delete(s.drafts, activity.Key(groupID, false))
}

// DeleteImpact reports what deleting id would remove.
func (s *Session) DeleteImpact(id string) (cdata.ActivityImpact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.DeleteImpact(id)
}

// DeleteCondition removes id with its subtree and activities. Unless
// confirm is set, a delete that reaches beyond the node itself is refused
// with ErrNeedsConfirmation and the impact is returned for display.
func (s *Session) DeleteCondition(id string, confirm bool) (cdata.ActivityImpact, error) {
	var im cdata.ActivityImpact
	err := s.edit("delete", func(d *cdata.Document) error {
		var err error
		if im, err = d.DeleteImpact(id); err != nil {
			return err
		}
		if !confirm && im.NeedsConfirmation() {
			return ErrNeedsConfirmation
		}
		if im, err = d.DeleteCondition(id); err != nil {
			return err
		}
		for _, g := range im.Groups {
			s.dropDrafts(g)
		}
		return nil
	})
	return im, err
}

// MoveCondition moves id into parentID at position.
func (s *Session) MoveCondition(id, parentID string, position int) error {
	return s.edit("move", func(d *cdata.Document) error {
		return d.Conditions.Move(id, parentID, position)
	})
}

// SequenceCandidates lists the conditions id may be sequenced after.
func (s *Session) SequenceCandidates(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Conditions.SequenceCandidates(id)
}

// ActivityRows returns the rows of an activity, its draft if it has one.
func (s *Session) ActivityRows(key string) []activity.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows, ok := s.drafts[key]; ok {
		return rows
	}
	return s.doc.ActivityRows(key)
}

// SetActivityRows rebuilds an activity from editor rows. Rows that do not
// build are kept as a draft, reported by validation, and block saving until
// fixed or discarded.
func (s *Session) SetActivityRows(key string, rows []activity.Row) error {
	return s.edit("activity", func(d *cdata.Document) error {
		gid, _, err := activity.ParseKey(key)
		if err != nil {
			return err
		}
		if !d.Conditions.Has(gid) {
			return &tree.Error{Op: "activity", ID: gid, Err: tree.ErrNotFound}
		}
		if err := d.CheckActivityKey(key, onlyDelays(rows)); err != nil {
			return err
		}
		// Slots are allocated on a copy that replaces the registry only
		// once the activity is stored.
		slots := d.Notifications.Clone()
		act, err := activity.Build(key, rows, activity.Env{Catalog: s.deps.Catalog, Slots: slots})
		var re *activity.RowError
		if errors.As(err, &re) {
			s.drafts[key] = rows
			return err
		}
		if err != nil {
			return err
		}
		if err := d.SetActivity(key, act); err != nil {
			return err
		}
		d.Notifications = slots
		delete(s.drafts, key)
		return nil
	})
}

func onlyDelays(rows []activity.Row) bool {
	for _, r := range rows {
		if r.Type != activity.TypeDelay {
			return false
		}
	}
	return true
}

// DiscardDraft drops unbuilt rows of an activity, returning it to its
// stored form.
func (s *Session) DiscardDraft(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	s.revalidate()
}

// SetVariable creates or updates an expression variable.
func (s *Session) SetVariable(name, expression string, export *bool) error {
	return s.edit("variable", func(d *cdata.Document) error {
		if _, err := d.SetVariable(name, expression); err != nil {
			return err
		}
		if export != nil {
			return d.SetExport(name, *export)
		}
		return nil
	})
}

func (s *Session) DeleteVariable(name string) error {
	return s.edit("variable", func(d *cdata.Document) error {
		return d.DeleteVariable(name)
	})
}

func (s *Session) MoveVariable(name string, position int) error {
	return s.edit("variable", func(d *cdata.Document) error {
		return d.MoveVariable(name, position)
	})
}

// TestAction runs a device action row on the host right away, with its
// parameters resolved against the catalog as a saved activity would be.
func (s *Session) TestAction(ctx context.Context, row activity.Row) error {
	if s.deps.Invoker == nil {
		return ErrNoHost
	}
	if _, ok := row.Action.(*activity.Device); !ok || row.Type == activity.TypeDelay {
		return ErrNotTestable
	}
	act, err := activity.Build("", []activity.Row{row}, activity.Env{Catalog: s.deps.Catalog})
	if err != nil {
		return err
	}
	dev := act.Groups[0].Actions[0].(*activity.Device)
	s.log.Info("testing device action", "device", dev.Device, "service", dev.Service, "action", dev.Action)
	return s.deps.Invoker.InvokeDeviceAction(ctx, dev.Device, dev.Service, dev.Action, dev.Parameters)
}
