// Package cdata is a sensor's configuration document: its condition tree,
// activities, expression variables and notification slots, plus the codec
// for the persisted JSON blob.
//
// Document methods apply edits that span several parts of the
// configuration, such as deleting a group together with its activities.
package cdata

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/notify"
	"github.com/gyaneshwarpardhi/sensoredit/internal/options"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
)

// Version is the newest document version this editor reads and writes.
const Version = 19082

var (
	ErrNulGroup      = errors.New("groups with the NUL operator cannot have activities")
	ErrNotGroup      = errors.New("activities belong to groups")
	ErrUnknownAction = errors.New("unknown activity")
)

// Document is one sensor's configuration.
type Document struct {
	Version       int
	Serial        int
	Timestamp     int64
	Conditions    *tree.Tree
	Activities    map[string]*activity.Activity
	Variables     map[string]*Variable
	Notifications *notify.Registry

	// extra holds top-level keys this editor does not interpret; they are
	// written back untouched.
	extra map[string]json.RawMessage
}

// New returns the configuration of a sensor that was never configured.
func New(opts ...tree.Option) *Document {
	return &Document{
		Version:       Version,
		Conditions:    tree.New(opts...),
		Activities:    make(map[string]*activity.Activity),
		Variables:     make(map[string]*Variable),
		Notifications: notify.New(),
	}
}

// ActivityImpact extends a tree delete impact with the activities that go
// with the removed groups.
type ActivityImpact struct {
	tree.Impact
	Activities []string `json:"activities"`
}

// DeleteImpact reports what deleting id would remove.
func (d *Document) DeleteImpact(id string) (ActivityImpact, error) {
	im, err := d.Conditions.DeleteImpact(id)
	if err != nil {
		return ActivityImpact{}, err
	}
	return ActivityImpact{Impact: im, Activities: d.activitiesOf(im.Groups)}, nil
}

// NeedsConfirmation is true when the delete removes more than the node.
func (im ActivityImpact) NeedsConfirmation() bool {
	return im.Impact.NeedsConfirmation() || len(im.Activities) > 0
}

func (d *Document) activitiesOf(groups []string) []string {
	var keys []string
	for _, g := range groups {
		for _, k := range []string{activity.Key(g, true), activity.Key(g, false)} {
			if _, ok := d.Activities[k]; ok {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// DeleteCondition deletes id (and its subtree), the activities of every
// removed group, and disconnects references to removed nodes.
func (d *Document) DeleteCondition(id string) (ActivityImpact, error) {
	im, err := d.Conditions.Delete(id)
	if err != nil {
		return ActivityImpact{}, err
	}
	out := ActivityImpact{Impact: im, Activities: d.activitiesOf(im.Groups)}
	for _, k := range out.Activities {
		delete(d.Activities, k)
	}
	return out, nil
}

// Retype changes a leaf condition's type, dropping options the new type does
// not support.
func (d *Document) Retype(id string, typ condition.Type) error {
	if err := d.Conditions.Retype(id, typ); err != nil {
		return err
	}
	options.Prune(d.Conditions.Node(id))
	return nil
}

// UpdateCondition replaces a node's fields. Switching a group to the NUL
// operator removes both of its activities.
func (d *Document) UpdateCondition(id string, b condition.Body) error {
	if err := d.Conditions.Replace(id, b); err != nil {
		return err
	}
	if g, ok := b.(*condition.Group); ok && g.Operator == condition.OpNul {
		delete(d.Activities, activity.Key(id, true))
		delete(d.Activities, activity.Key(id, false))
	}
	return nil
}

// CheckActivityKey reports whether key may hold an activity; empty tells
// whether the activity would be empty, which NUL groups still accept.
func (d *Document) CheckActivityKey(key string, empty bool) error {
	gid, _, err := activity.ParseKey(key)
	if err != nil {
		return err
	}
	n := d.Conditions.Node(gid)
	switch {
	case n == nil:
		return fmt.Errorf("activity %s: %w", key, tree.ErrNotFound)
	case !n.IsGroup():
		return fmt.Errorf("activity %s: %w", key, ErrNotGroup)
	case n.Group().Operator == condition.OpNul && !empty:
		return fmt.Errorf("activity %s: %w", key, ErrNulGroup)
	}
	return nil
}

// SetActivity stores act under key, or removes the key when act is empty.
func (d *Document) SetActivity(key string, act *activity.Activity) error {
	if err := d.CheckActivityKey(key, activity.IsEmpty(act)); err != nil {
		return err
	}
	if activity.IsEmpty(act) {
		delete(d.Activities, key)
		return nil
	}
	act.ID = key
	d.Activities[key] = act
	return nil
}

// ActivityRows returns the editor rows of an activity; a missing activity
// has none.
func (d *Document) ActivityRows(key string) []activity.Row {
	return activity.Rows(d.Activities[key])
}

// CollectNotifications garbage-collects notification slots against the
// current activities.
func (d *Document) CollectNotifications() notify.Collection {
	return d.Notifications.Collect(d.Activities)
}
