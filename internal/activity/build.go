package activity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

// ErrInvalidRow aborts a build; no partial activity is produced.
var ErrInvalidRow = errors.New("activity has invalid rows")

// RowError carries the field issues of the first failing row.
type RowError struct {
	Row    int // 0-based
	Issues []validate.Issue
}

func (e *RowError) Error() string {
	for _, is := range e.Issues {
		if is.Severity == validate.Error {
			return fmt.Sprintf("row %d: %s: %s", e.Row+1, is.Field, is.Message)
		}
	}
	return fmt.Sprintf("row %d is invalid", e.Row+1)
}

func (e *RowError) Unwrap() error { return ErrInvalidRow }

// ParamInfo describes one argument of a device action as the device
// metadata declares it.
type ParamInfo struct {
	Name     string `json:"name" yaml:"name"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
}

// ParamCatalog looks up the declared arguments of a device action.
type ParamCatalog interface {
	ActionParams(device int, service, action string) ([]ParamInfo, bool)
}

// SlotAllocator assigns a notification slot to a notify action, reusing
// n.NotifyID when it names an existing slot.
type SlotAllocator interface {
	Slot(n *Notify) error
}

// Env holds the collaborators a build may consult. Either may be nil.
type Env struct {
	Catalog ParamCatalog
	Slots   SlotAllocator
}

// CheckRow validates a single row.
func CheckRow(r Row) []validate.Issue {
	if r.Type == TypeDelay {
		if _, err := ParseDelay(r.Delay); err != nil {
			return []validate.Issue{validate.Errorf("delay", "%v", err)}
		}
		switch r.DelayType {
		case "", DelayInline, DelayStart:
		default:
			return []validate.Issue{validate.Errorf("delaytype", "unknown delay type %q", r.DelayType)}
		}
		return nil
	}
	if r.Action == nil {
		return []validate.Issue{validate.Errorf("type", "unknown action type %q", r.Type)}
	}
	return r.Action.Check()
}

// Build turns an ordered list of rows into the canonical activity for key.
//
// Delay rows never become actions. A delay closes the current group if it
// holds any action and opens a new group carrying the delay; when the
// current (non-first) group is still empty the delay replaces its pending
// one. The first group never carries a delay, and a trailing group left
// without actions is dropped. Any row with an error aborts the build.
func Build(key string, rows []Row, env Env) (*Activity, error) {
	for i, r := range rows {
		if issues := CheckRow(r); validate.HasErrors(issues) {
			return nil, &RowError{Row: i, Issues: issues}
		}
	}

	act := &Activity{ID: key, Groups: []Group{{}}}
	cur := &act.Groups[0]
	for _, r := range rows {
		if r.Type == TypeDelay {
			d, _ := ParseDelay(r.Delay)
			dt := r.DelayType
			if dt == "" {
				dt = DelayInline
			}
			if len(cur.Actions) == 0 && len(act.Groups) > 1 {
				cur.Delay, cur.DelayType = &d, dt
				continue
			}
			act.Groups = append(act.Groups, Group{Delay: &d, DelayType: dt})
			cur = &act.Groups[len(act.Groups)-1]
			continue
		}
		a, err := finalize(r.Action, env)
		if err != nil {
			return nil, err
		}
		cur.Actions = append(cur.Actions, a)
	}
	if n := len(act.Groups); n > 1 && len(act.Groups[n-1].Actions) == 0 {
		act.Groups = act.Groups[:n-1]
	}
	return act, nil
}

func finalize(a Action, env Env) (Action, error) {
	switch v := a.(type) {
	case *Device:
		c := *v
		c.Parameters = resolveParams(v, env.Catalog)
		return &c, nil
	case *Notify:
		c := *v
		if env.Slots != nil {
			if err := env.Slots.Slot(&c); err != nil {
				return nil, fmt.Errorf("notify: %w", err)
			}
		}
		if c.NotifyID == "" {
			return nil, fmt.Errorf("notify: no notification slot assigned")
		}
		// Hand the id back so the editor row keeps pointing at the same slot.
		v.NotifyID = c.NotifyID
		return &c, nil
	}
	return a, nil
}

// resolveParams keeps a parameter when it has a value or the action
// declares it required, in the declared order. Parameters the catalog does
// not know follow, sorted by name, so the output is deterministic.
func resolveParams(d *Device, cat ParamCatalog) []Param {
	given := make(map[string]string, len(d.Parameters))
	for _, p := range d.Parameters {
		given[p.Name] = p.Value
	}
	var out []Param
	if cat != nil {
		if decl, ok := cat.ActionParams(d.Device, d.Service, d.Action); ok {
			for _, pi := range decl {
				v, set := given[pi.Name]
				delete(given, pi.Name)
				if !set {
					v = pi.Default
				}
				if v != "" || !pi.Optional {
					out = append(out, Param{Name: pi.Name, Value: v})
				}
			}
		}
	}
	rest := make([]string, 0, len(given))
	for name, v := range given {
		if v != "" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, Param{Name: name, Value: given[name]})
	}
	return out
}

// Rows flattens an activity back into editor rows: each group after the
// first is preceded by its delay row.
func Rows(act *Activity) []Row {
	if act == nil {
		return nil
	}
	var rows []Row
	for i, g := range act.Groups {
		if i > 0 || !g.Delay.IsZero() {
			d := Delay{}
			if g.Delay != nil {
				d = *g.Delay
			}
			rows = append(rows, DelayRow(d.String(), g.DelayType))
		}
		for _, a := range g.Actions {
			rows = append(rows, ActionRow(a))
		}
	}
	return rows
}

// IsEmpty reports whether act is logically absent: nil, no groups, or one
// group with no actions and no delay. Empty activities are not persisted.
func IsEmpty(act *Activity) bool {
	if act == nil || len(act.Groups) == 0 {
		return true
	}
	return len(act.Groups) == 1 && len(act.Groups[0].Actions) == 0 && act.Groups[0].Delay.IsZero()
}

// Notifies returns every notify action of act.
func Notifies(act *Activity) []*Notify {
	if act == nil {
		return nil
	}
	var out []*Notify
	for _, g := range act.Groups {
		for _, a := range g.Actions {
			if n, ok := a.(*Notify); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Each calls fn for every action with its group and position.
func Each(act *Activity, fn func(group, pos int, a Action)) {
	if act == nil {
		return
	}
	for gi, g := range act.Groups {
		for ai, a := range g.Actions {
			fn(gi, ai, a)
		}
	}
}
