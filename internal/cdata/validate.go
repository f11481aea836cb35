package cdata

import (
	"strings"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/options"
	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

// VariableOwner is the report owner name of a variable.
func VariableOwner(name string) string {
	return "var:" + name
}

// Validate builds a fresh report for the whole configuration. drafts are
// activities being edited that failed to build; their rows are checked in
// place of the stored activity.
func (d *Document) Validate(drafts map[string][]activity.Row) *validate.Report {
	r := validate.NewReport()
	d.validateConditions(r)
	for key, act := range d.Activities {
		if _, isDraft := drafts[key]; isDraft {
			continue
		}
		d.validateActivity(r, key, activity.Rows(act))
	}
	for key, rows := range drafts {
		d.validateActivity(r, key, rows)
	}
	d.validateVariables(r)
	return r
}

func (d *Document) validateConditions(r *validate.Report) {
	t := d.Conditions
	_ = t.Walk(func(n *condition.Node, _ int) error {
		r.Add(n.ID, n.Body.Check()...)
		r.Add(n.ID, options.Validate(n)...)
		r.Add(n.ID, options.ValidateSequence(t, n)...)
		switch b := n.Body.(type) {
		case *condition.Interval:
			if b.RelCond != "" {
				switch {
				case b.RelCond == n.ID:
					r.Flag(n.ID, "relcond", validate.Error, "an interval cannot be relative to itself")
				case !t.Has(b.RelCond):
					r.Flag(n.ID, "relcond", validate.Error, "relative-to condition "+b.RelCond+" no longer exists")
				}
			}
		case *condition.GroupState:
			if b.Device == activity.ThisSensor && b.GroupID != "" {
				switch g := t.Node(b.GroupID); {
				case g == nil:
					r.Flag(n.ID, "groupid", validate.Error, "group "+b.GroupID+" no longer exists")
				case !g.IsGroup():
					r.Flag(n.ID, "groupid", validate.Error, b.GroupID+" is not a group")
				case t.IsAncestor(b.GroupID, n.ID):
					r.Flag(n.ID, "groupid", validate.Error, "a condition cannot follow the state of its own group")
				}
			}
		case *condition.Var:
			if name := strings.TrimSpace(b.Var); name != "" {
				if _, ok := d.Variables[name]; !ok {
					r.Flag(n.ID, "var", validate.Error, "variable "+name+" is not defined")
				}
			}
		case *condition.Group:
			if b.Disabled {
				r.Flag(n.ID, "disabled", validate.Warning, "group is disabled")
			}
		}
		return nil
	})
}

func (d *Document) validateActivity(r *validate.Report, key string, rows []activity.Row) {
	gid, _, err := activity.ParseKey(key)
	if err != nil {
		r.Flag(key, "key", validate.Error, err.Error())
		return
	}
	switch g := d.Conditions.Node(gid); {
	case g == nil:
		r.Flag(key, "group", validate.Error, "activity belongs to missing group "+gid)
	case !g.IsGroup():
		r.Flag(key, "group", validate.Error, gid+" is not a group")
	case g.Group().Operator == condition.OpNul:
		r.Flag(key, "group", validate.Error, "NUL groups cannot have activities")
	}
	for i, row := range rows {
		owner := validate.RowOwner(key, i)
		r.Add(owner, activity.CheckRow(row)...)
		d.validateActionRefs(r, owner, row.Action)
	}
}

func (d *Document) validateActionRefs(r *validate.Report, owner string, a activity.Action) {
	switch v := a.(type) {
	case *activity.SetVar:
		if v.Variable != "" {
			if _, ok := d.Variables[v.Variable]; !ok {
				r.Flag(owner, "variable", validate.Error, "variable "+v.Variable+" is not defined")
			}
		}
	case *activity.Request:
		if v.Target != "" {
			if _, ok := d.Variables[v.Target]; !ok {
				r.Flag(owner, "target", validate.Error, "variable "+v.Target+" is not defined")
			}
		}
	case *activity.RunGroup:
		d.checkLocalActivity(r, owner, v.Device, v.Activity)
	case *activity.StopGroup:
		d.checkLocalActivity(r, owner, v.Device, v.Activity)
	case *activity.ResetLatch:
		if v.Device == activity.ThisSensor && v.Group != "" && !d.Conditions.Has(v.Group) {
			r.Flag(owner, "group", validate.Error, "group "+v.Group+" no longer exists")
		}
	case *activity.Notify:
		if v.NotifyID != "" && d.Notifications.Get(v.NotifyID) == nil {
			r.Flag(owner, "notifyid", validate.Error, "notification slot "+v.NotifyID+" is missing")
		}
	}
}

func (d *Document) checkLocalActivity(r *validate.Report, owner string, device int, key string) {
	if device != activity.ThisSensor || key == "" {
		return
	}
	gid, _, err := activity.ParseKey(key)
	if err != nil {
		return
	}
	if !d.Conditions.Has(gid) {
		r.Flag(owner, "activity", validate.Error, "activity "+key+" belongs to a missing group")
	}
}

func (d *Document) validateVariables(r *validate.Report) {
	for _, name := range d.VariableNames() {
		v := d.Variables[name]
		owner := VariableOwner(name)
		if !ValidVariableName(name) {
			r.Flag(owner, "name", validate.Error, ErrBadVariableName.Error())
		}
		if strings.TrimSpace(v.Expression) == "" {
			r.Flag(owner, "expression", validate.Warning, "empty expression")
		}
	}
}
