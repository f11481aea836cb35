package condition

import (
	"fmt"
)

// Wire is the persisted JSON shape of a condition: one flat object whose
// fields are the union of all types, discriminated by Type. Groups nest their
// children in Conditions.
type Wire struct {
	ID         string   `json:"id"`
	Type       Type     `json:"type"`
	Name       string   `json:"name,omitempty"`
	Operator   string   `json:"operator,omitempty"`
	Invert     bool     `json:"invert,omitempty"`
	Disabled   bool     `json:"disabled,omitempty"`
	Conditions []Wire   `json:"conditions,omitempty"`
	Device     int      `json:"device,omitempty"`
	DeviceName string   `json:"devicename,omitempty"`
	Service    string   `json:"service,omitempty"`
	Variable   string   `json:"variable,omitempty"`
	Var        string   `json:"var,omitempty"`
	Value      string   `json:"value,omitempty"`
	NoCase     bool     `json:"nocase,omitempty"`
	GroupID    string   `json:"groupid,omitempty"`
	Days       int      `json:"days,omitempty"`
	Hours      int      `json:"hours,omitempty"`
	Mins       int      `json:"mins,omitempty"`
	BaseTime   string   `json:"basetime,omitempty"`
	RelTo      string   `json:"relto,omitempty"`
	RelCond    string   `json:"relcond,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	Options    *Options `json:"options,omitempty"`
}

// FromWire converts one persisted object into a node. Children of a group
// are copied as ids only; the caller converts and indexes them.
func FromWire(w Wire) (*Node, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("condition without id (type %q)", w.Type)
	}
	var b Body
	switch w.Type {
	case TypeGroup:
		op := GroupOp(w.Operator)
		if op == "" {
			op = OpAnd
		}
		g := &Group{Name: w.Name, Operator: op, Invert: w.Invert, Disabled: w.Disabled}
		for _, c := range w.Conditions {
			g.Children = append(g.Children, c.ID)
		}
		b = g
	case TypeComment:
		b = &Comment{Comment: w.Comment}
	case TypeService:
		b = &Service{Device: w.Device, DeviceName: w.DeviceName, Service: w.Service,
			Variable: w.Variable, Operator: w.Operator, Value: w.Value, NoCase: w.NoCase}
	case TypeVar:
		b = &Var{Var: w.Var, Operator: w.Operator, Value: w.Value, NoCase: w.NoCase}
	case TypeGroupState:
		b = &GroupState{Device: w.Device, GroupID: w.GroupID, Operator: w.Operator}
	case TypeHouseMode:
		b = &HouseMode{Operator: w.Operator, Value: w.Value}
	case TypeWeekday:
		b = &Weekday{Operator: w.Operator, Value: w.Value}
	case TypeSun:
		b = &Sun{Operator: w.Operator, Value: w.Value}
	case TypeTimeRange:
		b = &TimeRange{Operator: w.Operator, Value: w.Value}
	case TypeInterval:
		b = &Interval{Days: w.Days, Hours: w.Hours, Mins: w.Mins, BaseTime: w.BaseTime,
			RelTo: w.RelTo, RelCond: w.RelCond}
	case TypeIsHome:
		b = &IsHome{Operator: w.Operator, Value: w.Value}
	case TypeReload:
		b = &Reload{}
	default:
		return nil, fmt.Errorf("condition %s: unknown type %q", w.ID, w.Type)
	}
	if w.Type != TypeGroup && len(w.Conditions) > 0 {
		return nil, fmt.Errorf("condition %s: %s may not have children", w.ID, w.Type)
	}
	n := &Node{ID: w.ID, Body: b}
	if !w.Options.Empty() {
		opts := *w.Options
		opts.Derive()
		n.Options = &opts
	}
	return n, nil
}

// ToWire converts n into its persisted shape without children; groups get
// their Conditions filled in by the tree encoder.
func (n *Node) ToWire() Wire {
	w := Wire{ID: n.ID, Type: n.Type()}
	if !n.Options.Empty() {
		opts := *n.Options
		w.Options = &opts
	}
	switch b := n.Body.(type) {
	case *Group:
		w.Name, w.Operator, w.Invert, w.Disabled = b.Name, string(b.Operator), b.Invert, b.Disabled
	case *Comment:
		w.Comment = b.Comment
	case *Service:
		w.Device, w.DeviceName, w.Service, w.Variable = b.Device, b.DeviceName, b.Service, b.Variable
		w.Operator, w.Value, w.NoCase = b.Operator, b.Value, b.NoCase
	case *Var:
		w.Var, w.Operator, w.Value, w.NoCase = b.Var, b.Operator, b.Value, b.NoCase
	case *GroupState:
		w.Device, w.GroupID, w.Operator = b.Device, b.GroupID, b.Operator
	case *HouseMode:
		w.Operator, w.Value = b.Operator, b.Value
	case *Weekday:
		w.Operator, w.Value = b.Operator, b.Value
	case *Sun:
		w.Operator, w.Value = b.Operator, b.Value
	case *TimeRange:
		w.Operator, w.Value = b.Operator, b.Value
	case *Interval:
		w.Days, w.Hours, w.Mins, w.BaseTime = b.Days, b.Hours, b.Mins, b.BaseTime
		w.RelTo, w.RelCond = b.RelTo, b.RelCond
	case *IsHome:
		w.Operator, w.Value = b.Operator, b.Value
	case *Reload:
	default:
		Unhandled(b)
	}
	return w
}
