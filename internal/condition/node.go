// Package condition defines the nodes of a sensor's logic tree: groups that
// combine their children with a boolean operator, and the typed leaf
// conditions evaluated by the execution engine.
//
// A Node's type-specific fields live in its Body, a closed sum type with one
// implementation per condition type. Code that switches over bodies should
// end in a default case that panics via Unhandled, so adding a type fails
// loudly instead of being silently skipped.
package condition

import (
	"fmt"
)

// Type is the condition type tag as persisted.
type Type string

const (
	TypeGroup      Type = "group"
	TypeComment    Type = "comment"
	TypeService    Type = "service"
	TypeVar        Type = "var"
	TypeGroupState Type = "grpstate"
	TypeHouseMode  Type = "housemode"
	TypeWeekday    Type = "weekday"
	TypeSun        Type = "sun"
	TypeTimeRange  Type = "trange"
	TypeInterval   Type = "interval"
	TypeIsHome     Type = "ishome"
	TypeReload     Type = "reload"
)

// Types lists every condition type in menu order.
var Types = []Type{
	TypeGroup, TypeComment, TypeService, TypeVar, TypeGroupState, TypeHouseMode,
	TypeWeekday, TypeSun, TypeTimeRange, TypeInterval, TypeIsHome, TypeReload,
}

// Valid reports whether t is a known condition type.
func (t Type) Valid() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// IsLeaf reports whether t is a known non-group type.
func (t Type) IsLeaf() bool {
	return t != TypeGroup && t.Valid()
}

// RootID is the id of the one group every tree hangs from.
const RootID = "root"

// Node is one condition or group. Structural bookkeeping (parent, position,
// depth) is owned by the tree index, not by the node.
type Node struct {
	ID      string
	Options *Options
	Body    Body
}

// Type returns the node's type tag, derived from its body.
func (n *Node) Type() Type {
	if n.Body == nil {
		return ""
	}
	return n.Body.Kind()
}

// IsGroup reports whether n is a group.
func (n *Node) IsGroup() bool {
	_, ok := n.Body.(*Group)
	return ok
}

// Group returns the group body, or nil for a leaf.
func (n *Node) Group() *Group {
	g, _ := n.Body.(*Group)
	return g
}

// Label is a short human description used in messages.
func (n *Node) Label() string {
	if g := n.Group(); g != nil && g.Name != "" {
		return fmt.Sprintf("%s %q", n.Type(), g.Name)
	}
	return fmt.Sprintf("%s %s", n.Type(), n.ID)
}

// New returns a node of type t with a default body.
func New(id string, t Type) (*Node, error) {
	b, err := NewBody(t)
	if err != nil {
		return nil, err
	}
	return &Node{ID: id, Body: b}, nil
}

// NewBody returns the empty body for t. Groups default to AND.
func NewBody(t Type) (Body, error) {
	switch t {
	case TypeGroup:
		return &Group{Operator: OpAnd}, nil
	case TypeComment:
		return &Comment{}, nil
	case TypeService:
		return &Service{Operator: "="}, nil
	case TypeVar:
		return &Var{Operator: "="}, nil
	case TypeGroupState:
		return &GroupState{Device: -1, Operator: "istrue"}, nil
	case TypeHouseMode:
		return &HouseMode{Operator: "is"}, nil
	case TypeWeekday:
		return &Weekday{}, nil
	case TypeSun:
		return &Sun{Operator: "after", Value: "sunrise+0,sunset+0"}, nil
	case TypeTimeRange:
		return &TimeRange{Operator: "bet", Value: ",,,0,0,,,,0,0"}, nil
	case TypeInterval:
		return &Interval{Hours: 1}, nil
	case TypeIsHome:
		return &IsHome{Operator: "is"}, nil
	case TypeReload:
		return &Reload{}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", t)
	}
}

// Unhandled panics for a body the caller's switch does not cover.
func Unhandled(b Body) {
	panic(fmt.Sprintf("condition: unhandled body type %T", b))
}
