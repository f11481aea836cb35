package tree

import (
	"fmt"

	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
)

// FromWire indexes a persisted condition tree. The root must be a group with
// id "root" and every id must be unique.
func FromWire(root condition.Wire, opts ...Option) (*Tree, error) {
	if root.ID != condition.RootID || root.Type != condition.TypeGroup {
		return nil, fmt.Errorf("root must be a group with id %q, got %s %q", condition.RootID, root.Type, root.ID)
	}
	t := empty(opts...)
	if err := t.add(root, "", 0, 0); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) add(w condition.Wire, parent string, index, depth int) error {
	if _, dup := t.nodes[w.ID]; dup {
		return opErr("load", w.ID, ErrDuplicate)
	}
	n, err := condition.FromWire(w)
	if err != nil {
		return err
	}
	t.nodes[n.ID] = &entry{node: n, parent: parent, index: index, depth: depth}
	for i, c := range w.Conditions {
		if err := t.add(c, n.ID, i, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// ToWire renders the tree in its nested persisted shape.
func (t *Tree) ToWire() condition.Wire {
	return t.toWire(condition.RootID)
}

func (t *Tree) toWire(id string) condition.Wire {
	w := t.nodes[id].node.ToWire()
	for _, c := range t.Children(id) {
		w.Conditions = append(w.Conditions, t.toWire(c))
	}
	return w
}

// Rebuild recomputes parent, index and depth for every node from the group
// child lists, failing if a node is listed twice, a child id is unknown, or
// a node is unreachable from the root.
func (t *Tree) Rebuild() error {
	root, ok := t.nodes[condition.RootID]
	if !ok || !root.node.IsGroup() {
		return opErr("rebuild", condition.RootID, ErrNotAGroup)
	}
	seen := make(map[string]bool, len(t.nodes))
	var visit func(id, parent string, index, depth int) error
	visit = func(id, parent string, index, depth int) error {
		e, ok := t.nodes[id]
		if !ok {
			return opErr("rebuild", id, ErrNotFound)
		}
		if seen[id] {
			return opErr("rebuild", id, ErrWouldCycle)
		}
		seen[id] = true
		e.parent, e.index, e.depth = parent, index, depth
		for i, c := range t.Children(id) {
			if err := visit(c, id, i, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(condition.RootID, "", 0, 0); err != nil {
		return err
	}
	if len(seen) != len(t.nodes) {
		for id := range t.nodes {
			if !seen[id] {
				return fmt.Errorf("condition %s is not reachable from the root", id)
			}
		}
	}
	return nil
}

// Verify checks the structural invariants and returns the first violation.
func (t *Tree) Verify() error {
	root, ok := t.nodes[condition.RootID]
	if !ok || !root.node.IsGroup() || root.parent != "" || root.depth != 0 {
		return fmt.Errorf("root group missing or malformed")
	}
	reached := 0
	err := t.Walk(func(n *condition.Node, depth int) error {
		reached++
		for i, c := range t.Children(n.ID) {
			ce, ok := t.nodes[c]
			if !ok {
				return fmt.Errorf("group %s lists unknown child %s", n.ID, c)
			}
			if ce.parent != n.ID {
				return fmt.Errorf("%s: parent is %s, listed under %s", c, ce.parent, n.ID)
			}
			if ce.index != i {
				return fmt.Errorf("%s: index %d, position %d", c, ce.index, i)
			}
			if ce.depth != depth+1 {
				return fmt.Errorf("%s: depth %d, parent depth %d", c, ce.depth, depth)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if reached != len(t.nodes) {
		return fmt.Errorf("%d of %d conditions reachable from the root", reached, len(t.nodes))
	}
	return nil
}
