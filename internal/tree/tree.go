// Package tree indexes a sensor's condition tree by id and implements the
// structural edits (insert, move, delete, reindex, retype) while keeping the
// tree sound: one root, every node reachable exactly once, dense child
// indexes and consistent depths.
//
// Nodes are stored in a flat map. A node's parent is an id, never a pointer,
// and each group body lists its children by id in declared order.
package tree

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
)

// entry is a node plus the bookkeeping derived from its position.
type entry struct {
	node   *condition.Node
	parent string // "" for root
	index  int
	depth  int
}

// Tree is the id index over one configuration's conditions.
// It is not safe for concurrent use; the editing session serializes access.
type Tree struct {
	nodes map[string]*entry
	newID func(prefix string) string
}

// Option configures a Tree.
type Option func(*Tree)

// WithIDSource replaces the id generator; used by tests that need
// predictable ids.
func WithIDSource(fn func(prefix string) string) Option {
	return func(t *Tree) { t.newID = fn }
}

// New returns a tree holding only an empty root group.
func New(opts ...Option) *Tree {
	t := empty(opts...)
	root := &condition.Node{
		ID:   condition.RootID,
		Body: &condition.Group{Name: "Root", Operator: condition.OpAnd},
	}
	t.nodes[root.ID] = &entry{node: root}
	return t
}

func empty(opts ...Option) *Tree {
	t := &Tree{
		nodes: make(map[string]*entry),
		newID: shortID,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// shortID mints ids like "grp3f9c2a1b" or "cond77e0d4c2".
func shortID(prefix string) string {
	u := uuid.New()
	return prefix + strings.ReplaceAll(u.String(), "-", "")[:8]
}

func (t *Tree) mint(prefix string) string {
	for {
		id := t.newID(prefix)
		if _, taken := t.nodes[id]; !taken && id != "" {
			return id
		}
	}
}

// Root returns the root group.
func (t *Tree) Root() *condition.Node {
	return t.nodes[condition.RootID].node
}

// Node returns a node by id (nil if not found).
func (t *Tree) Node(id string) *condition.Node {
	if e, ok := t.nodes[id]; ok {
		return e.node
	}
	return nil
}

// Has reports whether id names a node.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Parent returns the id of id's parent group; ok is false for the root and
// for unknown ids.
func (t *Tree) Parent(id string) (parent string, ok bool) {
	e, found := t.nodes[id]
	if !found || e.parent == "" {
		return "", false
	}
	return e.parent, true
}

// Index returns id's position among its siblings, or -1.
func (t *Tree) Index(id string) int {
	if e, ok := t.nodes[id]; ok {
		return e.index
	}
	return -1
}

// Depth returns id's distance from the root, or -1.
func (t *Tree) Depth(id string) int {
	if e, ok := t.nodes[id]; ok {
		return e.depth
	}
	return -1
}

// Children returns the child ids of a group in order. Leaves and unknown ids
// have none. The returned slice must not be modified.
func (t *Tree) Children(id string) []string {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	if g := n.Group(); g != nil {
		return g.Children
	}
	return nil
}

// Walk visits every node depth-first, parents before children, in declared
// order. Returning a non-nil error stops the walk.
func (t *Tree) Walk(fn func(n *condition.Node, depth int) error) error {
	return t.walk(condition.RootID, fn)
}

func (t *Tree) walk(id string, fn func(*condition.Node, int) error) error {
	e := t.nodes[id]
	if err := fn(e.node, e.depth); err != nil {
		return err
	}
	for _, c := range t.Children(id) {
		if err := t.walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// IDs returns every node id in walk order.
func (t *Tree) IDs() []string {
	out := make([]string, 0, len(t.nodes))
	_ = t.Walk(func(n *condition.Node, _ int) error {
		out = append(out, n.ID)
		return nil
	})
	return out
}

// Groups returns the ids of all groups in walk order.
func (t *Tree) Groups() []string {
	var out []string
	_ = t.Walk(func(n *condition.Node, _ int) error {
		if n.IsGroup() {
			out = append(out, n.ID)
		}
		return nil
	})
	return out
}

func (t *Tree) group(op, id string) (*condition.Group, error) {
	e, ok := t.nodes[id]
	if !ok {
		return nil, opErr(op, id, ErrNotFound)
	}
	g := e.node.Group()
	if g == nil {
		return nil, opErr(op, id, ErrNotAGroup)
	}
	return g, nil
}

// IsAncestor reports whether candidate is a proper ancestor of node, walking
// parent links. A node is never its own ancestor.
func (t *Tree) IsAncestor(candidate, node string) bool {
	e, ok := t.nodes[node]
	if !ok {
		return false
	}
	for p := e.parent; p != ""; p = t.nodes[p].parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// IsDescendant reports whether candidate lies strictly below node, walking
// child lists. The root is never a descendant.
func (t *Tree) IsDescendant(node, candidate string) bool {
	if candidate == condition.RootID {
		return false
	}
	for _, c := range t.Children(node) {
		if c == candidate || t.IsDescendant(c, candidate) {
			return true
		}
	}
	return false
}

// Related reports whether a and b are the same node or one contains the
// other.
func (t *Tree) Related(a, b string) bool {
	return a == b || t.IsAncestor(a, b) || t.IsAncestor(b, a)
}

// Descendants returns every id below id, depth-first, deepest first within
// each branch (the order Delete removes them in).
func (t *Tree) Descendants(id string) []string {
	var out []string
	for _, c := range t.Children(id) {
		out = append(out, t.Descendants(c)...)
		out = append(out, c)
	}
	return out
}

// Reindex recomputes the index of each of a group's children from their
// current order. Depths are only touched for the group's children and only
// when they disagree with the parent's depth.
func (t *Tree) Reindex(groupID string) error {
	g, err := t.group("reindex", groupID)
	if err != nil {
		return err
	}
	depth := t.nodes[groupID].depth + 1
	for i, c := range g.Children {
		e := t.nodes[c]
		e.parent = groupID
		e.index = i
		if e.depth != depth {
			t.setDepth(c, depth)
		}
	}
	return nil
}

func (t *Tree) setDepth(id string, depth int) {
	t.nodes[id].depth = depth
	for _, c := range t.Children(id) {
		t.setDepth(c, depth+1)
	}
}

// SequenceCandidates lists the nodes id may name as its sequence
// predecessor: every node except itself, its ancestors, its descendants and
// comments, in walk order.
func (t *Tree) SequenceCandidates(id string) ([]string, error) {
	if !t.Has(id) {
		return nil, opErr("candidates", id, ErrNotFound)
	}
	var out []string
	_ = t.Walk(func(n *condition.Node, _ int) error {
		if n.Type() == condition.TypeComment || t.Related(n.ID, id) {
			return nil
		}
		out = append(out, n.ID)
		return nil
	})
	return out, nil
}

// String renders the tree one node per line, indented by depth.
func (t *Tree) String() string {
	var b strings.Builder
	_ = t.Walk(func(n *condition.Node, depth int) error {
		fmt.Fprintf(&b, "%s%s [%s]\n", strings.Repeat("  ", depth), n.ID, n.Type())
		return nil
	})
	return b.String()
}
