package tree

import (
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
)

// InsertLeaf appends a new leaf condition of type typ to the end of the
// parent group's children and returns it.
func (t *Tree) InsertLeaf(parentID string, typ condition.Type) (*condition.Node, error) {
	if !typ.IsLeaf() {
		return nil, opErr("insert", parentID, ErrBadType)
	}
	return t.insert(parentID, typ, "cond")
}

// InsertGroup appends a new empty AND group to the parent group.
func (t *Tree) InsertGroup(parentID string) (*condition.Node, error) {
	return t.insert(parentID, condition.TypeGroup, "grp")
}

func (t *Tree) insert(parentID string, typ condition.Type, prefix string) (*condition.Node, error) {
	pg, err := t.group("insert", parentID)
	if err != nil {
		return nil, err
	}
	n, err := condition.New(t.mint(prefix), typ)
	if err != nil {
		return nil, opErr("insert", parentID, ErrBadType)
	}
	pe := t.nodes[parentID]
	t.nodes[n.ID] = &entry{
		node:   n,
		parent: parentID,
		index:  len(pg.Children),
		depth:  pe.depth + 1,
	}
	pg.Children = append(pg.Children, n.ID)
	return n, nil
}

// Impact describes what deleting a node would remove, so callers can ask for
// confirmation before deleting a non-empty group.
type Impact struct {
	ID string `json:"id"`
	// Descendants are removed along with the node.
	Descendants []string `json:"descendants"`
	// Groups are the removed group ids, the node itself included, whose
	// activities go with them.
	Groups []string `json:"groups"`
	// Dependents are surviving nodes whose sequence or interval reference
	// will be disconnected.
	Dependents []string `json:"dependents"`
}

// NeedsConfirmation is true when the delete reaches beyond the node itself.
func (im Impact) NeedsConfirmation() bool {
	return len(im.Descendants) > 0
}

// DeleteImpact reports what Delete(id) would do without doing it.
func (t *Tree) DeleteImpact(id string) (Impact, error) {
	n := t.Node(id)
	if n == nil {
		return Impact{}, opErr("delete", id, ErrNotFound)
	}
	if id == condition.RootID {
		return Impact{}, opErr("delete", id, ErrIsRoot)
	}
	im := Impact{ID: id, Descendants: t.Descendants(id)}
	doomed := make(map[string]bool, len(im.Descendants)+1)
	doomed[id] = true
	for _, d := range im.Descendants {
		doomed[d] = true
		if t.nodes[d].node.IsGroup() {
			im.Groups = append(im.Groups, d)
		}
	}
	if n.IsGroup() {
		im.Groups = append(im.Groups, id)
	}
	_ = t.Walk(func(other *condition.Node, _ int) error {
		if !doomed[other.ID] && refersTo(other, doomed) {
			im.Dependents = append(im.Dependents, other.ID)
		}
		return nil
	})
	return im, nil
}

func refersTo(n *condition.Node, ids map[string]bool) bool {
	if n.Options != nil && n.Options.After != "" && ids[n.Options.After] {
		return true
	}
	if iv, ok := n.Body.(*condition.Interval); ok && iv.RelCond != "" && ids[iv.RelCond] {
		return true
	}
	return false
}

// Delete removes id and, for a group, everything below it, deepest first.
// Surviving nodes that name a removed node as sequence predecessor lose that
// restriction; intervals relative to a removed node lose their anchor.
// The returned Impact lists what was removed and disconnected.
func (t *Tree) Delete(id string) (Impact, error) {
	im, err := t.DeleteImpact(id)
	if err != nil {
		return Impact{}, err
	}
	doomed := make(map[string]bool, len(im.Descendants)+1)
	doomed[id] = true
	for _, d := range im.Descendants {
		doomed[d] = true
	}
	for _, dep := range im.Dependents {
		disconnect(t.nodes[dep].node, doomed)
	}

	parent := t.nodes[id].parent
	for _, d := range im.Descendants {
		delete(t.nodes, d)
	}
	delete(t.nodes, id)

	pg := t.nodes[parent].node.Group()
	pg.Children = removeID(pg.Children, id)
	_ = t.Reindex(parent)
	return im, nil
}

func disconnect(n *condition.Node, doomed map[string]bool) {
	if o := n.Options; o != nil && doomed[o.After] {
		o.After, o.AfterTime, o.AfterMode = "", 0, 0
		if o.Empty() {
			n.Options = nil
		}
	}
	if iv, ok := n.Body.(*condition.Interval); ok && doomed[iv.RelCond] {
		iv.RelCond = ""
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Move detaches id from its parent and inserts it into newParentID's
// children at position. A position outside 0..len(children) appends.
// Moving a node into itself or below itself fails with ErrWouldCycle.
func (t *Tree) Move(id, newParentID string, position int) error {
	e, ok := t.nodes[id]
	if !ok {
		return opErr("move", id, ErrNotFound)
	}
	if id == condition.RootID {
		return opErr("move", id, ErrIsRoot)
	}
	ng, err := t.group("move", newParentID)
	if err != nil {
		return err
	}
	if newParentID == id || t.IsAncestor(id, newParentID) {
		return opErr("move", id, ErrWouldCycle)
	}

	old := e.parent
	og := t.nodes[old].node.Group()
	og.Children = removeID(og.Children, id)
	if old != newParentID {
		_ = t.Reindex(old)
	}

	if position < 0 || position > len(ng.Children) {
		position = len(ng.Children)
	}
	ng.Children = append(ng.Children, "")
	copy(ng.Children[position+1:], ng.Children[position:])
	ng.Children[position] = id
	return t.Reindex(newParentID)
}

// Retype replaces a leaf's body with the default body of another leaf type.
// Options are kept; the caller prunes those the new type does not support.
// Groups cannot be retyped and leaves cannot become groups.
func (t *Tree) Retype(id string, typ condition.Type) error {
	n := t.Node(id)
	if n == nil {
		return opErr("retype", id, ErrNotFound)
	}
	if n.IsGroup() || !typ.IsLeaf() {
		return opErr("retype", id, ErrBadType)
	}
	if n.Type() == typ {
		return nil
	}
	b, err := condition.NewBody(typ)
	if err != nil {
		return opErr("retype", id, ErrBadType)
	}
	n.Body = b
	return nil
}

// Replace swaps a node's body for an edited one of the same type.
func (t *Tree) Replace(id string, b condition.Body) error {
	n := t.Node(id)
	if n == nil {
		return opErr("update", id, ErrNotFound)
	}
	if b == nil || b.Kind() != n.Type() {
		return opErr("update", id, ErrBadType)
	}
	if g, ok := b.(*condition.Group); ok {
		// Children are structural; edits go through Move/Insert/Delete.
		g.Children = n.Group().Children
	}
	n.Body = b
	return nil
}
