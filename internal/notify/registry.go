// Package notify manages the notification slots referenced by notify
// actions: allocation of unique numeric ids and collection of slots no
// action refers to any more.
package notify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
)

// Entry is one notification slot.
type Entry struct {
	ID      string            `json:"id"`
	Message string            `json:"message"`
	Users   string            `json:"users,omitempty"`
	Method  string            `json:"method,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
	// Scene is the host scene that delivers host-native notifications.
	Scene int `json:"scene,omitempty"`
}

// NeedsScene reports whether the entry is host-native and has no backing
// scene yet.
func (e *Entry) NeedsScene() bool {
	return e.Method == activity.MethodHost && e.Scene == 0
}

// Registry is the set of slots of one configuration. It persists as a flat
// object of id → entry plus a "nextid" counter.
type Registry struct {
	next    int
	entries map[string]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{next: 1, entries: make(map[string]*Entry)}
}

// Clone returns a deep copy of r.
func (r *Registry) Clone() *Registry {
	c := &Registry{next: r.next, entries: make(map[string]*Entry, len(r.entries))}
	for id, e := range r.entries {
		cp := *e
		if e.Extra != nil {
			cp.Extra = make(map[string]string, len(e.Extra))
			for k, v := range e.Extra {
				cp.Extra[k] = v
			}
		}
		c.entries[id] = &cp
	}
	return c
}

// Len returns the number of slots.
func (r *Registry) Len() int { return len(r.entries) }

// Get returns a slot by id (nil if not found).
func (r *Registry) Get(id string) *Entry { return r.entries[id] }

// Counter returns the next id the registry will try.
func (r *Registry) Counter() int { return r.next }

// IDs returns slot ids in numeric order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids
}

// NextID returns the smallest unused id at or above the counter (and at
// least 1), then advances the counter past it.
func (r *Registry) NextID() string {
	id := r.next
	if id < 1 {
		id = 1
	}
	for {
		if _, taken := r.entries[strconv.Itoa(id)]; !taken {
			break
		}
		id++
	}
	r.next = id + 1
	return strconv.Itoa(id)
}

// Slot implements activity.SlotAllocator. A notify action that already
// names a slot keeps it and the slot takes the action's current contents;
// otherwise a new slot is allocated.
func (r *Registry) Slot(n *activity.Notify) error {
	id := n.NotifyID
	if id == "" {
		id = r.NextID()
	} else if v, err := strconv.Atoi(id); err != nil || v < 1 {
		return fmt.Errorf("invalid notification id %q", id)
	} else if v >= r.next {
		r.next = v + 1
	}
	e := r.entries[id]
	if e == nil {
		e = &Entry{ID: id}
		r.entries[id] = e
	}
	// A scene left over from host-native delivery is released by
	// ReconcileScenes, not here.
	e.Method, e.Message, e.Users, e.Extra = n.Method, n.Message, n.Users, n.Extra
	n.NotifyID = id
	return nil
}

// References counts, per slot id, the notify actions referring to it.
func References(acts map[string]*activity.Activity) map[string]int {
	refs := make(map[string]int)
	for _, act := range acts {
		for _, n := range activity.Notifies(act) {
			if n.NotifyID != "" {
				refs[n.NotifyID]++
			}
		}
	}
	return refs
}

// GarbageCollect removes every slot not referenced by a notify action in
// any of acts and returns the removed entries in id order. Running it on a
// clean registry removes nothing.
func (r *Registry) GarbageCollect(acts map[string]*activity.Activity) []*Entry {
	refs := References(acts)
	var removed []*Entry
	for _, id := range r.IDs() {
		if refs[id] == 0 {
			removed = append(removed, r.entries[id])
			delete(r.entries, id)
		}
	}
	return removed
}

// ReconcileScenes detaches backing scenes from slots that no host-native
// notify action uses any more and returns the scene ids to release.
func (r *Registry) ReconcileScenes(acts map[string]*activity.Activity) []int {
	native := make(map[string]bool)
	for _, act := range acts {
		for _, n := range activity.Notifies(act) {
			if n.Method == activity.MethodHost {
				native[n.NotifyID] = true
			}
		}
	}
	var scenes []int
	for _, id := range r.IDs() {
		e := r.entries[id]
		if e.Scene != 0 && !native[id] {
			scenes = append(scenes, e.Scene)
			e.Scene = 0
		}
	}
	return scenes
}

// Collection is the outcome of Collect.
type Collection struct {
	Removed []string
	Scenes  []int
}

// Collect runs both collection phases: unreferenced slots first, then
// scenes no longer needed, including those of removed slots.
func (r *Registry) Collect(acts map[string]*activity.Activity) Collection {
	var c Collection
	for _, e := range r.GarbageCollect(acts) {
		c.Removed = append(c.Removed, e.ID)
		if e.Scene != 0 {
			c.Scenes = append(c.Scenes, e.Scene)
		}
	}
	c.Scenes = append(c.Scenes, r.ReconcileScenes(acts)...)
	return c
}

// SetScene records the backing scene of a slot.
func (r *Registry) SetScene(id string, scene int) error {
	e := r.entries[id]
	if e == nil {
		return fmt.Errorf("no notification slot %q", id)
	}
	e.Scene = scene
	return nil
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.entries)+1)
	m["nextid"] = r.next
	for id, e := range r.entries {
		m[id] = e
	}
	return json.Marshal(m)
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	out := New()
	out.next = 0
	for k, v := range raw {
		if k == "nextid" {
			if err := json.Unmarshal(v, &out.next); err != nil {
				return fmt.Errorf("notifications.nextid: %w", err)
			}
			continue
		}
		if n, err := strconv.Atoi(k); err != nil || n < 1 {
			return fmt.Errorf("notifications: invalid slot id %q", k)
		}
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("notifications.%s: %w", k, err)
		}
		e.ID = k
		out.entries[k] = &e
	}
	if out.next < 1 {
		out.next = 1
	}
	*r = *out
	return nil
}
