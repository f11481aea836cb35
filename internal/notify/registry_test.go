package notify_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/notify"
)

func notifyActivity(key string, ns ...*activity.Notify) *activity.Activity {
	g := activity.Group{}
	for _, n := range ns {
		g.Actions = append(g.Actions, n)
	}
	return &activity.Activity{ID: key, Groups: []activity.Group{g}}
}

func TestNextID(t *testing.T) {
	r := notify.New()
	for _, want := range []string{"1", "2", "3"} {
		if got := r.NextID(); got != want {
			t.Fatalf("NextID() = %q, want %q", got, want)
		}
	}
	if r.Counter() != 4 {
		t.Errorf("Counter() = %d, want 4", r.Counter())
	}
}

func TestNextIDSkipsTaken(t *testing.T) {
	var r notify.Registry
	if err := json.Unmarshal([]byte(`{"nextid":2,"2":{"message":"a"},"3":{"message":"b"}}`), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := r.NextID(); got != "4" {
		t.Errorf("NextID() = %q, want 4", got)
	}
}

func TestSlotKeepsExplicitID(t *testing.T) {
	r := notify.New()
	n := &activity.Notify{NotifyID: "7", Message: "hello", Users: "1"}
	if err := r.Slot(n); err != nil {
		t.Fatalf("Slot: %v", err)
	}
	e := r.Get("7")
	if e == nil || e.Message != "hello" {
		t.Fatalf("slot 7 = %+v", e)
	}
	if got := r.NextID(); got != "8" {
		t.Errorf("NextID() after explicit 7 = %q, want 8", got)
	}
	if err := r.Slot(&activity.Notify{NotifyID: "x"}); err == nil {
		t.Error("non-numeric id accepted")
	}
}

// Three actions share one slot; the slot survives until the last of them
// is gone.
func TestGarbageCollectSharedSlot(t *testing.T) {
	r := notify.New()
	first := &activity.Notify{Message: "door", Users: "1"}
	if err := r.Slot(first); err != nil {
		t.Fatalf("Slot: %v", err)
	}
	id := first.NotifyID
	share := func() *activity.Notify { return &activity.Notify{NotifyID: id, Message: "door", Users: "1"} }

	acts := map[string]*activity.Activity{
		"grp1.true":  notifyActivity("grp1.true", first, share()),
		"grp2.false": notifyActivity("grp2.false", share()),
	}
	if refs := notify.References(acts); refs[id] != 3 {
		t.Fatalf("references = %v, want 3 for %s", refs, id)
	}

	delete(acts, "grp2.false")
	if removed := r.GarbageCollect(acts); len(removed) != 0 {
		t.Errorf("slot collected with references left: %+v", removed)
	}
	acts["grp1.true"] = notifyActivity("grp1.true", first)
	if removed := r.GarbageCollect(acts); len(removed) != 0 {
		t.Errorf("slot collected with one reference left: %+v", removed)
	}
	delete(acts, "grp1.true")
	removed := r.GarbageCollect(acts)
	if len(removed) != 1 || removed[0].ID != id {
		t.Fatalf("removed = %+v, want slot %s", removed, id)
	}
	if r.Len() != 0 {
		t.Errorf("registry still holds %d slots", r.Len())
	}
	if again := r.GarbageCollect(acts); len(again) != 0 {
		t.Errorf("second collection removed %+v", again)
	}
}

func TestCollectReleasesScenes(t *testing.T) {
	r := notify.New()
	host := &activity.Notify{Message: "a", Users: "1"}
	gone := &activity.Notify{Message: "b", Users: "2"}
	for _, n := range []*activity.Notify{host, gone} {
		if err := r.Slot(n); err != nil {
			t.Fatalf("Slot: %v", err)
		}
	}
	if !r.Get(host.NotifyID).NeedsScene() {
		t.Error("host-native slot without scene does not need one")
	}
	if err := r.SetScene(host.NotifyID, 40); err != nil {
		t.Fatal(err)
	}
	if err := r.SetScene(gone.NotifyID, 41); err != nil {
		t.Fatal(err)
	}
	if err := r.SetScene("99", 1); err == nil {
		t.Error("SetScene on a missing slot succeeded")
	}

	// host switches to email delivery; gone is deleted.
	email := &activity.Notify{NotifyID: host.NotifyID, Method: activity.MethodEmail, Message: "a",
		Extra: map[string]string{"recipient": "x@example.com"}}
	if err := r.Slot(email); err != nil {
		t.Fatal(err)
	}
	acts := map[string]*activity.Activity{"grp1.true": notifyActivity("grp1.true", email)}
	c := r.Collect(acts)
	if !reflect.DeepEqual(c.Removed, []string{gone.NotifyID}) {
		t.Errorf("Removed = %v", c.Removed)
	}
	if !reflect.DeepEqual(c.Scenes, []int{41, 40}) {
		t.Errorf("Scenes = %v, want [41 40]", c.Scenes)
	}
	if e := r.Get(host.NotifyID); e.Scene != 0 || e.NeedsScene() {
		t.Errorf("email slot = %+v", e)
	}
	if again := r.Collect(acts); len(again.Removed)+len(again.Scenes) != 0 {
		t.Errorf("second collect = %+v", again)
	}
}

func TestRegistryJSON(t *testing.T) {
	r := notify.New()
	n := &activity.Notify{Method: activity.MethodURL, Message: "m", Extra: map[string]string{"url": "http://h/x"}}
	if err := r.Slot(n); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"nextid":2`) {
		t.Errorf("JSON missing counter: %s", data)
	}
	var back notify.Registry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Counter() != 2 || !reflect.DeepEqual(back.Get("1"), r.Get("1")) {
		t.Errorf("decoded %+v, want %+v", back.Get("1"), r.Get("1"))
	}

	for _, bad := range []string{`{"abc":{}}`, `{"0":{}}`, `{"nextid":"x"}`, `[]`} {
		if err := json.Unmarshal([]byte(bad), &back); err == nil {
			t.Errorf("Unmarshal(%s) succeeded", bad)
		}
	}
}
