package editor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/editor"
	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
	"github.com/gyaneshwarpardhi/sensoredit/internal/notify"
)

// ── Fakes ──

type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	state    map[string][]byte
	fail     map[string]int // remaining failing Persist calls per sensor
	persists int

	entered chan struct{} // signalled when Persist starts, if set
	release chan struct{} // Persist waits on it, if set
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, state: map[string][]byte{}, fail: map[string]int{}}
}

var errStoreDown = errors.New("store down")

func (m *memStore) Persist(ctx context.Context, id string, data []byte) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	if m.fail[id] > 0 {
		m.fail[id]--
		return errStoreDown
	}
	m.data[id] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id], nil
}

func (m *memStore) LoadState(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[id], nil
}

func (m *memStore) saved(t *testing.T, id string) *cdata.Document {
	t.Helper()
	m.mu.Lock()
	data := m.data[id]
	m.mu.Unlock()
	d, err := cdata.Decode(data)
	if err != nil {
		t.Fatalf("stored document for %s: %v", id, err)
	}
	return d
}

// instant never waits between attempts.
type instant struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *instant) After(d time.Duration) <-chan time.Time {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type fakeScenes struct {
	next    int
	created []string
	deleted []int
}

func (f *fakeScenes) CreateNotifyScene(_ context.Context, sensor string, e *notify.Entry) (int, error) {
	f.next++
	f.created = append(f.created, e.ID)
	return 100 + f.next, nil
}

func (f *fakeScenes) DeleteScene(_ context.Context, scene int) error {
	f.deleted = append(f.deleted, scene)
	return nil
}

type invocation struct {
	device          int
	service, action string
	params          []activity.Param
}

type fakeInvoker struct{ calls []invocation }

func (f *fakeInvoker) InvokeDeviceAction(_ context.Context, device int, service, action string, params []activity.Param) error {
	f.calls = append(f.calls, invocation{device, service, action, params})
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testDeps(store host.Store) editor.Deps {
	return editor.Deps{
		Store:      store,
		Scheduler:  &instant{},
		SavePolicy: host.Policy{Interval: time.Second, MaxAttempts: 3},
		Logger:     quiet,
		Now:        func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func open(t *testing.T, deps editor.Deps, id string) *editor.Session {
	t.Helper()
	s, err := editor.Open(context.Background(), id, deps)
	if err != nil {
		t.Fatalf("Open(%s): %v", id, err)
	}
	return s
}

func insert(t *testing.T, s *editor.Session, parent string, typ condition.Type) string {
	t.Helper()
	w, err := s.InsertCondition(parent, typ)
	if err != nil {
		t.Fatalf("InsertCondition(%s, %s): %v", parent, typ, err)
	}
	return w.ID
}

func houseMode(mode string) activity.Row {
	return activity.ActionRow(&activity.HouseMode{Mode: mode})
}

// ── Tests ──

func TestOpenNeverConfigured(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	if s.Modified() {
		t.Error("fresh session reports changes")
	}
	v := s.View()
	if v.Conditions.ID != condition.RootID || len(v.Conditions.Conditions) != 0 {
		t.Errorf("conditions = %+v", v.Conditions)
	}
	if !v.Summary.CanSave {
		t.Errorf("empty configuration cannot be saved: %+v", v.Issues)
	}
}

func TestOpenCorrupt(t *testing.T) {
	store := newMemStore()
	store.data["42"] = []byte(`{"version": 99999}`)
	_, err := editor.Open(context.Background(), "42", testDeps(store))
	if !errors.Is(err, cdata.ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestModifiedAndRevert(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	if !s.Modified() {
		t.Fatal("insert not seen as a change")
	}
	if err := s.Revert(); err != nil {
		t.Fatal(err)
	}
	if s.Modified() {
		t.Error("revert left changes")
	}
	if _, err := s.SequenceCandidates(g); err == nil {
		t.Error("reverted group still exists")
	}
}

func TestSave(t *testing.T) {
	store := newMemStore()
	s := open(t, testDeps(store), "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	if err := s.SetActivityRows(activity.Key(g, true), []activity.Row{houseMode("2")}); err != nil {
		t.Fatal(err)
	}

	res, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Serial != 1 || res.Timestamp != 1700000000 {
		t.Errorf("result = %+v", res)
	}
	if s.Modified() {
		t.Error("modified after save")
	}
	doc := store.saved(t, "42")
	if doc.Serial != 1 || doc.Activities[activity.Key(g, true)] == nil {
		t.Errorf("stored serial %d, activities %v", doc.Serial, doc.Activities)
	}

	if _, err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := store.saved(t, "42").Serial; got != 2 {
		t.Errorf("second save serial = %d", got)
	}
}

func TestSaveRefusesErrors(t *testing.T) {
	store := newMemStore()
	s := open(t, testDeps(store), "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	key := activity.Key(g, false)

	bad := []activity.Row{houseMode("1"), activity.ActionRow(&activity.Device{Service: "s", Action: "a"})}
	err := s.SetActivityRows(key, bad)
	if !errors.Is(err, activity.ErrInvalidRow) {
		t.Fatalf("SetActivityRows: %v", err)
	}
	if rows := s.ActivityRows(key); len(rows) != 2 {
		t.Errorf("draft rows = %d, want 2", len(rows))
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, editor.ErrInvalid) {
		t.Fatalf("Save with draft: %v", err)
	}
	if store.persists != 0 {
		t.Error("invalid configuration written")
	}

	s.DiscardDraft(key)
	if s.Report().ErrorCount() != 0 {
		t.Errorf("errors after discarding draft: %v", s.Report().Issues())
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save after discard: %v", err)
	}
}

func TestSaveInProgress(t *testing.T) {
	store := newMemStore()
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	s := open(t, testDeps(store), "42")
	insert(t, s, condition.RootID, condition.TypeComment)

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	<-store.entered
	if !s.Saving() {
		t.Error("Saving() false during a save")
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, editor.ErrSaveInProgress) {
		t.Errorf("concurrent Save: %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if s.Saving() {
		t.Error("Saving() true after the save finished")
	}
}

func TestSaveRetries(t *testing.T) {
	store := newMemStore()
	store.fail["42"] = 2
	deps := testDeps(store)
	sched := &instant{}
	deps.Scheduler = sched
	s := open(t, deps, "42")
	insert(t, s, condition.RootID, condition.TypeComment)

	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if store.persists != 3 {
		t.Errorf("persist attempts = %d, want 3", store.persists)
	}
	if len(sched.waits) != 2 || sched.waits[0] != time.Second {
		t.Errorf("waits = %v", sched.waits)
	}
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	store := newMemStore()
	store.fail["42"] = 3
	s := open(t, testDeps(store), "42")
	insert(t, s, condition.RootID, condition.TypeComment)

	_, err := s.Save(context.Background())
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("Save: %v, want store error", err)
	}
	v := s.View()
	if v.Serial != 0 || !v.Modified {
		t.Errorf("failed save changed the session: serial %d modified %v", v.Serial, v.Modified)
	}
	if len(v.Conditions.Conditions) != 1 {
		t.Error("edit lost on failed save")
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("retry after outage: %v", err)
	}
	if s.View().Serial != 1 {
		t.Error("serial advanced twice")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	c := insert(t, s, g, condition.TypeComment)

	im, err := s.DeleteCondition(g, false)
	if !errors.Is(err, editor.ErrNeedsConfirmation) {
		t.Fatalf("err = %v, want ErrNeedsConfirmation", err)
	}
	if len(im.Descendants) != 1 || im.Descendants[0] != c {
		t.Errorf("impact = %+v", im)
	}
	if _, err := s.DeleteCondition(g, true); err != nil {
		t.Fatal(err)
	}
	if len(s.View().Conditions.Conditions) != 0 {
		t.Error("group not deleted")
	}
}

func TestUpdateConditionRetypes(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	c := insert(t, s, condition.RootID, condition.TypeHouseMode)
	if err := s.SetOptions(c, editor.OptionsEdit{Duration: &editor.DurationEdit{Op: condition.DurationAtLeast, Seconds: 60}}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateCondition(c, condition.Wire{Type: condition.TypeComment, Comment: "later"}); err != nil {
		t.Fatal(err)
	}
	w := s.View().Conditions.Conditions[0]
	if w.Type != condition.TypeComment || w.Comment != "later" || w.Options != nil {
		t.Errorf("updated = %+v", w)
	}
	if err := s.UpdateCondition("cond-missing", condition.Wire{}); err == nil {
		t.Error("update of a missing condition succeeded")
	}
}

func TestNotificationScenes(t *testing.T) {
	store := newMemStore()
	scenes := &fakeScenes{}
	deps := testDeps(store)
	deps.Scenes = scenes
	s := open(t, deps, "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	key := activity.Key(g, true)

	n := &activity.Notify{Message: "door opened", Users: "3"}
	if err := s.SetActivityRows(key, []activity.Row{activity.ActionRow(n)}); err != nil {
		t.Fatal(err)
	}
	if n.NotifyID == "" {
		t.Fatal("row not given a slot")
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(scenes.created) != 1 || scenes.created[0] != n.NotifyID {
		t.Fatalf("created scenes for %v", scenes.created)
	}
	if e := store.saved(t, "42").Notifications.Get(n.NotifyID); e == nil || e.Scene != 101 {
		t.Errorf("stored slot = %+v", e)
	}

	if err := s.SetActivityRows(key, nil); err != nil {
		t.Fatal(err)
	}
	res, err := s.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Removed) != 1 || res.Removed[0] != n.NotifyID {
		t.Errorf("removed = %v", res.Removed)
	}
	if len(scenes.deleted) != 1 || scenes.deleted[0] != 101 {
		t.Errorf("deleted scenes = %v", scenes.deleted)
	}
	if store.saved(t, "42").Notifications.Len() != 0 {
		t.Error("collected slot persisted")
	}
}

func TestVariables(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	no := false
	if err := s.SetVariable("level", "2 * 3", &no); err != nil {
		t.Fatal(err)
	}
	if err := s.SetVariable("lux", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveVariable("lux", 0); err != nil {
		t.Fatal(err)
	}
	v := s.View().Variables
	if len(v) != 2 || v[0].Name != "lux" || v[1].Export {
		t.Errorf("variables = %+v", v)
	}
	if err := s.SetVariable("bad name", "1", nil); !errors.Is(err, cdata.ErrBadVariableName) {
		t.Errorf("bad name: %v", err)
	}
	if err := s.DeleteVariable("level"); err != nil {
		t.Fatal(err)
	}
	if !s.Report().CanSave() {
		t.Error("warnings block the save")
	}
}

func TestRuntimeState(t *testing.T) {
	store := newMemStore()
	store.state["42"] = []byte(`{"conditions":{"root":{"evalstate":true}}}`)
	s := open(t, testDeps(store), "42")
	st, err := s.RuntimeState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Conditions["root"].EvalState {
		t.Errorf("state = %+v", st)
	}
}

type catalog struct{}

func (catalog) ActionParams(device int, service, action string) ([]activity.ParamInfo, bool) {
	if action != "SetTarget" {
		return nil, false
	}
	return []activity.ParamInfo{{Name: "newTargetValue", Default: "1"}}, true
}

func TestTestAction(t *testing.T) {
	deps := testDeps(newMemStore())
	if err := open(t, deps, "42").TestAction(context.Background(), houseMode("1")); !errors.Is(err, editor.ErrNoHost) {
		t.Errorf("without invoker: %v", err)
	}

	inv := &fakeInvoker{}
	deps.Invoker = inv
	deps.Catalog = catalog{}
	s := open(t, deps, "43")

	if err := s.TestAction(context.Background(), houseMode("1")); !errors.Is(err, editor.ErrNotTestable) {
		t.Errorf("house mode row: %v", err)
	}
	self := activity.ActionRow(&activity.Device{Device: activity.ThisSensor, Service: "s", Action: "SetTarget"})
	if err := s.TestAction(context.Background(), self); !errors.Is(err, activity.ErrInvalidRow) {
		t.Errorf("this-sensor row: %v", err)
	}

	row := activity.ActionRow(&activity.Device{Device: 12, Service: "urn:upnp-org:serviceId:SwitchPower1", Action: "SetTarget"})
	if err := s.TestAction(context.Background(), row); err != nil {
		t.Fatal(err)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("calls = %+v", inv.calls)
	}
	c := inv.calls[0]
	if c.device != 12 || c.action != "SetTarget" || len(c.params) != 1 || c.params[0].Value != "1" {
		t.Errorf("invocation = %+v", c)
	}
}

func TestDeleteDropsDrafts(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	key := activity.Key(g, true)
	err := s.SetActivityRows(key, []activity.Row{activity.ActionRow(&activity.RunScene{})})
	if !errors.Is(err, activity.ErrInvalidRow) {
		t.Fatalf("SetActivityRows: %v", err)
	}
	if _, err := s.DeleteCondition(g, true); err != nil {
		t.Fatal(err)
	}
	if rows := s.ActivityRows(key); len(rows) != 0 {
		t.Errorf("draft outlived its group: %d rows", len(rows))
	}
	if n := s.Report().ErrorCount(); n != 0 {
		t.Errorf("errors after delete: %v", s.Report().Issues())
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestNulGroupDropsDrafts(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	key := activity.Key(g, false)
	if err := s.SetActivityRows(key, []activity.Row{activity.ActionRow(&activity.RunScene{})}); !errors.Is(err, activity.ErrInvalidRow) {
		t.Fatalf("SetActivityRows: %v", err)
	}
	if err := s.UpdateCondition(g, condition.Wire{Type: condition.TypeGroup, Name: "quiet", Operator: string(condition.OpNul)}); err != nil {
		t.Fatal(err)
	}
	if rows := s.ActivityRows(key); len(rows) != 0 {
		t.Errorf("draft kept on a NUL group: %d rows", len(rows))
	}
	if n := s.Report().ErrorCount(); n != 0 {
		t.Errorf("errors after switching to NUL: %v", s.Report().Issues())
	}
}

func TestRejectedActivityLeavesNoTrace(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	nul := insert(t, s, condition.RootID, condition.TypeGroup)
	if err := s.UpdateCondition(nul, condition.Wire{Type: condition.TypeGroup, Name: "n", Operator: string(condition.OpNul)}); err != nil {
		t.Fatal(err)
	}
	g := insert(t, s, condition.RootID, condition.TypeGroup)
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}

	n := &activity.Notify{Message: "hello", Users: "1"}
	err := s.SetActivityRows(activity.Key(nul, true), []activity.Row{activity.ActionRow(n)})
	if !errors.Is(err, cdata.ErrNulGroup) {
		t.Fatalf("notify on NUL group: %v", err)
	}
	if n.NotifyID != "" {
		t.Errorf("rejected row given slot %q", n.NotifyID)
	}
	if s.Modified() {
		t.Error("rejected activity changed the configuration")
	}

	// A row that fails after a notify row must not allocate a slot either.
	key := activity.Key(g, true)
	rows := []activity.Row{
		activity.ActionRow(&activity.Notify{Message: "bye", Users: "1"}),
		activity.ActionRow(&activity.RunScene{}),
	}
	if err := s.SetActivityRows(key, rows); !errors.Is(err, activity.ErrInvalidRow) {
		t.Fatalf("bad rows: %v", err)
	}
	s.DiscardDraft(key)
	if s.Modified() {
		t.Error("failed build allocated a notification slot")
	}
	if v := s.View(); len(v.Notifications) != 0 {
		t.Errorf("notifications = %+v", v.Notifications)
	}
}

func TestEditDuringSave(t *testing.T) {
	store := newMemStore()
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	s := open(t, testDeps(store), "42")
	insert(t, s, condition.RootID, condition.TypeComment)

	saved := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		saved <- err
	}()
	<-store.entered

	edited := make(chan error, 1)
	go func() {
		_, err := s.InsertCondition(condition.RootID, condition.TypeReload)
		edited <- err
	}()
	select {
	case err := <-edited:
		if err != nil {
			t.Errorf("edit during save: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(store.release)
		t.Fatal("edit blocked while the store was being written")
	}

	close(store.release)
	if err := <-saved; err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n := len(store.saved(t, "42").Conditions.Children(condition.RootID)); n != 1 {
		t.Errorf("stored %d conditions, want the one present when saving began", n)
	}
	v := s.View()
	if v.Serial != 1 || !v.Modified || len(v.Conditions.Conditions) != 2 {
		t.Errorf("after save: serial %d modified %v conditions %d", v.Serial, v.Modified, len(v.Conditions.Conditions))
	}

	store.entered = nil
	store.release = nil
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d := store.saved(t, "42"); d.Serial != 2 || len(d.Conditions.Children(condition.RootID)) != 2 {
		t.Errorf("second save: serial %d", d.Serial)
	}
	if s.Modified() {
		t.Error("modified after saving the later edit")
	}
}

func TestSetOptionsAllOrNothing(t *testing.T) {
	s := open(t, testDeps(newMemStore()), "42")
	a := insert(t, s, condition.RootID, condition.TypeHouseMode)
	b := insert(t, s, condition.RootID, condition.TypeReload)

	err := s.SetOptions(a, editor.OptionsEdit{
		Sequence: &editor.SequenceEdit{After: b, Within: 30},
		Duration: &editor.DurationEdit{Op: "about", Seconds: 10},
	})
	if err == nil {
		t.Fatal("bad duration operator accepted")
	}
	if w := s.View().Conditions.Conditions[0]; w.Options != nil {
		t.Errorf("rejected edit left options %+v", w.Options)
	}

	err = s.SetOptions(a, editor.OptionsEdit{
		Sequence: &editor.SequenceEdit{After: b, Within: 30},
		Duration: &editor.DurationEdit{Op: condition.DurationAtLeast, Seconds: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if o := s.View().Conditions.Conditions[0].Options; o == nil || o.After != b || o.Duration != 10 {
		t.Errorf("options = %+v", o)
	}
}
