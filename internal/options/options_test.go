package options_test

import (
	"errors"
	"testing"

	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/options"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
)

func leaf(t *testing.T, typ condition.Type) *condition.Node {
	t.Helper()
	n, err := condition.New("c", typ)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func fields(n *condition.Node) map[string]bool {
	out := map[string]bool{}
	for _, is := range options.Validate(n) {
		out[is.Field] = true
	}
	return out
}

func TestSupportTable(t *testing.T) {
	cases := []struct {
		typ  condition.Type
		want []options.Feature
	}{
		{condition.TypeGroup, []options.Feature{options.Sequence, options.Duration, options.Repeat, options.Output}},
		{condition.TypeService, []options.Feature{options.Sequence, options.Duration, options.Repeat, options.Output}},
		{condition.TypeSun, []options.Feature{options.Sequence, options.Duration, options.Output}},
		{condition.TypeReload, []options.Feature{options.Sequence, options.Output}},
		{condition.TypeWeekday, []options.Feature{options.Output}},
		{condition.TypeComment, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			got := options.Supported(tc.typ)
			if len(got) != len(tc.want) {
				t.Fatalf("Supported = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("Supported[%d] = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// pulse 15s, then latch: pulse fields go, latch=1, holdtime stays cleared.
func TestPulseThenLatch(t *testing.T) {
	n := leaf(t, condition.TypeService)
	if err := options.SetFollow(n, 20); err != nil {
		t.Fatal(err)
	}
	if n.Options.HoldTime != 20 {
		t.Fatalf("holdtime = %d", n.Options.HoldTime)
	}
	if err := options.SetPulse(n, 15, true, 5, 3); err != nil {
		t.Fatal(err)
	}
	o := n.Options
	if o.HoldTime != 0 || o.PulseTime != 15 || o.PulseBreak != 5 || o.PulseCount != 3 || o.Mode() != condition.OutputPulse {
		t.Fatalf("after pulse: %+v", o)
	}
	if err := options.SetLatch(n); err != nil {
		t.Fatal(err)
	}
	o = n.Options
	if o.PulseTime != 0 || o.PulseBreak != 0 || o.PulseCount != 0 || o.PulseRepeat {
		t.Errorf("pulse settings survived latch: %+v", o)
	}
	if o.Latch != 1 || o.Mode() != condition.OutputLatch {
		t.Errorf("latch not set: %+v", o)
	}
	if o.HoldTime != 0 {
		t.Errorf("holdtime = %d, want 0", o.HoldTime)
	}
	if issues := options.Validate(n); len(issues) != 0 {
		t.Errorf("latched options flagged: %v", issues)
	}
}

func TestOutputNotSupported(t *testing.T) {
	n := leaf(t, condition.TypeComment)
	for name, set := range map[string]func() error{
		"follow": func() error { return options.SetFollow(n, 1) },
		"pulse":  func() error { return options.SetPulse(n, 1, false, 0, 0) },
		"latch":  func() error { return options.SetLatch(n) },
	} {
		if err := set(); !errors.Is(err, options.ErrNotSupported) {
			t.Errorf("%s on comment: err = %v", name, err)
		}
	}
	if n.Options != nil {
		t.Errorf("rejected setters left options behind: %+v", n.Options)
	}
}

func TestDurationAndRepeatExclude(t *testing.T) {
	n := leaf(t, condition.TypeService)
	if err := options.SetDuration(n, "", 30, 120); err != nil {
		t.Fatal(err)
	}
	if n.Options.DurationOp != condition.DurationAtLeast || n.Options.DurationMax != 120 {
		t.Fatalf("duration = %+v", n.Options)
	}
	if err := options.SetRepeat(n, 3, 60); err != nil {
		t.Fatal(err)
	}
	if n.Options.Duration != 0 || n.Options.DurationOp != "" || n.Options.DurationMax != 0 {
		t.Errorf("repeat did not clear duration: %+v", n.Options)
	}
	if err := options.SetDuration(n, condition.DurationLessThan, 10, 99); err != nil {
		t.Fatal(err)
	}
	if n.Options.RepeatCount != 0 || n.Options.RepeatWithin != 0 {
		t.Errorf("duration did not clear repeat: %+v", n.Options)
	}
	if n.Options.DurationMax != 0 {
		t.Errorf("less-than duration kept a maximum: %d", n.Options.DurationMax)
	}
	if err := options.SetDuration(n, "eq", 10, 0); !errors.Is(err, options.ErrBadValue) {
		t.Errorf("bad operator: err = %v", err)
	}
	if err := options.SetRepeat(leaf(t, condition.TypeSun), 2, 10); !errors.Is(err, options.ErrNotSupported) {
		t.Errorf("repeat on sun: err = %v", err)
	}
}

func TestClearNormalizes(t *testing.T) {
	n := leaf(t, condition.TypeService)
	if err := options.SetDuration(n, "ge", 5, 0); err != nil {
		t.Fatal(err)
	}
	options.ClearDuration(n)
	if n.Options != nil {
		t.Errorf("options = %+v, want nil after clearing the only setting", n.Options)
	}
	options.ClearRepeat(n)
	options.ClearSequence(n)
	if n.Options != nil {
		t.Error("clearing nil options created some")
	}
}

func TestSequenceRules(t *testing.T) {
	n := 0
	tr := tree.New(tree.WithIDSource(func(p string) string {
		n++
		return p + string(rune('0'+n))
	}))
	c1, _ := tr.InsertLeaf("root", condition.TypeService) // cond1
	c2, _ := tr.InsertLeaf("root", condition.TypeHouseMode)
	g, _ := tr.InsertGroup("root")
	c3, _ := tr.InsertLeaf(g.ID, condition.TypeService)
	note, _ := tr.InsertLeaf("root", condition.TypeComment)
	wd, _ := tr.InsertLeaf("root", condition.TypeWeekday)

	// c2 after c1, then c1 after c2: unrelated nodes may reference each other.
	if err := options.SetSequence(tr, c2, c1.ID, 60, true); err != nil {
		t.Fatalf("c2 after c1: %v", err)
	}
	if o := c2.Options; o.After != c1.ID || o.AfterTime != 60 || o.AfterMode != 1 {
		t.Errorf("sequence = %+v", o)
	}
	if err := options.SetSequence(tr, c1, c2.ID, 0, false); err != nil {
		t.Errorf("c1 after c2: %v", err)
	}

	cases := []struct {
		name    string
		node    *condition.Node
		after   string
		wantErr error
	}{
		{"self", c1, c1.ID, options.ErrSelf},
		{"own group", c3, g.ID, options.ErrRelated},
		{"own child", g, c3.ID, options.ErrRelated},
		{"root", c3, "root", options.ErrRelated},
		{"comment", c1, note.ID, options.ErrComment},
		{"unknown", c1, "ghost", options.ErrUnknown},
		{"unsupported type", wd, c1.ID, options.ErrNotSupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := *tc.node
			if err := options.SetSequence(tr, tc.node, tc.after, 0, false); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.node.Options != before.Options {
				t.Error("rejected sequence replaced the options object")
			}
		})
	}

	// A legal predecessor becomes illegal when the tree changes under it.
	if err := options.SetSequence(tr, c3, c1.ID, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := tr.Move(c1.ID, g.ID, 0); err != nil {
		t.Fatal(err)
	}
	if issues := options.ValidateSequence(tr, c3); len(issues) != 0 {
		t.Errorf("siblings flagged: %v", issues)
	}
	if err := tr.Move(g.ID, "root", 0); err != nil {
		t.Fatal(err)
	}
	if err := options.SetSequence(tr, g, c2.ID, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := tr.Move(c2.ID, g.ID, -1); err != nil {
		t.Fatal(err)
	}
	if issues := options.ValidateSequence(tr, g); len(issues) != 1 || issues[0].Field != "options.after" {
		t.Errorf("group sequenced after its own child not flagged: %v", issues)
	}
}

func TestPrune(t *testing.T) {
	n := leaf(t, condition.TypeWeekday)
	n.Options = &condition.Options{
		After: "c9", RepeatCount: 3, RepeatWithin: 60,
		PulseTime: 10, Output: condition.OutputPulse,
	}
	options.Prune(n)
	o := n.Options
	if o == nil || o.After != "" || o.RepeatCount != 0 || o.RepeatWithin != 0 {
		t.Fatalf("unsupported settings kept: %+v", o)
	}
	if o.PulseTime != 10 || o.Mode() != condition.OutputPulse {
		t.Errorf("supported output lost: %+v", o)
	}

	c := leaf(t, condition.TypeComment)
	c.Options = &condition.Options{Latch: 1, Output: condition.OutputLatch, HoldTime: 5}
	options.Prune(c)
	if c.Options != nil {
		t.Errorf("comment kept options: %+v", c.Options)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		typ  condition.Type
		opts *condition.Options
		want []string
	}{
		{"none", condition.TypeService, nil, nil},
		{"clean", condition.TypeService, &condition.Options{Duration: 30, DurationOp: "ge", HoldTime: 5, Output: condition.OutputFollow}, nil},
		{"max below min", condition.TypeService, &condition.Options{Duration: 30, DurationOp: "ge", DurationMax: 20}, []string{"options.duration_max"}},
		{"single repeat", condition.TypeService, &condition.Options{RepeatCount: 1, RepeatWithin: 10}, []string{"options.repeatcount"}},
		{"repeat without window", condition.TypeVar, &condition.Options{RepeatCount: 2}, []string{"options.repeatwithin"}},
		{"repeat on weekday", condition.TypeWeekday, &condition.Options{RepeatCount: 2, RepeatWithin: 10}, []string{"options.repeatcount"}},
		{"sequence without predecessor", condition.TypeService, &condition.Options{AfterTime: 10}, []string{"options.after"}},
		{"repeating pulse without break", condition.TypeService, &condition.Options{PulseTime: 5, PulseRepeat: true, Output: condition.OutputPulse}, []string{"options.pulsebreak"}},
		{"pulse with hold", condition.TypeService, &condition.Options{PulseTime: 5, HoldTime: 3, Output: condition.OutputPulse}, []string{"options.output"}},
		{"latch on comment", condition.TypeComment, &condition.Options{Latch: 1, Output: condition.OutputLatch}, []string{"options.output"}},
		{"hold on comment", condition.TypeComment, &condition.Options{HoldTime: 5, Output: condition.OutputFollow}, []string{"options.holdtime"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := leaf(t, tc.typ)
			n.Options = tc.opts
			got := fields(n)
			if len(got) != len(tc.want) {
				t.Fatalf("flagged %v, want %v", got, tc.want)
			}
			for _, f := range tc.want {
				if !got[f] {
					t.Errorf("%s not flagged (got %v)", f, got)
				}
			}
		})
	}
}

func TestParseSeconds(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"90", 90, false},
		{"1:30", 90, false},
		{"1:00:05", 3605, false},
		{"1:60", 0, true},
		{"-5", 0, true},
		{"ten", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := options.ParseSeconds(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
			if tc.wantErr && !errors.Is(err, options.ErrBadValue) {
				t.Errorf("err %v is not ErrBadValue", err)
			}
		})
	}
}
