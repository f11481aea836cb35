package validate_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

func TestReportRollUps(t *testing.T) {
	r := validate.NewReport()
	r.Add("cond4", validate.Errorf("value", "required"))
	r.Add("cond2", validate.Warnf("comment", "empty"))
	r.Flag(validate.RowOwner("grp3.true", 1), "device", validate.Error, "select a device")

	members := map[string][]string{
		"root": {"grp1", "cond2"},
		"grp1": {"grp3"},
		"grp3": {"cond4"},
	}
	children := func(id string) []string { return members[id] }

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"leaf in error", r.HasError("cond4"), true},
		{"warning is not an error", r.HasError("cond2"), false},
		{"field flagged", r.FieldHasError("cond4", "value"), true},
		{"other field clean", r.FieldHasError("cond4", "operator"), false},
		{"group rolls up", r.SubtreeHasError("grp1", children), true},
		{"root rolls up", r.SubtreeHasError("root", children), true},
		{"clean leaf subtree", r.SubtreeHasError("cond2", children), false},
		{"activity row rolls up", r.ActivityHasError("grp3.true"), true},
		{"other activity clean", r.ActivityHasError("grp3.false"), false},
		{"prefix is not a row", r.ActivityHasError("grp3"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if r.ErrorCount() != 2 || r.WarningCount() != 1 || r.CanSave() {
		t.Errorf("counts: errors %d warnings %d canSave %v", r.ErrorCount(), r.WarningCount(), r.CanSave())
	}
}

func TestReportWarningsOnlyCanSave(t *testing.T) {
	r := validate.NewReport()
	if !r.CanSave() {
		t.Error("empty report cannot save")
	}
	r.Add("var:x", validate.Warnf("expression", "unused"))
	if !r.CanSave() {
		t.Error("warnings block save")
	}
}

func TestReportIssuesOrder(t *testing.T) {
	r := validate.NewReport()
	r.Flag("cond9", "b", validate.Error, "x")
	r.Flag("cond1", "z", validate.Warning, "x")
	r.Flag("cond9", "a", validate.Warning, "x")

	var got []string
	for _, is := range r.Issues() {
		got = append(got, is.Owner+"."+is.Field)
	}
	if want := "cond1.z cond9.a cond9.b"; strings.Join(got, " ") != want {
		t.Errorf("Issues() order = %v, want %s", got, want)
	}
	if f := r.For("cond9"); len(f) != 2 || f[0].Field != "b" {
		t.Errorf("For(cond9) = %+v, want insertion order", f)
	}
}

func TestAddOverridesOwner(t *testing.T) {
	r := validate.NewReport()
	is := validate.Errorf("f", "bad")
	is.Owner = "elsewhere"
	r.Add("cond3", is)
	if !r.HasError("cond3") || r.HasError("elsewhere") {
		t.Error("issue not recorded under the given owner")
	}
}

func TestSummaryJSON(t *testing.T) {
	r := validate.NewReport()
	r.Flag("cond2", "value", validate.Error, "required")
	data, err := json.Marshal(r.Summary())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"errors":1`, `"can_save":false`, `"severity":"error"`, `"owner":"cond2"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("summary JSON missing %s: %s", want, data)
		}
	}
}

func TestHasErrors(t *testing.T) {
	if validate.HasErrors([]validate.Issue{validate.Warnf("a", "w")}) {
		t.Error("warnings reported as errors")
	}
	if !validate.HasErrors([]validate.Issue{validate.Warnf("a", "w"), validate.Errorf("b", "e")}) {
		t.Error("error missed")
	}
}
