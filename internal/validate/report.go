// Package validate collects field-level errors and warnings raised while a
// sensor configuration is edited, and rolls them up to rows, conditions,
// groups, activities and the whole configuration.
//
// A Report is rebuilt from scratch after every edit. It is never patched
// incrementally, so its answers are authoritative for the state it was built
// from.
package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies an issue. Only errors block a save.
type Severity int

const (
	Warning Severity = iota + 1
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText lets severities appear as words in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Issue is a single flag on one field of one owner. Owner is a condition id,
// an activity key, an activity row ("<key>/<n>") or a variable ("var:<name>").
type Issue struct {
	Owner    string   `json:"owner"`
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s.%s: %s", i.Severity, i.Owner, i.Field, i.Message)
}

// Errorf builds an error issue for field. The owner is filled in by Report.Add.
func Errorf(field, format string, args ...any) Issue {
	return Issue{Field: field, Severity: Error, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning issue for field.
func Warnf(field, format string, args ...any) Issue {
	return Issue{Field: field, Severity: Warning, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any of issues is an error.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == Error {
			return true
		}
	}
	return false
}

// Report is the aggregated set of issues for one configuration.
type Report struct {
	issues  []Issue
	byOwner map[string][]int
	errors  int
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{byOwner: make(map[string][]int)}
}

// Flag records one issue.
func (r *Report) Flag(owner, field string, sev Severity, msg string) {
	r.Add(owner, Issue{Field: field, Severity: sev, Message: msg})
}

// Add records issues under owner, overriding whatever owner they carried.
func (r *Report) Add(owner string, issues ...Issue) {
	for _, is := range issues {
		is.Owner = owner
		r.byOwner[owner] = append(r.byOwner[owner], len(r.issues))
		r.issues = append(r.issues, is)
		if is.Severity == Error {
			r.errors++
		}
	}
}

// Issues returns every issue ordered by owner, then field.
func (r *Report) Issues() []Issue {
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// For returns the issues recorded against owner, in insertion order.
func (r *Report) For(owner string) []Issue {
	idx := r.byOwner[owner]
	out := make([]Issue, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.issues[i])
	}
	return out
}

// FieldHasError reports whether field of owner is flagged as an error.
func (r *Report) FieldHasError(owner, field string) bool {
	for _, i := range r.byOwner[owner] {
		if r.issues[i].Field == field && r.issues[i].Severity == Error {
			return true
		}
	}
	return false
}

// HasError reports whether any field of owner is in error. This is the row
// and leaf-condition roll-up.
func (r *Report) HasError(owner string) bool {
	for _, i := range r.byOwner[owner] {
		if r.issues[i].Severity == Error {
			return true
		}
	}
	return false
}

// SubtreeHasError reports whether id or anything below it is in error.
// children enumerates the direct members of a container.
func (r *Report) SubtreeHasError(id string, children func(string) []string) bool {
	if r.HasError(id) {
		return true
	}
	for _, c := range children(id) {
		if r.SubtreeHasError(c, children) {
			return true
		}
	}
	return false
}

// RowOwner is the owner name of row n (0-based) of the activity key.
func RowOwner(key string, n int) string {
	return fmt.Sprintf("%s/%d", key, n)
}

// ActivityHasError reports whether the activity key or any of its rows is in
// error.
func (r *Report) ActivityHasError(key string) bool {
	if r.HasError(key) {
		return true
	}
	prefix := key + "/"
	for owner := range r.byOwner {
		if strings.HasPrefix(owner, prefix) && r.HasError(owner) {
			return true
		}
	}
	return false
}

// ErrorCount is the number of error issues across the configuration.
func (r *Report) ErrorCount() int { return r.errors }

// WarningCount is the number of warning issues across the configuration.
func (r *Report) WarningCount() int { return len(r.issues) - r.errors }

// CanSave is true iff the configuration carries no errors. Warnings never
// block a save.
func (r *Report) CanSave() bool { return r.errors == 0 }

// Summary is the compact form handed to the rendering layer.
type Summary struct {
	Errors   int     `json:"errors"`
	Warnings int     `json:"warnings"`
	CanSave  bool    `json:"can_save"`
	Issues   []Issue `json:"issues,omitempty"`
}

// Summary renders the report for transport.
func (r *Report) Summary() Summary {
	return Summary{
		Errors:   r.errors,
		Warnings: r.WarningCount(),
		CanSave:  r.CanSave(),
		Issues:   r.Issues(),
	}
}
