package condition

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

var (
	varRefRe  = regexp.MustCompile(`^\{[^{}]+\}$`)
	sunSpecRe = regexp.MustCompile(`^([a-z]+)([+-]\d+)?$`)
	hhmmRe    = regexp.MustCompile(`^(\d{1,2}),(\d{1,2})$`)
)

// IsVarRef reports whether s is a {variable} reference.
func IsVarRef(s string) bool {
	return varRefRe.MatchString(strings.TrimSpace(s))
}

func numericOrRef(s string) bool {
	s = strings.TrimSpace(s)
	if IsVarRef(s) {
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// SplitList splits a comma list, trimming each element.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func checkValueOp(op, value string) []validate.Issue {
	info, ok := LookupValueOp(op)
	if !ok {
		return []validate.Issue{validate.Errorf("operator", "unknown operator %q", op)}
	}
	var issues []validate.Issue
	switch info.Args {
	case 0:
		if strings.TrimSpace(value) != "" {
			issues = append(issues, validate.Warnf("value", "operator %q ignores the value", op))
		}
	case 1:
		switch {
		case strings.TrimSpace(value) == "" && info.Numeric:
			issues = append(issues, validate.Errorf("value", "a numeric value is required"))
		case strings.TrimSpace(value) == "":
			issues = append(issues, validate.Warnf("value", "comparing against an empty string"))
		case info.Numeric && !numericOrRef(value):
			issues = append(issues, validate.Errorf("value", "%q is not a number", value))
		}
	case 2:
		parts := SplitList(value)
		if len(parts) < 2 {
			parts = append(parts, make([]string, 2-len(parts))...)
		}
		for i, p := range parts[:2] {
			field := "value" + strconv.Itoa(i+1)
			if p == "" {
				if !info.Optional {
					issues = append(issues, validate.Errorf(field, "value is required"))
				}
				continue
			}
			if info.Numeric && !numericOrRef(p) {
				issues = append(issues, validate.Errorf(field, "%q is not a number", p))
			}
		}
	}
	return issues
}

func (g *Group) Check() []validate.Issue {
	var issues []validate.Issue
	if !g.Operator.Valid() {
		issues = append(issues, validate.Errorf("operator", "unknown group operator %q", g.Operator))
	}
	if strings.TrimSpace(g.Name) == "" {
		issues = append(issues, validate.Warnf("name", "group has no name"))
	}
	return issues
}

func (s *Service) Check() []validate.Issue {
	var issues []validate.Issue
	if s.Device <= 0 {
		issues = append(issues, validate.Errorf("device", "select a device"))
	}
	if s.Service == "" {
		issues = append(issues, validate.Errorf("service", "select a service"))
	}
	if s.Variable == "" {
		issues = append(issues, validate.Errorf("variable", "select a state variable"))
	}
	return append(issues, checkValueOp(s.Operator, s.Value)...)
}

func (v *Var) Check() []validate.Issue {
	var issues []validate.Issue
	if strings.TrimSpace(v.Var) == "" {
		issues = append(issues, validate.Errorf("var", "select a variable"))
	}
	return append(issues, checkValueOp(v.Operator, v.Value)...)
}

func (g *GroupState) Check() []validate.Issue {
	var issues []validate.Issue
	if g.Device == 0 {
		issues = append(issues, validate.Errorf("device", "select a sensor"))
	}
	if g.GroupID == "" {
		issues = append(issues, validate.Errorf("groupid", "select a group"))
	}
	if !oneOf(g.Operator, groupStateOps) {
		issues = append(issues, validate.Errorf("operator", "unknown operator %q", g.Operator))
	}
	return issues
}

func validMode(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= 4
}

func (h *HouseMode) Check() []validate.Issue {
	switch h.Operator {
	case "is":
		if strings.TrimSpace(h.Value) == "" {
			return []validate.Issue{validate.Errorf("value", "select at least one house mode")}
		}
		for _, m := range SplitList(h.Value) {
			if !validMode(m) {
				return []validate.Issue{validate.Errorf("value", "invalid house mode %q", m)}
			}
		}
	case "change":
		parts := SplitList(h.Value)
		if len(parts) > 2 {
			return []validate.Issue{validate.Errorf("value", "expected from,to")}
		}
		for _, m := range parts {
			if m != "" && !validMode(m) {
				return []validate.Issue{validate.Errorf("value", "invalid house mode %q", m)}
			}
		}
	default:
		return []validate.Issue{validate.Errorf("operator", "unknown operator %q", h.Operator)}
	}
	return nil
}

func (w *Weekday) Check() []validate.Issue {
	var issues []validate.Issue
	if !oneOf(w.Operator, weekdayOps) {
		issues = append(issues, validate.Errorf("operator", "unknown occurrence %q", w.Operator))
	}
	if strings.TrimSpace(w.Value) == "" {
		return append(issues, validate.Errorf("value", "select at least one day"))
	}
	for _, d := range SplitList(w.Value) {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 7 {
			issues = append(issues, validate.Errorf("value", "invalid day %q", d))
			break
		}
	}
	return issues
}

func checkSunSpec(field, spec string) []validate.Issue {
	m := sunSpecRe.FindStringSubmatch(spec)
	if m == nil || !oneOf(m[1], sunEvents) {
		return []validate.Issue{validate.Errorf(field, "invalid solar time %q", spec)}
	}
	return nil
}

func (s *Sun) Check() []validate.Issue {
	if !oneOf(s.Operator, windowOps) {
		return []validate.Issue{validate.Errorf("operator", "unknown operator %q", s.Operator)}
	}
	parts := SplitList(s.Value)
	issues := checkSunSpec("start", parts[0])
	if s.Operator == "bet" || s.Operator == "nob" {
		if len(parts) < 2 {
			return append(issues, validate.Errorf("end", "end time is required"))
		}
		issues = append(issues, checkSunSpec("end", parts[1])...)
	}
	return issues
}

func checkRangeField(field, v string, lo, hi int, required bool) []validate.Issue {
	if v == "" {
		if required {
			return []validate.Issue{validate.Errorf(field, "%s is required", field)}
		}
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return []validate.Issue{validate.Errorf(field, "%q is out of range %d-%d", v, lo, hi)}
	}
	return nil
}

func checkTimeRangeHalf(prefix string, f []string) []validate.Issue {
	var issues []validate.Issue
	issues = append(issues, checkRangeField(prefix+"year", f[0], 1900, 2199, false)...)
	issues = append(issues, checkRangeField(prefix+"month", f[1], 1, 12, false)...)
	issues = append(issues, checkRangeField(prefix+"day", f[2], 1, 31, false)...)
	issues = append(issues, checkRangeField(prefix+"hour", f[3], 0, 23, true)...)
	issues = append(issues, checkRangeField(prefix+"minute", f[4], 0, 59, true)...)
	if f[0] != "" && (f[1] == "" || f[2] == "") {
		issues = append(issues, validate.Errorf(prefix+"year", "a year needs a month and day"))
	} else if f[1] != "" && f[2] == "" {
		issues = append(issues, validate.Errorf(prefix+"month", "a month needs a day"))
	}
	return issues
}

func (t *TimeRange) Check() []validate.Issue {
	if !oneOf(t.Operator, windowOps) {
		return []validate.Issue{validate.Errorf("operator", "unknown operator %q", t.Operator)}
	}
	f := SplitList(t.Value)
	if len(f) != 10 {
		return []validate.Issue{validate.Errorf("value", "expected 10 date/time fields, got %d", len(f))}
	}
	issues := checkTimeRangeHalf("start", f[:5])
	if t.Operator == "bet" || t.Operator == "nob" {
		issues = append(issues, checkTimeRangeHalf("end", f[5:])...)
		if (f[0] == "") != (f[5] == "") || (f[1] == "") != (f[6] == "") {
			issues = append(issues, validate.Errorf("end", "start and end must use the same date fields"))
		}
	}
	return issues
}

func (iv *Interval) Check() []validate.Issue {
	var issues []validate.Issue
	if iv.Days < 0 || iv.Hours < 0 || iv.Mins < 0 {
		issues = append(issues, validate.Errorf("interval", "interval parts may not be negative"))
	} else if iv.Days+iv.Hours+iv.Mins == 0 {
		issues = append(issues, validate.Errorf("interval", "interval must be at least one minute"))
	}
	if iv.Hours > 23 {
		issues = append(issues, validate.Warnf("hours", "more than 23 hours; consider using days"))
	}
	if iv.Mins > 59 {
		issues = append(issues, validate.Warnf("mins", "more than 59 minutes; consider using hours"))
	}
	if iv.BaseTime != "" {
		m := hhmmRe.FindStringSubmatch(iv.BaseTime)
		if m == nil {
			issues = append(issues, validate.Errorf("basetime", "expected hh,mm"))
		} else {
			h, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			if h > 23 || mm > 59 {
				issues = append(issues, validate.Errorf("basetime", "invalid base time %q", iv.BaseTime))
			}
		}
	}
	switch iv.RelTo {
	case "":
	case RelToCondition:
		if iv.RelCond == "" {
			issues = append(issues, validate.Errorf("relcond", "select the condition the interval is relative to"))
		}
	default:
		issues = append(issues, validate.Errorf("relto", "unknown relative-to %q", iv.RelTo))
	}
	return issues
}

func (h *IsHome) Check() []validate.Issue {
	var issues []validate.Issue
	if !oneOf(h.Operator, isHomeOps) {
		issues = append(issues, validate.Errorf("operator", "unknown operator %q", h.Operator))
	}
	if strings.TrimSpace(h.Value) == "" {
		return append(issues, validate.Errorf("value", "select at least one user"))
	}
	if h.Operator == "at" || h.Operator == "notat" {
		for _, p := range SplitList(h.Value) {
			if user, loc, ok := strings.Cut(p, ":"); !ok || user == "" || loc == "" {
				issues = append(issues, validate.Errorf("value", "expected user:location, got %q", p))
				break
			}
		}
	}
	return issues
}

func (*Reload) Check() []validate.Issue { return nil }

func (c *Comment) Check() []validate.Issue {
	if strings.TrimSpace(c.Comment) == "" {
		return []validate.Issue{validate.Warnf("comment", "empty comment")}
	}
	return nil
}
