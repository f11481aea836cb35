package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/options"
)

// DelayType is what a group's delay is measured from.
type DelayType string

const (
	// DelayInline counts from the end of the previous group.
	DelayInline DelayType = "inline"
	// DelayStart counts from the start of the activity.
	DelayStart DelayType = "start"
)

// Delay is a number of seconds or a {variable} reference resolved at run
// time. It persists as a JSON number or string respectively.
type Delay struct {
	Seconds int
	Expr    string
}

// IsZero reports a delay of nothing.
func (d *Delay) IsZero() bool {
	return d == nil || (d.Seconds == 0 && d.Expr == "")
}

func (d Delay) String() string {
	if d.Expr != "" {
		return d.Expr
	}
	return FormatSeconds(d.Seconds)
}

func (d Delay) MarshalJSON() ([]byte, error) {
	if d.Expr != "" {
		return json.Marshal(d.Expr)
	}
	return json.Marshal(d.Seconds)
}

func (d *Delay) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*d = Delay{Seconds: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("delay: %w", err)
	}
	p, err := ParseDelay(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// ParseDelay reads a delay as typed: seconds, "m:ss", "h:mm:ss" or a
// {variable} reference. Blank is zero.
func ParseDelay(s string) (Delay, error) {
	s = strings.TrimSpace(s)
	if condition.IsVarRef(s) {
		return Delay{Expr: s}, nil
	}
	n, err := options.ParseSeconds(s)
	if err != nil {
		return Delay{}, fmt.Errorf("delay %q: expected seconds, h:mm:ss or {variable}", s)
	}
	return Delay{Seconds: n}, nil
}

// FormatSeconds renders seconds the way the editor shows them: plain seconds
// under a minute, otherwise m:ss or h:mm:ss.
func FormatSeconds(n int) string {
	switch {
	case n < 60:
		return strconv.Itoa(n)
	case n < 3600:
		return fmt.Sprintf("%d:%02d", n/60, n%60)
	default:
		return fmt.Sprintf("%d:%02d:%02d", n/3600, (n/60)%60, n%60)
	}
}
