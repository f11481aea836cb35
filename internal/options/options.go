// Package options decides which restriction and output options each
// condition type supports and applies the rules that keep an options object
// consistent: duration and repeat exclude each other, and output is exactly
// one of follow, pulse or latch.
package options

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
)

// Feature is one group of optional settings.
type Feature uint8

const (
	Sequence Feature = 1 << iota
	Duration
	Repeat
	Output
)

func (f Feature) String() string {
	switch f {
	case Sequence:
		return "sequence"
	case Duration:
		return "duration"
	case Repeat:
		return "repeat"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("feature(%d)", uint8(f))
	}
}

var table = map[condition.Type]Feature{
	condition.TypeGroup:      Sequence | Duration | Repeat | Output,
	condition.TypeService:    Sequence | Duration | Repeat | Output,
	condition.TypeVar:        Sequence | Duration | Repeat | Output,
	condition.TypeGroupState: Sequence | Duration | Repeat | Output,
	condition.TypeHouseMode:  Sequence | Duration | Repeat | Output,
	condition.TypeIsHome:     Sequence | Duration | Output,
	condition.TypeSun:        Sequence | Duration | Output,
	condition.TypeInterval:   Sequence | Duration | Output,
	condition.TypeReload:     Sequence | Output,
	condition.TypeWeekday:    Output,
	condition.TypeTimeRange:  Output,
	condition.TypeComment:    0,
}

// Supports reports whether conditions of type t may use f.
func Supports(t condition.Type, f Feature) bool {
	return table[t]&f != 0
}

// Supported lists the features of t in display order.
func Supported(t condition.Type) []Feature {
	var out []Feature
	for _, f := range []Feature{Sequence, Duration, Repeat, Output} {
		if Supports(t, f) {
			out = append(out, f)
		}
	}
	return out
}

var (
	ErrNotSupported = errors.New("option not supported for this condition type")
	ErrSelf         = errors.New("a condition cannot follow itself")
	ErrRelated      = errors.New("predecessor may not be an ancestor or descendant")
	ErrUnknown      = errors.New("predecessor does not exist")
	ErrComment      = errors.New("a comment cannot be a predecessor")
	ErrBadValue     = errors.New("invalid option value")
)

// Ancestry is the part of the tree index sequence checks need.
type Ancestry interface {
	Node(id string) *condition.Node
	Related(a, b string) bool
}

func require(n *condition.Node, f Feature) error {
	if !Supports(n.Type(), f) {
		return fmt.Errorf("%s on %s: %w", f, n.Type(), ErrNotSupported)
	}
	return nil
}

func opts(n *condition.Node) *condition.Options {
	if n.Options == nil {
		n.Options = &condition.Options{Output: condition.OutputFollow}
	}
	return n.Options
}

// CheckPredecessor reports why after cannot be n's sequence predecessor, or
// nil if it can.
func CheckPredecessor(tr Ancestry, n *condition.Node, after string) error {
	switch p := tr.Node(after); {
	case after == n.ID:
		return ErrSelf
	case p == nil:
		return fmt.Errorf("%s: %w", after, ErrUnknown)
	case p.Type() == condition.TypeComment:
		return ErrComment
	case tr.Related(after, n.ID):
		return fmt.Errorf("%s: %w", after, ErrRelated)
	}
	return nil
}

// SetSequence makes n require that after went true, within the last within
// seconds when within > 0. With mustStillBeTrue the predecessor has to still
// be true when n goes true.
func SetSequence(tr Ancestry, n *condition.Node, after string, within int, mustStillBeTrue bool) error {
	if err := require(n, Sequence); err != nil {
		return err
	}
	if err := CheckPredecessor(tr, n, after); err != nil {
		return fmt.Errorf("sequence %s after %s: %w", n.ID, after, err)
	}
	o := opts(n)
	o.After, o.AfterTime, o.AfterMode = after, within, 0
	if mustStillBeTrue {
		o.AfterMode = 1
	}
	Normalize(n)
	return nil
}

// ClearSequence removes the sequence restriction.
func ClearSequence(n *condition.Node) {
	if n.Options == nil {
		return
	}
	n.Options.After, n.Options.AfterTime, n.Options.AfterMode = "", 0, 0
	Normalize(n)
}

// SetDuration requires n to hold for at least (op "ge") or less than (op
// "lt") seconds. max, when positive, caps an at-least duration. Any repeat
// restriction is cleared.
func SetDuration(n *condition.Node, op string, seconds, max int) error {
	if err := require(n, Duration); err != nil {
		return err
	}
	if op == "" {
		op = condition.DurationAtLeast
	}
	if op != condition.DurationAtLeast && op != condition.DurationLessThan {
		return fmt.Errorf("duration operator %q: %w", op, ErrBadValue)
	}
	o := opts(n)
	o.Duration, o.DurationOp, o.DurationMax = seconds, op, max
	if op == condition.DurationLessThan {
		o.DurationMax = 0
	}
	o.RepeatCount, o.RepeatWithin = 0, 0
	Normalize(n)
	return nil
}

// ClearDuration removes the duration restriction.
func ClearDuration(n *condition.Node) {
	if n.Options == nil {
		return
	}
	n.Options.Duration, n.Options.DurationOp, n.Options.DurationMax = 0, "", 0
	Normalize(n)
}

// SetRepeat requires n to go true count times within seconds. Any duration
// restriction is cleared.
func SetRepeat(n *condition.Node, count, within int) error {
	if err := require(n, Repeat); err != nil {
		return err
	}
	o := opts(n)
	o.RepeatCount, o.RepeatWithin = count, within
	o.Duration, o.DurationOp, o.DurationMax = 0, "", 0
	Normalize(n)
	return nil
}

// ClearRepeat removes the repeat restriction.
func ClearRepeat(n *condition.Node) {
	if n.Options == nil {
		return
	}
	n.Options.RepeatCount, n.Options.RepeatWithin = 0, 0
	Normalize(n)
}

func clearPulse(o *condition.Options) {
	o.PulseTime, o.PulseBreak, o.PulseCount, o.PulseRepeat = 0, 0, 0, false
}

// SetFollow makes n's output follow its state, delaying the reset by
// holdtime seconds. Pulse and latch settings are cleared.
func SetFollow(n *condition.Node, holdtime int) error {
	if err := require(n, Output); err != nil {
		return err
	}
	o := opts(n)
	clearPulse(o)
	o.Latch = 0
	o.HoldTime = holdtime
	o.Output = condition.OutputFollow
	Normalize(n)
	return nil
}

// SetPulse makes n's output a pulse of seconds length. With repeat the pulse
// repeats after brk seconds, count times (0 for as long as n is true).
// Latch and hold settings are cleared.
func SetPulse(n *condition.Node, seconds int, repeat bool, brk, count int) error {
	if err := require(n, Output); err != nil {
		return err
	}
	o := opts(n)
	o.Latch, o.HoldTime = 0, 0
	o.Output = condition.OutputPulse
	o.PulseTime, o.PulseRepeat = seconds, repeat
	o.PulseBreak, o.PulseCount = 0, 0
	if repeat {
		o.PulseBreak, o.PulseCount = brk, count
	}
	return nil
}

// SetLatch makes n's output stay true until reset. Pulse and hold settings
// are cleared.
func SetLatch(n *condition.Node) error {
	if err := require(n, Output); err != nil {
		return err
	}
	o := opts(n)
	clearPulse(o)
	o.HoldTime = 0
	o.Latch = 1
	o.Output = condition.OutputLatch
	return nil
}

// Prune drops the settings of features n's type no longer supports, e.g.
// after a type change.
func Prune(n *condition.Node) {
	o := n.Options
	if o == nil {
		return
	}
	t := n.Type()
	if !Supports(t, Sequence) {
		o.After, o.AfterTime, o.AfterMode = "", 0, 0
	}
	if !Supports(t, Duration) {
		o.Duration, o.DurationOp, o.DurationMax = 0, "", 0
	}
	if !Supports(t, Repeat) {
		o.RepeatCount, o.RepeatWithin = 0, 0
	}
	if !Supports(t, Output) {
		clearPulse(o)
		o.Latch, o.HoldTime = 0, 0
		o.Output = condition.OutputFollow
	}
	Normalize(n)
}

// Normalize drops an options object with nothing set, so an untouched
// condition serializes without "options".
func Normalize(n *condition.Node) {
	if n.Options.Empty() {
		n.Options = nil
	}
}

// ParseSeconds reads a seconds field as typed by a user: blank is zero, and
// "m:ss" or "h:mm:ss" are accepted besides a plain count.
func ParseSeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%q: %w", s, ErrBadValue)
	}
	total := 0
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || (i > 0 && v > 59) {
			return 0, fmt.Errorf("%q: %w", s, ErrBadValue)
		}
		total = total*60 + v
	}
	return total, nil
}
