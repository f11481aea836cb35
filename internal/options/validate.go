package options

import (
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

// Validate flags option values that break the numeric minimums or the
// exclusion rules. Fields are named "options.<field>". Values are never
// corrected here.
func Validate(n *condition.Node) []validate.Issue {
	o := n.Options
	if o == nil {
		return nil
	}
	var issues []validate.Issue
	t := n.Type()
	unsupported := func(f Feature, field string) {
		issues = append(issues, validate.Errorf("options."+field, "%s is not available for %s conditions", f, t))
	}

	if o.After != "" || o.AfterTime != 0 || o.AfterMode != 0 {
		switch {
		case !Supports(t, Sequence):
			unsupported(Sequence, "after")
		case o.After == "":
			issues = append(issues, validate.Errorf("options.after", "select the preceding condition"))
		case o.AfterTime < 0:
			issues = append(issues, validate.Errorf("options.aftertime", "must be zero or more seconds"))
		}
	}

	if o.Duration != 0 || o.DurationOp != "" || o.DurationMax != 0 {
		switch {
		case !Supports(t, Duration):
			unsupported(Duration, "duration")
		case o.Duration <= 0:
			issues = append(issues, validate.Errorf("options.duration", "must be more than zero seconds"))
		case o.DurationOp != condition.DurationAtLeast && o.DurationOp != condition.DurationLessThan:
			issues = append(issues, validate.Errorf("options.duration_op", "unknown comparison %q", o.DurationOp))
		case o.DurationMax != 0 && o.DurationOp == condition.DurationLessThan:
			issues = append(issues, validate.Errorf("options.duration_max", "a maximum only applies to at-least durations"))
		case o.DurationMax != 0 && o.DurationMax <= o.Duration:
			issues = append(issues, validate.Errorf("options.duration_max", "must be greater than the minimum"))
		}
	}

	if o.RepeatCount != 0 || o.RepeatWithin != 0 {
		switch {
		case !Supports(t, Repeat):
			unsupported(Repeat, "repeatcount")
		default:
			if o.RepeatCount < 2 {
				issues = append(issues, validate.Errorf("options.repeatcount", "must be 2 or more"))
			}
			if o.RepeatWithin <= 0 {
				issues = append(issues, validate.Errorf("options.repeatwithin", "must be more than zero seconds"))
			}
		}
		if o.Duration != 0 {
			issues = append(issues, validate.Errorf("options.repeatcount", "repeat and duration cannot be combined"))
		}
	}

	mode := o.Mode()
	if !Supports(t, Output) {
		switch {
		case mode != condition.OutputFollow:
			unsupported(Output, "output")
		case o.HoldTime != 0:
			unsupported(Output, "holdtime")
		}
		return issues
	}
	switch mode {
	case condition.OutputFollow:
		if o.HoldTime < 0 {
			issues = append(issues, validate.Errorf("options.holdtime", "must be zero or more seconds"))
		}
		if o.PulseTime != 0 || o.Latch != 0 {
			issues = append(issues, validate.Errorf("options.output", "follow mode carries pulse or latch settings"))
		}
	case condition.OutputPulse:
		if o.PulseTime <= 0 {
			issues = append(issues, validate.Errorf("options.pulsetime", "must be more than zero seconds"))
		}
		if o.PulseRepeat && o.PulseBreak <= 0 {
			issues = append(issues, validate.Errorf("options.pulsebreak", "repeating pulses need a break of at least one second"))
		}
		if o.PulseCount < 0 {
			issues = append(issues, validate.Errorf("options.pulsecount", "must be zero (unlimited) or more"))
		}
		if o.Latch != 0 || o.HoldTime != 0 {
			issues = append(issues, validate.Errorf("options.output", "pulse mode carries latch or hold settings"))
		}
	case condition.OutputLatch:
		if o.PulseTime != 0 || o.HoldTime != 0 {
			issues = append(issues, validate.Errorf("options.output", "latch mode carries pulse or hold settings"))
		}
	default:
		issues = append(issues, validate.Errorf("options.output", "unknown output mode %q", mode))
	}
	return issues
}

// ValidateSequence checks n's predecessor against the tree. A predecessor
// that was valid when chosen can become illegal after a move.
func ValidateSequence(tr Ancestry, n *condition.Node) []validate.Issue {
	if n.Options == nil || n.Options.After == "" {
		return nil
	}
	if err := CheckPredecessor(tr, n, n.Options.After); err != nil {
		return []validate.Issue{validate.Errorf("options.after", "%v", err)}
	}
	return nil
}
