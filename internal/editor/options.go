package editor

import (
	"fmt"

	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/options"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
)

// OptionsEdit changes a condition's options. Nil sections are left alone;
// a section with its zero trigger value clears that feature.
type OptionsEdit struct {
	Sequence *SequenceEdit `json:"sequence,omitempty"`
	Duration *DurationEdit `json:"duration,omitempty"`
	Repeat   *RepeatEdit   `json:"repeat,omitempty"`
	Output   *OutputEdit   `json:"output,omitempty"`
}

// SequenceEdit with an empty After clears the sequence restriction.
type SequenceEdit struct {
	After           string `json:"after"`
	Within          int    `json:"within"`
	MustStillBeTrue bool   `json:"must_still_be_true"`
}

// DurationEdit with zero Seconds clears the duration restriction.
type DurationEdit struct {
	Op      string `json:"op"`
	Seconds int    `json:"seconds"`
	Max     int    `json:"max"`
}

// RepeatEdit with zero Count clears the repeat restriction.
type RepeatEdit struct {
	Count  int `json:"count"`
	Within int `json:"within"`
}

type OutputEdit struct {
	Mode       condition.OutputMode `json:"mode"`
	HoldTime   int                  `json:"holdtime"`
	PulseTime  int                  `json:"pulsetime"`
	Repeat     bool                 `json:"repeat"`
	PulseBreak int                  `json:"pulsebreak"`
	PulseCount int                  `json:"pulsecount"`
}

// SetOptions applies e to condition id. Sections are applied in order to a
// copy of the options; the condition only changes when every section is
// accepted.
func (s *Session) SetOptions(id string, e OptionsEdit) error {
	return s.edit("options", func(d *cdata.Document) error {
		cur := d.Conditions.Node(id)
		if cur == nil {
			return &tree.Error{Op: "options", ID: id, Err: tree.ErrNotFound}
		}
		n := &condition.Node{ID: cur.ID, Body: cur.Body}
		if cur.Options != nil {
			o := *cur.Options
			n.Options = &o
		}
		if err := applyOptions(d, n, e); err != nil {
			return err
		}
		cur.Options = n.Options
		return nil
	})
}

func applyOptions(d *cdata.Document, n *condition.Node, e OptionsEdit) error {
	if sq := e.Sequence; sq != nil {
		if sq.After == "" {
			options.ClearSequence(n)
		} else if err := options.SetSequence(d.Conditions, n, sq.After, sq.Within, sq.MustStillBeTrue); err != nil {
			return err
		}
	}
	if du := e.Duration; du != nil {
		if du.Seconds == 0 {
			options.ClearDuration(n)
		} else if err := options.SetDuration(n, du.Op, du.Seconds, du.Max); err != nil {
			return err
		}
	}
	if rp := e.Repeat; rp != nil {
		if rp.Count == 0 {
			options.ClearRepeat(n)
		} else if err := options.SetRepeat(n, rp.Count, rp.Within); err != nil {
			return err
		}
	}
	if out := e.Output; out != nil {
		var err error
		switch out.Mode {
		case "", condition.OutputFollow:
			err = options.SetFollow(n, out.HoldTime)
		case condition.OutputPulse:
			err = options.SetPulse(n, out.PulseTime, out.Repeat, out.PulseBreak, out.PulseCount)
		case condition.OutputLatch:
			err = options.SetLatch(n)
		default:
			err = fmt.Errorf("output mode %q: %w", out.Mode, options.ErrBadValue)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
