package condition

// OutputMode is how a condition's raw truth is shaped before it reaches its
// group.
type OutputMode string

const (
	OutputFollow OutputMode = "follow"
	OutputPulse  OutputMode = "pulse"
	OutputLatch  OutputMode = "latch"
)

// Duration comparison directions.
const (
	DurationAtLeast  = "ge"
	DurationLessThan = "lt"
)

// Options holds the restriction and output settings of a condition. The
// rules about which fields may be combined live in package options.
//
// Output and PulseRepeat are editor state; on load they are derived from the
// persisted fields.
type Options struct {
	// sequence
	After     string `json:"after,omitempty"`
	AfterTime int    `json:"aftertime,omitempty"`
	AfterMode int    `json:"aftermode,omitempty"`

	// duration
	Duration    int    `json:"duration,omitempty"`
	DurationOp  string `json:"duration_op,omitempty"`
	DurationMax int    `json:"duration_max,omitempty"`

	// repeat
	RepeatCount  int `json:"repeatcount,omitempty"`
	RepeatWithin int `json:"repeatwithin,omitempty"`

	// output
	HoldTime   int `json:"holdtime,omitempty"`
	PulseTime  int `json:"pulsetime,omitempty"`
	PulseBreak int `json:"pulsebreak,omitempty"`
	PulseCount int `json:"pulsecount,omitempty"`
	Latch      int `json:"latch,omitempty"`

	Output      OutputMode `json:"-"`
	PulseRepeat bool       `json:"-"`
}

// Empty reports whether no persisted field is set and the output mode is the
// default.
func (o *Options) Empty() bool {
	if o == nil {
		return true
	}
	c := *o
	c.Output, c.PulseRepeat = "", false
	return c == (Options{}) && (o.Output == "" || o.Output == OutputFollow)
}

// Derive sets the editor state fields from the persisted ones.
func (o *Options) Derive() {
	switch {
	case o.Latch != 0:
		o.Output = OutputLatch
	case o.PulseTime != 0:
		o.Output = OutputPulse
	default:
		o.Output = OutputFollow
	}
	o.PulseRepeat = o.Output == OutputPulse && o.PulseBreak > 0
}

// Mode returns the output mode, treating unset as follow.
func (o *Options) Mode() OutputMode {
	if o == nil || o.Output == "" {
		return OutputFollow
	}
	return o.Output
}
