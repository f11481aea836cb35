package condition

import (
	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

// Body carries the fields specific to one condition type.
type Body interface {
	Kind() Type
	// Check validates the body's own fields. Cross-node references are
	// checked by the configuration, which can see the whole tree.
	Check() []validate.Issue
	sealed()
}

// GroupOp is the boolean operator a group applies to its children.
type GroupOp string

const (
	OpAnd GroupOp = "and"
	OpOr  GroupOp = "or"
	OpXor GroupOp = "xor"
	// OpNul groups do not contribute to their parent's state and may not
	// carry activities.
	OpNul GroupOp = "nul"
)

// Valid reports whether op is a known group operator.
func (op GroupOp) Valid() bool {
	switch op {
	case OpAnd, OpOr, OpXor, OpNul:
		return true
	}
	return false
}

// Group combines its children. Children holds child ids in declared order.
type Group struct {
	Name     string
	Operator GroupOp
	Invert   bool
	Disabled bool
	Children []string
}

// Service compares a device state variable.
type Service struct {
	Device     int
	DeviceName string
	Service    string
	Variable   string
	Operator   string
	Value      string
	NoCase     bool
}

// Var compares the value of an expression variable.
type Var struct {
	Var      string
	Operator string
	Value    string
	NoCase   bool
}

// GroupState follows the state of a group, possibly on another sensor.
// Device -1 means this sensor.
type GroupState struct {
	Device   int
	GroupID  string
	Operator string
}

// HouseMode matches the house mode. Value is a comma list of modes 1-4 for
// "is", or "from,to" for "change".
type HouseMode struct {
	Operator string
	Value    string
}

// Weekday matches days of week (1 = Sunday). Operator selects the
// occurrence within the month: "" for every week, "1".."5" or "last".
type Weekday struct {
	Operator string
	Value    string
}

// Sun matches a window relative to solar events, e.g. "sunrise-30,sunset+0".
type Sun struct {
	Operator string
	Value    string
}

// TimeRange matches a date/time window. Value is ten comma-separated fields:
// year,month,day,hour,minute for the start and again for the end.
type TimeRange struct {
	Operator string
	Value    string
}

// Interval pulses true at a fixed period, optionally aligned to a base time
// or restarted when another condition goes true.
type Interval struct {
	Days     int
	Hours    int
	Mins     int
	BaseTime string
	RelTo    string
	RelCond  string
}

// RelToCondition is the Interval.RelTo value anchoring the interval to
// RelCond going true.
const RelToCondition = "condtrue"

// IsHome matches geofence presence of users. Value is a comma list of user
// ids, or "user:location" pairs for "at"/"notat".
type IsHome struct {
	Operator string
	Value    string
}

// Reload is true once after the host restarts.
type Reload struct{}

// Comment is free text and never evaluates.
type Comment struct {
	Comment string
}

func (*Group) Kind() Type      { return TypeGroup }
func (*Service) Kind() Type    { return TypeService }
func (*Var) Kind() Type        { return TypeVar }
func (*GroupState) Kind() Type { return TypeGroupState }
func (*HouseMode) Kind() Type  { return TypeHouseMode }
func (*Weekday) Kind() Type    { return TypeWeekday }
func (*Sun) Kind() Type        { return TypeSun }
func (*TimeRange) Kind() Type  { return TypeTimeRange }
func (*Interval) Kind() Type   { return TypeInterval }
func (*IsHome) Kind() Type     { return TypeIsHome }
func (*Reload) Kind() Type     { return TypeReload }
func (*Comment) Kind() Type    { return TypeComment }

func (*Group) sealed()      {}
func (*Service) sealed()    {}
func (*Var) sealed()        {}
func (*GroupState) sealed() {}
func (*HouseMode) sealed()  {}
func (*Weekday) sealed()    {}
func (*Sun) sealed()        {}
func (*TimeRange) sealed()  {}
func (*Interval) sealed()   {}
func (*IsHome) sealed()     {}
func (*Reload) sealed()     {}
func (*Comment) sealed()    {}
