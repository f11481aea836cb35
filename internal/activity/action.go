// Package activity models the action sequences a sensor runs when one of its
// groups goes true or false, and converts between the editor's flat list of
// rows and the canonical, delay-segmented form that is persisted.
package activity

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

// ActionType is the persisted action type tag.
type ActionType string

const (
	TypeComment    ActionType = "comment"
	TypeDelay      ActionType = "delay" // rows only; never persisted as an action
	TypeDevice     ActionType = "device"
	TypeHouseMode  ActionType = "housemode"
	TypeRunScene   ActionType = "runscene"
	TypeRunLua     ActionType = "runlua"
	TypeRunGroup   ActionType = "rungsa"
	TypeStopGroup  ActionType = "stopgsa"
	TypeSetVar     ActionType = "setvar"
	TypeResetLatch ActionType = "resetlatch"
	TypeNotify     ActionType = "notify"
	TypeRequest    ActionType = "request"
)

// ThisSensor is the device number actions use to mean "the sensor being
// edited".
const ThisSensor = -1

// Action is one step of an action group.
type Action interface {
	Kind() ActionType
	Check() []validate.Issue
	sealed()
}

// Param is one device action argument.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

type Comment struct {
	Comment string
}

// Device invokes a service action on a device.
type Device struct {
	Device     int
	DeviceName string
	Service    string
	Action     string
	Parameters []Param
}

// HouseMode changes the house mode to Mode ("1".."4").
type HouseMode struct {
	Mode string
}

type RunScene struct {
	Scene     int
	SceneName string
}

// RunLua runs Lua source on the host.
type RunLua struct {
	Lua string
}

// RunGroup starts the activity Activity (a key like "grp1.true") on sensor
// Device. StopAll stops other running activities first.
type RunGroup struct {
	Device   int
	Activity string
	StopAll  bool
}

// StopGroup stops Activity on Device, or all activities when Activity is "".
type StopGroup struct {
	Device   int
	Activity string
}

// SetVar assigns Value to the expression variable Variable.
type SetVar struct {
	Variable string
	Value    string
	Reeval   bool
}

// ResetLatch releases latched conditions of Group on Device ("" for all).
type ResetLatch struct {
	Device int
	Group  string
}

// Notify sends the message held in notification slot NotifyID. Message,
// Users and Extra mirror the registry entry so a row can be edited without a
// registry lookup.
type Notify struct {
	NotifyID string
	Method   string
	Users    string
	Message  string
	Extra    map[string]string
}

// Request makes an HTTP request, optionally storing the response body in
// the variable Target.
type Request struct {
	Method  string
	URL     string
	Headers []string
	Data    string
	Target  string
}

func (*Comment) Kind() ActionType    { return TypeComment }
func (*Device) Kind() ActionType     { return TypeDevice }
func (*HouseMode) Kind() ActionType  { return TypeHouseMode }
func (*RunScene) Kind() ActionType   { return TypeRunScene }
func (*RunLua) Kind() ActionType     { return TypeRunLua }
func (*RunGroup) Kind() ActionType   { return TypeRunGroup }
func (*StopGroup) Kind() ActionType  { return TypeStopGroup }
func (*SetVar) Kind() ActionType     { return TypeSetVar }
func (*ResetLatch) Kind() ActionType { return TypeResetLatch }
func (*Notify) Kind() ActionType     { return TypeNotify }
func (*Request) Kind() ActionType    { return TypeRequest }

func (*Comment) sealed()    {}
func (*Device) sealed()     {}
func (*HouseMode) sealed()  {}
func (*RunScene) sealed()   {}
func (*RunLua) sealed()     {}
func (*RunGroup) sealed()   {}
func (*StopGroup) sealed()  {}
func (*SetVar) sealed()     {}
func (*ResetLatch) sealed() {}
func (*Notify) sealed()     {}
func (*Request) sealed()    {}

// NewAction returns an empty action of type t.
func NewAction(t ActionType) (Action, error) {
	switch t {
	case TypeComment:
		return &Comment{}, nil
	case TypeDevice:
		return &Device{}, nil
	case TypeHouseMode:
		return &HouseMode{Mode: "1"}, nil
	case TypeRunScene:
		return &RunScene{}, nil
	case TypeRunLua:
		return &RunLua{}, nil
	case TypeRunGroup:
		return &RunGroup{Device: ThisSensor}, nil
	case TypeStopGroup:
		return &StopGroup{Device: ThisSensor}, nil
	case TypeSetVar:
		return &SetVar{}, nil
	case TypeResetLatch:
		return &ResetLatch{Device: ThisSensor}, nil
	case TypeNotify:
		return &Notify{}, nil
	case TypeRequest:
		return &Request{Method: "GET"}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
}

// Unhandled panics for an action the caller's switch does not cover.
func Unhandled(a Action) {
	panic(fmt.Sprintf("activity: unhandled action type %T", a))
}

func (c *Comment) Check() []validate.Issue {
	if strings.TrimSpace(c.Comment) == "" {
		return []validate.Issue{validate.Warnf("comment", "empty comment")}
	}
	return nil
}

func (d *Device) Check() []validate.Issue {
	var issues []validate.Issue
	if d.Device <= 0 {
		issues = append(issues, validate.Errorf("device", "select a device"))
	}
	if d.Service == "" || d.Action == "" {
		issues = append(issues, validate.Errorf("action", "select an action"))
	}
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			issues = append(issues, validate.Errorf("parameters", "parameter without a name"))
		} else if seen[p.Name] {
			issues = append(issues, validate.Errorf("parameters", "parameter %s given twice", p.Name))
		}
		seen[p.Name] = true
	}
	return issues
}

func (h *HouseMode) Check() []validate.Issue {
	n, err := strconv.Atoi(h.Mode)
	if err != nil || n < 1 || n > 4 {
		return []validate.Issue{validate.Errorf("housemode", "invalid house mode %q", h.Mode)}
	}
	return nil
}

func (r *RunScene) Check() []validate.Issue {
	if r.Scene <= 0 {
		return []validate.Issue{validate.Errorf("scene", "select a scene")}
	}
	return nil
}

func (r *RunLua) Check() []validate.Issue {
	if strings.TrimSpace(r.Lua) == "" {
		return []validate.Issue{validate.Warnf("lua", "no Lua code")}
	}
	return nil
}

func checkActivityRef(field, key string, required bool) []validate.Issue {
	if key == "" {
		if required {
			return []validate.Issue{validate.Errorf(field, "select an activity")}
		}
		return nil
	}
	if _, _, err := ParseKey(key); err != nil {
		return []validate.Issue{validate.Errorf(field, "%v", err)}
	}
	return nil
}

func (r *RunGroup) Check() []validate.Issue {
	var issues []validate.Issue
	if r.Device == 0 {
		issues = append(issues, validate.Errorf("device", "select a sensor"))
	}
	return append(issues, checkActivityRef("activity", r.Activity, true)...)
}

func (s *StopGroup) Check() []validate.Issue {
	var issues []validate.Issue
	if s.Device == 0 {
		issues = append(issues, validate.Errorf("device", "select a sensor"))
	}
	return append(issues, checkActivityRef("activity", s.Activity, false)...)
}

func (s *SetVar) Check() []validate.Issue {
	if s.Variable == "" {
		return []validate.Issue{validate.Errorf("variable", "select a variable")}
	}
	return nil
}

func (r *ResetLatch) Check() []validate.Issue {
	if r.Device == 0 {
		return []validate.Issue{validate.Errorf("device", "select a sensor")}
	}
	return nil
}

// Notification delivery methods.
const (
	MethodHost     = ""   // host-native; needs a backing scene
	MethodEmail    = "SM" // SMTP, Extra["recipient"]
	MethodPushover = "PO" // Extra["token"]
	MethodSyslog   = "SD" // Extra["host"]
	MethodURL      = "UU" // Extra["url"]
)

var methodExtra = map[string]string{
	MethodEmail:    "recipient",
	MethodPushover: "token",
	MethodSyslog:   "host",
	MethodURL:      "url",
}

func (n *Notify) Check() []validate.Issue {
	var issues []validate.Issue
	if strings.TrimSpace(n.Message) == "" {
		issues = append(issues, validate.Errorf("message", "a message is required"))
	}
	if n.Method == MethodHost {
		if strings.TrimSpace(n.Users) == "" {
			issues = append(issues, validate.Errorf("users", "select at least one user"))
		}
		return issues
	}
	key, ok := methodExtra[n.Method]
	if !ok {
		return append(issues, validate.Errorf("method", "unknown notification method %q", n.Method))
	}
	v := strings.TrimSpace(n.Extra[key])
	if v == "" {
		return append(issues, validate.Errorf(key, "%s is required", key))
	}
	if n.Method == MethodURL {
		if u, err := url.Parse(v); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			issues = append(issues, validate.Errorf(key, "not an http(s) URL"))
		}
	}
	return issues
}

func (r *Request) Check() []validate.Issue {
	var issues []validate.Issue
	switch r.Method {
	case "GET", "POST", "PUT":
	default:
		issues = append(issues, validate.Errorf("method", "unsupported method %q", r.Method))
	}
	u, err := url.Parse(strings.TrimSpace(r.URL))
	switch {
	case r.URL == "":
		issues = append(issues, validate.Errorf("url", "a URL is required"))
	case err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https"):
		issues = append(issues, validate.Errorf("url", "not an http(s) URL"))
	}
	for _, h := range r.Headers {
		if name, _, ok := strings.Cut(h, ":"); !ok || strings.TrimSpace(name) == "" {
			issues = append(issues, validate.Errorf("headers", "header %q is not Name: value", h))
			break
		}
	}
	if r.Data != "" && r.Method == "GET" {
		issues = append(issues, validate.Warnf("data", "request body is ignored for GET"))
	}
	return issues
}
