package activity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Activity is the canonical action sequence for one group transition.
type Activity struct {
	ID     string  `json:"id"`
	Groups []Group `json:"groups"`
}

// Group is a run of actions started after Delay. The first group of an
// activity never has a delay.
type Group struct {
	Delay     *Delay
	DelayType DelayType
	Actions   []Action
}

// actionWire is the flat persisted shape of every action type.
type actionWire struct {
	Type       ActionType        `json:"type"`
	Index      int               `json:"index,omitempty"`
	Comment    string            `json:"comment,omitempty"`
	Device     int               `json:"device,omitempty"`
	DeviceName string            `json:"devicename,omitempty"`
	Service    string            `json:"service,omitempty"`
	Action     string            `json:"action,omitempty"`
	Parameters []Param           `json:"parameters,omitempty"`
	HouseMode  string            `json:"housemode,omitempty"`
	Scene      int               `json:"scene,omitempty"`
	SceneName  string            `json:"scenename,omitempty"`
	Lua        string            `json:"lua,omitempty"`
	EncodedLua int               `json:"encoded_lua,omitempty"`
	Activity   string            `json:"activity,omitempty"`
	StopAll    bool              `json:"stopall,omitempty"`
	Variable   string            `json:"variable,omitempty"`
	Value      string            `json:"value,omitempty"`
	Reeval     bool              `json:"reeval,omitempty"`
	Group      string            `json:"group,omitempty"`
	NotifyID   string            `json:"notifyid,omitempty"`
	Method     string            `json:"method,omitempty"`
	Users      string            `json:"users,omitempty"`
	Message    string            `json:"message,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    []string          `json:"headers,omitempty"`
	Data       string            `json:"data,omitempty"`
	Target     string            `json:"target,omitempty"`
}

func toWire(a Action) actionWire {
	w := actionWire{Type: a.Kind()}
	switch v := a.(type) {
	case *Comment:
		w.Comment = v.Comment
	case *Device:
		w.Device, w.DeviceName, w.Service, w.Action = v.Device, v.DeviceName, v.Service, v.Action
		w.Parameters = v.Parameters
	case *HouseMode:
		w.HouseMode = v.Mode
	case *RunScene:
		w.Scene, w.SceneName = v.Scene, v.SceneName
	case *RunLua:
		if v.Lua != "" {
			w.Lua = base64.StdEncoding.EncodeToString([]byte(v.Lua))
			w.EncodedLua = 1
		}
	case *RunGroup:
		w.Device, w.Activity, w.StopAll = v.Device, v.Activity, v.StopAll
	case *StopGroup:
		w.Device, w.Activity = v.Device, v.Activity
	case *SetVar:
		w.Variable, w.Value, w.Reeval = v.Variable, v.Value, v.Reeval
	case *ResetLatch:
		w.Device, w.Group = v.Device, v.Group
	case *Notify:
		w.NotifyID, w.Method, w.Users, w.Message, w.Extra = v.NotifyID, v.Method, v.Users, v.Message, v.Extra
	case *Request:
		w.Method, w.URL, w.Headers, w.Data, w.Target = v.Method, v.URL, v.Headers, v.Data, v.Target
	default:
		Unhandled(a)
	}
	return w
}

func fromWire(w actionWire) (Action, error) {
	switch w.Type {
	case TypeComment:
		return &Comment{Comment: w.Comment}, nil
	case TypeDevice:
		return &Device{Device: w.Device, DeviceName: w.DeviceName, Service: w.Service,
			Action: w.Action, Parameters: w.Parameters}, nil
	case TypeHouseMode:
		return &HouseMode{Mode: w.HouseMode}, nil
	case TypeRunScene:
		return &RunScene{Scene: w.Scene, SceneName: w.SceneName}, nil
	case TypeRunLua:
		lua := w.Lua
		if w.EncodedLua != 0 {
			b, err := base64.StdEncoding.DecodeString(w.Lua)
			if err != nil {
				return nil, fmt.Errorf("runlua: decode: %w", err)
			}
			lua = string(b)
		}
		return &RunLua{Lua: lua}, nil
	case TypeRunGroup:
		return &RunGroup{Device: w.Device, Activity: w.Activity, StopAll: w.StopAll}, nil
	case TypeStopGroup:
		return &StopGroup{Device: w.Device, Activity: w.Activity}, nil
	case TypeSetVar:
		return &SetVar{Variable: w.Variable, Value: w.Value, Reeval: w.Reeval}, nil
	case TypeResetLatch:
		return &ResetLatch{Device: w.Device, Group: w.Group}, nil
	case TypeNotify:
		return &Notify{NotifyID: w.NotifyID, Method: w.Method, Users: w.Users,
			Message: w.Message, Extra: w.Extra}, nil
	case TypeRequest:
		return &Request{Method: w.Method, URL: w.URL, Headers: w.Headers, Data: w.Data,
			Target: w.Target}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", w.Type)
	}
}

type groupWire struct {
	Delay     *Delay       `json:"delay,omitempty"`
	DelayType DelayType    `json:"delaytype,omitempty"`
	Actions   []actionWire `json:"actions"`
}

func (g Group) MarshalJSON() ([]byte, error) {
	gw := groupWire{Actions: make([]actionWire, 0, len(g.Actions))}
	if !g.Delay.IsZero() || g.DelayType != "" {
		gw.Delay, gw.DelayType = g.Delay, g.DelayType
	}
	for i, a := range g.Actions {
		w := toWire(a)
		w.Index = i + 1
		gw.Actions = append(gw.Actions, w)
	}
	return json.Marshal(gw)
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var gw groupWire
	if err := json.Unmarshal(data, &gw); err != nil {
		return err
	}
	out := Group{Delay: gw.Delay, DelayType: gw.DelayType}
	for i, w := range gw.Actions {
		a, err := fromWire(w)
		if err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}
		out.Actions = append(out.Actions, a)
	}
	*g = out
	return nil
}

// Row is one line of the editor's flat action list: either a delay or an
// action.
type Row struct {
	Type ActionType
	// Delay and DelayType are used by delay rows. Delay is the raw text.
	Delay     string
	DelayType DelayType
	Action    Action
}

// DelayRow returns a delay row.
func DelayRow(delay string, typ DelayType) Row {
	return Row{Type: TypeDelay, Delay: delay, DelayType: typ}
}

// ActionRow returns a row holding a.
func ActionRow(a Action) Row {
	return Row{Type: a.Kind(), Action: a}
}

type rowWire struct {
	actionWire
	Delay     string    `json:"delay,omitempty"`
	DelayType DelayType `json:"delaytype,omitempty"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	if r.Type == TypeDelay {
		return json.Marshal(rowWire{actionWire: actionWire{Type: TypeDelay}, Delay: r.Delay, DelayType: r.DelayType})
	}
	if r.Action == nil {
		return json.Marshal(rowWire{actionWire: actionWire{Type: r.Type}})
	}
	return json.Marshal(rowWire{actionWire: toWire(r.Action)})
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var rw rowWire
	if err := json.Unmarshal(data, &rw); err != nil {
		return err
	}
	if rw.Type == TypeDelay {
		*r = DelayRow(rw.Delay, rw.DelayType)
		return nil
	}
	a, err := fromWire(rw.actionWire)
	if err != nil {
		return err
	}
	*r = ActionRow(a)
	return nil
}
