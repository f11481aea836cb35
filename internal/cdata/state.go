package cdata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// State is the runtime evaluation state ("cstate") the engine publishes.
// The editor only displays it.
type State struct {
	Conditions map[string]ConditionState `json:"conditions"`
	Vars       map[string]VarState       `json:"vars"`
}

// ConditionState is the last evaluation of one condition.
type ConditionState struct {
	EvalState  bool  `json:"evalstate"`
	EvalStamp  int64 `json:"evalstamp"`
	LastValue  any   `json:"lastvalue,omitempty"`
	StateStamp int64 `json:"statestamp"`
	// PulseUntil and HoldUntil are pending output timers, 0 when idle.
	PulseUntil int64 `json:"pulseuntil,omitempty"`
	HoldUntil  int64 `json:"holduntil,omitempty"`
	Latched    bool  `json:"latched,omitempty"`
}

// VarState is the last computed value of a variable.
type VarState struct {
	LastValue any    `json:"lastvalue"`
	Err       string `json:"err,omitempty"`
}

// DecodeState parses cstate. An empty blob is an empty state.
func DecodeState(data []byte) (*State, error) {
	st := &State{
		Conditions: map[string]ConditionState{},
		Vars:       map[string]VarState{},
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("runtime state: %w", err)
	}
	return st, nil
}
