package cdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	ErrBadVariableName = errors.New("variable names start with a letter and contain only letters, digits and _")
	ErrNoVariable      = errors.New("no such variable")
)

var varNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidVariableName reports whether name is a legal variable identifier.
func ValidVariableName(name string) bool {
	return varNameRe.MatchString(name)
}

// Variable is a named expression evaluated by the engine.
type Variable struct {
	Name       string
	Expression string
	Index      int
	// Export publishes the value as a device state variable.
	Export bool
}

type variableWire struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Index      int    `json:"index"`
	Export     *int   `json:"export,omitempty"`
}

func (v Variable) MarshalJSON() ([]byte, error) {
	exp := 0
	if v.Export {
		exp = 1
	}
	return json.Marshal(variableWire{Name: v.Name, Expression: v.Expression, Index: v.Index, Export: &exp})
}

func (v *Variable) UnmarshalJSON(data []byte) error {
	var w variableWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Variable{Name: w.Name, Expression: w.Expression, Index: w.Index, Export: w.Export == nil || *w.Export != 0}
	return nil
}

// VariableNames returns variable names in evaluation order.
func (d *Document) VariableNames() []string {
	names := make([]string, 0, len(d.Variables))
	for n := range d.Variables {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := d.Variables[names[i]], d.Variables[names[j]]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return names[i] < names[j]
	})
	return names
}

func (d *Document) reindexVariables() {
	for i, n := range d.VariableNames() {
		d.Variables[n].Index = i
	}
}

// SetVariable creates or updates a variable. New variables are appended to
// the evaluation order and exported.
func (d *Document) SetVariable(name, expression string) (*Variable, error) {
	if !ValidVariableName(name) {
		return nil, fmt.Errorf("%q: %w", name, ErrBadVariableName)
	}
	v, ok := d.Variables[name]
	if !ok {
		next := 0
		for _, o := range d.Variables {
			if o.Index >= next {
				next = o.Index + 1
			}
		}
		v = &Variable{Name: name, Index: next, Export: true}
		d.Variables[name] = v
	}
	v.Expression = expression
	return v, nil
}

// SetExport sets whether a variable is published.
func (d *Document) SetExport(name string, export bool) error {
	v, ok := d.Variables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNoVariable)
	}
	v.Export = export
	return nil
}

// DeleteVariable removes a variable and closes the gap in the order.
func (d *Document) DeleteVariable(name string) error {
	if _, ok := d.Variables[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrNoVariable)
	}
	delete(d.Variables, name)
	d.reindexVariables()
	return nil
}

// MoveVariable places a variable at position in the evaluation order.
func (d *Document) MoveVariable(name string, position int) error {
	if _, ok := d.Variables[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrNoVariable)
	}
	names := d.VariableNames()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	if position < 0 || position > len(out) {
		position = len(out)
	}
	out = append(out[:position], append([]string{name}, out[position:]...)...)
	for i, n := range out {
		d.Variables[n].Index = i
	}
	return nil
}
