package cdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/notify"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
)

// Load failures. All are fatal for an editing session.
var (
	ErrCorrupt            = errors.New("configuration is corrupt")
	ErrUnsupportedVersion = errors.New("configuration was written by a newer version")
	ErrEmptyDocument      = errors.New("configuration is empty")
)

// InternalPrefix marks keys that hold editor bookkeeping and are never
// persisted.
const InternalPrefix = "__"

var knownKeys = map[string]bool{
	"version": true, "serial": true, "timestamp": true, "conditions": true,
	"activities": true, "variables": true, "notifications": true,
}

type docWire struct {
	Version       int                           `json:"version"`
	Serial        int                           `json:"serial"`
	Timestamp     int64                         `json:"timestamp"`
	Conditions    conditionsWire                `json:"conditions"`
	Activities    map[string]*activity.Activity `json:"activities"`
	Variables     map[string]*Variable          `json:"variables"`
	Notifications *notify.Registry              `json:"notifications"`
}

type conditionsWire struct {
	Root *condition.Wire `json:"root"`
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// Decode parses a persisted document. A zero-length blob is a sensor that
// was never configured and yields New(). Nothing is returned on error.
func Decode(data []byte, opts ...tree.Option) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(opts...), nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, corrupt(err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyDocument
	}
	var version int
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return nil, corrupt(fmt.Errorf("version: %w", err))
		}
	}
	if version > Version {
		return nil, fmt.Errorf("%w: document version %d, editor supports up to %d",
			ErrUnsupportedVersion, version, Version)
	}

	var w docWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, corrupt(err)
	}
	if w.Conditions.Root == nil {
		return nil, fmt.Errorf("%w: no condition tree", ErrEmptyDocument)
	}
	t, err := tree.FromWire(*w.Conditions.Root, opts...)
	if err != nil {
		return nil, corrupt(err)
	}

	d := &Document{
		Version:       version,
		Serial:        w.Serial,
		Timestamp:     w.Timestamp,
		Conditions:    t,
		Activities:    make(map[string]*activity.Activity, len(w.Activities)),
		Variables:     make(map[string]*Variable, len(w.Variables)),
		Notifications: w.Notifications,
	}
	if d.Notifications == nil {
		d.Notifications = notify.New()
	}
	for k, act := range w.Activities {
		if _, _, err := activity.ParseKey(k); err != nil {
			return nil, corrupt(err)
		}
		if activity.IsEmpty(act) {
			continue
		}
		act.ID = k
		d.Activities[k] = act
	}
	for name, v := range w.Variables {
		if v == nil {
			continue
		}
		v.Name = name
		d.Variables[name] = v
	}
	for k, v := range raw {
		if !knownKeys[k] && !strings.HasPrefix(k, InternalPrefix) {
			if d.extra == nil {
				d.extra = make(map[string]json.RawMessage)
			}
			d.extra[k] = v
		}
	}
	return d, nil
}

// Encode renders the document for persistence: empty activities are left
// out, keys with the internal prefix and null values are stripped, and
// object keys come out sorted so equal documents encode identically.
func Encode(d *Document) ([]byte, error) {
	root := d.Conditions.ToWire()
	w := docWire{
		Version:       d.Version,
		Serial:        d.Serial,
		Timestamp:     d.Timestamp,
		Conditions:    conditionsWire{Root: &root},
		Activities:    make(map[string]*activity.Activity, len(d.Activities)),
		Variables:     d.Variables,
		Notifications: d.Notifications,
	}
	for k, act := range d.Activities {
		if !activity.IsEmpty(act) {
			w.Activities[k] = act
		}
	}
	if w.Variables == nil {
		w.Variables = map[string]*Variable{}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}
	if len(d.extra) == 0 {
		return Strip(data)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}
	for k, v := range d.extra {
		m[k] = v
	}
	if data, err = json.Marshal(m); err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}
	return Strip(data)
}

// Strip removes internal-prefixed keys and null values at every level of a
// JSON document and re-encodes it with sorted keys.
func Strip(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("strip: %w", err)
	}
	return json.Marshal(strip(v))
}

func strip(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			if val == nil || strings.HasPrefix(k, InternalPrefix) {
				delete(x, k)
				continue
			}
			x[k] = strip(val)
		}
		return x
	case []any:
		out := x[:0]
		for _, val := range x {
			if val != nil {
				out = append(out, strip(val))
			}
		}
		return out
	default:
		return v
	}
}

// Stamp marks the document as saved at now: the serial advances and the
// timestamp moves to now. The version is raised to the editor's.
func (d *Document) Stamp(now time.Time) {
	d.Version = Version
	d.Serial++
	d.Timestamp = now.Unix()
}
