package editor

import (
	"sort"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/notify"
	"github.com/gyaneshwarpardhi/sensoredit/internal/validate"
)

// View is the editable configuration as handed to a rendering layer.
type View struct {
	Sensor        string                    `json:"sensor"`
	Version       int                       `json:"version"`
	Serial        int                       `json:"serial"`
	Timestamp     int64                     `json:"timestamp"`
	Modified      bool                      `json:"modified"`
	Saving        bool                      `json:"saving"`
	Conditions    condition.Wire            `json:"conditions"`
	Activities    map[string][]activity.Row `json:"activities"`
	Drafts        []string                  `json:"drafts,omitempty"`
	Variables     []cdata.Variable          `json:"variables"`
	Notifications []*notify.Entry           `json:"notifications"`
	Issues        []validate.Issue          `json:"issues"`
	Summary       validate.Summary          `json:"summary"`
}

// View renders the session's current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc
	v := View{
		Sensor:     s.id,
		Version:    d.Version,
		Serial:     d.Serial,
		Timestamp:  d.Timestamp,
		Modified:   s.modified(),
		Saving:     s.saving.Load(),
		Conditions: d.Conditions.ToWire(),
		Activities: make(map[string][]activity.Row, len(d.Activities)+len(s.drafts)),
		Issues:     s.report.Issues(),
		Summary:    s.report.Summary(),
	}
	for k := range d.Activities {
		v.Activities[k] = d.ActivityRows(k)
	}
	for k, rows := range s.drafts {
		v.Activities[k] = rows
		v.Drafts = append(v.Drafts, k)
	}
	sort.Strings(v.Drafts)
	for _, name := range d.VariableNames() {
		v.Variables = append(v.Variables, *d.Variables[name])
	}
	for _, id := range d.Notifications.IDs() {
		e := *d.Notifications.Get(id)
		v.Notifications = append(v.Notifications, &e)
	}
	return v
}
