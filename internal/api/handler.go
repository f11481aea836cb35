package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/condition"
	"github.com/gyaneshwarpardhi/sensoredit/internal/editor"
	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	mgr     *editor.Manager
	catalog host.DeviceCatalog
	mux     *http.ServeMux
}

// New creates an HTTP handler and registers all routes. catalog may be nil.
func New(mgr *editor.Manager, catalog host.DeviceCatalog) http.Handler {
	h := &Handler{mgr: mgr, catalog: catalog, mux: http.NewServeMux()}

	const s = "/v1/sensors/{id}"
	h.mux.HandleFunc("GET "+s, h.getSensor)
	h.mux.HandleFunc("POST "+s+"/conditions", h.insertCondition)
	h.mux.HandleFunc("PATCH "+s+"/conditions/{cid}", h.updateCondition)
	h.mux.HandleFunc("DELETE "+s+"/conditions/{cid}", h.deleteCondition)
	h.mux.HandleFunc("POST "+s+"/conditions/{cid}/move", h.moveCondition)
	h.mux.HandleFunc("GET "+s+"/conditions/{cid}/candidates", h.sequenceCandidates)
	h.mux.HandleFunc("PUT "+s+"/options/{cid}", h.setOptions)
	h.mux.HandleFunc("GET "+s+"/activities/{key}", h.getActivity)
	h.mux.HandleFunc("PUT "+s+"/activities/{key}", h.setActivity)
	h.mux.HandleFunc("DELETE "+s+"/activities/{key}/draft", h.discardDraft)
	h.mux.HandleFunc("PUT "+s+"/variables/{name}", h.setVariable)
	h.mux.HandleFunc("DELETE "+s+"/variables/{name}", h.deleteVariable)
	h.mux.HandleFunc("POST "+s+"/variables/{name}/move", h.moveVariable)
	h.mux.HandleFunc("POST "+s+"/save", h.save)
	h.mux.HandleFunc("POST "+s+"/revert", h.revert)
	h.mux.HandleFunc("GET "+s+"/state", h.runtimeState)
	h.mux.HandleFunc("POST "+s+"/actions/test", h.testAction)
	h.mux.HandleFunc("GET /v1/devices", h.listDevices)
	h.mux.HandleFunc("POST /v1/host/restart", h.restart)
	h.mux.HandleFunc("POST /v1/save-all", h.saveAll)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	s, err := h.mgr.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return s, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}

// GET /v1/sensors/{id} — document, validation issues and summary.
func (h *Handler) getSensor(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

type insertRequest struct {
	Parent string         `json:"parent"`
	Type   condition.Type `json:"type"`
}

// POST /v1/sensors/{id}/conditions — append a condition to a group.
func (h *Handler) insertCondition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req insertRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Parent == "" {
		req.Parent = condition.RootID
	}
	n, err := s.InsertCondition(req.Parent, req.Type)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// PATCH /v1/sensors/{id}/conditions/{cid}
func (h *Handler) updateCondition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body condition.Wire
	if !decode(w, r, &body) {
		return
	}
	if err := s.UpdateCondition(r.PathValue("cid"), body); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// DELETE /v1/sensors/{id}/conditions/{cid} — 409 with the impact when the
// delete reaches beyond the node and ?confirm=true is missing.
func (h *Handler) deleteCondition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	im, err := s.DeleteCondition(r.PathValue("cid"), confirm)
	if errors.Is(err, editor.ErrNeedsConfirmation) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  err.Error(),
			"impact": im,
		})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, im)
}

type moveRequest struct {
	Parent   string `json:"parent"`
	Position int    `json:"position"`
}

// POST /v1/sensors/{id}/conditions/{cid}/move
func (h *Handler) moveCondition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	req := moveRequest{Position: -1}
	if !decode(w, r, &req) {
		return
	}
	if err := s.MoveCondition(r.PathValue("cid"), req.Parent, req.Position); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// GET /v1/sensors/{id}/conditions/{cid}/candidates — legal sequence
// predecessors.
func (h *Handler) sequenceCandidates(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ids, err := s.SequenceCandidates(r.PathValue("cid"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": ids})
}

// PUT /v1/sensors/{id}/options/{cid}
func (h *Handler) setOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req editor.OptionsEdit
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetOptions(r.PathValue("cid"), req); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// GET /v1/sensors/{id}/activities/{key}
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	if _, _, err := activity.ParseKey(key); err != nil {
		writeErr(w, err)
		return
	}
	rows := s.ActivityRows(key)
	if rows == nil {
		rows = []activity.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "rows": rows})
}

// PUT /v1/sensors/{id}/activities/{key} — replace an activity's rows. Rows
// that fail to build are kept as a draft and answered with 422 and the row
// issues.
func (h *Handler) setActivity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var rows []activity.Row
	if !decode(w, r, &rows) {
		return
	}
	err := s.SetActivityRows(r.PathValue("key"), rows)
	var re *activity.RowError
	if errors.As(err, &re) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"row":    re.Row,
			"issues": re.Issues,
		})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// DELETE /v1/sensors/{id}/activities/{key}/draft
func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.DiscardDraft(r.PathValue("key"))
	writeJSON(w, http.StatusOK, s.View())
}

type variableRequest struct {
	Expression string `json:"expression"`
	Export     *bool  `json:"export,omitempty"`
}

// PUT /v1/sensors/{id}/variables/{name}
func (h *Handler) setVariable(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req variableRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetVariable(r.PathValue("name"), req.Expression, req.Export); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// DELETE /v1/sensors/{id}/variables/{name}
func (h *Handler) deleteVariable(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DeleteVariable(r.PathValue("name")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// POST /v1/sensors/{id}/variables/{name}/move
func (h *Handler) moveVariable(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.MoveVariable(r.PathValue("name"), req.Position); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// POST /v1/sensors/{id}/save
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Save(r.Context())
	if errors.Is(err, editor.ErrInvalid) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"issues":  s.Report().Issues(),
			"summary": s.Report().Summary(),
		})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/sensors/{id}/revert
func (h *Handler) revert(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Revert(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// GET /v1/sensors/{id}/state — the engine's runtime state.
func (h *Handler) runtimeState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.RuntimeState(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /v1/sensors/{id}/actions/test — run a device action row now.
func (h *Handler) testAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var row activity.Row
	if !decode(w, r, &row) {
		return
	}
	if err := s.TestAction(r.Context(), row); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"invoked": true})
}

// GET /v1/devices — the device catalog.
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	devs := []host.Device{}
	if h.catalog != nil {
		devs = h.catalog.ListDevices()
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devs})
}

// POST /v1/host/restart — reload the host engine and wait until ready.
func (h *Handler) restart(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Restart(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// POST /v1/save-all — save every modified session; with ?restart=true the
// host is reloaded afterwards if all saves succeeded.
func (h *Handler) saveAll(w http.ResponseWriter, r *http.Request) {
	results := h.mgr.SaveAll(r.Context(), 0)
	failed := 0
	for _, res := range results {
		if res.Error() != nil {
			failed++
		}
	}
	body := map[string]any{"results": results, "failed": failed}
	if failed > 0 {
		writeJSON(w, http.StatusMultiStatus, body)
		return
	}
	if restart, _ := strconv.ParseBool(r.URL.Query().Get("restart")); restart {
		if err := h.mgr.Restart(r.Context()); err != nil {
			body["restart_error"] = err.Error()
			writeJSON(w, statusFor(err), body)
			return
		}
		body["restarted"] = true
	}
	writeJSON(w, http.StatusOK, body)
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(h.mgr.Sessions()),
	})
}
