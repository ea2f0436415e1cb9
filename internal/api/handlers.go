package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/careerpath/internal/coach"
	"github.com/kalambet/careerpath/internal/gaps"
	"github.com/kalambet/careerpath/internal/ingest"
	"github.com/kalambet/careerpath/internal/profile"
	"github.com/kalambet/careerpath/internal/roadmap"
	"github.com/kalambet/careerpath/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxScanBodySize = 10 << 20   // 10MB

type ToggleSkillRequest struct {
	Phase string `json:"phase"`
	Skill string `json:"skill"`
}

type ToggleStepRequest struct {
	Step string `json:"step"`
}

type GapSkillRequest struct {
	Skill string `json:"skill"`
}

// ScanRequest carries a resume either as plain text or as a base64-encoded
// file (PDF or UTF-8 text).
type ScanRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Content  string `json:"content"`
}

// ProfileResponse is the profile state with its one-line summary.
type ProfileResponse struct {
	profile.State
	Summary string `json:"summary"`
}

// JobResponse is the public view of a background job.
type JobResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type AppDeps struct {
	Service *coach.Service
	Profile *profile.Manager
	Store   *storage.Store
	Token   string // empty disables bearer auth
}

// NewAppHandler returns the roadmap REST API. /health is always public.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/roadmap", handleGetRoadmap(deps))
		r.Get("/progress", handleGetProgress(deps))
		r.Delete("/progress", handleResetProgress(deps))
		r.Post("/progress/toggle", handleToggleSkill(deps))
		r.Get("/recommendations", handleRecommend(deps))

		r.Get("/track", handleGetTrack(deps))
		r.Post("/track/toggle", handleToggleStep(deps))
		r.Delete("/track", handleResetTrack(deps))

		r.Get("/overview", handleOverview(deps))

		r.Get("/profile/roadmap", handleGetProfile(deps))
		r.Post("/profile/gaps", handleAddGapSkill(deps))
		r.Post("/profile/gaps/scan", handleScanResume(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetRoadmap(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := selectionParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, deps.Service.Roadmap(sel))
	}
}

func handleGetProgress(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := selectionParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, deps.Service.Progress(r.Context(), sel))
	}
}

func handleResetProgress(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := selectionParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, deps.Service.Reset(r.Context(), sel))
	}
}

func handleToggleSkill(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := selectionParam(w, r)
		if !ok {
			return
		}

		var req ToggleSkillRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Phase == "" || req.Skill == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "phase and skill are required")
			return
		}

		st, err := deps.Service.Toggle(r.Context(), sel, req.Phase, req.Skill)
		if errors.Is(err, coach.ErrUnknownSkill) {
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to toggle skill: %v", err)
			return
		}
		writeJSON(w, st)
	}
}

func handleRecommend(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := selectionParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, deps.Service.Recommend(r.Context(), sel))
	}
}

func handleGetTrack(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, level, ok := trackParams(w, r)
		if !ok {
			return
		}
		writeJSON(w, deps.Service.Track(r.Context(), role, level))
	}
}

func handleToggleStep(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, level, ok := trackParams(w, r)
		if !ok {
			return
		}

		var req ToggleStepRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Step == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "step is required")
			return
		}

		st, err := deps.Service.ToggleStep(r.Context(), role, level, req.Step)
		if errors.Is(err, coach.ErrUnknownSkill) {
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to toggle step: %v", err)
			return
		}
		writeJSON(w, st)
	}
}

func handleResetTrack(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, level, ok := trackParams(w, r)
		if !ok {
			return
		}
		writeJSON(w, deps.Service.ResetTrack(r.Context(), role, level))
	}
}

func handleOverview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Service.Overview(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute overview: %v", err)
			return
		}
		writeJSON(w, entries)
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := deps.Profile.GetState()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		summary, err := deps.Profile.GetSummary()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile summary: %v", err)
			return
		}
		writeJSON(w, ProfileResponse{State: state, Summary: summary})
	}
}

func handleAddGapSkill(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GapSkillRequest
		if !decodeBody(w, r, &req) {
			return
		}

		err := deps.Service.AddGapSkill(req.Skill)
		if errors.Is(err, profile.ErrEmptySkill) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "skill is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add gap skill: %v", err)
			return
		}
		state, err := deps.Profile.GetState()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read profile: %v", err)
			return
		}
		writeJSON(w, state.Roadmap)
	}
}

func handleScanResume(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := selectionParam(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxScanBodySize)
		defer r.Body.Close()

		var req ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var text string
		switch {
		case req.Content != "":
			data, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			text, err = gaps.ExtractText(req.Filename, data)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to read resume: %v", err)
				return
			}
		case strings.TrimSpace(req.Text) != "":
			text = req.Text
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of text or content is required")
			return
		}

		filename := req.Filename
		if filename == "" {
			filename = "resume.txt"
		}
		jobID, err := ingest.Submit(r.Context(), deps.Store, filename, text, sel)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue scan: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"id":     jobID,
			"status": "queued",
		})
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := deps.Store.GetJob(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		resp := JobResponse{
			ID:        job.ID,
			Type:      job.Type,
			Status:    job.Status,
			Attempts:  job.Attempts,
			LastError: job.LastError,
		}
		if job.ResultJSON != "" {
			resp.Result = json.RawMessage(job.ResultJSON)
		}
		writeJSON(w, resp)
	}
}

// selectionParam parses role, level and timeline from the query string and
// answers 400 when any of them is invalid.
func selectionParam(w http.ResponseWriter, r *http.Request) (roadmap.Selection, bool) {
	q := r.URL.Query()
	sel, err := roadmap.ParseSelection(q.Get("role"), q.Get("level"), q.Get("timeline"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return roadmap.Selection{}, false
	}
	return sel, true
}

func trackParams(w http.ResponseWriter, r *http.Request) (roadmap.Role, roadmap.Level, bool) {
	q := r.URL.Query()
	role, err := roadmap.ParseRole(q.Get("role"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return "", "", false
	}
	level, err := roadmap.ParseLevel(q.Get("level"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return "", "", false
	}
	return role, level, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
