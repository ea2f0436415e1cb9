package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/careerpath/internal/coach"
	"github.com/kalambet/careerpath/internal/ingest"
	"github.com/kalambet/careerpath/internal/profile"
	"github.com/kalambet/careerpath/internal/progress"
	"github.com/kalambet/careerpath/internal/recommend"
	"github.com/kalambet/careerpath/internal/storage"
	"github.com/kalambet/careerpath/internal/summary"
)

const testToken = "test-token-12345"

const backendQuery = "?role=backend&level=beginner&timeline=6-month"

type testApp struct {
	handler http.Handler
	store   *storage.Store
	service *coach.Service
	profile *profile.Manager
}

func setupAppHandler(t *testing.T, token string) testApp {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	profileMgr := profile.NewManager(store)
	svc := coach.NewService(
		progress.NewStore(progress.NewBlobRepository(store)),
		"vm",
		summary.NewPublisher(profileMgr),
	)

	handler := NewAppHandler(AppDeps{
		Service: svc,
		Profile: profileMgr,
		Store:   store,
		Token:   token,
	})
	return testApp{handler: handler, store: store, service: svc, profile: profileMgr}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decode(t, rr, &body)
	return body.Error.Type
}

func TestHealth_NoAuth(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestAuth(t *testing.T) {
	app := setupAppHandler(t, testToken)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			app.handler.ServeHTTP(rr, authReq(http.MethodGet, "/roadmap"+backendQuery, "", tt.token))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && errorType(t, rr) != "authentication_error" {
				t.Errorf("error type = %q", errorType(t, rr))
			}
		})
	}
}

func TestAuth_DisabledWithoutToken(t *testing.T) {
	app := setupAppHandler(t, "")

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/roadmap"+backendQuery, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestGetRoadmap(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := do(t, app.handler, http.MethodGet, "/roadmap"+backendQuery, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Role   string `json:"role"`
		Phases []struct {
			ID             string   `json:"id"`
			Skills         []string `json:"skills"`
			EstimatedWeeks int      `json:"estimated_weeks"`
		} `json:"phases"`
	}
	decode(t, rr, &body)

	if body.Role != "backend" || len(body.Phases) != 4 {
		t.Fatalf("unexpected roadmap: %+v", body)
	}
	wantIDs := []string{"fundamentals", "core", "projects", "interview"}
	for i, p := range body.Phases {
		if p.ID != wantIDs[i] {
			t.Errorf("phase %d id = %q, want %q", i, p.ID, wantIDs[i])
		}
	}
	if body.Phases[0].EstimatedWeeks != 3 {
		t.Errorf("fundamentals weeks = %d, want 3", body.Phases[0].EstimatedWeeks)
	}
}

func TestGetRoadmap_InvalidSelection(t *testing.T) {
	app := setupAppHandler(t, testToken)

	tests := []string{
		"?role=designer&level=beginner&timeline=6-month",
		"?role=backend&level=expert&timeline=6-month",
		"?role=backend&level=beginner&timeline=2-year",
		"",
	}
	for _, q := range tests {
		rr := do(t, app.handler, http.MethodGet, "/roadmap"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("GET /roadmap%s status = %d, want 400", q, rr.Code)
			continue
		}
		if errorType(t, rr) != "invalid_request_error" {
			t.Errorf("GET /roadmap%s error type = %q", q, errorType(t, rr))
		}
	}
}

func TestToggleSkill(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := do(t, app.handler, http.MethodPost, "/progress/toggle"+backendQuery, `{"phase":"core","skill":"Data modeling"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var st coach.CareerStatus
	decode(t, rr, &st)
	if st.Progress.Completed != 1 || st.Progress.Percentage != 7 {
		t.Errorf("progress = %+v", st.Progress)
	}

	// Persisted and visible on reload.
	rr = do(t, app.handler, http.MethodGet, "/progress"+backendQuery, "")
	decode(t, rr, &st)
	if len(st.Done) != 1 || st.Done[0].Skill != "Data modeling" {
		t.Errorf("done = %+v", st.Done)
	}

	// Published to the profile.
	rr = do(t, app.handler, http.MethodGet, "/profile/roadmap", "")
	var prof ProfileResponse
	decode(t, rr, &prof)
	if prof.Roadmap.ProgressPct != 7 {
		t.Errorf("profile progress_pct = %d, want 7", prof.Roadmap.ProgressPct)
	}
	if !strings.HasPrefix(prof.Summary, "Roadmap progress: 7%.") {
		t.Errorf("summary = %q", prof.Summary)
	}
}

func TestToggleSkill_Errors(t *testing.T) {
	app := setupAppHandler(t, testToken)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown skill", `{"phase":"core","skill":"Component patterns"}`, http.StatusNotFound},
		{"unknown phase", `{"phase":"extra","skill":"Data modeling"}`, http.StatusNotFound},
		{"missing skill", `{"phase":"core"}`, http.StatusBadRequest},
		{"invalid json", `{not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, app.handler, http.MethodPost, "/progress/toggle"+backendQuery, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestResetProgress(t *testing.T) {
	app := setupAppHandler(t, testToken)

	do(t, app.handler, http.MethodPost, "/progress/toggle"+backendQuery, `{"phase":"core","skill":"Data modeling"}`)
	rr := do(t, app.handler, http.MethodDelete, "/progress"+backendQuery, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var st coach.CareerStatus
	decode(t, rr, &st)
	if st.Progress.Completed != 0 || len(st.Done) != 0 {
		t.Errorf("after reset: %+v", st.Progress)
	}
}

func TestRecommendations(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := do(t, app.handler, http.MethodGet, "/recommendations"+backendQuery, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var rec recommend.Recommendation
	decode(t, rr, &rec)
	if rec.NextSkill == nil || *rec.NextSkill != "TypeScript / Python refresh" {
		t.Errorf("next_skill = %v", rec.NextSkill)
	}
	if rec.WeakestPhaseTitle == nil || *rec.WeakestPhaseTitle != "Phase 1 · Fundamentals" {
		t.Errorf("weakest_phase_title = %v", rec.WeakestPhaseTitle)
	}
	if rec.SuggestedProject == nil {
		t.Error("suggested_project is null")
	}
}

func TestTrackEndpoints(t *testing.T) {
	app := setupAppHandler(t, testToken)
	const q = "?role=frontend&level=advanced"

	rr := do(t, app.handler, http.MethodGet, "/track"+q, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var st coach.TrackStatus
	decode(t, rr, &st)
	if st.Key != "vm_roadmap_frontend_advanced" || st.Progress.Total != 8 {
		t.Errorf("unexpected track status: key=%q total=%d", st.Key, st.Progress.Total)
	}

	rr = do(t, app.handler, http.MethodPost, "/track/toggle"+q, `{"step":"core-framework"}`)
	decode(t, rr, &st)
	if st.Progress.Completed != 1 || st.Progress.Percentage != 13 {
		t.Errorf("after toggle: %+v", st.Progress)
	}

	rr = do(t, app.handler, http.MethodPost, "/track/toggle"+q, `{"step":"nope"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown step status = %d, want 404", rr.Code)
	}

	rr = do(t, app.handler, http.MethodPost, "/track/toggle?role=frontend", `{"step":"core-framework"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing level status = %d, want 400", rr.Code)
	}

	rr = do(t, app.handler, http.MethodDelete, "/track"+q, "")
	decode(t, rr, &st)
	if st.Progress.Completed != 0 {
		t.Errorf("after reset: %+v", st.Progress)
	}
}

func TestOverview(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := do(t, app.handler, http.MethodGet, "/overview", "")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("empty overview = %s, want []", got)
	}

	do(t, app.handler, http.MethodPost, "/progress/toggle"+backendQuery, `{"phase":"core","skill":"Data modeling"}`)
	rr = do(t, app.handler, http.MethodGet, "/overview", "")
	var entries []coach.OverviewEntry
	decode(t, rr, &entries)
	if len(entries) != 1 || entries[0].Key != "vm_career_roadmap_backend_beginner_6m" {
		t.Errorf("overview = %+v", entries)
	}
}

func TestAddGapSkill(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := do(t, app.handler, http.MethodPost, "/profile/gaps", `{"skill":"  Docker "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var s profile.RoadmapSummary
	decode(t, rr, &s)
	if len(s.WeakSkills) != 1 || s.WeakSkills[0] != "Docker" {
		t.Errorf("weak_skills = %v", s.WeakSkills)
	}

	rr = do(t, app.handler, http.MethodPost, "/profile/gaps", `{"skill":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank skill status = %d, want 400", rr.Code)
	}
}

// gapRecorder is a coach observer that records gap labels before handing
// them to the real publisher.
type gapRecorder struct {
	*summary.Publisher
	labels []string
}

func (g *gapRecorder) PublishGapSkill(label string) error {
	g.labels = append(g.labels, label)
	return g.Publisher.PublishGapSkill(label)
}

func TestAddGapSkill_GoesThroughService(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	profileMgr := profile.NewManager(store)
	rec := &gapRecorder{Publisher: summary.NewPublisher(profileMgr)}
	svc := coach.NewService(progress.NewStore(progress.NewBlobRepository(store)), "vm", rec)
	h := NewAppHandler(AppDeps{Service: svc, Profile: profileMgr, Store: store})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/profile/gaps", `{"skill":"Kafka"}`, ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if len(rec.labels) != 1 || rec.labels[0] != "Kafka" {
		t.Errorf("service observer saw %v, want [Kafka]", rec.labels)
	}
	var s profile.RoadmapSummary
	decode(t, rr, &s)
	if len(s.WeakSkills) != 1 || s.WeakSkills[0] != "Kafka" {
		t.Errorf("weak_skills = %v", s.WeakSkills)
	}
}

func TestScanResume_QueuedAndProcessed(t *testing.T) {
	app := setupAppHandler(t, testToken)

	body := `{"filename":"cv.txt","text":"Python, PostgreSQL, Git, REST API, JWT auth, structured logging"}`
	rr := do(t, app.handler, http.MethodPost, "/profile/gaps/scan"+backendQuery, body)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var queued map[string]string
	decode(t, rr, &queued)
	if queued["status"] != "queued" || queued["id"] == "" {
		t.Fatalf("unexpected response: %v", queued)
	}

	rr = do(t, app.handler, http.MethodGet, "/jobs/"+queued["id"], "")
	var job JobResponse
	decode(t, rr, &job)
	if job.Status != storage.JobPending || job.Type != ingest.JobGapScan {
		t.Errorf("job before worker: %+v", job)
	}

	w := ingest.NewWorker(app.store, app.service, 0)
	if didWork, err := w.RunOnce(context.Background()); err != nil || !didWork {
		t.Fatalf("RunOnce = %v, %v", didWork, err)
	}

	rr = do(t, app.handler, http.MethodGet, "/jobs/"+queued["id"], "")
	job = JobResponse{}
	decode(t, rr, &job)
	if job.Status != storage.JobCompleted {
		t.Fatalf("job after worker: %+v", job)
	}
	var result ingest.ScanResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(result.Added) != 2 || result.Added[0] != "Async I/O basics" || result.Added[1] != "Data modeling" {
		t.Errorf("added = %q", result.Added)
	}

	state, err := app.profile.GetState()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Roadmap.WeakSkills) != 2 {
		t.Errorf("weak skills = %v", state.Roadmap.WeakSkills)
	}
}

func TestScanResume_FileContent(t *testing.T) {
	app := setupAppHandler(t, testToken)

	content := base64.StdEncoding.EncodeToString([]byte("Go developer"))
	rr := do(t, app.handler, http.MethodPost, "/profile/gaps/scan"+backendQuery, `{"filename":"cv.txt","content":"`+content+`"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
}

func TestScanResume_Errors(t *testing.T) {
	app := setupAppHandler(t, testToken)
	binary := base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00, 0x01})

	tests := []struct {
		name  string
		query string
		body  string
	}{
		{"no input", backendQuery, `{"filename":"cv.txt"}`},
		{"blank text", backendQuery, `{"text":"   "}`},
		{"bad base64", backendQuery, `{"content":"!!!"}`},
		{"binary", backendQuery, `{"filename":"cv.bin","content":"` + binary + `"}`},
		{"invalid selection", "?role=backend", `{"text":"Go"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, app.handler, http.MethodPost, "/profile/gaps/scan"+tt.query, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	app := setupAppHandler(t, testToken)

	rr := do(t, app.handler, http.MethodGet, "/jobs/does-not-exist", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if errorType(t, rr) != "not_found" {
		t.Errorf("error type = %q", errorType(t, rr))
	}
}
