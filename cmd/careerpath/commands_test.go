package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/careerpath/internal/coach"
	"github.com/kalambet/careerpath/internal/progress"
	"github.com/kalambet/careerpath/internal/roadmap"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// install points the CLI commands at ts for the duration of the test.
func (ts *testServer) install(t *testing.T) {
	t.Helper()
	prevClient, prevColor := newAPIClient, noColor
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	noColor = true
	t.Cleanup(func() {
		newAPIClient = prevClient
		noColor = prevColor
	})
}

// run executes the root command with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

var ctx = context.Background()

func backendStatus(done ...roadmap.SkillKey) coach.CareerStatus {
	sel := roadmap.Selection{Role: roadmap.RoleBackend, Level: roadmap.LevelBeginner, Timeline: roadmap.Timeline6Month}
	r := roadmap.Generate(sel)
	total := len(r.SkillKeys())
	return coach.CareerStatus{
		Key:      "vm_career_roadmap_backend_beginner_6m",
		Roadmap:  r,
		Done:     done,
		Progress: progress.Progress{Completed: len(done), Total: total, Percentage: len(done) * 100 / total},
	}
}

func TestRoadmapShow(t *testing.T) {
	st := backendStatus(roadmap.SkillKey{PhaseID: "fundamentals", Skill: "Git workflow"})
	ts := newTestServer(t, map[string]string{
		"GET /progress": mustJSON(t, st),
	})
	ts.install(t)

	out, err := run(t, "roadmap", "show", "--role", "Backend", "--level", "beginner", "--timeline", "6-month")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if got := ts.requests[0].Path; got != "/progress?level=beginner&role=backend&timeline=6-month" {
		t.Errorf("path = %q", got)
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}

	for _, want := range []string{"[x] Git workflow", "[ ] Async I/O basics", "Phase 1 · Fundamentals"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoadmapShow_InvalidRole(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.install(t)

	_, err := run(t, "roadmap", "show", "--role", "astronaut", "--level", "beginner", "--timeline", "6-month")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !strings.Contains(err.Error(), "astronaut") {
		t.Errorf("error = %q, want it to name the role", err.Error())
	}
	if len(ts.requests) != 0 {
		t.Errorf("expected no requests, got %d", len(ts.requests))
	}
}

func TestRoadmapToggle(t *testing.T) {
	key := roadmap.SkillKey{PhaseID: "core", Skill: "Data modeling"}
	ts := newTestServer(t, map[string]string{
		"POST /progress/toggle": mustJSON(t, backendStatus(key)),
	})
	ts.install(t)

	_, err := run(t, "roadmap", "toggle", "--role", "backend", "--level", "beginner", "--timeline", "6-month",
		"--phase", "core", "--skill", "Data modeling")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["phase"] != "core" || body["skill"] != "Data modeling" {
		t.Errorf("body = %v", body)
	}
}

func TestRoadmapToggle_ServerError(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.install(t)

	_, err := run(t, "roadmap", "toggle", "--role", "backend", "--level", "beginner", "--timeline", "6-month",
		"--phase", "core", "--skill", "Juggling")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "server returned 404: not found") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestRoadmapRecommend(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /recommendations": `{"next_skill":"Async I/O basics","weakest_phase_title":"Phase 1 · Fundamentals","suggested_project":null}`,
	})
	ts.install(t)

	out, err := run(t, "roadmap", "recommend", "--role", "backend", "--level", "beginner", "--timeline", "6-month")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Next skill: Async I/O basics", "Weakest phase: Phase 1 · Fundamentals", "Project idea: none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoadmapOverview_Empty(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /overview": `[]`,
	})
	ts.install(t)

	out, err := run(t, "roadmap", "overview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No roadmap started yet.") {
		t.Errorf("output = %q", out)
	}
}

func TestTrackToggle(t *testing.T) {
	track := roadmap.BuildTrack(roadmap.RoleBackend, roadmap.LevelBeginner)
	st := coach.TrackStatus{
		Key:      "vm_track_backend_beginner",
		Track:    track,
		Done:     []roadmap.SkillKey{{PhaseID: "fundamentals", Skill: "fundamentals-git"}},
		Progress: progress.Progress{Completed: 1, Total: 8, Percentage: 13},
	}
	ts := newTestServer(t, map[string]string{
		"POST /track/toggle": mustJSON(t, st),
	})
	ts.install(t)

	_, err := run(t, "track", "toggle", "fundamentals-git", "--role", "backend", "--level", "beginner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ts.requests[0].Path; got != "/track/toggle?level=beginner&role=backend" {
		t.Errorf("path = %q", got)
	}
	if !strings.Contains(ts.requests[0].Body, `"step":"fundamentals-git"`) {
		t.Errorf("body = %s", ts.requests[0].Body)
	}
}

func TestTrackToggle_MissingArgs(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.install(t)

	_, err := run(t, "track", "toggle", "--role", "backend", "--level", "beginner")
	if err == nil {
		t.Fatal("expected error for missing step id")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention args", err.Error())
	}
}

func TestGapsAdd(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /profile/gaps": `{"progress_pct":0,"weak_skills":["Kubernetes"],"last_updated_at":null}`,
	})
	ts.install(t)

	if _, err := run(t, "gaps", "add", "Kubernetes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Body != `{"skill":"Kubernetes"}` {
		t.Errorf("body = %s", ts.requests[0].Body)
	}
}

func writeResume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.txt")
	if err := os.WriteFile(path, []byte("Python, PostgreSQL, Git, REST API"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func fastPolling(t *testing.T) {
	prev := jobPollInterval
	jobPollInterval = time.Millisecond
	t.Cleanup(func() { jobPollInterval = prev })
}

func TestGapsScan_Wait(t *testing.T) {
	fastPolling(t)
	ts := newTestServer(t, map[string]string{
		"POST /profile/gaps/scan": `{"id":"job-1","status":"queued"}`,
		"GET /jobs/job-1":         `{"id":"job-1","type":"gap_scan","status":"completed","attempts":1,"result":{"added":["Async I/O basics","Data modeling"]}}`,
	})
	ts.install(t)

	out, err := run(t, "gaps", "scan", writeResume(t), "--role", "backend", "--level", "beginner", "--timeline", "6-month", "--wait=true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["filename"] != "cv.txt" {
		t.Errorf("filename = %q, want cv.txt", body["filename"])
	}
	if body["text"] != "Python, PostgreSQL, Git, REST API" {
		t.Errorf("text = %q", body["text"])
	}
	for _, want := range []string{"Async I/O basics", "Data modeling"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGapsScan_NoWait(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /profile/gaps/scan": `{"id":"job-1","status":"queued"}`,
	})
	ts.install(t)

	if _, err := run(t, "gaps", "scan", writeResume(t), "--role", "backend", "--level", "beginner", "--timeline", "6-month", "--wait=false"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(ts.requests))
	}
}

func TestGapsScan_JobFailed(t *testing.T) {
	fastPolling(t)
	ts := newTestServer(t, map[string]string{
		"POST /profile/gaps/scan": `{"id":"job-2","status":"queued"}`,
		"GET /jobs/job-2":         `{"id":"job-2","type":"gap_scan","status":"failed","attempts":3,"last_error":"resume not found"}`,
	})
	ts.install(t)

	_, err := run(t, "gaps", "scan", writeResume(t), "--role", "backend", "--level", "beginner", "--timeline", "6-month", "--wait=true")
	if err == nil {
		t.Fatal("expected error for failed job")
	}
	if !strings.Contains(err.Error(), "resume not found") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestWaitForJob_Timeout(t *testing.T) {
	fastPolling(t)
	ts := newTestServer(t, map[string]string{
		"GET /jobs/job-3": `{"id":"job-3","type":"gap_scan","status":"pending","attempts":0}`,
	})

	_, err := waitForJob(ctx, ts.client(), "job-3", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "still pending") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestProfileShow(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profile/roadmap": `{"roadmap":{"progress_pct":21,"weak_skills":["Data modeling"],"last_updated_at":null},` +
			`"activity":[{"id":"a1","type":"roadmap_progress","label":"Roadmap progress 21%","at":"2026-01-02T10:00:00Z"}],` +
			`"summary":"Roadmap progress: 21%. Focus areas: Data modeling."}`,
	})
	ts.install(t)

	out, err := run(t, "profile", "show", "--json=false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Roadmap progress: 21%. Focus areas: Data modeling.", "Roadmap progress 21%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDecodeJSON_PlainErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteString("upstream down")

	err := decodeJSON(rec.Result(), &struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "server returned 502: upstream down" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestClient_NoToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})
	c := ts.client()
	c.token = ""

	var health map[string]string
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want none", ts.requests[0].Auth)
	}
}

func TestClient_NotReachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := &apiClient{baseURL: url, httpClient: &http.Client{Timeout: time.Second}}
	_, err := c.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "server not reachable") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestProgressBar_NoColor(t *testing.T) {
	prev := noColor
	noColor = true
	defer func() { noColor = prev }()

	tests := []struct {
		pct  int
		want string
	}{
		{0, "░░░░░░░░░░   0%"},
		{50, "█████░░░░░  50%"},
		{100, "██████████ 100%"},
		{140, "██████████ 100%"},
		{-5, "░░░░░░░░░░   0%"},
	}
	for _, tt := range tests {
		if got := progressBar(tt.pct, 10); got != tt.want {
			t.Errorf("progressBar(%d) = %q, want %q", tt.pct, got, tt.want)
		}
	}

	if checkbox(true) != "[x]" || checkbox(false) != "[ ]" {
		t.Errorf("checkbox = %q / %q", checkbox(true), checkbox(false))
	}
}
