package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/adapter/script"
	"github.com/Strob0t/DevPlane/internal/adapter/sse"
	"github.com/Strob0t/DevPlane/internal/adapter/ws"
	"github.com/Strob0t/DevPlane/internal/domain/run"
	"github.com/Strob0t/DevPlane/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	projects := service.NewProjectService(t.TempDir())
	sessions := service.NewSessionService(projects)
	log := memory.NewEventLog()

	var runtime *service.RuntimeService
	usage := func(ctx context.Context, runID string, u run.Usage) {
		runtime.AddUsage(ctx, runID, u)
	}
	exec := script.New(sessions, usage, 0)
	runtime = service.NewRuntimeService(log, exec, 4)

	h := NewHandlers()
	h.Projects = projects
	h.Sessions = sessions
	h.Runtime = runtime
	h.Files = service.NewFilesService(projects, service.NewETagManager(), nil, 0)
	h.Diffs = service.NewDiffService(projects)
	h.Deployments = service.NewDeployService(projects, runtime)
	h.Workflows = service.NewWorkflowService(projects, runtime)
	h.Stream = sse.NewHandler(log, time.Second)
	h.Hub = ws.NewHub()
	h.Log = log

	r := chi.NewRouter()
	MountRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, raw)
		}
	}
	return res, decoded
}

func createProject(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", map[string]any{"name": "Demo Project"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d, body %v", res.StatusCode, body)
	}
	return body["id"].(string)
}

func createSession(t *testing.T, srv *httptest.Server, projectID string) string {
	t.Helper()
	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/sessions", map[string]any{"title": "chat"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d, body %v", res.StatusCode, body)
	}
	return body["id"].(string)
}

func TestProjectCRUD(t *testing.T) {
	srv := newTestServer(t)

	id := createProject(t, srv)

	res, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+id, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", res.StatusCode)
	}
	if body["slug"] != "demo-project" {
		t.Errorf("slug = %v", body["slug"])
	}

	res, body = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/projects/"+id, map[string]any{"name": "Renamed"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch: status %d, body %v", res.StatusCode, body)
	}
	if body["name"] != "Renamed" {
		t.Errorf("name after patch = %v", body["name"])
	}

	res, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/projects/"+id, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", res.StatusCode)
	}

	res, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+id, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", res.StatusCode)
	}
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error envelope: %v", body)
	}
	if envelope["code"] != "not_found" {
		t.Errorf("code = %v", envelope["code"])
	}
	if envelope["retryable"] != false {
		t.Errorf("retryable = %v", envelope["retryable"])
	}
}

func TestValidationErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", map[string]any{"name": ""})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, body %v", res.StatusCode, body)
	}
	envelope := body["error"].(map[string]any)
	if envelope["code"] != "invalid_input" {
		t.Errorf("code = %v", envelope["code"])
	}
	if envelope["message"] == "" {
		t.Error("message should not be empty")
	}
}

func TestListPagination(t *testing.T) {
	srv := newTestServer(t)
	projectID := createProject(t, srv)

	for i := 0; i < 5; i++ {
		createSession(t, srv, projectID)
	}

	url := srv.URL + "/api/v1/projects/" + projectID + "/sessions?limit=2"
	res, body := doJSON(t, http.MethodGet, url, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}

	seen := 0
	pages := 0
	for {
		pages++
		items := body["items"].([]any)
		seen += len(items)
		next, ok := body["next_cursor"].(string)
		if !ok {
			break
		}
		res, body = doJSON(t, http.MethodGet, url+"&cursor="+next, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status %d on page %d", res.StatusCode, pages)
		}
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}
	if seen != 5 {
		t.Errorf("saw %d sessions across %d pages, want 5", seen, pages)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
}

func TestRunLifecycleOverAPI(t *testing.T) {
	srv := newTestServer(t)
	projectID := createProject(t, srv)
	sessionID := createSession(t, srv, projectID)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/runs", map[string]any{
		"kind":       "agent",
		"session_id": sessionID,
		"agent":      map[string]any{"model": "default"},
		"input":      map[string]any{"prompt": "add a readme"},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create run: status %d, body %v", res.StatusCode, body)
	}
	runID := body["id"].(string)
	if body["status"] != string(run.StatusQueued) {
		t.Errorf("initial status = %v", body["status"])
	}

	waitRunStatus(t, srv, runID, run.StatusSucceeded)

	res, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/runs/"+runID+"/events?limit=3", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d", res.StatusCode)
	}
	items := body["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("got %d events, want 3", len(items))
	}
	first := items[0].(map[string]any)
	if first["cursor"].(float64) != 0 {
		t.Errorf("first cursor = %v, want 0", first["cursor"])
	}
	next, ok := body["next_cursor"].(string)
	if !ok {
		t.Fatal("expected next_cursor on first events page")
	}

	res, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/runs/"+runID+"/events?from_cursor="+next, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events page 2: status %d", res.StatusCode)
	}
	second := body["items"].([]any)[0].(map[string]any)
	if fmt.Sprint(second["cursor"]) != next {
		t.Errorf("resumed at cursor %v, want %s", second["cursor"], next)
	}

	// The assistant turn recorded by the run shows up in the transcript.
	res, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+sessionID+"/messages", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("messages: status %d", res.StatusCode)
	}
	msgs := body["items"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].(map[string]any)["role"] != "assistant" {
		t.Errorf("role = %v", msgs[0].(map[string]any)["role"])
	}
}

func TestRunEventsBadLimitFallsBack(t *testing.T) {
	srv := newTestServer(t)
	projectID := createProject(t, srv)
	sessionID := createSession(t, srv, projectID)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/runs", map[string]any{
		"kind":       "agent",
		"session_id": sessionID,
		"agent":      map[string]any{"model": "default"},
		"input":      map[string]any{"prompt": "touch nothing"},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create run: status %d, body %v", res.StatusCode, body)
	}
	runID := body["id"].(string)
	waitRunStatus(t, srv, runID, run.StatusSucceeded)

	for _, limit := range []string{"0", "-1", "junk"} {
		res, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/runs/"+runID+"/events?limit="+limit, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("events with limit=%s: status %d, body %v", limit, res.StatusCode, body)
		}
		items, ok := body["items"].([]any)
		if !ok || len(items) == 0 {
			t.Fatalf("events with limit=%s: items = %v, want the full default page", limit, body["items"])
		}
	}
}

func TestCancelRunOverAPI(t *testing.T) {
	srv := newTestServer(t)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/runs/run_missing/cancel", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("cancel missing run: status %d, body %v", res.StatusCode, body)
	}
}

func TestFileConflictOverAPI(t *testing.T) {
	srv := newTestServer(t)
	projectID := createProject(t, srv)
	base := srv.URL + "/api/v1/projects/" + projectID + "/files"

	res, body := doJSON(t, http.MethodPut, base+"/content", map[string]any{
		"path": "main.go", "content": "package main",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first write: status %d, body %v", res.StatusCode, body)
	}
	stale := body["etag"].(string)

	res, body = doJSON(t, http.MethodPut, base+"/content", map[string]any{
		"path": "main.go", "content": "package main // v2", "etag": stale,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("second write: status %d, body %v", res.StatusCode, body)
	}

	res, body = doJSON(t, http.MethodPut, base+"/content", map[string]any{
		"path": "main.go", "content": "package main // v3", "etag": stale,
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("stale write: status %d, body %v", res.StatusCode, body)
	}
	envelope := body["error"].(map[string]any)
	if envelope["code"] != "conflict" {
		t.Errorf("code = %v", envelope["code"])
	}
	if envelope["retryable"] != true {
		t.Errorf("conflict should be retryable, got %v", envelope["retryable"])
	}

	res, body = doJSON(t, http.MethodGet, base+"/content?path=main.go", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("read: status %d", res.StatusCode)
	}
	if !strings.Contains(body["content"].(string), "v2") {
		t.Errorf("stale write should not have landed, content = %v", body["content"])
	}
}

func TestDiffResolution(t *testing.T) {
	srv := newTestServer(t)
	projectID := createProject(t, srv)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/diffs", map[string]any{
		"title": "add readme",
		"patch": "--- /dev/null\n+++ b/README.md\n@@ -0,0 +1 @@\n+hello\n",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create diff: status %d, body %v", res.StatusCode, body)
	}
	diffID := body["id"].(string)

	res, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diffs/"+diffID+"/apply", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("apply: status %d, body %v", res.StatusCode, body)
	}
	if body["status"] != "applied" {
		t.Errorf("status = %v", body["status"])
	}

	res, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diffs/"+diffID+"/discard", nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("discard applied diff: status %d, body %v", res.StatusCode, body)
	}
}

func TestWorkflowExecute(t *testing.T) {
	srv := newTestServer(t)
	projectID := createProject(t, srv)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/workflows", map[string]any{
		"name":       "ci",
		"definition": map[string]any{"steps": []string{"build", "test"}},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create workflow: status %d, body %v", res.StatusCode, body)
	}
	wfID := body["id"].(string)

	res, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/workflows/"+wfID+"/execute", nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("execute: status %d, body %v", res.StatusCode, body)
	}
	runID := body["id"].(string)
	if body["kind"] != string(run.KindWorkflow) {
		t.Errorf("kind = %v", body["kind"])
	}

	waitRunStatus(t, srv, runID, run.StatusSucceeded)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	res, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["version"] != Version {
		t.Errorf("version = %v", body["version"])
	}
}

func waitRunStatus(t *testing.T, srv *httptest.Server, runID string, want run.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/runs/"+runID, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("get run: status %d", res.StatusCode)
		}
		status := run.Status(body["status"].(string))
		if status == want {
			return
		}
		if status.Terminal() {
			t.Fatalf("run ended %s, want %s (reason %v)", status, want, body["failure_reason"])
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach %s in time", runID, want)
}
