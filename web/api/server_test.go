package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benchwright/benchwright/internal/bench"
	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/registry"
	"github.com/benchwright/benchwright/internal/workstore"
)

type fakeCheckout struct{}

func (fakeCheckout) Create(baseRepo, branch, id string) (string, error) {
	return filepath.Join("/tmp/ws", branch, id), nil
}
func (fakeCheckout) Remove(baseRepo, path string) error { return nil }

func newTestServer(t *testing.T) (*Server, *registry.Registry, *bench.Controller) {
	t.Helper()
	store, err := workstore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	reg, err := registry.New(store, fakeCheckout{})
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := bench.NewController(store)
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(reg, ctrl, ":0"), reg, ctrl
}

func TestStatusHandler(t *testing.T) {
	server, reg, ctrl := newTestServer(t)

	rec, err := reg.Create("/repos/api", "feat/cache")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Activate(rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.StartSession(rec.ID, "pkg/codec"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var status StatusResponse
	json.NewDecoder(w.Body).Decode(&status)

	if status.Workspaces != 1 || status.Active != 1 {
		t.Errorf("workspaces = %d active = %d, want 1/1", status.Workspaces, status.Active)
	}
	if status.Sessions != 1 || status.Pending != 1 {
		t.Errorf("sessions = %d pending = %d, want 1/1", status.Sessions, status.Pending)
	}
}

func TestListWorkspacesHandler_StateFilter(t *testing.T) {
	server, reg, _ := newTestServer(t)

	rec, err := reg.Create("/repos/api", "feat/cache")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Activate(rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Create("/repos/api", "feat/other"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/workspaces?state=active", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	var workspaces []WorkspaceResponse
	json.NewDecoder(w.Body).Decode(&workspaces)

	if len(workspaces) != 1 {
		t.Fatalf("got %d workspaces, want 1", len(workspaces))
	}
	if workspaces[0].ID != rec.ID || workspaces[0].State != "active" {
		t.Errorf("workspace = %+v", workspaces[0])
	}
}

func TestGetWorkspaceHandler_NotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/workspaces/nope", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
}

func TestGetSessionHandler(t *testing.T) {
	server, _, ctrl := newTestServer(t)

	sess, err := ctrl.StartSession("ws-1", "pkg/codec")
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.RecordBaseline(sess.ID, []domain.Sample{{Value: 100, Unit: "ms"}}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/sessions/"+sess.ID, nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var resp SessionResponse
	json.NewDecoder(w.Body).Decode(&resp)

	if resp.State != "baseline_captured" {
		t.Errorf("state = %q, want baseline_captured", resp.State)
	}
	if resp.Baseline != 1 || resp.Candidate != 0 {
		t.Errorf("samples = %d/%d, want 1/0", resp.Baseline, resp.Candidate)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/workspaces", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", w.Code)
	}
}

func TestWebSocketFeed(t *testing.T) {
	server, _, _ := newTestServer(t)
	go server.sseHub.Run()

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server time to register the client
	deadline := time.Now().Add(time.Second)
	for server.wsHub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if server.wsHub.Count() != 1 {
		t.Fatal("client not registered")
	}

	server.Broadcast(Event{Type: EventSessionChanged, Data: map[string]string{"id": "sess-1"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if event.Type != EventSessionChanged {
		t.Errorf("event type = %q, want %s", event.Type, EventSessionChanged)
	}
}
