package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/benchwright/benchwright/internal/domain"
)

// WorkspaceResponse is the API response for a workspace
type WorkspaceResponse struct {
	ID          string `json:"id"`
	BaseRepo    string `json:"base_repo"`
	Branch      string `json:"branch"`
	Path        string `json:"path,omitempty"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	LastTouched string `json:"last_touched"`
}

// SessionResponse is the API response for a benchmark session
type SessionResponse struct {
	ID           string  `json:"id"`
	WorkspaceID  string  `json:"workspace_id"`
	Target       string  `json:"target"`
	State        string  `json:"state"`
	Verdict      string  `json:"verdict"`
	Delta        float64 `json:"delta"`
	ThresholdPct float64 `json:"threshold_pct"`
	Baseline     int     `json:"baseline_samples"`
	Candidate    int     `json:"candidate_samples"`
	UpdatedAt    string  `json:"updated_at"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Workspaces int `json:"workspaces"`
	Active     int `json:"active"`
	Stale      int `json:"stale"`
	Sessions   int `json:"sessions"`
	Verdicted  int `json:"verdicted"`
	Pending    int `json:"pending"`
}

func workspaceToResponse(w *domain.WorkspaceRecord) WorkspaceResponse {
	return WorkspaceResponse{
		ID:          w.ID,
		BaseRepo:    w.BaseRepo,
		Branch:      w.Branch,
		Path:        w.Path,
		State:       string(w.State),
		CreatedAt:   w.CreatedAt.Format(time.RFC3339),
		LastTouched: w.LastTouched.Format(time.RFC3339),
	}
}

func sessionToResponse(s *domain.BenchmarkSession) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		WorkspaceID:  s.WorkspaceID,
		Target:       s.Target,
		State:        string(s.State),
		Verdict:      string(s.Verdict),
		Delta:        s.Delta,
		ThresholdPct: s.ThresholdPct,
		Baseline:     len(s.SamplesFor(domain.LabelBaseline)),
		Candidate:    len(s.SamplesFor(domain.LabelCandidate)),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var status StatusResponse
		for _, ws := range s.registry.List() {
			status.Workspaces++
			switch ws.State {
			case domain.WorkspaceActive:
				status.Active++
			case domain.WorkspaceStale:
				status.Stale++
			}
		}
		for _, sess := range s.bench.List() {
			status.Sessions++
			switch sess.State {
			case domain.SessionVerdicted:
				status.Verdicted++
			case domain.SessionPending:
				status.Pending++
			}
		}

		writeJSON(w, status)
	}
}

func (s *Server) listWorkspacesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		state := r.URL.Query().Get("state")
		baseRepo := r.URL.Query().Get("base_repo")

		responses := make([]WorkspaceResponse, 0)
		for _, ws := range s.registry.List() {
			if state != "" && string(ws.State) != state {
				continue
			}
			if baseRepo != "" && ws.BaseRepo != baseRepo {
				continue
			}
			responses = append(responses, workspaceToResponse(ws))
		}

		writeJSON(w, responses)
	}
}

func (s *Server) getWorkspaceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/workspaces/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "workspace ID required")
			return
		}

		ws, err := s.registry.Get(id)
		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, workspaceToResponse(ws))
	}
}

func (s *Server) listSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		workspaceID := r.URL.Query().Get("workspace")
		verdict := r.URL.Query().Get("verdict")

		responses := make([]SessionResponse, 0)
		for _, sess := range s.bench.List() {
			if workspaceID != "" && sess.WorkspaceID != workspaceID {
				continue
			}
			if verdict != "" && string(sess.Verdict) != verdict {
				continue
			}
			responses = append(responses, sessionToResponse(sess))
		}

		writeJSON(w, responses)
	}
}

func (s *Server) getSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "session ID required")
			return
		}

		sess, err := s.bench.Get(id)
		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, sessionToResponse(sess))
	}
}
