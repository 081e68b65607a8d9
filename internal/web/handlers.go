package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog-etl/internal/core"
	"github.com/JonMunkholm/catalog-etl/internal/logging"
	"github.com/JonMunkholm/catalog-etl/internal/pipeline"
)

// maxRequestBody caps the JSON body of a start request.
const maxRequestBody = 64 << 10

type healthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
}

type startResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type runsResponse struct {
	Runs []pipeline.RunStatus `json:"runs"`
}

type tableInfo struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
	Rows    *int64   `json:"rows,omitempty"`
}

type tablesResponse struct {
	Tables []tableInfo `json:"tables"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ActiveRuns: s.service.Active()})
}

// handleStartRun accepts an optional RunRequest body and launches a run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	id, err := s.service.Start(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrRunInProgress) {
			status = http.StatusConflict
			w.Header().Set("Retry-After", "60")
		}
		s.respondError(w, r, err, status)
		return
	}

	logging.WithFields(r.Context(), "run_id", id).Info("run accepted", "feed_url", req.FeedURL)

	statusURL := "/api/runs/" + id
	w.Header().Set("Location", statusURL)
	writeJSON(w, http.StatusAccepted, startResponse{ID: id, StatusURL: statusURL})
}

func decodeRunRequest(r *http.Request) (pipeline.RunRequest, error) {
	var req pipeline.RunRequest

	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if req.ChunkSize < 0 {
		return req, fmt.Errorf("%w: chunk_size %d is negative", errInvalidRequest, req.ChunkSize)
	}
	if req.FeedURL != "" {
		u, err := url.Parse(req.FeedURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return req, fmt.Errorf("%w: feed_url %q is not an http(s) url", errInvalidRequest, req.FeedURL)
		}
	}
	return req, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runsResponse{Runs: s.service.List()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleCancelRun stops a run that has not begun streaming. A run already
// streaming finishes normally; the response reports its current state.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	if err := s.service.Cancel(id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	status, err := s.service.Get(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

// handleListTables lists the target tables and, when a counter is
// configured, their current row counts.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	defs := core.Tables()
	resp := tablesResponse{Tables: make([]tableInfo, 0, len(defs))}

	for _, def := range defs {
		info := tableInfo{Name: def.Name, Label: def.Label, Columns: def.Columns}
		if s.opts.Tables != nil {
			n, err := s.opts.Tables.Count(r.Context(), def.Name)
			if err != nil {
				s.respondError(w, r, fmt.Errorf("count %s: %w", def.Name, err), http.StatusInternalServerError)
				return
			}
			info.Rows = &n
		}
		resp.Tables = append(resp.Tables, info)
	}

	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	if errors.Is(err, pipeline.ErrRunNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
