package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/m-mizutani/cogito/trace"
)

type apiError struct {
	Error string `json:"error"`
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, apiError{Error: msg})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	req := trace.ListRequest{
		PageSize:  20,
		PageToken: r.URL.Query().Get("page_token"),
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid page_size parameter")
			return
		}
		req.PageSize = n
	}

	resp, err := s.source.List(r.Context(), req)
	if err != nil {
		s.logger.Error("failed to list traces", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}
	if resp.Traces == nil {
		resp.Traces = []trace.Summary{}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("id")

	t, err := s.source.Get(r.Context(), traceID)
	switch {
	case errors.Is(err, trace.ErrInvalidTraceID):
		s.writeError(w, http.StatusBadRequest, "invalid trace ID")
	case errors.Is(err, trace.ErrTraceNotFound):
		s.writeError(w, http.StatusNotFound, "trace not found")
	case err != nil:
		s.logger.Error("failed to get trace", "error", err, "trace_id", traceID)
		s.writeError(w, http.StatusInternalServerError, "failed to get trace")
	default:
		s.writeJSON(w, http.StatusOK, t)
	}
}
