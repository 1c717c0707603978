package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
)

const maxBodyBytes = 1 << 20

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	RequestID string     `json:"request_id"`
	Status    job.Status `json:"status"`
	Error     string     `json:"error,omitempty"`
}

type resultResponse struct {
	RequestID  string             `json:"request_id"`
	Summary    domain.Summary     `json:"summary"`
	Detections []domain.Detection `json:"detections"`
	Metadata   domain.Metadata    `json:"metadata"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	id, err := s.jobs.Submit(r.Context(), params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameters) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submit detection failed", "error", err)
		if errors.Is(err, job.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "detection queue is full")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not submit detection request")
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{RequestID: id})
}

// handleEvaluate reports the seed derivation for params without creating a
// job.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := domain.Evaluate(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toStatus(j))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}

	switch j.Status {
	case job.StatusCompleted:
		if j.Result == nil {
			s.logger.Error("completed job has no result", "request_id", j.ID)
			writeError(w, http.StatusInternalServerError, "result unavailable")
			return
		}
		writeJSON(w, http.StatusOK, resultResponse{
			RequestID:  j.ID,
			Summary:    j.Result.Summary,
			Detections: nonNil(j.Result.Detections),
			Metadata:   j.Result.Metadata,
		})
	case job.StatusFailed:
		writeJSON(w, http.StatusUnprocessableEntity, toStatus(j))
	default:
		writeJSON(w, http.StatusConflict, toStatus(j))
	}
}

// lookup writes 404 for unknown IDs and 500 for store errors.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (job.Job, bool) {
	id := r.PathValue("request_id")
	j, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("request %s not found", id))
			return job.Job{}, false
		}
		s.logger.Error("job lookup failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return job.Job{}, false
	}
	return j, true
}

func decodeParams(w http.ResponseWriter, r *http.Request) (domain.QueryParameters, bool) {
	var params domain.QueryParameters
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return params, false
	}
	return params, true
}

// toStatus renders a job for clients. Processing is internal bookkeeping;
// clients only see pending, completed and failed.
func toStatus(j job.Job) statusResponse {
	status := j.Status
	if status == job.StatusProcessing {
		status = job.StatusPending
	}
	return statusResponse{RequestID: j.ID, Status: status, Error: j.Error}
}

// nonNil keeps an empty result serializing as [] rather than null.
func nonNil(d []domain.Detection) []domain.Detection {
	if d == nil {
		return []domain.Detection{}
	}
	return d
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
