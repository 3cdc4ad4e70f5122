package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/perbu/presensi/internal/apperr"
	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/format"
	"github.com/perbu/presensi/internal/verify"
)

const maxBodyBytes = 64 << 10

// handleCheck runs a verification and answers with its report. A second
// call while one is running is rejected with 409.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	done := make(chan coordinator.Outcome[*verify.Report], 1)
	err := s.coord.SubmitExclusive(id, coordinator.SinkFunc[*verify.Report](func(o coordinator.Outcome[*verify.Report]) {
		done <- o
	}))
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	s.logger.Info("Check requested over HTTP", "task_id", id, "user", GetUser(r).Name)

	select {
	case o := <-done:
		if o.Status != coordinator.StatusSuccess {
			s.writeFailure(w, o.Status, o.Err)
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{
			ID:        id,
			Results:   o.Value.Results,
			Summary:   format.AttendanceSummary(o.Value),
			ElapsedMS: o.Elapsed.Milliseconds(),
		})
	case <-r.Context().Done():
		// The caller left; the task still finishes and is recorded.
	}
}

// handleAsk queues a question and answers once it has run
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question, err := readQuestion(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := uuid.NewString()
	done := make(chan coordinator.Outcome[string], 1)
	position, err := s.coord.SubmitQueued(id, question, coordinator.SinkFunc[string](func(o coordinator.Outcome[string]) {
		done <- o
	}))
	if err != nil {
		s.writeRejection(w, err)
		return
	}

	select {
	case o := <-done:
		if o.Status != coordinator.StatusSuccess {
			s.writeFailure(w, o.Status, o.Err)
			return
		}
		writeJSON(w, http.StatusOK, askResponse{
			ID:        id,
			Position:  position,
			Answer:    o.Value,
			ElapsedMS: o.Elapsed.Milliseconds(),
		})
	case <-r.Context().Done():
	}
}

func readQuestion(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var question string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errors.New("invalid JSON body")
		}
		question = req.Question
	} else {
		question = r.FormValue("question")
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is required")
	}
	return question, nil
}

// handleStatus reports the coordinator state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() StatusResponse {
	st := s.coord.Stats()
	resp := StatusResponse{
		Verifying:     st.GateHeld,
		VerifyingID:   st.GateOwner,
		QueueLength:   st.QueueLength,
		QueueCapacity: st.QueueCapacity,
		Draining:      st.Draining,
		ActiveRequest: st.ActiveRequest,
		Closed:        st.Closed,
	}
	if s.history != nil {
		counts, err := s.history.Counts(24 * time.Hour)
		if err != nil {
			s.logger.Warn("Failed to count tasks", "error", err)
		} else {
			resp.Last24h = counts
		}
	}
	return resp
}

func (s *Server) writeRejection(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResponse{Error: format.VerifyBusy})
	case errors.Is(err, coordinator.ErrQueueFull):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	case errors.Is(err, coordinator.ErrSystemBusy), errors.Is(err, coordinator.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("Unexpected admission error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, status coordinator.Status, err *apperr.Error) {
	if status == coordinator.StatusTimeout || err == nil {
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "timed out", Kind: "timeout"})
		return
	}
	writeJSON(w, statusForKind(err.Kind), errorResponse{Error: err.Detail, Kind: string(err.Kind)})
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.MalformedResponse, apperr.TransportFailure, apperr.RemoteFailure:
		return http.StatusBadGateway
	case apperr.Shutdown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
