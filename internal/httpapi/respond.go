package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
)

const msgInvalidBody = "Invalid request body"

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

// writeJSON encodes v before the header goes out, so a value that cannot be
// encoded is logged and answered with a plain 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).WithField("status", status).Error("failed to encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: apperr.Message(nil)})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.log.WithError(err).Debug("failed to write response")
	}
}

// writeError answers {"error": message}. Causes of 5xx errors are logged, never sent.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).
			WithField("trace_id", TraceID(r.Context())).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	s.writeJSON(w, status, errorBody{Error: apperr.Message(err)})
}

// decode reads a JSON body of at most maxJSONBytes into dst and runs its
// validate tags; any validation failure is reported as invalidMsg.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}, invalidMsg string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Request body too large")
		}
		if errors.Is(err, io.EOF) {
			return apperr.Validation(invalidMsg)
		}
		return apperr.Validation(msgInvalidBody)
	}

	if err := s.validate.Struct(dst); err != nil {
		return apperr.Validation(invalidMsg)
	}
	return nil
}
