package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/auth"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

type errorBody struct {
	Code     apperr.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// StatusOf maps a service error to its HTTP status.
func StatusOf(err error) int {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnauthenticated {
		return http.StatusUnauthorized
	}
	switch code.Kind() {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("[http] encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	body := errorBody{Code: apperr.CodeOf(err), Message: err.Error()}

	var de *apperr.Error
	if errors.As(err, &de) {
		body.Message = de.Message
		body.Metadata = de.Metadata
	}
	if status == http.StatusInternalServerError {
		s.log.Error("[http] %s %s failed (id=%s): %v", r.Method, r.URL.Path,
			middleware.GetReqID(r.Context()), err)
		body = errorBody{Code: apperr.CodeUnknown, Message: "internal error"}
	}
	s.writeJSON(w, status, errorResponse{Error: body})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.CodeInvalidInput, "request body is not valid JSON", err)
	}
	return nil
}

// actorOf returns the authenticated actor of r.
func actorOf(r *http.Request) (auth.Actor, error) {
	return auth.MustFromContext(r.Context())
}
