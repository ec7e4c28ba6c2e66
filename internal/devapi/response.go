package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

// HeaderErrorCode carries the domain error code of a failed request.
const HeaderErrorCode = "X-Error-Code"

// Envelope is the response shape of every JSON endpoint.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	}); err != nil {
		logger.L(r.Context()).Error("encode response", "error", err)
	}
}

// writeError maps err onto a status code. Errors that are not domain errors
// are logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.GetErrorCode(err)
	if code == "" {
		logger.L(r.Context()).Error("internal error", "error", err, "path", r.URL.Path)
		code = domain.ErrInternal.Code
		err = domain.ErrInternal
	}
	status := errorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.L(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
	}
	w.Header().Set(HeaderErrorCode, code)
	s.writeJSON(w, r, status, errorMessage(err), nil)
}

// errorMessage is the client-facing text: message and details, without the
// code prefix or the wrapped cause.
func errorMessage(err error) string {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return err.Error()
	}
	if de.Details == "" {
		return de.Message
	}
	return de.Message + ": " + de.Details
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "UT-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
