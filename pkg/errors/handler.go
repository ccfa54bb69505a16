package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorHandler translates errors into JSON responses.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes err to w. Domain and application errors keep their message
// and status; anything else becomes an opaque 500.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetReqID(r.Context())

	status, resp := h.translate(err)
	resp.RequestID = requestID

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("requestID", requestID),
	}
	switch {
	case status >= 500:
		h.logger.Error("request failed", fields...)
	default:
		h.logger.Warn("request rejected", fields...)
	}

	h.sendJSON(w, status, resp)
}

func (h *ErrorHandler) translate(err error) (int, ErrorResponse) {
	if de := GetDomainError(err); de != nil {
		status := de.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ErrorResponse{Error: de.Message, Code: de.Code}
	}
	if appErr := GetAppError(err); appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		msg := appErr.Message
		if status >= 500 && !h.debug {
			msg = "an internal error occurred"
		}
		return status, ErrorResponse{Error: msg, Code: appErr.Code}
	}
	msg := "an internal error occurred"
	if h.debug {
		msg = err.Error()
	}
	return http.StatusInternalServerError, ErrorResponse{Error: msg}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// Middleware recovers panics into 500 responses.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
