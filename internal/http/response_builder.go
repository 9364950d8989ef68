package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ahorro/internal/backup"
	"ahorro/internal/core"
	"ahorro/internal/log"
	"ahorro/internal/middleware/trace"
	"ahorro/internal/services"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

const (
	CodeBadRequest           = "bad_request"
	CodeInvalidInput         = "invalid_input"
	CodeConfirmationRequired = "confirmation_required"
	CodeNotStarted           = "not_started"
	CodeNotFound             = "not_found"
	CodeNotImplemented       = "not_implemented"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal"
)

var inputErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInsufficientFunds,
	core.ErrInvalidRange,
	core.ErrInvalidProgression,
	core.ErrNotInteger,
	core.ErrInvalidTheme,
	services.ErrSlotOutOfRange,
	services.ErrEmptyQuery,
	backup.ErrUnreadableBackup,
	backup.ErrInvalidBackup,
	backup.ErrInvalidBackupKey,
}

// userMessages are shown verbatim to the person using the grid.
var userMessages = map[error]string{
	core.ErrInvalidAmount:     "Cantidad inválida.",
	core.ErrInsufficientFunds: "Fondos insuficientes para este retiro.",
}

// classify maps an error to its HTTP status, code and message.
func classify(err error) (int, string, string) {
	var reqErr *requestError
	var inErr *inputError
	var confirm *services.ConfirmationError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, CodeBadRequest, reqErr.msg
	case errors.As(err, &inErr):
		return http.StatusUnprocessableEntity, CodeInvalidInput, inErr.msg
	case errors.As(err, &confirm):
		return http.StatusPreconditionRequired, CodeConfirmationRequired, confirm.Prompt
	case errors.Is(err, services.ErrNotStarted):
		return http.StatusConflict, CodeNotStarted, err.Error()
	case errors.Is(err, services.ErrChallengeNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, backup.ErrNotImplemented):
		return http.StatusNotImplemented, CodeNotImplemented, err.Error()
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			if msg, ok := userMessages[target]; ok {
				return http.StatusUnprocessableEntity, CodeInvalidInput, msg
			}
			return http.StatusUnprocessableEntity, CodeInvalidInput, err.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternal, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError logs server faults and writes the error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	ctx := r.Context()
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		log.FromContext(ctx).ErrorContext(ctx, "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	} else {
		log.FromContext(ctx).DebugContext(ctx, "Request rejected", log.FieldError, err, "code", code)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg, RequestID: trace.RequestID(ctx)})
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Code:      CodeRateLimited,
		Message:   "Rate limit exceeded. Please try again later.",
		RequestID: trace.RequestID(r.Context()),
	})
}

// attachment marks the response as a download named name.
func attachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
}
