package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		revisionConflictHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, ErrorResponseCodeUnauthorized),
		sentinelHandler(domain.ErrProposalNotFound, http.StatusNotFound, ErrorResponseCodeProposalNotFound),
		sentinelHandler(domain.ErrTicketNotFound, http.StatusNotFound, ErrorResponseCodeTicketNotFound),
		sentinelHandler(domain.ErrTenantNotFound, http.StatusNotFound, ErrorResponseCodeTenantNotFound),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, ErrorResponseCodeInvalidTransition),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrMalformedOutput, http.StatusBadGateway, ErrorResponseCodeMalformedOutput),
		sentinelHandler(domain.ErrModelProviderError, http.StatusBadGateway, ErrorResponseCodeModelProviderError),
		sentinelHandler(domain.ErrRetrievalUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeRetrievalUnavailable),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation messages are passed through since they describe the caller's own input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrUnauthorized,
		domain.ErrProposalNotFound,
		domain.ErrTicketNotFound,
		domain.ErrTenantNotFound,
		domain.ErrInvalidTransition,
		domain.ErrRevisionConflict,
		domain.ErrRateLimited,
		domain.ErrMalformedOutput,
		domain.ErrModelProviderError,
		domain.ErrRetrievalUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// revisionConflictHandler reports the state the winning reviewer left behind.
func revisionConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrRevisionConflict) {
		return false
	}
	var rce *domain.RevisionConflictError
	if errors.As(err, &rce) {
		w.Header().Set("ETag", strconv.Quote(strconv.Itoa(rce.CurrentVersion)))
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":            ErrorResponseCodeRevisionConflict,
			"message":         msg,
			"current_version": rce.CurrentVersion,
			"current_status":  rce.CurrentStatus,
		})
		return true
	}
	writeError(w, http.StatusConflict, ErrorResponseCodeRevisionConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
