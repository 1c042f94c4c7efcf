package chi

import (
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
)

// ErrorResponseCode is the machine-readable error code of an API error.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest           ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized         ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed     ErrorResponseCode = "validation_failed"
	ErrorResponseCodeProposalNotFound     ErrorResponseCode = "proposal_not_found"
	ErrorResponseCodeTicketNotFound       ErrorResponseCode = "ticket_not_found"
	ErrorResponseCodeTenantNotFound       ErrorResponseCode = "tenant_not_found"
	ErrorResponseCodeInvalidTransition    ErrorResponseCode = "invalid_transition"
	ErrorResponseCodeRevisionConflict     ErrorResponseCode = "revision_conflict"
	ErrorResponseCodeRateLimited          ErrorResponseCode = "rate_limited"
	ErrorResponseCodeModelProviderError   ErrorResponseCode = "model_provider_error"
	ErrorResponseCodeMalformedOutput      ErrorResponseCode = "malformed_output"
	ErrorResponseCodeRetrievalUnavailable ErrorResponseCode = "retrieval_unavailable"
	ErrorResponseCodeInternalError        ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// AnalyzeRequest is the optional body of POST /v1/tickets/{ticket_id}/analyze.
type AnalyzeRequest struct {
	Query     string `json:"query,omitempty"`
	Actor     string `json:"actor,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`
}

// ApprovalRequest is the body of POST /v1/proposals/{proposal_id}/approval.
type ApprovalRequest struct {
	Action    string `json:"action"`
	FinalText string `json:"final_text,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Actor     string `json:"actor"`
}

// RefineRequest is the body of POST /v1/proposals/{proposal_id}/refine.
type RefineRequest struct {
	Instruction string `json:"instruction"`
	Actor       string `json:"actor"`
}

// ProposalListResponse wraps a ticket's proposal history.
type ProposalListResponse struct {
	TicketID  string              `json:"ticket_id"`
	Proposals []proposal.Proposal `json:"proposals"`
}

// LogListResponse wraps a proposal's approval log.
type LogListResponse struct {
	ProposalID string              `json:"proposal_id"`
	Entries    []proposal.LogEntry `json:"entries"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}
