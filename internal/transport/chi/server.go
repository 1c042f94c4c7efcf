package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/event"
	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/usecase/approval"
	"github.com/kailas-cloud/ticketlens/internal/usecase/health"
	"github.com/kailas-cloud/ticketlens/internal/usecase/workflow"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Analyzer runs the analysis workflow and streams its progress.
type Analyzer interface {
	Analyze(ctx context.Context, req workflow.Request) <-chan event.Event
}

// ProposalService is the approval surface the API exposes.
type ProposalService interface {
	Get(ctx context.Context, tenantID, id string) (proposal.Proposal, error)
	History(ctx context.Context, tenantID, ticketID string) ([]proposal.Proposal, error)
	Logs(ctx context.Context, tenantID, proposalID string) ([]proposal.LogEntry, error)
	Approve(ctx context.Context, tenantID, id string, d approval.Decision) (proposal.Proposal, error)
	Refine(ctx context.Context, tenantID, id string, req approval.RefineRequest) (proposal.Proposal, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Server implements the control API.
type Server struct {
	analyzer        Analyzer
	proposals       ProposalService
	health          HealthChecker
	defaultPlatform string
	logger          *zap.Logger
	errorHandlers   []errorHandler
}

// NewServer creates a new Server. defaultPlatform is used when a request carries no X-Platform header.
func NewServer(
	analyzer Analyzer,
	proposals ProposalService,
	healthSvc HealthChecker,
	defaultPlatform string,
	logger *zap.Logger,
) *Server {
	return &Server{
		analyzer:        analyzer,
		proposals:       proposals,
		health:          healthSvc,
		defaultPlatform: defaultPlatform,
		logger:          logger,
		errorHandlers:   defaultErrorHandlers(),
	}
}

// Routes mounts the API onto r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tickets/{ticket_id}/analyze", s.AnalyzeTicket)
		r.Get("/tickets/{ticket_id}/proposals", s.ListTicketProposals)
		r.Get("/proposals/{proposal_id}", s.GetProposal)
		r.Get("/proposals/{proposal_id}/logs", s.ListProposalLogs)
		r.Post("/proposals/{proposal_id}/approval", s.DecideProposal)
		r.Post("/proposals/{proposal_id}/refine", s.RefineProposal)
	})
}

// --- Health ---

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	resp := HealthResponse{
		Status:    string(report.Status),
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}

	status := http.StatusOK
	if report.Status == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// --- Analysis ---

// AnalyzeTicket handles POST /v1/tickets/{ticket_id}/analyze. The response is an event stream.
func (s *Server) AnalyzeTicket(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	ticketID, ok := s.pathParam(w, r, "ticket_id")
	if !ok {
		return
	}

	var body AnalyzeRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}

	// Events can be spaced by long model calls; the server write timeout must not cut the stream.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clear write deadline", zap.Error(err))
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		s.logger.Error("analyze stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := s.analyzer.Analyze(ctx, workflow.Request{
		TenantID:  tenantID,
		Platform:  s.platform(r),
		TicketID:  ticketID,
		Query:     body.Query,
		Actor:     body.Actor,
		ActorRole: body.ActorRole,
	})

	for ev := range events {
		if err := sse.Write(ev); err != nil {
			s.logger.Info("client disconnected during analysis",
				zap.String("ticket_id", ticketID), zap.Error(err))
			cancel()
			// Drain so the workflow goroutine can finish.
			for range events {
			}
			return
		}
	}
}

// --- Proposals ---

// GetProposal handles GET /v1/proposals/{proposal_id}.
func (s *Server) GetProposal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "proposal_id")
	if !ok {
		return
	}

	p, err := s.proposals.Get(r.Context(), tenantID, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListTicketProposals handles GET /v1/tickets/{ticket_id}/proposals.
func (s *Server) ListTicketProposals(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	ticketID, ok := s.pathParam(w, r, "ticket_id")
	if !ok {
		return
	}

	history, err := s.proposals.History(r.Context(), tenantID, ticketID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if history == nil {
		history = []proposal.Proposal{}
	}
	writeJSON(w, http.StatusOK, ProposalListResponse{TicketID: ticketID, Proposals: history})
}

// ListProposalLogs handles GET /v1/proposals/{proposal_id}/logs.
func (s *Server) ListProposalLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "proposal_id")
	if !ok {
		return
	}

	entries, err := s.proposals.Logs(r.Context(), tenantID, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []proposal.LogEntry{}
	}
	writeJSON(w, http.StatusOK, LogListResponse{ProposalID: id, Entries: entries})
}

// DecideProposal handles POST /v1/proposals/{proposal_id}/approval.
func (s *Server) DecideProposal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "proposal_id")
	if !ok {
		return
	}

	var body ApprovalRequest
	if !s.decode(w, r, &body) {
		return
	}

	action, err := proposal.ParseAction(body.Action)
	if err != nil || action == proposal.ActionRefine {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("action must be %q or %q", proposal.ActionApprove, proposal.ActionReject))
		return
	}

	p, err := s.proposals.Approve(r.Context(), tenantID, id, approval.Decision{
		Action:    action,
		FinalText: body.FinalText,
		Reason:    body.Reason,
		Actor:     body.Actor,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RefineProposal handles POST /v1/proposals/{proposal_id}/refine.
func (s *Server) RefineProposal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "proposal_id")
	if !ok {
		return
	}

	var body RefineRequest
	if !s.decode(w, r, &body) {
		return
	}

	next, err := s.proposals.Refine(r.Context(), tenantID, id, approval.RefineRequest{
		Instruction: body.Instruction,
		Actor:       body.Actor,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, next)
}

// --- Helpers ---

func (s *Server) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := TenantFromContext(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, domain.ErrUnauthorized.Error())
		return "", false
	}
	return id, true
}

func (s *Server) platform(r *http.Request) string {
	if p := r.Header.Get("X-Platform"); p != "" {
		return p
	}
	return s.defaultPlatform
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || v == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
			fmt.Sprintf("invalid format for parameter %s", name))
		return "", false
	}
	return v, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}
