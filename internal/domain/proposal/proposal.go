package proposal

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kailas-cloud/ticketlens/internal/domain"
)

// Status is the lifecycle state of one proposal version.
type Status string

// Statuses. Everything but Draft is terminal for that version.
const (
	Draft      Status = "draft"
	Approved   Status = "approved"
	Rejected   Status = "rejected"
	Superseded Status = "superseded"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool { return s != Draft }

// Confidence is the resolution step's self-assessment.
type Confidence string

// Confidence levels.
const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

func (c Confidence) rank() int {
	switch c {
	case High:
		return 2
	case Medium:
		return 1
	default:
		return 0
	}
}

// ParseConfidence maps free text to a level; unknown values are reported as !ok.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case High:
		return High, true
	case Medium:
		return Medium, true
	case Low:
		return Low, true
	}
	return "", false
}

// Cap returns the lower of c and ceiling.
func (c Confidence) Cap(ceiling Confidence) Confidence {
	if c.rank() > ceiling.rank() {
		return ceiling
	}
	return c
}

// Mode records how the proposal was produced.
type Mode string

// Modes.
const (
	// Synthesis drafts from retrieved evidence.
	Synthesis Mode = "synthesis"
	// Direct drafts from the ticket alone (retrieval disabled or nothing found).
	Direct Mode = "direct"
	// Fallback drafts from the ticket alone after retrieval backends failed.
	Fallback Mode = "fallback"
)

// Field-update keys a proposal may suggest.
var allowedFieldUpdates = map[string]struct{}{
	"status":   {},
	"priority": {},
	"category": {},
	"tags":     {},
	"assignee": {},
	"type":     {},
}

var allowedPriorities = map[string]struct{}{
	"low": {}, "normal": {}, "medium": {}, "high": {}, "urgent": {},
}

// MaxDraftLength bounds the draft response, in runes.
const MaxDraftLength = 20000

// Reference points at a retrieved document the draft relied on.
type Reference struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Proposal is one version of a drafted response for a ticket.
type Proposal struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	TicketID        string            `json:"ticket_id"`
	ParentID        string            `json:"parent_id,omitempty"`
	Version         int               `json:"version"`
	DraftResponse   string            `json:"draft_response"`
	FieldUpdates    map[string]string `json:"field_updates"`
	Reasoning       string            `json:"reasoning"`
	Confidence      Confidence        `json:"confidence"`
	Mode            Mode              `json:"mode"`
	SimilarCases    []Reference       `json:"similar_cases"`
	KBReferences    []Reference       `json:"kb_references"`
	Status          Status            `json:"status"`
	ApprovedBy      string            `json:"approved_by,omitempty"`
	FinalResponse   string            `json:"final_response,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Content is the generated part of a proposal, produced by the resolution step.
type Content struct {
	DraftResponse string
	FieldUpdates  map[string]string
	Reasoning     string
	Confidence    Confidence
	Mode          Mode
	SimilarCases  []Reference
	KBReferences  []Reference
}

// NewDraft creates version 1 of a proposal for a ticket.
func NewDraft(tenantID, ticketID string, c Content, now time.Time) (Proposal, error) {
	p := Proposal{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		TicketID:      ticketID,
		Version:       1,
		DraftResponse: c.DraftResponse,
		FieldUpdates:  c.FieldUpdates,
		Reasoning:     c.Reasoning,
		Confidence:    c.Confidence,
		Mode:          c.Mode,
		SimilarCases:  c.SimilarCases,
		KBReferences:  c.KBReferences,
		Status:        Draft,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if err := p.Validate(); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// Validate runs the schema checks a proposal must pass before it is persisted.
func (p Proposal) Validate() error {
	switch {
	case p.TenantID == "":
		return fmt.Errorf("tenant_id is required: %w", domain.ErrValidation)
	case p.TicketID == "":
		return fmt.Errorf("ticket_id is required: %w", domain.ErrValidation)
	case p.Version < 1:
		return fmt.Errorf("version must be >= 1, got %d: %w", p.Version, domain.ErrValidation)
	case strings.TrimSpace(p.DraftResponse) == "":
		return fmt.Errorf("draft_response is empty: %w", domain.ErrValidation)
	case utf8.RuneCountInString(p.DraftResponse) > MaxDraftLength:
		return fmt.Errorf("draft_response exceeds %d characters: %w", MaxDraftLength, domain.ErrValidation)
	}
	if _, ok := ParseConfidence(string(p.Confidence)); !ok {
		return fmt.Errorf("unknown confidence %q: %w", p.Confidence, domain.ErrValidation)
	}
	switch p.Mode {
	case Synthesis, Direct, Fallback:
	default:
		return fmt.Errorf("unknown mode %q: %w", p.Mode, domain.ErrValidation)
	}
	for k, v := range p.FieldUpdates {
		if _, ok := allowedFieldUpdates[k]; !ok {
			return fmt.Errorf("field update %q is not allowed: %w", k, domain.ErrValidation)
		}
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("field update %q has an empty value: %w", k, domain.ErrValidation)
		}
		if k == "priority" {
			if _, ok := allowedPriorities[strings.ToLower(v)]; !ok {
				return fmt.Errorf("unknown priority %q: %w", v, domain.ErrValidation)
			}
		}
	}
	return nil
}

func (p Proposal) requireDraft() error {
	if p.Status != Draft {
		return fmt.Errorf("proposal %s v%d is %s: %w", p.ID, p.Version, p.Status, domain.ErrInvalidTransition)
	}
	return nil
}

// Approve returns the approved copy of p and its log entry. finalText defaults to the draft.
func (p Proposal) Approve(actor, finalText string, now time.Time) (Proposal, LogEntry, error) {
	if err := p.requireDraft(); err != nil {
		return Proposal{}, LogEntry{}, err
	}
	if strings.TrimSpace(actor) == "" {
		return Proposal{}, LogEntry{}, fmt.Errorf("actor is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(finalText) == "" {
		finalText = p.DraftResponse
	}

	out := p
	out.Status = Approved
	out.ApprovedBy = actor
	out.FinalResponse = finalText
	out.UpdatedAt = now.UTC()
	return out, newLogEntry(p, ActionApprove, actor, "", now), nil
}

// Reject returns the rejected copy of p and its log entry. A reason is mandatory.
func (p Proposal) Reject(actor, reason string, now time.Time) (Proposal, LogEntry, error) {
	if err := p.requireDraft(); err != nil {
		return Proposal{}, LogEntry{}, err
	}
	if strings.TrimSpace(actor) == "" {
		return Proposal{}, LogEntry{}, fmt.Errorf("actor is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		return Proposal{}, LogEntry{}, fmt.Errorf("rejection reason is required: %w", domain.ErrValidation)
	}

	out := p
	out.Status = Rejected
	out.RejectionReason = reason
	out.UpdatedAt = now.UTC()
	return out, newLogEntry(p, ActionReject, actor, reason, now), nil
}

// Refine builds version n+1 from regenerated content. It returns the superseded copy of p,
// the new draft and the log entry recorded against p. p itself is not modified.
func (p Proposal) Refine(
	c Content, actor, feedback string, now time.Time,
) (superseded, next Proposal, entry LogEntry, err error) {
	if err := p.requireDraft(); err != nil {
		return Proposal{}, Proposal{}, LogEntry{}, err
	}
	if strings.TrimSpace(actor) == "" {
		return Proposal{}, Proposal{}, LogEntry{}, fmt.Errorf("actor is required: %w", domain.ErrValidation)
	}

	next = Proposal{
		ID:            uuid.NewString(),
		TenantID:      p.TenantID,
		TicketID:      p.TicketID,
		ParentID:      p.ID,
		Version:       p.Version + 1,
		DraftResponse: c.DraftResponse,
		FieldUpdates:  c.FieldUpdates,
		Reasoning:     c.Reasoning,
		Confidence:    c.Confidence,
		Mode:          c.Mode,
		SimilarCases:  c.SimilarCases,
		KBReferences:  c.KBReferences,
		Status:        Draft,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if err := next.Validate(); err != nil {
		return Proposal{}, Proposal{}, LogEntry{}, err
	}

	superseded = p
	superseded.Status = Superseded
	superseded.UpdatedAt = now.UTC()
	return superseded, next, newLogEntry(p, ActionRefine, actor, feedback, now), nil
}
