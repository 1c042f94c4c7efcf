package proposal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func validContent() Content {
	return Content{
		DraftResponse: "Please rotate the API key and retry.",
		FieldUpdates:  map[string]string{"priority": "high"},
		Reasoning:     "matched case-1",
		Confidence:    High,
		Mode:          Synthesis,
	}
}

func newDraft(t *testing.T) Proposal {
	t.Helper()
	p, err := NewDraft("acme", "T-1", validContent(), now)
	if err != nil {
		t.Fatalf("NewDraft: %v", err)
	}
	return p
}

func TestNewDraft(t *testing.T) {
	p := newDraft(t)
	if p.ID == "" {
		t.Error("expected generated ID")
	}
	if p.Version != 1 || p.Status != Draft {
		t.Errorf("expected v1 draft, got v%d %s", p.Version, p.Status)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Content)
	}{
		{"empty draft", func(c *Content) { c.DraftResponse = "  " }},
		{"oversize draft", func(c *Content) { c.DraftResponse = strings.Repeat("a", MaxDraftLength+1) }},
		{"unknown field", func(c *Content) { c.FieldUpdates = map[string]string{"sla": "4h"} }},
		{"empty field value", func(c *Content) { c.FieldUpdates = map[string]string{"category": ""} }},
		{"bad priority", func(c *Content) { c.FieldUpdates = map[string]string{"priority": "p0"} }},
		{"bad confidence", func(c *Content) { c.Confidence = "certain" }},
		{"bad mode", func(c *Content) { c.Mode = "magic" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validContent()
			tc.mutate(&c)
			_, err := NewDraft("acme", "T-1", c, now)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestApprove(t *testing.T) {
	p := newDraft(t)

	approved, entry, err := p.Approve("agent-7", "X", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != Approved || approved.FinalResponse != "X" || approved.ApprovedBy != "agent-7" {
		t.Errorf("unexpected approved proposal: %+v", approved)
	}
	if p.Status != Draft {
		t.Error("receiver must not be modified")
	}
	if entry.Action != ActionApprove || entry.ProposalID != p.ID || entry.TenantID != "acme" {
		t.Errorf("unexpected log entry: %+v", entry)
	}
}

func TestApprove_DefaultsFinalTextToDraft(t *testing.T) {
	p := newDraft(t)
	approved, _, err := p.Approve("agent-7", "", now)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.FinalResponse != p.DraftResponse {
		t.Errorf("FinalResponse = %q", approved.FinalResponse)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	p := newDraft(t)
	if _, _, err := p.Reject("agent-7", " ", now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	rejected, entry, err := p.Reject("agent-7", "wrong product", now)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != Rejected || rejected.RejectionReason != "wrong product" {
		t.Errorf("unexpected rejected proposal: %+v", rejected)
	}
	if entry.Feedback != "wrong product" {
		t.Errorf("expected reason in log feedback, got %q", entry.Feedback)
	}
}

func TestTransitions_OnlyFromDraft(t *testing.T) {
	for _, st := range []Status{Approved, Rejected, Superseded} {
		t.Run(string(st), func(t *testing.T) {
			p := newDraft(t)
			p.Status = st

			if _, _, err := p.Approve("a", "", now); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("approve: expected ErrInvalidTransition, got %v", err)
			}
			if _, _, err := p.Reject("a", "r", now); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("reject: expected ErrInvalidTransition, got %v", err)
			}
			if _, _, _, err := p.Refine(validContent(), "a", "f", now); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("refine: expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestRefine_CreatesNextVersion(t *testing.T) {
	p := newDraft(t)
	c := validContent()
	c.DraftResponse = "Shorter answer."

	superseded, next, entry, err := p.Refine(c, "agent-7", "make it shorter", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if superseded.Status != Superseded || superseded.ID != p.ID {
		t.Errorf("unexpected superseded: %+v", superseded)
	}
	if superseded.DraftResponse != p.DraftResponse {
		t.Error("superseded version must keep its content")
	}
	if next.Version != 2 || next.Status != Draft || next.ParentID != p.ID || next.ID == p.ID {
		t.Errorf("unexpected next: %+v", next)
	}
	if next.TenantID != p.TenantID || next.TicketID != p.TicketID {
		t.Error("next must stay on the same tenant and ticket")
	}
	if entry.Action != ActionRefine || entry.ProposalID != p.ID || entry.Feedback != "make it shorter" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if p.Status != Draft {
		t.Error("receiver must not be modified")
	}
}

func TestConfidenceCap(t *testing.T) {
	tests := []struct {
		c, ceiling, want Confidence
	}{
		{High, Low, Low},
		{Medium, Low, Low},
		{Low, High, Low},
		{High, Medium, Medium},
		{Medium, High, Medium},
	}
	for _, tc := range tests {
		if got := tc.c.Cap(tc.ceiling); got != tc.want {
			t.Errorf("%s.Cap(%s) = %s, want %s", tc.c, tc.ceiling, got, tc.want)
		}
	}
}

func TestParseAction(t *testing.T) {
	if _, err := ParseAction("approve"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseAction("escalate"); err == nil {
		t.Error("expected error for unknown action")
	}
}
