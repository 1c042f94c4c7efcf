package resolution

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ticketlens/internal/domain/proposal"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
)

const systemPrompt = `You are a support engineer drafting a reply to a customer ticket for a human agent to review.
Write in the customer's language. Never promise refunds, credits or dates you cannot see in the material.
Reply with a single JSON object and nothing else:
{"draft_response": string, "field_updates": object, "reasoning": string, "confidence": "high" | "medium" | "low"}
field_updates may only use the keys status, priority, category, tags, assignee, type.`

const strictSuffix = `

Your previous answer could not be parsed. Return ONLY the JSON object described above: no prose, no markdown fences.`

func synthesisPrompt(ticketText string, cases, procedures []hit.Fused) string {
	var b strings.Builder
	b.WriteString("Ticket:\n")
	b.WriteString(ticketText)
	writeEvidence(&b, "Similar resolved cases", cases)
	writeEvidence(&b, "Knowledge base procedures", procedures)
	b.WriteString("\nDraft a response grounded in the evidence above. Cite evidence ids in reasoning.")
	return b.String()
}

func directPrompt(ticketText string, fallback bool) string {
	var b strings.Builder
	b.WriteString("Ticket:\n")
	b.WriteString(ticketText)
	if fallback {
		b.WriteString("\nThe knowledge base is unavailable right now.")
	}
	b.WriteString("\nNo reference material is available. Draft a response from the ticket alone; ask for missing details.")
	return b.String()
}

func refinePrompt(prior proposal.Proposal, instruction string) string {
	var b strings.Builder
	b.WriteString("Current draft:\n")
	b.WriteString(prior.DraftResponse)
	if len(prior.FieldUpdates) > 0 {
		b.WriteString("\n\nCurrent field updates:\n")
		for k, v := range prior.FieldUpdates {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	if prior.Reasoning != "" {
		b.WriteString("\nReasoning so far: ")
		b.WriteString(prior.Reasoning)
	}
	b.WriteString("\n\nReviewer instruction:\n")
	b.WriteString(instruction)
	b.WriteString("\n\nRewrite the draft following the instruction. Keep facts that are still correct.")
	return b.String()
}

func writeEvidence(b *strings.Builder, heading string, list []hit.Fused) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:\n", heading)
	for _, f := range list {
		fmt.Fprintf(b, "[%s] (relevance %.2f) %s\n%s\n", f.ID, f.Normalized, f.Title(), strings.TrimSpace(f.Content()))
	}
}
