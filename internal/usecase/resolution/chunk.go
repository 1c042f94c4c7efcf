package resolution

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ticketlens/internal/domain/ticket"
)

// DefaultKeepTurns is how many trailing turns are quoted verbatim when a ticket is chunked.
const DefaultKeepTurns = 4

const synopsisLineRunes = 200

// chunkTicket renders the ticket for a prompt. When the full rendering exceeds budget tokens it
// keeps the subject and the last keep turns verbatim and reduces older turns to their first
// sentence. Synopsis lines are dropped oldest first until the text fits.
func chunkTicket(t ticket.Ticket, budget, keep int, counter TokenCounter) (string, bool) {
	turns := conversation(t)
	full := render(t.Subject, nil, turns)
	if budget <= 0 || counter.Count(full) <= budget {
		return full, false
	}
	if keep <= 0 {
		keep = DefaultKeepTurns
	}

	cut := max(len(turns)-keep, 0)
	older, recent := turns[:cut], turns[cut:]
	synopsis := make([]string, 0, len(older))
	for _, tr := range older {
		synopsis = append(synopsis, fmt.Sprintf("%s: %s", author(tr), firstSentence(tr.Body)))
	}

	text := render(t.Subject, synopsis, recent)
	for len(synopsis) > 0 && counter.Count(text) > budget {
		synopsis = synopsis[1:]
		text = render(t.Subject, synopsis, recent)
	}
	for len(recent) > 1 && counter.Count(text) > budget {
		recent = recent[1:]
		text = render(t.Subject, synopsis, recent)
	}
	return text, true
}

func conversation(t ticket.Ticket) []ticket.Turn {
	turns := make([]ticket.Turn, 0, len(t.Turns)+1)
	if strings.TrimSpace(t.Body) != "" {
		turns = append(turns, ticket.Turn{Author: "requester", Body: t.Body, CreatedAt: t.CreatedAt})
	}
	return append(turns, t.Turns...)
}

func render(subject string, synopsis []string, turns []ticket.Turn) string {
	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(strings.TrimSpace(subject))
	b.WriteString("\n")
	if len(synopsis) > 0 {
		b.WriteString("\nEarlier conversation (summary):\n")
		for _, line := range synopsis {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if len(turns) > 0 {
		b.WriteString("\nConversation:\n")
		for _, tr := range turns {
			fmt.Fprintf(&b, "[%s] %s\n", author(tr), strings.TrimSpace(tr.Body))
		}
	}
	return b.String()
}

func author(t ticket.Turn) string {
	if a := strings.TrimSpace(t.Author); a != "" {
		return a
	}
	return "unknown"
}

// firstSentence returns the leading sentence of s, capped at synopsisLineRunes.
func firstSentence(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		s = s[:i+1]
	}
	if utf8.RuneCountInString(s) > synopsisLineRunes {
		r := []rune(s)
		s = string(r[:synopsisLineRunes]) + "…"
	}
	return s
}
