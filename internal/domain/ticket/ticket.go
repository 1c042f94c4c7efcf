package ticket

import (
	"strings"
	"time"
)

// Turn is one message in a ticket conversation.
type Turn struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticket is the slice of a ticketing-system record the engine reads.
type Ticket struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority,omitempty"`
	Status    string    `json:"status,omitempty"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Turns     []Turn    `json:"turns,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Text returns subject and body as the free text the router classifies.
func (t Ticket) Text() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(t.Subject); s != "" {
		parts = append(parts, s)
	}
	if b := strings.TrimSpace(t.Body); b != "" {
		parts = append(parts, b)
	}
	return strings.Join(parts, "\n")
}
