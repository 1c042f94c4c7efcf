package hit

import "fmt"

// Family is the document family a hit was retrieved from.
type Family string

// Document families.
const (
	// Case is a resolved historical ticket.
	Case Family = "case"
	// Procedure is a knowledge-base or runbook article.
	Procedure Family = "procedure"
)

// Families lists every family in retrieval order.
func Families() []Family { return []Family{Case, Procedure} }

// IsValid reports whether f is a known family.
func (f Family) IsValid() bool { return f == Case || f == Procedure }

// ParseFamily converts a string into a Family.
func ParseFamily(s string) (Family, error) {
	f := Family(s)
	if !f.IsValid() {
		return "", fmt.Errorf("unknown document family %q", s)
	}
	return f, nil
}

// Hit is a single ranked document produced by an index adapter. Never persisted.
type Hit struct {
	id      string
	score   float64
	family  Family
	payload map[string]string
}

// New creates a hit.
func New(id string, score float64, family Family, payload map[string]string) Hit {
	return Hit{id: id, score: score, family: family, payload: payload}
}

// ID returns the document identifier.
func (h Hit) ID() string { return h.id }

// Score returns the backend relevance score (BM25 score or cosine similarity).
func (h Hit) Score() float64 { return h.score }

// Family returns the document family.
func (h Hit) Family() Family { return h.family }

// Payload returns the stored document fields.
func (h Hit) Payload() map[string]string { return h.payload }

// Content returns the text a reranker or prompt should see for this hit.
func (h Hit) Content() string { return Content(h.payload) }

// Content picks the most descriptive text out of a document payload.
func Content(payload map[string]string) string {
	if c := payload["__content"]; c != "" {
		return c
	}
	title, body := payload["title"], payload["body"]
	switch {
	case title != "" && body != "":
		return title + "\n" + body
	case title != "":
		return title
	default:
		return body
	}
}

// Fused is one entry of a fused (and possibly reranked) ranking.
type Fused struct {
	ID       string  `json:"id"`
	RRFScore float64 `json:"rrf_score"`
	Rank     int     `json:"rank"`
	Family   Family  `json:"source_family"`

	// Normalized is RRFScore divided by the highest score a document could reach
	// (rank 1 in every list), so it lies in (0, 1].
	Normalized  float64           `json:"normalized_score"`
	RerankScore *float64          `json:"rerank_score,omitempty"`
	BestRank    int               `json:"-"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// Title returns a short human label for the fused document.
func (f Fused) Title() string {
	if t := f.Payload["title"]; t != "" {
		return t
	}
	return f.ID
}

// Content returns the text used for reranking and prompting.
func (f Fused) Content() string { return Content(f.Payload) }
