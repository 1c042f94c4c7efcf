// Package intent holds the structured search intent the router extracts from a ticket or query.
package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/filter"
)

// Intent is the handling goal behind a request.
type Intent string

// Intents.
const (
	ImmediateProblemSolving Intent = "immediate_problem_solving"
	InformationGathering    Intent = "information_gathering"
	Learning                Intent = "learning"
	PerformanceAnalysis     Intent = "performance_analysis"
)

// Urgency grades how quickly the requester needs an answer.
type Urgency string

// Urgency levels.
const (
	Immediate Urgency = "immediate"
	Today     Urgency = "today"
	General   Urgency = "general"
	Reference Urgency = "reference"
)

// Index field names shared by the router, the adapters and the ingestion side.
const (
	FieldTenant         = "tenant_id"
	FieldCreatedAt      = "created_at"
	FieldCategory       = "category"
	FieldPriority       = "priority"
	FieldStatus         = "status"
	FieldCustomerTier   = "customer_tier"
	FieldAttachmentType = "attachment_type"
	FieldOwner          = "owner"
	FieldTags           = "tags"
)

// Sort criteria.
const (
	SortRelevance      = "relevance"
	SortCreatedAt      = "created_at"
	SortPriority       = "priority"
	SortResolutionTime = "resolution_time"
	SortHelpfulness    = "helpfulness"
	SortTicketVolume   = "ticket_volume"
)

// TimeWindow is a resolved relative time filter, e.g. "this_week" evaluated at request time.
type TimeWindow struct {
	Label string    `json:"label"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

// Filters is the structured predicate vocabulary supported by both index adapters.
type Filters struct {
	CreatedAt      *TimeWindow `json:"created_at,omitempty"`
	Category       string      `json:"category,omitempty"`
	Priority       string      `json:"priority,omitempty"`
	Status         string      `json:"status,omitempty"`
	CustomerTier   string      `json:"customer_tier,omitempty"`
	AttachmentType string      `json:"attachment_type,omitempty"`
	Owner          string      `json:"owner,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
}

// IsEmpty reports whether no predicate is set.
func (f Filters) IsEmpty() bool {
	return f.CreatedAt == nil && f.Category == "" && f.Priority == "" && f.Status == "" &&
		f.CustomerTier == "" && f.AttachmentType == "" && f.Owner == "" && len(f.Tags) == 0
}

// Map returns a flat view keyed by index field name, used for logging and events.
func (f Filters) Map() map[string]string {
	m := make(map[string]string)
	if f.CreatedAt != nil {
		m[FieldCreatedAt] = f.CreatedAt.Label
	}
	for k, v := range map[string]string{
		FieldCategory:       f.Category,
		FieldPriority:       f.Priority,
		FieldStatus:         f.Status,
		FieldCustomerTier:   f.CustomerTier,
		FieldAttachmentType: f.AttachmentType,
		FieldOwner:          f.Owner,
	} {
		if v != "" {
			m[k] = v
		}
	}
	for i, tag := range f.Tags {
		m[fmt.Sprintf("%s[%d]", FieldTags, i)] = tag
	}
	return m
}

// Expression converts the filters into the conjunctive pre-filter the index adapters run.
// Tags are OR-ed: a document carrying any requested tag matches.
func (f Filters) Expression() (filter.Expression, error) {
	var must, should []filter.Condition

	if f.CreatedAt != nil {
		c, err := filter.NewTimeRange(FieldCreatedAt, f.CreatedAt.From, f.CreatedAt.To)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}

	for _, kv := range [][2]string{
		{FieldCategory, f.Category},
		{FieldPriority, f.Priority},
		{FieldStatus, f.Status},
		{FieldCustomerTier, f.CustomerTier},
		{FieldAttachmentType, f.AttachmentType},
		{FieldOwner, f.Owner},
	} {
		if kv[1] == "" {
			continue
		}
		c, err := filter.NewMatch(kv[0], kv[1])
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}

	for _, tag := range f.Tags {
		c, err := filter.NewMatch(FieldTags, tag)
		if err != nil {
			return filter.Expression{}, err
		}
		should = append(should, c)
	}

	expr, err := filter.NewExpression(must, should, nil)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("build filter expression: %w", err)
	}
	return expr, nil
}

// SearchContext is built once per request and never modified afterwards.
type SearchContext struct {
	Intent       Intent   `json:"intent"`
	Urgency      Urgency  `json:"urgency"`
	Keywords     []string `json:"keywords"`
	Filters      Filters  `json:"filters"`
	SortCriteria []string `json:"sort_criteria"`
}

// Query joins the keywords into the text handed to the dense adapter and the reranker.
func (c SearchContext) Query() string {
	return strings.Join(c.Keywords, " ")
}

// PrimarySort returns the leading sort criterion, or relevance when none is set.
func (c SearchContext) PrimarySort() string {
	if len(c.SortCriteria) == 0 {
		return SortRelevance
	}
	return c.SortCriteria[0]
}
