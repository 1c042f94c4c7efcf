// Package index implements the lexical and dense adapters over the per-family FT indexes.
//
// Documents live in HASH keys "ticketlens:<family>:<tenant>:<id>" and carry a tenant_id TAG;
// every query is pre-filtered on it.
package index

import (
	"context"
	"errors"
	"strings"

	"github.com/kailas-cloud/ticketlens/internal/db"
	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/filter"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
)

// ErrNoTenant is returned for a query without a tenant scope.
var ErrNoTenant = errors.New("index: tenant id is required")

// Query is the adapter input. Filters never include the tenant predicate; the adapter adds it.
type Query struct {
	TenantID string
	// Text is the semantic query embedded by the dense adapter.
	Text string
	// Terms are OR-ed by the lexical adapter.
	Terms   []string
	Filters filter.Expression
	// Sort is the router's sort criteria; only a leading sortable field is honored.
	Sort []string
	TopK int
}

// Searcher is the contract both adapters fulfil.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]hit.Hit, error)
}

// DefaultVectorFields lists the embedded fields per family.
func DefaultVectorFields(f hit.Family) []string {
	switch f {
	case hit.Case:
		return []string{"symptom", "cause", "resolution"}
	case hit.Procedure:
		return []string{"intent", "procedure"}
	}
	return nil
}

// Name returns the FT index name of a family.
func Name(f hit.Family) string {
	return domain.KeyPrefix + string(f) + ":idx"
}

// KeyPrefix returns the HASH key prefix of a family.
func KeyPrefix(f hit.Family) string {
	return domain.KeyPrefix + string(f) + ":"
}

// VectorAttr maps an embedded field to its vector attribute name.
func VectorAttr(field string) string {
	return field + "_vector"
}

// sortable lists the fields declared SORTABLE in the schema.
var sortable = map[string]bool{intent.FieldCreatedAt: true}

func sortField(criteria []string) string {
	if len(criteria) > 0 && sortable[criteria[0]] {
		return criteria[0]
	}
	return ""
}

func scoped(q Query) (filter.Expression, error) {
	if q.TenantID == "" {
		return filter.Expression{}, ErrNoTenant
	}
	c, err := filter.NewMatch(intent.FieldTenant, q.TenantID)
	if err != nil {
		return filter.Expression{}, err
	}
	return q.Filters.WithMust(c), nil
}

// documentID strips "<prefix><tenant>:" from a key.
func documentID(f hit.Family, tenantID, key string) string {
	return strings.TrimPrefix(key, KeyPrefix(f)+tenantID+":")
}

func toHit(f hit.Family, tenantID string, e db.SearchEntry) hit.Hit {
	payload := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		if strings.HasSuffix(k, "_vector") {
			continue
		}
		payload[k] = v
	}
	return hit.New(documentID(f, tenantID, e.Key), e.Score, f, payload)
}

// returnFields are the payload fields every adapter fetches.
var returnFields = []string{
	"title", "body", "__content",
	intent.FieldCategory, intent.FieldPriority, intent.FieldStatus,
	intent.FieldCreatedAt, intent.FieldTags,
}
