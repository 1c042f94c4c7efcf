package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/repository/index"
	"github.com/kailas-cloud/ticketlens/internal/usecase/fusion"
)

var acme = tenant.Config{TenantID: "acme", Platform: "zendesk", RetrievalEnabled: true}

var apiTimeout = intent.SearchContext{
	Intent:       intent.ImmediateProblemSolving,
	Urgency:      intent.General,
	Keywords:     []string{"api", "timeout"},
	Filters:      intent.Filters{Priority: "high"},
	SortCriteria: []string{intent.SortRelevance},
}

type stubEngine struct {
	resp    fusion.Response
	err     error
	release chan struct{}
	query   fusion.Query
}

func (s *stubEngine) Search(_ context.Context, q fusion.Query) (fusion.Response, error) {
	s.query = q
	if s.release != nil {
		<-s.release
	}
	return s.resp, s.err
}

func fused(ids ...string) []hit.Fused {
	out := make([]hit.Fused, len(ids))
	for i, id := range ids {
		out[i] = hit.Fused{ID: id, Rank: i + 1, Normalized: 1 / float64(i+1)}
	}
	return out
}

type stubAdapter struct {
	hits []hit.Hit
	err  error
}

func (s stubAdapter) Search(context.Context, index.Query) ([]hit.Hit, error) { return s.hits, s.err }

func TestRetrieve_Results(t *testing.T) {
	cases := &stubEngine{resp: fusion.Response{Results: fused("c1", "c2")}}
	procs := &stubEngine{resp: fusion.Response{Results: fused("p1"), RerankApplied: true}}
	a := New(map[hit.Family]Searcher{hit.Case: cases, hit.Procedure: procs}, Options{}, nil)

	out := a.Retrieve(context.Background(), acme, apiTimeout)

	if out.Status() != StatusResults {
		t.Fatalf("status = %s", out.Status())
	}
	if out.HitCount() != 3 || !out.RerankApplied() || out.Partial() {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if got := out.Results(hit.Procedure); len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("procedure results = %+v", got)
	}
	if out.MaxNormalized() != 1 {
		t.Errorf("max normalized = %v", out.MaxNormalized())
	}
	if cases.query.TenantID != "acme" || cases.query.Family != hit.Case || cases.query.Text != "api timeout" {
		t.Errorf("case query = %+v", cases.query)
	}
	if len(cases.query.Filters.Must()) != 1 {
		t.Errorf("expected priority filter, got %+v", cases.query.Filters)
	}
}

func TestRetrieve_EmptyIsNotFailure(t *testing.T) {
	a := New(map[hit.Family]Searcher{
		hit.Case:      &stubEngine{},
		hit.Procedure: &stubEngine{},
	}, Options{}, nil)

	out := a.Retrieve(context.Background(), acme, apiTimeout)
	if out.Status() != StatusEmpty {
		t.Fatalf("status = %s, want empty", out.Status())
	}
	if out.Err() != nil {
		t.Errorf("unexpected error: %v", out.Err())
	}
}

func TestRetrieve_AllFamiliesFailed(t *testing.T) {
	a := New(map[hit.Family]Searcher{
		hit.Case:      &stubEngine{err: errors.New("redis down")},
		hit.Procedure: &stubEngine{err: errors.New("redis down")},
	}, Options{}, nil)

	out := a.Retrieve(context.Background(), acme, apiTimeout)
	if out.Status() != StatusFailed {
		t.Fatalf("status = %s, want failed", out.Status())
	}
	if out.Err() == nil || out.Partial() {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestRetrieve_OneFamilyFailedIsPartial(t *testing.T) {
	a := New(map[hit.Family]Searcher{
		hit.Case:      &stubEngine{resp: fusion.Response{Results: fused("c1")}},
		hit.Procedure: &stubEngine{err: errors.New("index missing")},
	}, Options{}, nil)

	out := a.Retrieve(context.Background(), acme, apiTimeout)
	if out.Status() != StatusResults || !out.Partial() {
		t.Fatalf("status = %s partial = %v", out.Status(), out.Partial())
	}
	if out.Family(hit.Procedure).State != StateError {
		t.Errorf("procedure state = %s", out.Family(hit.Procedure).State)
	}
}

func TestRetrieve_ErrorAndEmptyIsEmpty(t *testing.T) {
	a := New(map[hit.Family]Searcher{
		hit.Case:      &stubEngine{},
		hit.Procedure: &stubEngine{err: errors.New("index missing")},
	}, Options{}, nil)

	if got := a.Retrieve(context.Background(), acme, apiTimeout).Status(); got != StatusEmpty {
		t.Fatalf("status = %s, want empty", got)
	}
}

func TestRetrieve_MissingEngine(t *testing.T) {
	a := New(map[hit.Family]Searcher{hit.Case: &stubEngine{resp: fusion.Response{Results: fused("c1")}}}, Options{}, nil)
	out := a.Retrieve(context.Background(), acme, apiTimeout)
	if !errors.Is(out.Family(hit.Procedure).Err, domain.ErrRetrievalUnavailable) {
		t.Errorf("expected ErrRetrievalUnavailable, got %v", out.Family(hit.Procedure).Err)
	}
}

func TestRetrieve_DeadlineMarksPendingFamilyFailed(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	a := New(map[hit.Family]Searcher{
		hit.Case:      &stubEngine{resp: fusion.Response{Results: fused("c1")}},
		hit.Procedure: &stubEngine{release: release},
	}, Options{Deadline: 30 * time.Millisecond}, nil)

	start := time.Now()
	out := a.Retrieve(context.Background(), acme, apiTimeout)
	if time.Since(start) > 2*time.Second {
		t.Fatal("deadline not enforced")
	}
	proc := out.Family(hit.Procedure)
	if proc.State != StateError || !errors.Is(proc.Err, context.DeadlineExceeded) {
		t.Errorf("procedure outcome = %+v", proc)
	}
	if out.Status() != StatusResults {
		t.Errorf("status = %s", out.Status())
	}
}

// Lexical adapter times out, dense returns three hits: fusion proceeds on dense alone and the
// retrieval is a success, not a fallback.
func TestRetrieve_LexicalTimeoutDenseHits(t *testing.T) {
	dense := stubAdapter{hits: []hit.Hit{
		hit.New("c1", 0.9, hit.Case, nil),
		hit.New("c2", 0.8, hit.Case, nil),
		hit.New("c3", 0.7, hit.Case, nil),
	}}
	lexical := stubAdapter{err: context.DeadlineExceeded}
	engines := map[hit.Family]Searcher{
		hit.Case:      fusion.NewEngine(hit.Case, lexical, dense, nil, fusion.Options{}, nil),
		hit.Procedure: fusion.NewEngine(hit.Procedure, lexical, stubAdapter{}, nil, fusion.Options{}, nil),
	}

	out := New(engines, Options{}, nil).Retrieve(context.Background(), acme, apiTimeout)

	if out.Status() != StatusResults {
		t.Fatalf("status = %s, want results", out.Status())
	}
	cases := out.Family(hit.Case)
	if len(cases.Results) != 3 || !cases.Partial {
		t.Errorf("case outcome = %+v", cases)
	}
	if out.Family(hit.Procedure).State != StateEmpty {
		t.Errorf("procedure state = %s", out.Family(hit.Procedure).State)
	}
}
