package retrieval

import (
	"context"

	"github.com/kailas-cloud/ticketlens/internal/usecase/fusion"
)

// Searcher runs one family's hybrid search. Implemented by *fusion.Engine.
type Searcher interface {
	Search(ctx context.Context, q fusion.Query) (fusion.Response, error)
}
