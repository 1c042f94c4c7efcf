package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ticketlens/internal/db"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/hit"
	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
)

// HNSW build parameters.
const (
	hnswM           = 16
	hnswEFConstruct = 200
)

type indexManager interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Definition builds the FT schema of a family: filter vocabulary as TAGs, created_at sortable,
// __content for BM25 and one HNSW field per embedded field.
func Definition(f hit.Family, dim int, vectorFields []string) (*db.IndexDefinition, error) {
	if len(vectorFields) == 0 {
		vectorFields = DefaultVectorFields(f)
	}
	b := db.NewIndex(Name(f)).
		Prefix(KeyPrefix(f)).
		Tag(intent.FieldTenant).
		Tag(intent.FieldCategory).
		Tag(intent.FieldPriority).
		Tag(intent.FieldStatus).
		Tag(intent.FieldCustomerTier).
		Tag(intent.FieldAttachmentType).
		Tag(intent.FieldOwner).
		TagList(intent.FieldTags, ",").
		SortableNumeric(intent.FieldCreatedAt).
		Text("__content")
	for _, field := range vectorFields {
		b = b.VectorHNSW(VectorAttr(field), dim, db.DistanceCosine, hnswM, hnswEFConstruct)
	}
	return b.Build()
}

// Bootstrap creates any missing family index. Existing indexes are left untouched.
func Bootstrap(
	ctx context.Context, mgr indexManager, dim int, vectorFields map[hit.Family][]string, logger *zap.Logger,
) error {
	for _, f := range hit.Families() {
		exists, err := mgr.IndexExists(ctx, Name(f))
		if err != nil {
			return fmt.Errorf("check index %s: %w", f, err)
		}
		if exists {
			continue
		}

		def, err := Definition(f, dim, vectorFields[f])
		if err != nil {
			return fmt.Errorf("define index %s: %w", f, err)
		}
		if err := mgr.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", f, err)
		}
		logger.Info("Created search index", zap.String("index", def.Name))
	}
	return nil
}
