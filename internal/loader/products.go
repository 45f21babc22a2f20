package loader

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/store"
	"github.com/silverlake/silverlake/pkg/record"
)

// Defaults for batch sizing.
const (
	DefaultBatchSize       = 1000
	DefaultLookupChunkSize = 500
)

// BatchObserver is called after each committed batch.
type BatchObserver func(table string, rows int, elapsed time.Duration)

// ProductResult summarizes one catalog load.
type ProductResult struct {
	Rows    int
	Batches []int // committed batch sizes, in order
}

// ProductLoader upserts catalog records batch by batch.
type ProductLoader struct {
	store      *store.Store
	categories *CategoryResolver
	batchSize  int
	log        *zap.Logger
	observe    BatchObserver
}

// NewProductLoader creates a ProductLoader. A non-positive batchSize
// selects DefaultBatchSize.
func NewProductLoader(st *store.Store, categories *CategoryResolver, batchSize int, logger *zap.Logger) *ProductLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductLoader{store: st, categories: categories, batchSize: batchSize, log: logger}
}

// OnBatch registers fn to observe committed batches.
func (l *ProductLoader) OnBatch(fn BatchObserver) { l.observe = fn }

// Load writes products in batches. Each batch first resolves its unseen
// category names, then upserts its rows and commits. Batches committed
// before an error stay committed.
func (l *ProductLoader) Load(ctx context.Context, products []record.Product) (ProductResult, error) {
	var res ProductResult
	for start := 0; start < len(products); start += l.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := products[start:min(start+l.batchSize, len(products))]

		names := make([]string, len(batch))
		for i, p := range batch {
			names[i] = p.Category
		}
		if err := l.categories.ResolveBatch(ctx, names); err != nil {
			return res, err
		}

		rows := make([]store.ProductRow, len(batch))
		for i, p := range batch {
			id, ok := l.categories.Lookup(p.Category)
			if !ok {
				return res, fmt.Errorf("%w: category %q unresolved for product %s", ErrIntegrity, p.Category, p.ProductID)
			}
			rows[i] = store.ProductRow{ProductID: p.ProductID, ProductName: p.ProductName, CategoryID: id}
		}

		began := time.Now()
		err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
			return l.store.UpsertProducts(ctx, tx, rows)
		})
		if err != nil {
			return res, fmt.Errorf("product batch at row %d: %w", start, err)
		}
		elapsed := time.Since(began)

		res.Rows += len(batch)
		res.Batches = append(res.Batches, len(batch))
		if l.observe != nil {
			l.observe("products", len(batch), elapsed)
		}
		l.log.Debug("product batch committed",
			zap.Int("rows", len(batch)),
			zap.Duration("elapsed", elapsed),
		)
	}
	return res, nil
}
