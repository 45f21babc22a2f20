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

// SalesResult summarizes one chunk of a sales extract.
type SalesResult struct {
	Read     int
	Inserted int
	Dropped  []record.Sale // rows whose product is unknown, as cleaned
	Batches  []int
}

// SalesLoader appends sales rows for known products.
type SalesLoader struct {
	store       *store.Store
	batchSize   int
	lookupChunk int
	log         *zap.Logger
	observe     BatchObserver
}

// NewSalesLoader creates a SalesLoader. Non-positive sizes select the
// defaults.
func NewSalesLoader(st *store.Store, batchSize, lookupChunk int, logger *zap.Logger) *SalesLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if lookupChunk <= 0 {
		lookupChunk = DefaultLookupChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalesLoader{store: st, batchSize: batchSize, lookupChunk: lookupChunk, log: logger}
}

// OnBatch registers fn to observe committed batches.
func (l *SalesLoader) OnBatch(fn BatchObserver) { l.observe = fn }

// Load looks up the current category of every distinct product in sales,
// drops rows for unknown products and inserts the rest in committed
// batches. Each row carries its product's category as of this load.
func (l *SalesLoader) Load(ctx context.Context, sales []record.Sale) (SalesResult, error) {
	res := SalesResult{Read: len(sales)}
	if len(sales) == 0 {
		return res, nil
	}

	seen := make(map[string]struct{}, len(sales))
	var ids []string
	for _, s := range sales {
		if _, ok := seen[s.ProductID]; ok {
			continue
		}
		seen[s.ProductID] = struct{}{}
		ids = append(ids, s.ProductID)
	}
	categoryOf, err := l.store.ProductCategories(ctx, ids, l.lookupChunk)
	if err != nil {
		return res, err
	}

	rows := make([]store.SaleRow, 0, len(sales))
	for _, s := range sales {
		cat, ok := categoryOf[s.ProductID]
		if !ok {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		rows = append(rows, store.SaleRow{
			ProductID:  s.ProductID,
			SaleDate:   s.SaleDate,
			Quantity:   s.Quantity,
			Price:      s.Price,
			CategoryID: cat,
		})
	}
	if len(res.Dropped) > 0 {
		l.log.Debug("sales rows dropped for unknown products", zap.Int("rows", len(res.Dropped)))
	}

	for start := 0; start < len(rows); start += l.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := rows[start:min(start+l.batchSize, len(rows))]

		began := time.Now()
		err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
			return l.store.InsertSales(ctx, tx, batch)
		})
		if err != nil {
			return res, fmt.Errorf("sales batch at row %d: %w", start, err)
		}
		elapsed := time.Since(began)

		res.Inserted += len(batch)
		res.Batches = append(res.Batches, len(batch))
		if l.observe != nil {
			l.observe("sales", len(batch), elapsed)
		}
		l.log.Debug("sales batch committed",
			zap.Int("rows", len(batch)),
			zap.Duration("elapsed", elapsed),
		)
	}
	return res, nil
}
