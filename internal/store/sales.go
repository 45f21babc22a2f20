package store

import (
	"context"
	"fmt"

	"github.com/silverlake/silverlake/pkg/record"
)

// SaleRow is a sale ready for insertion, carrying the category snapshot
// of its product at load time.
type SaleRow struct {
	ProductID  string
	SaleDate   record.Date
	Quantity   int
	Price      float64
	CategoryID int64
}

// InsertSales appends rows to the sales table.
func (s *Store) InsertSales(ctx context.Context, q DBTX, rows []SaleRow) error {
	per := s.dialect.rowsPerStatement(5, 0)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*5)
		for _, r := range chunk {
			args = append(args, r.ProductID, r.SaleDate, r.Quantity, r.Price, r.CategoryID)
		}
		query := `INSERT INTO sales (product_id, sale_date, quantity, price, category_id) VALUES ` +
			valuesList(len(chunk), 5)
		if _, err := q.ExecContext(ctx, s.rebind(query), args...); err != nil {
			return fmt.Errorf("insert sales: %w", err)
		}
	}
	return nil
}
