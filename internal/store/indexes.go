package store

import (
	"context"
	"fmt"
)

// SalesIndexes are the secondary indexes supporting filters and
// aggregation on the sales fact table.
var SalesIndexes = []struct {
	Name   string
	Column string
}{
	{"idx_sales_product_id", "product_id"},
	{"idx_sales_category_id", "category_id"},
	{"idx_sales_sale_date", "sale_date"},
}

// BuildIndexes creates the sales indexes if they are missing and returns
// their names. Safe to call on every run.
func (s *Store) BuildIndexes(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(SalesIndexes))
	for _, idx := range SalesIndexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON sales (%s)", idx.Name, idx.Column)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return names, fmt.Errorf("create index %s: %w", idx.Name, err)
		}
		names = append(names, idx.Name)
	}
	return names, nil
}

// IndexExists reports whether an index with the given name exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(s.dialect.indexQuery), name).Scan(&n); err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	return n > 0, nil
}
