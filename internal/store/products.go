package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProductRow is a product as stored.
type ProductRow struct {
	ProductID   string
	ProductName string
	CategoryID  int64
}

// UpsertProducts inserts rows, replacing name and category of existing
// product ids. When an id repeats, its last row wins.
func (s *Store) UpsertProducts(ctx context.Context, q DBTX, rows []ProductRow) error {
	rows = lastByProductID(rows)
	per := s.dialect.rowsPerStatement(3, 0)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*3)
		for _, r := range chunk {
			args = append(args, r.ProductID, r.ProductName, r.CategoryID)
		}
		query := `INSERT INTO products (product_id, product_name, category_id) VALUES ` +
			valuesList(len(chunk), 3) +
			` ON CONFLICT (product_id) DO UPDATE SET
				product_name = excluded.product_name,
				category_id = excluded.category_id`
		if _, err := q.ExecContext(ctx, s.rebind(query), args...); err != nil {
			return fmt.Errorf("upsert products: %w", err)
		}
	}
	return nil
}

// lastByProductID drops earlier duplicates, preserving first-seen order.
// A single upsert statement may not touch the same key twice.
func lastByProductID(rows []ProductRow) []ProductRow {
	pos := make(map[string]int, len(rows))
	out := make([]ProductRow, 0, len(rows))
	for _, r := range rows {
		if i, ok := pos[r.ProductID]; ok {
			out[i] = r
			continue
		}
		pos[r.ProductID] = len(out)
		out = append(out, r)
	}
	return out
}

// ProductCategories maps each known product id to its current category,
// querying chunk ids per statement. Unknown ids are absent.
func (s *Store) ProductCategories(ctx context.Context, ids []string, chunk int) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	per := s.dialect.rowsPerStatement(1, chunk)
	for start := 0; start < len(ids); start += per {
		end := min(start+per, len(ids))
		part := ids[start:end]

		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		query := `SELECT product_id, category_id FROM products WHERE product_id IN (` +
			placeholders(len(part)) + `)`
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("lookup products: %w", err)
		}
		for rows.Next() {
			var id string
			var cat int64
			if err := rows.Scan(&id, &cat); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan product: %w", err)
			}
			out[id] = cat
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("lookup products: %w", err)
		}
	}
	return out, nil
}

// GetProduct returns the stored product with the given id.
func (s *Store) GetProduct(ctx context.Context, id string) (ProductRow, bool, error) {
	var p ProductRow
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT product_id, product_name, category_id FROM products WHERE product_id = ?`), id,
	).Scan(&p.ProductID, &p.ProductName, &p.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return ProductRow{}, false, nil
	}
	if err != nil {
		return ProductRow{}, false, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, true, nil
}
