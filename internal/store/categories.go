package store

import (
	"context"
	"fmt"
)

// categoryLookupChunk bounds the IN list of a category read-back.
const categoryLookupChunk = 500

// AllCategories loads the whole category dimension as name -> id.
func (s *Store) AllCategories(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, category_name FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out[name] = id
	}
	return out, rows.Err()
}

// InsertCategories inserts names that are not present yet. Existing names
// are left untouched.
func (s *Store) InsertCategories(ctx context.Context, q DBTX, names []string) error {
	per := s.dialect.rowsPerStatement(1, 0)
	for start := 0; start < len(names); start += per {
		end := min(start+per, len(names))
		chunk := names[start:end]

		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}
		query := `INSERT INTO categories (category_name) VALUES ` + valuesList(len(chunk), 1) +
			` ON CONFLICT (category_name) DO NOTHING`
		if _, err := q.ExecContext(ctx, s.rebind(query), args...); err != nil {
			return fmt.Errorf("insert categories: %w", err)
		}
	}
	return nil
}

// CategoryIDs reads back the ids of the given names. Names without a row
// are absent from the result.
func (s *Store) CategoryIDs(ctx context.Context, q DBTX, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	per := s.dialect.rowsPerStatement(1, categoryLookupChunk)
	for start := 0; start < len(names); start += per {
		end := min(start+per, len(names))
		chunk := names[start:end]

		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}
		query := `SELECT category_id, category_name FROM categories WHERE category_name IN (` +
			placeholders(len(chunk)) + `)`
		rows, err := q.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("read category ids: %w", err)
		}
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan category id: %w", err)
			}
			out[name] = id
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("read category ids: %w", err)
		}
	}
	return out, nil
}
