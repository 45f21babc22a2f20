// Package loader writes cleaned extract records into the warehouse in
// committed batches, resolving category names to dimension ids on the way.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/store"
)

// ErrIntegrity is returned when a category id cannot be found after it was
// inserted. The run must stop; continuing would orphan rows.
var ErrIntegrity = errors.New("category integrity violation")

// CategoryResolver maps category names to ids, creating categories on
// first sight. One resolver serves one run.
type CategoryResolver struct {
	store *store.Store
	log   *zap.Logger

	mu      sync.RWMutex
	ids     map[string]int64
	created int
}

// NewCategoryResolver returns an empty resolver. Call Warm before use to
// avoid a round trip per known name.
func NewCategoryResolver(st *store.Store, logger *zap.Logger) *CategoryResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryResolver{store: st, log: logger, ids: make(map[string]int64)}
}

// Warm loads every existing category into the cache.
func (r *CategoryResolver) Warm(ctx context.Context) error {
	all, err := r.store.AllCategories(ctx)
	if err != nil {
		return fmt.Errorf("warm category cache: %w", err)
	}
	r.mu.Lock()
	for name, id := range all {
		r.ids[name] = id
	}
	r.mu.Unlock()
	r.log.Debug("category cache warmed", zap.Int("categories", len(all)))
	return nil
}

// Lookup returns the cached id for name.
func (r *CategoryResolver) Lookup(name string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[name]
	return id, ok
}

// Len returns the number of cached categories.
func (r *CategoryResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Created returns how many categories this resolver inserted.
func (r *CategoryResolver) Created() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created
}

// Resolve returns the id for name, inserting the category if needed.
func (r *CategoryResolver) Resolve(ctx context.Context, name string) (int64, error) {
	if id, ok := r.Lookup(name); ok {
		return id, nil
	}
	if err := r.ResolveBatch(ctx, []string{name}); err != nil {
		return 0, err
	}
	id, _ := r.Lookup(name)
	return id, nil
}

// ResolveBatch makes sure every name has a cached id. Unknown names are
// inserted (ignoring ones another writer created meanwhile) and read back
// within a single transaction.
func (r *CategoryResolver) ResolveBatch(ctx context.Context, names []string) error {
	missing := r.missing(names)
	if len(missing) == 0 {
		return nil
	}

	var found map[string]int64
	var inserted int
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		before, err := r.store.CategoryIDs(ctx, tx, missing)
		if err != nil {
			return err
		}
		if err := r.store.InsertCategories(ctx, tx, missing); err != nil {
			return err
		}
		found, err = r.store.CategoryIDs(ctx, tx, missing)
		if err != nil {
			return err
		}
		for _, name := range missing {
			if _, ok := found[name]; !ok {
				return fmt.Errorf("%w: no id for %q after insert", ErrIntegrity, name)
			}
		}
		inserted = len(found) - len(before)
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolve categories: %w", err)
	}

	r.mu.Lock()
	for name, id := range found {
		r.ids[name] = id
	}
	r.created += inserted
	r.mu.Unlock()
	r.log.Debug("categories resolved", zap.Int("names", len(missing)), zap.Int("inserted", inserted))
	return nil
}

// missing returns the distinct uncached names in sorted order.
func (r *CategoryResolver) missing(names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		if _, ok := r.ids[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
