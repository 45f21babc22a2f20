package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLeaseHeld is returned when another holder owns an unexpired lease.
	ErrLeaseHeld = errors.New("store: pipeline lease held by another run")
	// ErrLeaseLost is returned when a renewal finds the lease taken over.
	ErrLeaseLost = errors.New("store: pipeline lease lost")
)

// Lease is a named, expiring, single-holder lock row.
type Lease struct {
	store  *Store
	name   string
	holder string
	ttl    time.Duration
}

// AcquireLease takes the named lease for holder. An expired lease, or one
// already held by the same holder, is taken over.
func (s *Store) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (*Lease, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO pipeline_leases (lease_name, holder, acquired_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (lease_name) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		 WHERE pipeline_leases.expires_at < ? OR pipeline_leases.holder = ?`),
		name, holder, now.UnixMilli(), now.Add(ttl).UnixMilli(), now.UnixMilli(), holder,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, name)
	}
	return &Lease{store: s, name: name, holder: holder, ttl: ttl}, nil
}

// Holder returns the holder id this lease was acquired with.
func (l *Lease) Holder() string { return l.holder }

// Renew extends the lease by its ttl from now.
func (l *Lease) Renew(ctx context.Context) error {
	s := l.store
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE pipeline_leases SET expires_at = ? WHERE lease_name = ? AND holder = ?`),
		s.now().UTC().Add(l.ttl).UnixMilli(), l.name, l.holder,
	)
	if err != nil {
		return fmt.Errorf("renew lease %s: %w", l.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrLeaseLost, l.name)
	}
	return nil
}

// Release drops the lease if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	s := l.store
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM pipeline_leases WHERE lease_name = ? AND holder = ?`), l.name, l.holder)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.name, err)
	}
	return nil
}
