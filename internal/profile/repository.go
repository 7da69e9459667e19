package profile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/fundscope/fundscope/internal/tracing"
)

// Repository stores one preference profile per organization.
// The matching engine only reads; writes come from the profile endpoints.
type Repository interface {
	// GetProfile returns the profile for orgID, or ErrProfileNotFound.
	GetProfile(ctx context.Context, orgID string) (*Profile, error)

	// UpsertProfile validates and stores the profile.
	UpsertProfile(ctx context.Context, p *Profile) error

	// ListProfiles returns all stored profiles. The retention sweep uses
	// this to keep records that some organization is still eligible for.
	ListProfiles(ctx context.Context) ([]*Profile, error)
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// GetProfile returns the stored profile for orgID.
func (r *PostgresRepository) GetProfile(ctx context.Context, orgID string) (_ *Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT org_id, funding_range_min, funding_range_max,
		       industries, locations, org_types, max_deadline_days, updated_at
		FROM profiles
		WHERE org_id = $1
	`
	p := &Profile{}
	err = r.db.QueryRowContext(ctx, query, orgID).Scan(
		&p.OrgID, &p.FundingRangeMin, &p.FundingRangeMax,
		pq.Array(&p.Industries), pq.Array(&p.Locations), pq.Array(&p.OrgTypes),
		&p.MaxDeadlineDays, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", orgID, err)
	}
	return p, nil
}

// UpsertProfile validates and stores the profile.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p *Profile) (err error) {
	if err := p.Validate(); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO profiles (
			org_id, funding_range_min, funding_range_max,
			industries, locations, org_types, max_deadline_days, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (org_id) DO UPDATE SET
			funding_range_min = EXCLUDED.funding_range_min,
			funding_range_max = EXCLUDED.funding_range_max,
			industries = EXCLUDED.industries,
			locations = EXCLUDED.locations,
			org_types = EXCLUDED.org_types,
			max_deadline_days = EXCLUDED.max_deadline_days,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		p.OrgID, p.FundingRangeMin, p.FundingRangeMax,
		pq.Array(p.Industries), pq.Array(p.Locations), pq.Array(p.OrgTypes),
		p.MaxDeadlineDays, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.OrgID, err)
	}
	return nil
}

// ListProfiles returns all profiles ordered by org ID.
func (r *PostgresRepository) ListProfiles(ctx context.Context) (_ []*Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT org_id, funding_range_min, funding_range_max,
		       industries, locations, org_types, max_deadline_days, updated_at
		FROM profiles
		ORDER BY org_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p := &Profile{}
		if err := rows.Scan(
			&p.OrgID, &p.FundingRangeMin, &p.FundingRangeMax,
			pq.Array(&p.Industries), pq.Array(&p.Locations), pq.Array(&p.OrgTypes),
			&p.MaxDeadlineDays, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// InMemoryRepository implements Repository with an in-process map.
// Used by tests and as a standalone fallback when no database is configured.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{profiles: make(map[string]*Profile)}
}

// GetProfile returns the stored profile for orgID.
func (r *InMemoryRepository) GetProfile(ctx context.Context, orgID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[orgID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

// UpsertProfile validates and stores the profile.
func (r *InMemoryRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	cp.UpdatedAt = time.Now()
	r.profiles[p.OrgID] = &cp
	return nil
}

// ListProfiles returns all profiles ordered by org ID.
func (r *InMemoryRepository) ListProfiles(ctx context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		cp := *p
		profiles = append(profiles, &cp)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].OrgID < profiles[j].OrgID })
	return profiles, nil
}
