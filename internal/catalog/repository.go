package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/fundscope/fundscope/internal/tracing"
)

// ErrMissingIdentity is returned when a record has neither URL nor ID.
var ErrMissingIdentity = errors.New("record has no url and no id")

// Repository is the keyed collection holding grant and news records.
// The matching engine only reads from it; the ingestion pipeline writes.
type Repository interface {
	// ListGrants returns the full grant snapshot. Matching always operates
	// on a fully materialized snapshot, never a partial view.
	ListGrants(ctx context.Context) ([]*Grant, error)

	// ListNews returns news items, restricted to the given sectors when the
	// slice is non-empty (case-insensitive sector match).
	ListNews(ctx context.Context, sectors []string) ([]*NewsItem, error)

	// UpsertGrant inserts or updates a grant by dedup key.
	// Returns true when the record was newly created.
	UpsertGrant(ctx context.Context, g *Grant) (bool, error)

	// UpsertNews inserts or updates a news item by dedup key.
	// Returns true when the record was newly created.
	UpsertNews(ctx context.Context, n *NewsItem) (bool, error)

	// DeleteGrantsOlderThan removes grants discovered before cutoff, except
	// those whose dedup key appears in keep. Returns the purge count.
	DeleteGrantsOlderThan(ctx context.Context, cutoff time.Time, keep map[string]struct{}) (int, error)

	// DeleteNewsOlderThan removes news items published (or, lacking a
	// publication time, discovered) before cutoff. Returns the purge count.
	DeleteNewsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
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

// ListGrants returns all grants ordered by ID for deterministic snapshots.
func (r *PostgresRepository) ListGrants(ctx context.Context) (_ []*Grant, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "grants", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, source, url, title, summary, amount_min, amount_max,
		       deadline, industry_tags, location, eligible_org_types,
		       confidence, acceptance_rate, discovered_at, updated_at
		FROM grants
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		g := &Grant{}
		if err := rows.Scan(
			&g.ID, &g.Source, &g.URL, &g.Title, &g.Summary,
			&g.AmountMin, &g.AmountMax, &g.Deadline,
			pq.Array(&g.IndustryTags), &g.Location, pq.Array(&g.EligibleOrgTypes),
			&g.Confidence, &g.AcceptanceRate, &g.DiscoveredAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}
	return grants, nil
}

// ListNews returns news items, newest first, restricted to sectors when given.
func (r *PostgresRepository) ListNews(ctx context.Context, sectors []string) (_ []*NewsItem, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "news_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, url, source, title, sector, published_at, discovered_at
		FROM news_items
		WHERE ($1::text[] IS NULL OR cardinality($1::text[]) = 0 OR LOWER(sector) = ANY($1))
		ORDER BY published_at DESC NULLS LAST, id
	`
	lowered := make([]string, len(sectors))
	for i, s := range sectors {
		lowered[i] = strings.ToLower(s)
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(lowered))
	if err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}
	defer rows.Close()

	var items []*NewsItem
	for rows.Next() {
		n := &NewsItem{}
		if err := rows.Scan(&n.ID, &n.URL, &n.Source, &n.Title, &n.Sector,
			&n.PublishedAt, &n.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news: %w", err)
	}
	return items, nil
}

// UpsertGrant inserts or updates a grant keyed by dedup key.
// ON CONFLICT keeps discovered_at from the first sighting so retention is
// measured from discovery, not from the latest refresh.
func (r *PostgresRepository) UpsertGrant(ctx context.Context, g *Grant) (_ bool, err error) {
	if g.DedupKey() == "" {
		return false, ErrMissingIdentity
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "grants", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO grants (
			id, dedup_key, source, url, title, summary, amount_min, amount_max,
			deadline, industry_tags, location, eligible_org_types,
			confidence, acceptance_rate, discovered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (dedup_key) DO UPDATE SET
			source = EXCLUDED.source,
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			amount_min = EXCLUDED.amount_min,
			amount_max = EXCLUDED.amount_max,
			deadline = EXCLUDED.deadline,
			industry_tags = EXCLUDED.industry_tags,
			location = EXCLUDED.location,
			eligible_org_types = EXCLUDED.eligible_org_types,
			confidence = EXCLUDED.confidence,
			acceptance_rate = EXCLUDED.acceptance_rate,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`
	var created bool
	err = r.db.QueryRowContext(ctx, query,
		g.ID, g.DedupKey(), g.Source, g.URL, g.Title, g.Summary,
		g.AmountMin, g.AmountMax, g.Deadline,
		pq.Array(g.IndustryTags), g.Location, pq.Array(g.EligibleOrgTypes),
		g.Confidence, g.AcceptanceRate, g.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert grant %s: %w", g.ID, err)
	}
	return created, nil
}

// UpsertNews inserts or updates a news item keyed by dedup key.
func (r *PostgresRepository) UpsertNews(ctx context.Context, n *NewsItem) (_ bool, err error) {
	if n.DedupKey() == "" {
		return false, ErrMissingIdentity
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "news_items", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO news_items (id, dedup_key, url, source, title, sector, published_at, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedup_key) DO UPDATE SET
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			sector = EXCLUDED.sector,
			published_at = EXCLUDED.published_at
		RETURNING (xmax = 0)
	`
	var created bool
	err = r.db.QueryRowContext(ctx, query,
		n.ID, n.DedupKey(), n.URL, n.Source, n.Title, n.Sector,
		n.PublishedAt, n.DiscoveredAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert news item %s: %w", n.ID, err)
	}
	return created, nil
}

// DeleteGrantsOlderThan purges grants discovered before cutoff whose dedup
// key is not in keep.
func (r *PostgresRepository) DeleteGrantsOlderThan(ctx context.Context, cutoff time.Time, keep map[string]struct{}) (_ int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "grants", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	keepKeys := make([]string, 0, len(keep))
	for k := range keep {
		keepKeys = append(keepKeys, k)
	}
	query := `
		DELETE FROM grants
		WHERE discovered_at < $1
		  AND NOT (dedup_key = ANY($2))
	`
	res, err := r.db.ExecContext(ctx, query, cutoff, pq.Array(keepKeys))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old grants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted grants: %w", err)
	}
	return int(n), nil
}

// DeleteNewsOlderThan purges news published (or discovered) before cutoff.
func (r *PostgresRepository) DeleteNewsOlderThan(ctx context.Context, cutoff time.Time) (_ int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "news_items", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	query := `
		DELETE FROM news_items
		WHERE COALESCE(published_at, discovered_at) < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old news: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted news: %w", err)
	}
	return int(n), nil
}

// InMemoryRepository implements Repository with in-process maps.
// Used by tests and as a standalone fallback when no database is configured.
type InMemoryRepository struct {
	mu     sync.RWMutex
	grants map[string]*Grant    // keyed by dedup key
	news   map[string]*NewsItem // keyed by dedup key
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		grants: make(map[string]*Grant),
		news:   make(map[string]*NewsItem),
	}
}

// ListGrants returns a snapshot of all grants ordered by ID.
func (r *InMemoryRepository) ListGrants(ctx context.Context) ([]*Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grants := make([]*Grant, 0, len(r.grants))
	for _, g := range r.grants {
		cp := *g
		grants = append(grants, &cp)
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ID < grants[j].ID })
	return grants, nil
}

// ListNews returns news items matching the sectors (all items when empty).
func (r *InMemoryRepository) ListNews(ctx context.Context, sectors []string) ([]*NewsItem, error) {
	wanted := make(map[string]struct{}, len(sectors))
	for _, s := range sectors {
		wanted[strings.ToLower(s)] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*NewsItem, 0, len(r.news))
	for _, n := range r.news {
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToLower(n.Sector)]; !ok {
				continue
			}
		}
		cp := *n
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// UpsertGrant inserts or replaces the grant stored under its dedup key.
func (r *InMemoryRepository) UpsertGrant(ctx context.Context, g *Grant) (bool, error) {
	key := g.DedupKey()
	if key == "" {
		return false, ErrMissingIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.grants[key]
	cp := *g
	if ok {
		// Updates keep the original discovery time for retention purposes.
		cp.DiscoveredAt = existing.DiscoveredAt
	}
	r.grants[key] = &cp
	return !ok, nil
}

// UpsertNews inserts or replaces the news item stored under its dedup key.
func (r *InMemoryRepository) UpsertNews(ctx context.Context, n *NewsItem) (bool, error) {
	key := n.DedupKey()
	if key == "" {
		return false, ErrMissingIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.news[key]
	cp := *n
	r.news[key] = &cp
	return !ok, nil
}

// DeleteGrantsOlderThan purges grants discovered before cutoff, keeping any
// whose dedup key appears in keep.
func (r *InMemoryRepository) DeleteGrantsOlderThan(ctx context.Context, cutoff time.Time, keep map[string]struct{}) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, g := range r.grants {
		if !g.DiscoveredAt.Before(cutoff) {
			continue
		}
		if _, ok := keep[key]; ok {
			continue
		}
		delete(r.grants, key)
		deleted++
	}
	return deleted, nil
}

// DeleteNewsOlderThan purges news published (or discovered) before cutoff.
func (r *InMemoryRepository) DeleteNewsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, n := range r.news {
		ts := n.DiscoveredAt
		if n.PublishedAt != nil {
			ts = *n.PublishedAt
		}
		if ts.Before(cutoff) {
			delete(r.news, key)
			deleted++
		}
	}
	return deleted, nil
}
