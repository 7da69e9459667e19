package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/profile"
)

// SnapshotSource is an optional read-through cache over the grant snapshot.
// Implemented by catalog.SnapshotCache; nil disables caching.
type SnapshotSource interface {
	Get(ctx context.Context) ([]*catalog.Grant, bool)
	Set(ctx context.Context, grants []*catalog.Grant) error
}

// Engine is the matching engine: a pure function of (profile, catalog
// snapshot) for each request. It owns no persistent state; every request
// operates on a freshly materialized snapshot.
type Engine struct {
	profiles profile.Repository
	catalog  catalog.Repository
	cache    SnapshotSource
	weights  *Weights
	logger   *slog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewEngine creates a matching engine. cache may be nil to read the store
// directly on every request; weights may be nil to use the defaults.
func NewEngine(profiles profile.Repository, cat catalog.Repository, cache SnapshotSource, weights *Weights, logger *slog.Logger) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		profiles: profiles,
		catalog:  cat,
		cache:    cache,
		weights:  weights,
		logger:   logger,
		now:      time.Now,
	}
}

// GrantMatches is the result of a grant match request.
type GrantMatches struct {
	Items []ScoredGrant `json:"items"`
	Meta  PageMeta      `json:"meta"`

	// OpenProfile is true when no profile was stored for the organization
	// and the open profile (matches everything) was used instead. Surfaced
	// so callers can distinguish the fallback from a fully matched result.
	OpenProfile bool `json:"open_profile,omitempty"`
}

// MatchGrants filters, scores, ranks, and paginates the grant catalog for
// one organization.
//
// The whole snapshot is materialized before filtering begins; if it cannot
// be fetched the request fails outright rather than returning a silently
// truncated result set. A missing profile falls back to the open profile
// and is flagged in the result.
func (e *Engine) MatchGrants(ctx context.Context, orgID string, page Page) (*GrantMatches, error) {
	p, err := e.profiles.GetProfile(ctx, orgID)
	openProfile := false
	if errors.Is(err, profile.ErrProfileNotFound) {
		e.logger.Debug("no profile stored, matching with open profile", "org_id", orgID)
		p = profile.Open(orgID)
		openProfile = true
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	grants, err := e.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog snapshot: %w", err)
	}

	now := e.now()
	scored := make([]ScoredGrant, 0, len(grants))
	for _, g := range grants {
		// Past-deadline grants stay in the store for history but never
		// participate in active matching.
		if g.Expired(now) {
			continue
		}
		if !Eligible(g, p, now) {
			continue
		}
		score := ScoreGrant(g, p, e.weights, now)
		scored = append(scored, ScoredGrant{
			Grant:              g,
			MatchScore:         score,
			SuccessProbability: SuccessProbability(score, g.AcceptanceRate),
		})
	}

	RankGrants(scored)
	items, meta := Paginate(scored, page)

	return &GrantMatches{Items: items, Meta: meta, OpenProfile: openProfile}, nil
}

// MatchNews scores and ranks news for the given subscribed sectors.
// Relevance is recomputed for every request; nothing persisted is trusted.
func (e *Engine) MatchNews(ctx context.Context, sectors []string, limit int) ([]ScoredNews, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	items, err := e.catalog.ListNews(ctx, sectors)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news snapshot: %w", err)
	}

	now := e.now()
	scored := make([]ScoredNews, 0, len(items))
	for _, n := range items {
		scored = append(scored, ScoredNews{
			NewsItem:       n,
			RelevanceScore: ScoreNews(n, sectors, e.weights, now),
		})
	}

	RankNews(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// snapshot returns the grant snapshot, read through the cache when one is
// configured. Cache write failures are logged and ignored; the store is
// authoritative.
func (e *Engine) snapshot(ctx context.Context) ([]*catalog.Grant, error) {
	if e.cache != nil {
		if grants, ok := e.cache.Get(ctx); ok {
			return grants, nil
		}
	}

	grants, err := e.catalog.ListGrants(ctx)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, grants); err != nil {
			e.logger.Warn("failed to populate snapshot cache", "error", err)
		}
	}
	return grants, nil
}
