package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/match"
	"github.com/fundscope/fundscope/internal/profile"
	"github.com/fundscope/fundscope/internal/tracing"
)

// Report summarizes one refresh run.
type Report struct {
	TotalFetched int `json:"total_fetched"` // Raw records received from producers
	Saved        int `json:"saved"`         // Newly inserted records
	Updated      int `json:"updated"`       // Existing records overwritten in place
	Skipped      int `json:"skipped"`       // Malformed records dropped
	DeletedOld   int `json:"deleted_old"`   // Records purged by retention

	// FailedSources names producers that errored or timed out. Their
	// records are missing from this run, making the merge partial.
	FailedSources []string `json:"failed_sources,omitempty"`

	// Partial is true when at least one producer failed.
	Partial bool `json:"partial"`
}

// Locker serializes refresh runs against the shared catalog store.
// Implemented by RefreshLock on Redis; nil disables locking.
type Locker interface {
	// Acquire takes the refresh lock, returning false when another run
	// holds it. The returned release function is safe to call once.
	Acquire(ctx context.Context) (bool, func(), error)
}

// ErrRefreshInProgress is returned when another refresh holds the lock.
var ErrRefreshInProgress = fmt.Errorf("refresh already in progress")

// Invalidator drops derived caches after a refresh changes the catalog.
// Implemented by catalog.SnapshotCache; nil disables invalidation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config tunes one pipeline instance.
type Config struct {
	// RetentionHorizon is the age past which unmatched records are purged.
	// Default: 30 days.
	RetentionHorizon time.Duration

	// UpsertWorkers is the number of parallel upsert shards. Records with
	// the same dedup key always land on the same shard, so upserts for one
	// key are serialized while disjoint keys proceed in parallel.
	// Default: 4.
	UpsertWorkers int

	// FetchTimeout bounds each producer fetch. A producer that exceeds it
	// contributes zero records to the batch. Default: 30 seconds.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		RetentionHorizon: 30 * 24 * time.Hour,
		UpsertWorkers:    4,
		FetchTimeout:     30 * time.Second,
	}
}

// Pipeline merges producer batches into the catalog.
type Pipeline struct {
	producers []Producer
	catalog   catalog.Repository
	profiles  profile.Repository
	locker    Locker
	cache     Invalidator
	prom      *PromMetrics
	logger    *slog.Logger
	cfg       Config

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewPipeline creates a refresh pipeline. locker, cache, and prom may be
// nil; profiles may be nil to disable the eligibility hold in retention.
func NewPipeline(producers []Producer, cat catalog.Repository, profiles profile.Repository,
	locker Locker, cache Invalidator, prom *PromMetrics, logger *slog.Logger, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetentionHorizon <= 0 {
		cfg.RetentionHorizon = DefaultConfig().RetentionHorizon
	}
	if cfg.UpsertWorkers <= 0 {
		cfg.UpsertWorkers = DefaultConfig().UpsertWorkers
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	return &Pipeline{
		producers: producers,
		catalog:   cat,
		profiles:  profiles,
		locker:    locker,
		cache:     cache,
		prom:      prom,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Refresh runs one full ingestion pass: fetch all producers concurrently,
// normalize at the boundary, dedup-merge into the catalog, sweep retention,
// and report. Safe to re-run: re-ingesting an identical batch changes
// nothing and reports Saved = 0.
func (p *Pipeline) Refresh(ctx context.Context) (*Report, error) {
	if p.locker != nil {
		ok, release, err := p.locker.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire refresh lock: %w", err)
		}
		if !ok {
			return nil, ErrRefreshInProgress
		}
		defer release()
	}

	ctx, endSpan := tracing.StartPipelineSpan(ctx, "refresh", "")
	defer func() { endSpan(nil) }()

	start := p.now()
	metrics := NewMetrics()
	report := &Report{}

	raw := p.fetchAll(ctx, report)
	metrics.incFetched(int64(len(raw)))

	records := p.normalizeAll(raw, metrics, start)
	p.upsertAll(ctx, records, metrics)
	p.sweep(ctx, metrics, start)

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx); err != nil {
			p.logger.Warn("failed to invalidate snapshot cache", "error", err)
		}
	}

	report.TotalFetched = int(metrics.Fetched())
	report.Saved = int(metrics.Saved())
	report.Updated = int(metrics.Updated())
	report.Skipped = int(metrics.Skipped())
	report.DeletedOld = int(metrics.Purged())
	report.Partial = len(report.FailedSources) > 0

	if p.prom != nil {
		p.prom.Observe(report, p.now().Sub(start))
	}

	p.logger.Info("refresh complete",
		"fetched", report.TotalFetched,
		"saved", report.Saved,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"deleted_old", report.DeletedOld,
		"failed_sources", report.FailedSources,
		"duration", p.now().Sub(start))

	return report, nil
}

// fetchAll runs every producer concurrently and collects their batches.
// A failing producer is recorded in the report and contributes nothing;
// the others still merge.
func (p *Pipeline) fetchAll(ctx context.Context, report *Report) []RawRecord {
	type result struct {
		source  string
		records []RawRecord
		err     error
	}

	results := make(chan result, len(p.producers))
	var wg sync.WaitGroup
	for _, prod := range p.producers {
		wg.Add(1)
		go func(prod Producer) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
			defer cancel()
			fetchCtx, endSpan := tracing.StartPipelineSpan(fetchCtx, "fetch", prod.Name())
			records, err := prod.Fetch(fetchCtx)
			endSpan(err)
			results <- result{source: prod.Name(), records: records, err: err}
		}(prod)
	}
	wg.Wait()
	close(results)

	var raw []RawRecord
	for res := range results {
		if res.err != nil {
			p.logger.Warn("producer failed, skipping its batch",
				"source", res.source,
				"error", res.err)
			report.FailedSources = append(report.FailedSources, res.source)
			continue
		}
		raw = append(raw, res.records...)
	}
	return raw
}

// normalizeAll validates raw records, dropping and counting malformed ones.
// Within a batch the last occurrence of a dedup key wins, so a single run
// never upserts the same key twice.
func (p *Pipeline) normalizeAll(raw []RawRecord, metrics *Metrics, now time.Time) []normalized {
	byKey := make(map[string]normalized, len(raw))
	order := make([]string, 0, len(raw))
	for _, r := range raw {
		rec, err := Normalize(r, now)
		if err != nil {
			metrics.incSkipped()
			p.logger.Debug("skipping malformed record",
				"source", r.Source,
				"url", r.URL,
				"error", err)
			continue
		}
		key := rec.dedupKey()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = rec
	}

	records := make([]normalized, 0, len(byKey))
	for _, key := range order {
		records = append(records, byKey[key])
	}
	return records
}

// upsertAll merges normalized records into the catalog across sharded
// workers. Sharding by dedup key hash keeps upserts for one key on one
// goroutine while disjoint keys proceed in parallel.
func (p *Pipeline) upsertAll(ctx context.Context, records []normalized, metrics *Metrics) {
	workers := p.cfg.UpsertWorkers
	shards := make([][]normalized, workers)
	for _, rec := range records {
		i := shardFor(rec.dedupKey(), workers)
		shards[i] = append(shards[i], rec)
	}

	var wg sync.WaitGroup
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(shard []normalized) {
			defer wg.Done()
			for _, rec := range shard {
				p.upsertOne(ctx, rec, metrics)
			}
		}(shard)
	}
	wg.Wait()
}

func (p *Pipeline) upsertOne(ctx context.Context, rec normalized, metrics *Metrics) {
	var created bool
	var err error
	if rec.grant != nil {
		created, err = p.catalog.UpsertGrant(ctx, rec.grant)
	} else {
		created, err = p.catalog.UpsertNews(ctx, rec.news)
	}
	if err != nil {
		metrics.incSkipped()
		p.logger.Warn("upsert failed, counting record as skipped",
			"key", rec.dedupKey(),
			"error", err)
		return
	}
	if created {
		metrics.incSaved()
	} else {
		metrics.incUpdated()
	}
}

// sweep purges records older than the retention horizon. A grant is held
// back from purging while any stored profile is still eligible for it.
func (p *Pipeline) sweep(ctx context.Context, metrics *Metrics, now time.Time) {
	cutoff := now.Add(-p.cfg.RetentionHorizon)

	keep := p.eligibleKeys(ctx, now)
	deleted, err := p.catalog.DeleteGrantsOlderThan(ctx, cutoff, keep)
	if err != nil {
		p.logger.Warn("grant retention sweep failed", "error", err)
	} else {
		metrics.incPurged(int64(deleted))
	}

	deletedNews, err := p.catalog.DeleteNewsOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Warn("news retention sweep failed", "error", err)
	} else {
		metrics.incPurged(int64(deletedNews))
	}
}

// eligibleKeys returns the dedup keys of grants that at least one stored
// profile is currently eligible for. These survive the retention sweep
// regardless of age.
func (p *Pipeline) eligibleKeys(ctx context.Context, now time.Time) map[string]struct{} {
	keep := make(map[string]struct{})
	if p.profiles == nil {
		return keep
	}

	profiles, err := p.profiles.ListProfiles(ctx)
	if err != nil {
		p.logger.Warn("failed to list profiles for retention hold", "error", err)
		return keep
	}
	if len(profiles) == 0 {
		return keep
	}

	grants, err := p.catalog.ListGrants(ctx)
	if err != nil {
		p.logger.Warn("failed to list grants for retention hold", "error", err)
		return keep
	}

	for _, g := range grants {
		if g.Expired(now) {
			continue
		}
		for _, prof := range profiles {
			if match.Eligible(g, prof, now) {
				keep[g.DedupKey()] = struct{}{}
				break
			}
		}
	}
	return keep
}

func shardFor(key string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(workers))
}
