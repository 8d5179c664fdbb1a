// internal/collector/collector.go
package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"opensen/internal/model"
)

const (
	// Number of projects to collect in parallel
	concurrency = 4
)

// Store is the slice of persistence the collector needs: entity
// enumeration and idempotent per-day snapshot upserts.
type Store interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListPostsByProject(ctx context.Context, projectID string) ([]model.Post, error)
	UpsertRepoStats(ctx context.Context, projectID, date string, stats model.RepoStats) error
	UpsertEngagement(ctx context.Context, postID, date string, eng model.Engagement) error
}

// Fetcher pulls normalized metrics from the external platforms.
// *scraper.Scraper implements it; the second return is false when the
// platform had no data for the locator.
type Fetcher interface {
	RepoStats(ctx context.Context, repoURL string) (model.RepoStats, bool)
	Engagement(ctx context.Context, platform model.Platform, url string) (model.Engagement, bool)
}

// Collector walks every tracked project and post, fetches current metrics
// and upserts daily snapshots. It also serves the immediate on-create
// collection hooks, which share the same fetch-and-upsert path.
type Collector struct {
	store    Store
	fetcher  Fetcher
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New creates a Collector that runs a full collection every interval.
func New(store Store, fetcher Fetcher, logger *slog.Logger, interval time.Duration) *Collector {
	return &Collector{
		store:    store,
		fetcher:  fetcher,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the periodic collection loop. It runs once immediately,
// then once per interval until ctx is done.
func (c *Collector) Start(ctx context.Context) {
	c.logger.Info("Starting collector", "interval", c.interval.String(), "concurrency", concurrency)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Run(ctx) // Initial run

	for {
		select {
		case <-ticker.C:
			c.Run(ctx)
		case <-ctx.Done():
			c.logger.Info("Collector shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Run performs one full collection pass over all projects concurrently.
// The snapshot date is stamped once here and shared by every write of the
// run, so a long pass never straddles two calendar days. Failures are
// isolated per project: one bad entity never aborts the rest.
func (c *Collector) Run(ctx context.Context) {
	date := c.now().UTC().Format(model.DateFormat)
	c.logger.Info("Starting collection run", "date", date)

	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		c.logger.Error("Failed to enumerate projects", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, project := range projects {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			c.collectProject(gctx, project, date)
			return nil
		})
	}

	_ = g.Wait()
	c.logger.Info("Collection run finished", "date", date, "projects", len(projects))
}

// collectProject handles one project's unit of work: repository stats,
// then each post's engagement. Individual failures are logged and skipped.
func (c *Collector) collectProject(ctx context.Context, project model.Project, date string) {
	logger := c.logger.With("project_id", project.ID)

	if _, err := c.snapshotRepo(ctx, project, date); err != nil {
		logger.Error("Failed to store repository stats", "error", err)
	}

	posts, err := c.store.ListPostsByProject(ctx, project.ID)
	if err != nil {
		logger.Error("Failed to enumerate posts", "error", err)
		return
	}

	for _, post := range posts {
		if _, err := c.snapshotPost(ctx, post, date); err != nil {
			logger.Error("Failed to store engagement", "post_id", post.ID, "error", err)
		}
	}
}

// CollectProject fetches and stores repository stats for a newly created
// project, stamped with today's date. A nil result with nil error means
// the platform had no data; only store failures surface as errors.
func (c *Collector) CollectProject(ctx context.Context, project model.Project) (*model.RepoStats, error) {
	return c.snapshotRepo(ctx, project, c.now().UTC().Format(model.DateFormat))
}

// CollectPost is the post-creation counterpart of CollectProject.
func (c *Collector) CollectPost(ctx context.Context, post model.Post) (*model.Engagement, error) {
	return c.snapshotPost(ctx, post, c.now().UTC().Format(model.DateFormat))
}

// snapshotRepo is the single fetch-and-upsert path for repository stats,
// shared by the scheduled run and the on-create hook. The fetch completes
// before any write is attempted.
func (c *Collector) snapshotRepo(ctx context.Context, project model.Project, date string) (*model.RepoStats, error) {
	if project.RepoURL == nil || *project.RepoURL == "" {
		return nil, nil
	}
	stats, ok := c.fetcher.RepoStats(ctx, *project.RepoURL)
	if !ok {
		return nil, nil
	}
	if err := c.store.UpsertRepoStats(ctx, project.ID, date, stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// snapshotPost is the single fetch-and-upsert path for post engagement.
func (c *Collector) snapshotPost(ctx context.Context, post model.Post, date string) (*model.Engagement, error) {
	eng, ok := c.fetcher.Engagement(ctx, post.Platform, post.URL)
	if !ok {
		return nil, nil
	}
	if err := c.store.UpsertEngagement(ctx, post.ID, date, eng); err != nil {
		return nil, err
	}
	return &eng, nil
}
