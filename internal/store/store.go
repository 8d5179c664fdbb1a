// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"opensen/internal/model"
)

// CreateProjectParams holds the caller-supplied fields of a new project.
type CreateProjectParams struct {
	OwnerID     string
	Name        string
	Description *string
	URL         *string
	RepoURL     *string
	IsPublic    bool
}

// UpdateProjectParams holds a partial project update; nil fields are
// left unchanged.
type UpdateProjectParams struct {
	ID          string
	Name        *string
	Description *string
	URL         *string
	RepoURL     *string
	IsPublic    *bool
}

// CreatePostParams holds the caller-supplied fields of a new post.
type CreatePostParams struct {
	ProjectID string
	Platform  model.Platform
	URL       string
	PostedAt  time.Time
}

// EngagementPoint is one time-series point of a project's engagement
// history, joined with the post it belongs to.
type EngagementPoint struct {
	Platform model.Platform `json:"platform"`
	URL      string         `json:"url"`
	Date     string         `json:"date"`
	Likes    int            `json:"likes"`
	Comments int            `json:"comments"`
	Shares   int            `json:"shares"`
}

// Querier is the persistence contract consumed by the API handlers and
// the collector. *Store implements it against Postgres.
type Querier interface {
	CreateProject(ctx context.Context, arg CreateProjectParams) (model.Project, error)
	GetProject(ctx context.Context, id string) (model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListVisibleProjects(ctx context.Context, viewerID string) ([]model.Project, error)
	UpdateProject(ctx context.Context, arg UpdateProjectParams) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreatePost(ctx context.Context, arg CreatePostParams) (model.Post, error)
	GetPost(ctx context.Context, id string) (model.Post, error)
	ListPostsByProject(ctx context.Context, projectID string) ([]model.Post, error)
	DeletePost(ctx context.Context, id string) error

	UpsertRepoStats(ctx context.Context, projectID, date string, stats model.RepoStats) error
	UpsertEngagement(ctx context.Context, postID, date string, eng model.Engagement) error
	ListRepoStats(ctx context.Context, projectID string) ([]model.RepoStatsSnapshot, error)
	ListEngagementsByProject(ctx context.Context, projectID string) ([]EngagementPoint, error)
}

// Store is the Postgres-backed Querier.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const projectColumns = `id, owner_id, name, description, url, repo_url, is_public, created_at`

func (s *Store) CreateProject(ctx context.Context, arg CreateProjectParams) (model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (id, owner_id, name, description, url, repo_url, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+projectColumns,
		xid.New().String(), arg.OwnerID, arg.Name, arg.Description, arg.URL, arg.RepoURL, arg.IsPublic,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL, &p.RepoURL, &p.IsPublic, &p.CreatedAt)
	return p, err
}

func (s *Store) GetProject(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL, &p.RepoURL, &p.IsPublic, &p.CreatedAt)
	return p, err
}

// ListProjects returns every tracked project. Used by the collector.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

// ListVisibleProjects returns public projects plus the viewer's own.
// An empty viewerID lists public projects only.
func (s *Store) ListVisibleProjects(ctx context.Context, viewerID string) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE is_public OR owner_id = $1
		 ORDER BY created_at DESC`, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *Store) UpdateProject(ctx context.Context, arg UpdateProjectParams) (model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx, `
		UPDATE projects SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			url         = COALESCE($4, url),
			repo_url    = COALESCE($5, repo_url),
			is_public   = COALESCE($6, is_public)
		WHERE id = $1
		RETURNING `+projectColumns,
		arg.ID, arg.Name, arg.Description, arg.URL, arg.RepoURL, arg.IsPublic,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL, &p.RepoURL, &p.IsPublic, &p.CreatedAt)
	return p, err
}

// DeleteProject removes a project; posts and snapshots cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

const postColumns = `id, project_id, platform, url, posted_at, created_at`

func (s *Store) CreatePost(ctx context.Context, arg CreatePostParams) (model.Post, error) {
	var p model.Post
	err := s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, project_id, platform, url, posted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+postColumns,
		xid.New().String(), arg.ProjectID, string(arg.Platform), arg.URL, arg.PostedAt,
	).Scan(&p.ID, &p.ProjectID, &p.Platform, &p.URL, &p.PostedAt, &p.CreatedAt)
	return p, err
}

func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	var p model.Post
	err := s.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.ProjectID, &p.Platform, &p.URL, &p.PostedAt, &p.CreatedAt)
	return p, err
}

func (s *Store) ListPostsByProject(ctx context.Context, projectID string) ([]model.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE project_id = $1 ORDER BY posted_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Platform, &p.URL, &p.PostedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DeletePost removes a post; its engagement snapshots cascade.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return err
}

// UpsertRepoStats writes one day's repository stats. Replace-on-conflict
// keeps the at-most-one-row-per-(project, date) invariant across the
// immediate on-create write and the scheduled run on the same day.
func (s *Store) UpsertRepoStats(ctx context.Context, projectID, date string, stats model.RepoStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO repo_stats (project_id, date, stars, forks, issues)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (project_id, date) DO UPDATE
		SET stars = EXCLUDED.stars, forks = EXCLUDED.forks, issues = EXCLUDED.issues`,
		projectID, date, stats.Stars, stats.Forks, stats.Issues)
	return err
}

// UpsertEngagement writes one day's engagement for a post, with the same
// replace-on-conflict semantics as UpsertRepoStats.
func (s *Store) UpsertEngagement(ctx context.Context, postID, date string, eng model.Engagement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engagements (post_id, date, likes, comments, shares)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (post_id, date) DO UPDATE
		SET likes = EXCLUDED.likes, comments = EXCLUDED.comments, shares = EXCLUDED.shares`,
		postID, date, eng.Likes, eng.Comments, eng.Shares)
	return err
}

func (s *Store) ListRepoStats(ctx context.Context, projectID string) ([]model.RepoStatsSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project_id, to_char(date, 'YYYY-MM-DD'), stars, forks, issues
		FROM repo_stats WHERE project_id = $1 ORDER BY date ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.RepoStatsSnapshot
	for rows.Next() {
		var snap model.RepoStatsSnapshot
		if err := rows.Scan(&snap.ProjectID, &snap.Date, &snap.Stars, &snap.Forks, &snap.Issues); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *Store) ListEngagementsByProject(ctx context.Context, projectID string) ([]EngagementPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.platform, p.url, to_char(e.date, 'YYYY-MM-DD'), e.likes, e.comments, e.shares
		FROM posts p
		JOIN engagements e ON p.id = e.post_id
		WHERE p.project_id = $1
		ORDER BY e.date ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []EngagementPoint
	for rows.Next() {
		var pt EngagementPoint
		if err := rows.Scan(&pt.Platform, &pt.URL, &pt.Date, &pt.Likes, &pt.Comments, &pt.Shares); err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

func scanProjects(rows pgx.Rows) ([]model.Project, error) {
	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL, &p.RepoURL, &p.IsPublic, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
