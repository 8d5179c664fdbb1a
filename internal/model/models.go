// internal/model/models.go
package model

import "time"

// Platform identifies the external service a post lives on. The set is
// closed: adding a platform means adding a constant here and a case to
// the scraper dispatch switch.
type Platform string

const (
	// PlatformGitHub is used for repository stats only, never for posts.
	PlatformGitHub Platform = "github"

	PlatformZenn   Platform = "zenn"
	PlatformQiita  Platform = "qiita"
	PlatformNote   Platform = "note"
	PlatformReddit Platform = "reddit"

	// PlatformX is a recognized tag without a working fetcher: the X API
	// requires a paid, authenticated plan. Posts may carry the tag but
	// collection always yields no data for them.
	PlatformX Platform = "x"
)

// PostPlatforms is the set of tags accepted on a Post.
var PostPlatforms = []Platform{PlatformZenn, PlatformQiita, PlatformNote, PlatformReddit, PlatformX}

// Valid reports whether p is a recognized post platform tag.
func (p Platform) Valid() bool {
	for _, known := range PostPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// AutoFetchable reports whether the platform has a working engagement
// fetcher. False for PlatformX, which is a deliberate capability gap.
func (p Platform) AutoFetchable() bool {
	return p.Valid() && p != PlatformX
}

// Project is a tracked software project with an optional linked repository.
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	URL         *string   `json:"url"`
	RepoURL     *string   `json:"repo_url"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post is one promotional unit (article, social post) on a platform.
type Post struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Platform  Platform  `json:"platform"`
	URL       string    `json:"url"`
	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RepoStats is the normalized repository metrics record.
type RepoStats struct {
	Stars  int `json:"stars"`
	Forks  int `json:"forks"`
	Issues int `json:"issues"`
}

// Engagement is the normalized engagement metrics record. Platforms that
// have no share-equivalent concept report Shares as zero.
type Engagement struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// RepoStatsSnapshot is one day's repository stats for one project.
// Date is a calendar day in YYYY-MM-DD form; at most one snapshot exists
// per (project, date).
type RepoStatsSnapshot struct {
	ProjectID string `json:"project_id"`
	Date      string `json:"date"`
	RepoStats
}

// EngagementSnapshot is one day's engagement for one post, keyed like
// RepoStatsSnapshot.
type EngagementSnapshot struct {
	PostID string `json:"post_id"`
	Date   string `json:"date"`
	Engagement
}

// DateFormat is the snapshot-key layout. One collection run stamps every
// snapshot it writes with a single date in this form.
const DateFormat = "2006-01-02"
