// internal/scraper/github.go
package scraper

import (
	"context"
	"regexp"

	"opensen/internal/model"
)

// repoURLPattern extracts owner and repo from a repository URL,
// e.g. https://github.com/acme/widget.
var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/?#]+)`)

// RepoStats fetches star/fork/open-issue counts for the repository behind
// repoURL. The go-github getters default missing fields to zero; a URL
// that doesn't name a repository, or any request failure, yields no data.
func (s *Scraper) RepoStats(ctx context.Context, repoURL string) (model.RepoStats, bool) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		s.logger.Debug("Repository URL did not match owner/repo pattern", "url", repoURL)
		return model.RepoStats{}, false
	}
	owner, name := m[1], m[2]

	repo, _, err := s.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		s.logger.Debug("Repository fetch failed", "owner", owner, "repo", name, "error", err)
		return model.RepoStats{}, false
	}

	return model.RepoStats{
		Stars:  repo.GetStargazersCount(),
		Forks:  repo.GetForksCount(),
		Issues: repo.GetOpenIssuesCount(),
	}, true
}
