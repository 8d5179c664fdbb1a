// internal/scraper/scraper.go
package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

const (
	defaultZennBaseURL  = "https://zenn.dev"
	defaultQiitaBaseURL = "https://qiita.com"
	defaultNoteBaseURL  = "https://note.com"
)

// Scraper fetches raw metrics from the external platforms and normalizes
// them into the unified model shapes. Every expected failure mode
// (malformed URL, network error, non-2xx status, unparseable payload)
// degrades to a "no data" result; fetch methods never return errors.
type Scraper struct {
	gh        *github.Client
	http      *http.Client
	userAgent string
	logger    *slog.Logger

	// Base URLs are fields so tests can point them at fixture servers.
	zennBaseURL  string
	qiitaBaseURL string
	noteBaseURL  string
}

// New creates and configures a new Scraper instance.
// The GitHub token is optional: the stats endpoint is public, but an
// authenticated client gets a far higher rate limit.
func New(githubToken, userAgent string, logger *slog.Logger) *Scraper {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	ghHTTP := httpClient
	if githubToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: githubToken})
		ghHTTP = oauth2.NewClient(context.Background(), ts)
		ghHTTP.Timeout = 15 * time.Second
	}
	gh := github.NewClient(ghHTTP)
	gh.UserAgent = userAgent

	return &Scraper{
		gh:           gh,
		http:         httpClient,
		userAgent:    userAgent,
		logger:       logger,
		zennBaseURL:  defaultZennBaseURL,
		qiitaBaseURL: defaultQiitaBaseURL,
		noteBaseURL:  defaultNoteBaseURL,
	}
}

// getJSON issues one GET and decodes the response body into v.
// Returns false on any request, status, or decode failure.
func (s *Scraper) getJSON(ctx context.Context, url, userAgent string, v any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Debug("Malformed request URL", "url", url, "error", err)
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Debug("Request failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("Non-success response", "url", url, "status", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.logger.Debug("Unparseable response body", "url", url, "error", err)
		return false
	}
	return true
}
