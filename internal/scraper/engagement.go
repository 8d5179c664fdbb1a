// internal/scraper/engagement.go
package scraper

import (
	"context"
	"regexp"
	"strings"

	"opensen/internal/model"
)

// URL patterns for extracting each platform's article identifier.
var (
	zennURLPattern  = regexp.MustCompile(`zenn\.dev/[^/]+/articles/([^/?#]+)`)
	qiitaURLPattern = regexp.MustCompile(`qiita\.com/[^/]+/items/([^/?#]+)`)
	noteURLPattern  = regexp.MustCompile(`note\.com/[^/]+/n/([^/?#]+)`)
)

// Engagement routes a (platform, URL) pair to the matching fetcher and
// returns the normalized engagement record. Unknown tags and the
// deliberately unsupported X platform yield no data; the switch is
// exhaustive over the recognized tag set.
func (s *Scraper) Engagement(ctx context.Context, platform model.Platform, url string) (model.Engagement, bool) {
	switch platform {
	case model.PlatformZenn:
		return s.zennEngagement(ctx, url)
	case model.PlatformQiita:
		return s.qiitaEngagement(ctx, url)
	case model.PlatformNote:
		return s.noteEngagement(ctx, url)
	case model.PlatformReddit:
		return s.redditEngagement(ctx, url)
	case model.PlatformX:
		// The X API requires a paid, authenticated plan. Recognized tag,
		// no fetcher.
		return model.Engagement{}, false
	default:
		s.logger.Debug("No fetcher for platform", "platform", platform)
		return model.Engagement{}, false
	}
}

// zennEngagement queries the unofficial Zenn article API. Bookmarks map
// onto the unified shares field.
func (s *Scraper) zennEngagement(ctx context.Context, url string) (model.Engagement, bool) {
	m := zennURLPattern.FindStringSubmatch(url)
	if m == nil {
		s.logger.Debug("Zenn URL did not match article pattern", "url", url)
		return model.Engagement{}, false
	}

	var payload struct {
		Article *struct {
			LikedCount      int `json:"liked_count"`
			CommentsCount   int `json:"comments_count"`
			BookmarkedCount int `json:"bookmarked_count"`
		} `json:"article"`
	}
	if !s.getJSON(ctx, s.zennBaseURL+"/api/articles/"+m[1], s.userAgent, &payload) {
		return model.Engagement{}, false
	}
	if payload.Article == nil {
		return model.Engagement{}, false
	}

	return model.Engagement{
		Likes:    payload.Article.LikedCount,
		Comments: payload.Article.CommentsCount,
		Shares:   payload.Article.BookmarkedCount,
	}, true
}

// qiitaEngagement queries the public Qiita items API. Stocks map onto the
// unified shares field.
func (s *Scraper) qiitaEngagement(ctx context.Context, url string) (model.Engagement, bool) {
	m := qiitaURLPattern.FindStringSubmatch(url)
	if m == nil {
		s.logger.Debug("Qiita URL did not match item pattern", "url", url)
		return model.Engagement{}, false
	}

	var payload struct {
		LikesCount    int `json:"likes_count"`
		CommentsCount int `json:"comments_count"`
		StocksCount   int `json:"stocks_count"`
	}
	if !s.getJSON(ctx, s.qiitaBaseURL+"/api/v2/items/"+m[1], s.userAgent, &payload) {
		return model.Engagement{}, false
	}

	return model.Engagement{
		Likes:    payload.LikesCount,
		Comments: payload.CommentsCount,
		Shares:   payload.StocksCount,
	}, true
}

// noteEngagement queries the unofficial note v3 API. Note has no
// share-equivalent metric, so shares is always zero.
func (s *Scraper) noteEngagement(ctx context.Context, url string) (model.Engagement, bool) {
	m := noteURLPattern.FindStringSubmatch(url)
	if m == nil {
		s.logger.Debug("Note URL did not match note pattern", "url", url)
		return model.Engagement{}, false
	}

	var payload struct {
		Data *struct {
			LikeCount    int `json:"likeCount"`
			CommentCount int `json:"commentCount"`
		} `json:"data"`
	}
	if !s.getJSON(ctx, s.noteBaseURL+"/api/v3/notes/"+m[1], s.userAgent, &payload) {
		return model.Engagement{}, false
	}
	if payload.Data == nil {
		return model.Engagement{}, false
	}

	return model.Engagement{
		Likes:    payload.Data.LikeCount,
		Comments: payload.Data.CommentCount,
		Shares:   0,
	}, true
}

// redditEngagement reads the post's own JSON representation: reddit serves
// any post URL with ".json" appended, so there is no separate API host.
// Upvotes map to likes, replies to comments; reddit exposes no share count.
func (s *Scraper) redditEngagement(ctx context.Context, url string) (model.Engagement, bool) {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimSuffix(url, "/")

	var payload []struct {
		Data struct {
			Children []struct {
				Data struct {
					Ups         int `json:"ups"`
					NumComments int `json:"num_comments"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	// Reddit asks clients for a descriptive agent string.
	ua := s.userAgent + " (by /u/opensen)"
	if !s.getJSON(ctx, url+".json", ua, &payload) {
		return model.Engagement{}, false
	}
	if len(payload) == 0 || len(payload[0].Data.Children) == 0 {
		return model.Engagement{}, false
	}

	post := payload[0].Data.Children[0].Data
	return model.Engagement{
		Likes:    post.Ups,
		Comments: post.NumComments,
		Shares:   0,
	}, true
}
