package news

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"newsdigest/config"
)

// ErrNoArticles means a source answered but had nothing for the keyword.
var ErrNoArticles = errors.New("no articles")

// descriptionLimit bounds the plain-text description shown per article.
const descriptionLimit = 300

// Article is one keyword-matched news item.
type Article struct {
	Keyword     string
	Title       string
	Source      string
	URL         string
	Published   time.Time
	Description string
}

// Source searches one news provider for a keyword.
type Source interface {
	Name() string
	Search(ctx context.Context, keyword string) ([]Article, error)
}

// Collector queries its sources in order for each keyword and keeps the
// first non-empty answer.
type Collector struct {
	sources []Source
	logger  *slog.Logger
}

// NewCollector returns a collector trying sources in the given order.
func NewCollector(logger *slog.Logger, sources ...Source) *Collector {
	return &Collector{sources: sources, logger: logger}
}

// New builds the Mediastack collector with the RSS fallback when enabled.
func New(cfg config.NewsConfig, logger *slog.Logger) *Collector {
	sources := []Source{NewMediastack(cfg)}
	if cfg.RSSFallback {
		sources = append(sources, NewRSS(cfg))
	}
	return NewCollector(logger, sources...)
}

// Collect returns the articles for every keyword, de-duplicated by URL.
// A keyword whose sources all fail contributes nothing; it never fails the
// whole call.
func (c *Collector) Collect(ctx context.Context, keywords []string) []Article {
	seen := make(map[string]bool)
	var out []Article

	for _, kw := range keywords {
		for _, a := range c.search(ctx, kw) {
			key := dedupeKey(a)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a)
		}
	}
	return out
}

func (c *Collector) search(ctx context.Context, keyword string) []Article {
	for _, src := range c.sources {
		articles, err := src.Search(ctx, keyword)
		if err == nil && len(articles) > 0 {
			for i := range articles {
				articles[i].Keyword = keyword
			}
			c.logger.Debug("articles fetched", "source", src.Name(), "keyword", keyword, "count", len(articles))
			return articles
		}
		if err == nil {
			err = ErrNoArticles
		}
		c.logger.Warn("news source failed", "source", src.Name(), "keyword", keyword, "error", err)
	}
	return nil
}

func dedupeKey(a Article) string {
	if a.URL != "" {
		return strings.TrimRight(a.URL, "/")
	}
	return "title:" + strings.ToLower(a.Title)
}
