package news

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
	"github.com/pkg/errors"

	"newsdigest/config"
)

// customSource is the Custom key carrying an item's <source> publisher.
const customSource = "source"

// sourceTranslator keeps the per-item <source> element, which the default
// translation drops. Google News names the publisher there.
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	out, err := t.DefaultRSSTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}
	rf, ok := feed.(*rss.Feed)
	if !ok {
		return out, nil
	}
	for i, item := range rf.Items {
		if i >= len(out.Items) || item.Source == nil || item.Source.Title == "" {
			continue
		}
		if out.Items[i].Custom == nil {
			out.Items[i].Custom = make(map[string]string)
		}
		out.Items[i].Custom[customSource] = strings.TrimSpace(item.Source.Title)
	}
	return out, nil
}

// RSS searches the Google News RSS feed. It needs no API key and backs up
// Mediastack when that fails or comes back empty.
type RSS struct {
	baseURL   string
	languages string
	countries string
	limit     int
	timeout   time.Duration
	parser    *gofeed.Parser
}

// NewRSS builds the feed searcher from the news settings.
func NewRSS(cfg config.NewsConfig) *RSS {
	p := gofeed.NewParser()
	p.UserAgent = "newsdigest/1.0"
	p.RSSTranslator = &sourceTranslator{}
	return &RSS{
		baseURL:   cfg.RSSURL,
		languages: cfg.Languages,
		countries: cfg.Countries,
		limit:     cfg.PerKeyword,
		timeout:   cfg.RequestTimeout,
		parser:    p,
	}
}

func (r *RSS) Name() string { return "rss" }

// Search parses the search feed for keyword and keeps the first items.
func (r *RSS) Search(ctx context.Context, keyword string) ([]Article, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	feed, err := r.parser.ParseURLWithContext(r.searchURL(keyword), ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "rss search %q", keyword)
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := Article{
			Title:       item.Title,
			URL:         item.Link,
			Description: Clean(item.Description, descriptionLimit),
			Source:      item.Custom[customSource],
		}
		if item.PublishedParsed != nil {
			a.Published = *item.PublishedParsed
		}
		articles = append(articles, a)
		if r.limit > 0 && len(articles) == r.limit {
			break
		}
	}
	return articles, nil
}

func (r *RSS) searchURL(keyword string) string {
	params := url.Values{}
	params.Set("q", keyword+" when:1d")
	if r.languages != "" && r.countries != "" {
		country := strings.ToUpper(r.countries)
		params.Set("hl", r.languages+"-"+country)
		params.Set("gl", country)
		params.Set("ceid", country+":"+r.languages)
	}
	return r.baseURL + "?" + params.Encode()
}
