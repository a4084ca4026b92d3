package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/config"
	"newsdigest/logger"
)

type stubSource struct {
	name     string
	articles map[string][]Article
	err      error
	calls    []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(_ context.Context, keyword string) ([]Article, error) {
	s.calls = append(s.calls, keyword)
	if s.err != nil {
		return nil, s.err
	}
	return append([]Article(nil), s.articles[keyword]...), nil
}

func TestCollectDedupesByURL(t *testing.T) {
	src := &stubSource{name: "stub", articles: map[string][]Article{
		"bitcoin": {{Title: "BTC up", URL: "https://example.com/1"}, {Title: "Miners", URL: "https://example.com/2"}},
		"crypto":  {{Title: "BTC up again", URL: "https://example.com/1/"}, {Title: "ETH", URL: "https://example.com/3"}},
	}}
	c := NewCollector(logger.Discard(), src)

	got := c.Collect(context.Background(), []string{"bitcoin", "crypto"})

	require.Len(t, got, 3)
	assert.Equal(t, "bitcoin", got[0].Keyword)
	assert.Equal(t, "ETH", got[2].Title)
	assert.Equal(t, "crypto", got[2].Keyword)
}

func TestCollectFallsBackPerKeyword(t *testing.T) {
	primary := &stubSource{name: "primary", articles: map[string][]Article{
		"stocks": {{Title: "Dow", URL: "https://example.com/dow"}},
	}}
	backup := &stubSource{name: "backup", articles: map[string][]Article{
		"ai": {{Title: "Models", URL: "https://example.com/ai"}},
	}}
	c := NewCollector(logger.Discard(), primary, backup)

	got := c.Collect(context.Background(), []string{"stocks", "ai", "nothing"})

	require.Len(t, got, 2)
	assert.Equal(t, []string{"ai", "nothing"}, backup.calls)
}

func TestCollectFailureYieldsNoArticles(t *testing.T) {
	c := NewCollector(logger.Discard(),
		&stubSource{name: "a", err: errors.New("timeout")},
		&stubSource{name: "b", err: errors.New("HTTP 500")},
	)
	assert.Empty(t, c.Collect(context.Background(), []string{"bitcoin"}))
}

func TestMediastackSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("access_key"))
		assert.Equal(t, "bitcoin", q.Get("keywords"))
		assert.Equal(t, "us", q.Get("countries"))
		assert.Equal(t, "en", q.Get("languages"))
		assert.Equal(t, "2024-03-14", q.Get("date"))
		assert.Equal(t, "published_asc", q.Get("sort"))
		assert.Equal(t, "3", q.Get("limit"))
		_, _ = w.Write([]byte(`{"pagination": {}, "data": [{
			"title": "Bitcoin tops record",
			"description": "<p>Prices <b>rose</b> overnight.</p>",
			"url": "https://example.com/btc",
			"source": "Wire",
			"published_at": "2024-03-14T08:30:00+00:00"
		}]}`))
	}))
	defer srv.Close()

	cfg := config.Default().News
	cfg.MediastackURL = srv.URL
	cfg.MediastackKey = "key"
	m := NewMediastack(cfg)
	m.now = func() time.Time { return time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC) }

	got, err := m.Search(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Prices rose overnight.", got[0].Description)
	assert.Equal(t, "Wire", got[0].Source)
	assert.Equal(t, 8, got[0].Published.UTC().Hour())
}

func TestMediastackErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"code": "invalid_access_key", "message": "You have not supplied a valid API Access Key."}}`))
	}))
	defer srv.Close()

	cfg := config.Default().News
	cfg.MediastackURL = srv.URL
	cfg.MediastackKey = "bad"

	_, err := NewMediastack(cfg).Search(context.Background(), "bitcoin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_access_key")
}

func TestMediastackWithoutKey(t *testing.T) {
	_, err := NewMediastack(config.Default().News).Search(context.Background(), "bitcoin")
	assert.Error(t, err)
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>"stocks" - Google News</title>
<item><title>Stocks close higher</title><link>https://example.com/s1</link>
<pubDate>Thu, 14 Mar 2024 07:00:00 GMT</pubDate>
<description>&lt;a href="https://example.com/s1"&gt;Stocks close higher&lt;/a&gt;</description>
<source url="https://www.reuters.com">Reuters</source></item>
<item><title>Second</title><link>https://example.com/s2</link></item>
<item><title>Third</title><link>https://example.com/s3</link></item>
<item><title>Fourth</title><link>https://example.com/s4</link></item>
</channel></rss>`

func TestRSSSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("q"), "stocks"))
		assert.Equal(t, "US", r.URL.Query().Get("gl"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	cfg := config.Default().News
	cfg.RSSURL = srv.URL

	got, err := NewRSS(cfg).Search(context.Background(), "stocks")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Stocks close higher", got[0].Title)
	assert.Equal(t, "Stocks close higher", got[0].Description)
	assert.Equal(t, 2024, got[0].Published.Year())
	assert.Equal(t, "Reuters", got[0].Source, "publisher comes from the item source")
	assert.Empty(t, got[1].Source, "never the feed title")
}

func TestClean(t *testing.T) {
	assert.Equal(t, "AT&T earnings beat", Clean("<div>AT&amp;T   earnings\n beat</div>", 0))
	assert.Equal(t, "plain text", Clean("  plain   text ", 100))

	long := strings.Repeat("word ", 40)
	got := Clean(long, 50)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), 51)
}
