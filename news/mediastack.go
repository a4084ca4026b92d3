package news

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"newsdigest/config"
)

// Mediastack queries the mediastack /v1/news endpoint for today's articles.
type Mediastack struct {
	baseURL   string
	apiKey    string
	countries string
	languages string
	sort      string
	limit     int
	client    *http.Client
	now       func() time.Time
}

// NewMediastack builds the client from the news settings.
func NewMediastack(cfg config.NewsConfig) *Mediastack {
	return &Mediastack{
		baseURL:   cfg.MediastackURL,
		apiKey:    cfg.MediastackKey,
		countries: cfg.Countries,
		languages: cfg.Languages,
		sort:      cfg.Sort,
		limit:     cfg.PerKeyword,
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		now:       time.Now,
	}
}

func (m *Mediastack) Name() string { return "mediastack" }

type mediastackResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		PublishedAt string `json:"published_at"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns up to the configured number of today's articles.
func (m *Mediastack) Search(ctx context.Context, keyword string) ([]Article, error) {
	if m.apiKey == "" {
		return nil, errors.New("mediastack: no api key configured")
	}

	params := url.Values{}
	params.Set("access_key", m.apiKey)
	params.Set("keywords", keyword)
	params.Set("countries", m.countries)
	params.Set("languages", m.languages)
	params.Set("date", m.now().Format("2006-01-02"))
	params.Set("sort", m.sort)
	params.Set("limit", strconv.Itoa(m.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "mediastack request")
	}
	defer resp.Body.Close()

	var payload mediastackResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "mediastack: decode")
	}
	if payload.Error != nil {
		return nil, errors.Errorf("mediastack: %s: %s", payload.Error.Code, payload.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("mediastack: HTTP %d", resp.StatusCode)
	}

	articles := make([]Article, 0, len(payload.Data))
	for _, d := range payload.Data {
		published, _ := time.Parse(time.RFC3339, d.PublishedAt)
		articles = append(articles, Article{
			Title:       d.Title,
			Source:      d.Source,
			URL:         d.URL,
			Published:   published,
			Description: Clean(d.Description, descriptionLimit),
		})
	}
	return articles, nil
}
