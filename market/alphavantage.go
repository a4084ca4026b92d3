package market

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"newsdigest/config"
)

// throttleMarkers are substrings of the Note/Information message Alpha
// Vantage returns, with HTTP 200, once the call budget is exhausted.
var throttleMarkers = []string{
	"call frequency",
	"rate limit",
	"Thank you for using Alpha Vantage",
}

const maxBody = 8 << 20

// AlphaVantage is the primary market-data source. All calls share one
// pacer so consecutive requests are spaced by the configured delay.
type AlphaVantage struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	pacer      *Pacer
	windowDays int
	perSymbol  int
	limit      int
	now        func() time.Time
}

// NewAlphaVantage builds the primary client from the market settings.
func NewAlphaVantage(cfg config.MarketConfig) *AlphaVantage {
	return &AlphaVantage{
		baseURL:    cfg.AlphaVantageURL,
		apiKey:     cfg.AlphaVantageKey,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		pacer:      NewPacer(cfg.CallDelay),
		windowDays: cfg.WindowDays,
		perSymbol:  cfg.InsiderPerSymbol,
		limit:      cfg.SentimentLimit,
		now:        time.Now,
	}
}

// Series returns the trailing-window daily bars of in.
func (a *AlphaVantage) Series(ctx context.Context, in Instrument) ([]Bar, error) {
	params := url.Values{}
	key := "Time Series (Daily)"
	if in.Crypto {
		params.Set("function", "DIGITAL_CURRENCY_DAILY")
		params.Set("symbol", in.PrimarySymbol)
		params.Set("market", "USD")
		key = "Time Series (Digital Currency Daily)"
	} else {
		params.Set("function", "TIME_SERIES_DAILY")
		params.Set("symbol", in.PrimarySymbol)
		params.Set("outputsize", "compact")
	}

	var payload map[string]json.RawMessage
	if err := a.query(ctx, params, &payload); err != nil {
		return nil, errors.Wrapf(err, "series %s", in.PrimarySymbol)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(payload[key], &raw); err != nil || len(raw) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "series %s: missing %q", in.PrimarySymbol, key)
	}

	bars, err := parseDailySeries(raw, windowStart(a.now(), a.windowDays))
	if err != nil {
		return nil, errors.Wrapf(err, "series %s", in.PrimarySymbol)
	}
	return bars, nil
}

// GlobalQuote fetches the latest quote for one symbol. The previous close
// is Price minus Change.
func (a *AlphaVantage) GlobalQuote(ctx context.Context, symbol string) (Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var payload struct {
		Quote map[string]string `json:"Global Quote"`
	}
	if err := a.query(ctx, params, &payload); err != nil {
		return Quote{}, errors.Wrapf(err, "quote %s", symbol)
	}
	if len(payload.Quote) == 0 {
		return Quote{}, errors.Wrapf(ErrUnavailable, "quote %s: empty", symbol)
	}

	price, err1 := decimal.NewFromString(payload.Quote["05. price"])
	prev, err2 := decimal.NewFromString(payload.Quote["08. previous close"])
	if err1 != nil || err2 != nil || !price.IsPositive() || !prev.IsPositive() {
		return Quote{}, errors.Wrapf(ErrUnavailable, "quote %s: invalid price data", symbol)
	}
	return NewQuote(symbol, price, prev), nil
}

// Quotes fetches symbols one call at a time; used by the cache warmer.
// Symbols that fail are left out.
func (a *AlphaVantage) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		q, err := a.GlobalQuote(ctx, sym)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}
		out[sym] = q
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

type avInsiderRow struct {
	Date        string `json:"transaction_date"`
	Ticker      string `json:"ticker"`
	Executive   string `json:"executive"`
	Title       string `json:"executive_title"`
	Security    string `json:"security_type"`
	Disposition string `json:"acquisition_or_disposal"`
	Shares      string `json:"shares"`
	SharePrice  string `json:"share_price"`
}

// InsiderTransactions returns the most recent insider trades of symbol.
func (a *AlphaVantage) InsiderTransactions(ctx context.Context, symbol string) ([]InsiderTransaction, error) {
	params := url.Values{}
	params.Set("function", "INSIDER_TRANSACTIONS")
	params.Set("symbol", symbol)

	var payload struct {
		Data *[]avInsiderRow `json:"data"`
	}
	if err := a.query(ctx, params, &payload); err != nil {
		return nil, errors.Wrapf(err, "insider %s", symbol)
	}
	if payload.Data == nil {
		return nil, errors.Wrapf(ErrUnavailable, "insider %s: missing data", symbol)
	}

	var txs []InsiderTransaction
	for _, r := range *payload.Data {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			continue
		}
		shares, _ := decimal.NewFromString(r.Shares)
		price, _ := decimal.NewFromString(r.SharePrice)
		txs = append(txs, InsiderTransaction{
			Date:   date,
			Name:   r.Executive,
			Title:  r.Title,
			Action: insiderAction(r.Disposition),
			Shares: shares,
			Price:  price,
		})
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	if a.perSymbol > 0 && len(txs) > a.perSymbol {
		txs = txs[:a.perSymbol]
	}
	return txs, nil
}

type avFeedItem struct {
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Published    string  `json:"time_published"`
	Summary      string  `json:"summary"`
	Source       string  `json:"source"`
	OverallScore float64 `json:"overall_sentiment_score"`
	OverallLabel string  `json:"overall_sentiment_label"`
	Tickers      []struct {
		Ticker string `json:"ticker"`
		Score  string `json:"ticker_sentiment_score"`
		Label  string `json:"ticker_sentiment_label"`
	} `json:"ticker_sentiment"`
}

// NewsSentiment issues a single call covering every ticker and topic.
func (a *AlphaVantage) NewsSentiment(ctx context.Context, tickers, topics []string) ([]SentimentArticle, error) {
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	if len(tickers) > 0 {
		params.Set("tickers", strings.Join(tickers, ","))
	}
	if len(topics) > 0 {
		params.Set("topics", strings.Join(topics, ","))
	}
	params.Set("sort", "LATEST")
	params.Set("limit", "50")

	var payload struct {
		Feed *[]avFeedItem `json:"feed"`
	}
	if err := a.query(ctx, params, &payload); err != nil {
		return nil, errors.Wrap(err, "news sentiment")
	}
	if payload.Feed == nil {
		return nil, errors.Wrap(ErrUnavailable, "news sentiment: missing feed")
	}

	var articles []SentimentArticle
	for _, item := range *payload.Feed {
		published, _ := time.Parse("20060102T150405", item.Published)
		art := SentimentArticle{
			Title:     item.Title,
			Source:    item.Source,
			URL:       item.URL,
			Summary:   item.Summary,
			Published: published,
			Label:     item.OverallLabel,
			Score:     item.OverallScore,
		}
		for _, ts := range item.Tickers {
			score, _ := strconv.ParseFloat(ts.Score, 64)
			art.Tickers = append(art.Tickers, TickerSentiment{Ticker: ts.Ticker, Label: ts.Label, Score: score})
		}
		articles = append(articles, art)
		if a.limit > 0 && len(articles) == a.limit {
			break
		}
	}
	return articles, nil
}

// query performs one paced GET and decodes the body into out after
// checking the payload for throttle and error messages.
func (a *AlphaVantage) query(ctx context.Context, params url.Values, out any) error {
	if a.apiKey == "" {
		return errors.Wrap(ErrUnavailable, "alphavantage: no api key configured")
	}
	if err := a.pacer.Wait(ctx); err != nil {
		return err
	}

	params.Set("apikey", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("alphavantage: HTTP %d", resp.StatusCode)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return errors.Wrap(err, "alphavantage: malformed payload")
	}
	if err := checkMessages(probe); err != nil {
		return err
	}

	return errors.Wrap(json.Unmarshal(body, out), "alphavantage: decode")
}

// checkMessages inspects the informational fields Alpha Vantage uses in
// place of HTTP status codes.
func checkMessages(probe map[string]json.RawMessage) error {
	for _, field := range []string{"Note", "Information"} {
		raw, ok := probe[field]
		if !ok {
			continue
		}
		var msg string
		_ = json.Unmarshal(raw, &msg)
		for _, marker := range throttleMarkers {
			if strings.Contains(strings.ToLower(msg), strings.ToLower(marker)) {
				return errors.Wrap(ErrRateLimited, msg)
			}
		}
		if len(probe) == 1 {
			return errors.Wrap(ErrUnavailable, msg)
		}
	}

	if raw, ok := probe["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return errors.Wrap(ErrUnavailable, msg)
	}
	return nil
}

// parseDailySeries converts the date-keyed OHLC map into ascending bars
// on or after since. Both the stock and the crypto field names are read.
func parseDailySeries(raw map[string]map[string]string, since time.Time) ([]Bar, error) {
	bars := make([]Bar, 0, len(raw))
	for date, fields := range raw {
		t, err := time.Parse("2006-01-02", date)
		if err != nil || t.Before(since) {
			continue
		}

		bar := Bar{Time: t}
		var ok bool
		if bar.Open, ok = pickFloat(fields, "1. open", "1a. open"); !ok {
			continue
		}
		if bar.High, ok = pickFloat(fields, "2. high", "2a. high"); !ok {
			continue
		}
		if bar.Low, ok = pickFloat(fields, "3. low", "3a. low"); !ok {
			continue
		}
		if bar.Close, ok = pickFloat(fields, "4. close", "4a. close"); !ok {
			continue
		}
		bar.Volume, _ = pickFloat(fields, "5. volume")
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, errors.Wrap(ErrUnavailable, "no bars in window")
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// pickFloat returns the first field whose key starts with one of prefixes.
func pickFloat(fields map[string]string, prefixes ...string) (float64, bool) {
	for _, p := range prefixes {
		for k, v := range fields {
			if strings.HasPrefix(k, p) {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return 0, false
				}
				return f, true
			}
		}
	}
	return 0, false
}

func insiderAction(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "A":
		return "Buy"
	case "D":
		return "Sell"
	default:
		return "Other"
	}
}

// NewQuote derives change and percent change from the previous close.
func NewQuote(symbol string, price, prevClose decimal.Decimal) Quote {
	change := price.Sub(prevClose)
	pct := decimal.Zero
	if !prevClose.IsZero() {
		pct = change.Div(prevClose).Mul(decimal.NewFromInt(100))
	}
	return Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct.Round(2),
	}
}

// windowStart is midnight UTC days before now.
func windowStart(now time.Time, days int) time.Time {
	y, m, d := now.UTC().AddDate(0, 0, -days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
