package market

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"newsdigest/config"
)

// Yahoo is the secondary source. It serves daily bars per instrument and a
// multi-symbol quote batch in a single round trip.
type Yahoo struct {
	windowDays int
	now        func() time.Time
}

// NewYahoo points the finance-go Yahoo backend at the configured URL and
// timeout. The backend is process-wide.
func NewYahoo(cfg config.MarketConfig) *Yahoo {
	if cfg.YahooURL != "" {
		finance.SetBackend(finance.YFinBackend, &finance.BackendConfiguration{
			Type:       finance.YFinBackend,
			URL:        strings.TrimRight(cfg.YahooURL, "/"),
			HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		})
	}
	return &Yahoo{windowDays: cfg.WindowDays, now: time.Now}
}

// Series returns the trailing-window daily bars of in.
func (y *Yahoo) Series(ctx context.Context, in Instrument) ([]Bar, error) {
	end := y.now()
	start := windowStart(end, y.windowDays)

	it := chart.Get(&chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   in.SecondarySymbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []Bar
	for it.Next() {
		b := it.Bar()
		// Yahoo reports holidays and the running session as null rows.
		if b.Close.IsZero() || b.Open.IsZero() {
			continue
		}
		t := time.Unix(int64(b.Timestamp), 0).UTC()
		if t.Before(start) {
			continue
		}
		bars = append(bars, Bar{
			Time:   t,
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: float64(b.Volume),
		})
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "yahoo series %s: %v", in.SecondarySymbol, err)
	}

	if len(bars) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "yahoo series %s: no bars in window", in.SecondarySymbol)
	}
	return bars, nil
}

// Quotes fetches every symbol in one batched request. Symbols missing from
// the response are absent from the result.
func (y *Yahoo) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	byYahoo := make(map[string]string, len(symbols))
	yahooSyms := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ys := strings.ReplaceAll(s, ".", "-")
		byYahoo[ys] = s
		yahooSyms = append(yahooSyms, ys)
	}

	it := quote.ListP(&quote.Params{
		Params:  finance.Params{Context: &ctx},
		Symbols: yahooSyms,
	})

	out := make(map[string]Quote, len(symbols))
	for it.Next() {
		q := it.Quote()
		sym, ok := byYahoo[q.Symbol]
		if !ok || q.RegularMarketPrice <= 0 || q.RegularMarketPreviousClose <= 0 {
			continue
		}
		out[sym] = NewQuote(sym, decimal.NewFromFloat(q.RegularMarketPrice), decimal.NewFromFloat(q.RegularMarketPreviousClose))
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrap(err, "yahoo quotes")
	}

	if len(out) == 0 {
		return nil, errors.Wrap(ErrUnavailable, "yahoo quotes: empty result")
	}
	return out, nil
}
