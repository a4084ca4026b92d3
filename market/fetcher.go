package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"newsdigest/config"
	"newsdigest/models"
)

// maxInsiderSymbols is the primary source's strictest per-minute ceiling.
const maxInsiderSymbols = 5

// SeriesSource serves daily bars for one instrument.
type SeriesSource interface {
	Series(ctx context.Context, in Instrument) ([]Bar, error)
}

// QuoteSource serves quotes for several symbols.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// InsiderSource serves recent insider trades of one symbol.
type InsiderSource interface {
	InsiderTransactions(ctx context.Context, symbol string) ([]InsiderTransaction, error)
}

// SentimentSource serves scored articles for tickers and topics.
type SentimentSource interface {
	NewsSentiment(ctx context.Context, tickers, topics []string) ([]SentimentArticle, error)
}

// Primary is the rate-limited source tried first for charts, insider
// activity and sentiment.
type Primary interface {
	SeriesSource
	InsiderSource
	SentimentSource
}

// Secondary is the fallback source for charts and the batch source for the
// mover table. It may also implement InsiderSource or SentimentSource.
type Secondary interface {
	SeriesSource
	QuoteSource
}

// QuoteCacheReader returns cached quotes no older than maxAge.
type QuoteCacheReader interface {
	Fresh(symbols []string, maxAge time.Duration) (map[string]models.CachedQuote, error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithQuoteCache adds the cache tier to the mover table.
func WithQuoteCache(c QuoteCacheReader) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithSleep replaces the blocking wait used for throttle backoff.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithSynthetic fixes the synthetic generator instead of deriving one per
// fetch from the configured seed.
func WithSynthetic(s *Synthetic) Option {
	return func(f *Fetcher) { f.synthetic = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// Fetcher assembles a Snapshot from the primary and secondary sources,
// the quote cache and the synthetic generator, in that order of preference.
type Fetcher struct {
	cfg       config.MarketConfig
	primary   Primary
	secondary Secondary
	cache     QuoteCacheReader
	synthetic *Synthetic
	sleep     func(context.Context, time.Duration) error
	now       func() time.Time
	logger    *slog.Logger
}

// NewFetcher wires the sources. Either source may be nil.
func NewFetcher(cfg config.MarketConfig, primary Primary, secondary Secondary, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		sleep:     sleep,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// throttle tracks rate-limit answers of the primary source in one category.
type throttle struct {
	category string
	hits     int
}

// disabled reports whether the primary source is skipped for the rest of
// the category.
func (t *throttle) disabled() bool {
	return t.hits >= 2
}

// Fetch builds the snapshot for req. It never fails: every slot carries
// data from the best tier that answered, or is marked unavailable.
func (f *Fetcher) Fetch(ctx context.Context, req Request) *Snapshot {
	now := f.now()
	snap := &Snapshot{
		FetchedAt: now,
		Charts:    make(map[InstrumentKey]Sourced[[]Bar]),
		Insider:   make(map[string]Sourced[[]InsiderTransaction]),
	}

	syn := f.synthetic
	if syn == nil {
		syn = NewSynthetic(f.cfg.SyntheticSeed, now)
	}

	if len(req.Charts) > 0 {
		f.fetchCharts(ctx, req.Charts, syn, snap)
	}
	if req.Movers {
		f.fetchMovers(ctx, syn, snap)
	}
	if req.Insider {
		f.fetchInsider(ctx, syn, snap)
	}
	if req.Sentiment {
		f.fetchSentiment(ctx, syn, snap)
	}

	f.logger.Info("market snapshot ready",
		"charts", len(snap.Charts),
		"movers", len(snap.Movers),
		"insider_symbols", len(snap.InsiderOrder),
		"sentiment_tier", snap.Sentiment.Tier.String(),
	)
	return snap
}

func (f *Fetcher) fetchCharts(ctx context.Context, keys []InstrumentKey, syn *Synthetic, snap *Snapshot) {
	th := &throttle{category: "chart"}
	for i, key := range keys {
		in, ok := LookupInstrument(key)
		if !ok {
			continue
		}

		if f.primary != nil && !th.disabled() {
			bars, err := f.primary.Series(ctx, in)
			if err == nil {
				snap.Charts[key] = Sourced[[]Bar]{Value: bars, Tier: TierPrimary}
				continue
			}
			f.primaryFailed(ctx, th, string(key), i < len(keys)-1, err)
		}

		if f.secondary != nil {
			bars, err := f.secondary.Series(ctx, in)
			if err == nil {
				snap.Charts[key] = Sourced[[]Bar]{Value: bars, Tier: TierSecondary}
				continue
			}
			f.unavailable("chart", string(key), "secondary", err)
		}

		if f.cfg.SyntheticFallback {
			snap.Charts[key] = Sourced[[]Bar]{Value: syn.Series(in, f.cfg.WindowDays), Tier: TierSynthetic}
			f.logger.Warn("serving synthetic data", "category", "chart", "key", string(key))
			continue
		}
		snap.Charts[key] = Sourced[[]Bar]{}
	}
}

func (f *Fetcher) fetchMovers(ctx context.Context, syn *Synthetic, snap *Snapshot) {
	symbols := f.cfg.Symbols
	found := make(map[string]Sourced[Quote], len(symbols))

	if f.secondary != nil {
		quotes, err := f.secondary.Quotes(ctx, symbols)
		if err != nil {
			f.unavailable("movers", "batch", "secondary", err)
		}
		for sym, q := range quotes {
			found[sym] = Sourced[Quote]{Value: q, Tier: TierSecondary}
		}
	}

	if missing := missingSymbols(symbols, found); len(missing) > 0 && f.cache != nil {
		rows, err := f.cache.Fresh(missing, f.cfg.CacheMaxAge)
		if err != nil {
			f.unavailable("movers", "cache", "cache", err)
		}
		for sym, row := range rows {
			q := NewQuote(sym, decimal.NewFromFloat(row.Price), decimal.NewFromFloat(row.PreviousClose))
			found[sym] = Sourced[Quote]{Value: q, Tier: TierCached}
		}
	}

	snap.Movers = make([]Sourced[Quote], 0, len(symbols))
	for _, sym := range symbols {
		if q, ok := found[sym]; ok {
			snap.Movers = append(snap.Movers, q)
			continue
		}
		if f.cfg.SyntheticFallback {
			f.logger.Warn("serving synthetic data", "category", "movers", "symbol", sym)
			snap.Movers = append(snap.Movers, Sourced[Quote]{Value: syn.Quote(sym), Tier: TierSynthetic})
			continue
		}
		snap.Movers = append(snap.Movers, Sourced[Quote]{Value: Quote{Symbol: sym}})
	}
}

func (f *Fetcher) fetchInsider(ctx context.Context, syn *Synthetic, snap *Snapshot) {
	symbols := f.insiderSymbols()
	th := &throttle{category: "insider"}

	var fallback InsiderSource
	if s, ok := f.secondary.(InsiderSource); ok {
		fallback = s
	}

	for i, sym := range symbols {
		snap.InsiderOrder = append(snap.InsiderOrder, sym)

		if f.primary != nil && !th.disabled() {
			txs, err := f.primary.InsiderTransactions(ctx, sym)
			if err == nil {
				snap.Insider[sym] = Sourced[[]InsiderTransaction]{Value: txs, Tier: TierPrimary}
				continue
			}
			f.primaryFailed(ctx, th, sym, i < len(symbols)-1, err)
		}

		if fallback != nil {
			txs, err := fallback.InsiderTransactions(ctx, sym)
			if err == nil {
				snap.Insider[sym] = Sourced[[]InsiderTransaction]{Value: txs, Tier: TierSecondary}
				continue
			}
			f.unavailable("insider", sym, "secondary", err)
		}

		if f.cfg.SyntheticFallback {
			f.logger.Warn("serving synthetic data", "category", "insider", "symbol", sym)
			snap.Insider[sym] = Sourced[[]InsiderTransaction]{Value: syn.InsiderTransactions(sym), Tier: TierSynthetic}
			continue
		}
		snap.Insider[sym] = Sourced[[]InsiderTransaction]{}
	}
}

func (f *Fetcher) fetchSentiment(ctx context.Context, syn *Synthetic, snap *Snapshot) {
	th := &throttle{category: "sentiment"}
	tickers, topics := f.cfg.Symbols, f.cfg.SentimentTopics

	if f.primary != nil {
		articles, err := f.primary.NewsSentiment(ctx, tickers, topics)
		if err == nil {
			snap.Sentiment = Sourced[Sentiment]{Value: NewSentiment(articles), Tier: TierPrimary}
			return
		}
		f.primaryFailed(ctx, th, "all", false, err)
	}

	if s, ok := f.secondary.(SentimentSource); ok {
		articles, err := s.NewsSentiment(ctx, tickers, topics)
		if err == nil {
			snap.Sentiment = Sourced[Sentiment]{Value: NewSentiment(articles), Tier: TierSecondary}
			return
		}
		f.unavailable("sentiment", "all", "secondary", err)
	}

	if f.cfg.SyntheticFallback {
		f.logger.Warn("serving synthetic data", "category", "sentiment")
		snap.Sentiment = Sourced[Sentiment]{
			Value: NewSentiment(syn.Sentiment(tickers, f.cfg.SentimentLimit)),
			Tier:  TierSynthetic,
		}
	}
}

// primaryFailed logs a primary failure and applies the throttle policy: the
// first throttle in a category waits out the backoff, the second one turns
// the primary off for the remaining items of that category. pending tells
// whether another primary call of the category may follow; without one
// there is nothing to wait for.
func (f *Fetcher) primaryFailed(ctx context.Context, th *throttle, key string, pending bool, err error) {
	if !errors.Is(err, ErrRateLimited) {
		f.unavailable(th.category, key, "primary", err)
		return
	}

	th.hits++
	if th.disabled() {
		f.logger.Warn("rate limited again, skipping primary for category",
			"category", th.category, "key", key)
		return
	}
	if !pending {
		f.logger.Warn("rate limited on the last call of category",
			"category", th.category, "key", key)
		return
	}

	f.logger.Warn("rate limited, backing off",
		"category", th.category, "key", key, "backoff", f.cfg.ThrottleBackoff.String())
	if err := f.sleep(ctx, f.cfg.ThrottleBackoff); err != nil {
		f.logger.Warn("backoff interrupted", "category", th.category, "error", err)
	}
}

func (f *Fetcher) unavailable(category, key, source string, err error) {
	f.logger.Warn("data source unavailable",
		"category", category, "key", key, "source", source, "error", err)
}

// insiderSymbols is the head of the tracked list, never longer than the
// primary source's per-minute ceiling.
func (f *Fetcher) insiderSymbols() []string {
	limit := f.cfg.InsiderCap
	if limit <= 0 || limit > maxInsiderSymbols {
		limit = maxInsiderSymbols
	}
	if len(f.cfg.Symbols) < limit {
		limit = len(f.cfg.Symbols)
	}
	return f.cfg.Symbols[:limit]
}

func missingSymbols(symbols []string, found map[string]Sourced[Quote]) []string {
	var missing []string
	for _, s := range symbols {
		if _, ok := found[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
