package market

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrRateLimited means the payload carried the source's throttle marker.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable means the source answered without usable data.
	ErrUnavailable = errors.New("data source unavailable")
	// ErrUnsupported means the source has no endpoint for the category.
	ErrUnsupported = errors.New("not supported by source")
)

// Tier records which fallback level served a piece of data.
type Tier int

const (
	TierUnavailable Tier = iota
	TierPrimary
	TierSecondary
	TierCached
	TierSynthetic
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierCached:
		return "cached"
	case TierSynthetic:
		return "synthetic"
	default:
		return "unavailable"
	}
}

// Sourced is a value tagged with the tier that produced it.
type Sourced[T any] struct {
	Value T
	Tier  Tier
}

// Available reports whether any tier produced the value.
func (s Sourced[T]) Available() bool {
	return s.Tier != TierUnavailable
}

// InstrumentKey names a chartable instrument.
type InstrumentKey string

const (
	BroadMarket InstrumentKey = "sp500"
	TechMarket  InstrumentKey = "nasdaq"
	Crypto      InstrumentKey = "bitcoin"
)

// Instrument maps a chart to the symbols each source knows it by.
type Instrument struct {
	Key             InstrumentKey
	Name            string
	PrimarySymbol   string
	SecondarySymbol string
	Crypto          bool
}

// Instruments lists the chartable instruments in display order.
var Instruments = []Instrument{
	{Key: BroadMarket, Name: "S&P 500", PrimarySymbol: "SPY", SecondarySymbol: "^GSPC"},
	{Key: TechMarket, Name: "NASDAQ", PrimarySymbol: "QQQ", SecondarySymbol: "^IXIC"},
	{Key: Crypto, Name: "Bitcoin", PrimarySymbol: "BTC", SecondarySymbol: "BTC-USD", Crypto: true},
}

// LookupInstrument returns the instrument registered under key.
func LookupInstrument(key InstrumentKey) (Instrument, bool) {
	for _, in := range Instruments {
		if in.Key == key {
			return in, true
		}
	}
	return Instrument{}, false
}

// Bar is one daily OHLC candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is one row of the mover table.
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
}

// Up reports whether the quote moved up or stayed flat.
func (q Quote) Up() bool {
	return !q.Change.IsNegative()
}

// InsiderTransaction is one reported insider trade.
type InsiderTransaction struct {
	Date   time.Time
	Name   string
	Title  string
	Action string
	Shares decimal.Decimal
	Price  decimal.Decimal
}

// Total is shares times price.
func (t InsiderTransaction) Total() decimal.Decimal {
	return t.Shares.Mul(t.Price)
}

// TickerSentiment is the per-ticker label attached to an article.
type TickerSentiment struct {
	Ticker string
	Label  string
	Score  float64
}

// SentimentArticle is one scored market-news article.
type SentimentArticle struct {
	Title     string
	Source    string
	URL       string
	Summary   string
	Published time.Time
	Label     string
	Score     float64
	Tickers   []TickerSentiment
}

// Sentiment is the market-news block with its composite label.
type Sentiment struct {
	Articles       []SentimentArticle
	CompositeScore float64
	CompositeLabel string
}

// Snapshot is one run's market data. It is built once by the Fetcher and
// only read afterwards.
type Snapshot struct {
	FetchedAt time.Time
	Charts    map[InstrumentKey]Sourced[[]Bar]
	// Movers follows the tracked-symbol order. Each row carries its own
	// tier since a batch answer may be missing some symbols.
	Movers  []Sourced[Quote]
	Insider map[string]Sourced[[]InsiderTransaction]
	// InsiderOrder keeps the tracked-symbol order of the insider table.
	InsiderOrder []string
	Sentiment    Sourced[Sentiment]
}

// SentimentLabel maps a mean sentiment score onto the provider's bands.
func SentimentLabel(score float64) string {
	switch {
	case score <= -0.35:
		return "Bearish"
	case score <= -0.15:
		return "Somewhat-Bearish"
	case score < 0.15:
		return "Neutral"
	case score < 0.35:
		return "Somewhat-Bullish"
	default:
		return "Bullish"
	}
}

// NewSentiment computes the composite label as the plain mean of the
// article scores.
func NewSentiment(articles []SentimentArticle) Sentiment {
	s := Sentiment{Articles: articles}
	if len(articles) == 0 {
		s.CompositeLabel = SentimentLabel(0)
		return s
	}

	var sum float64
	for _, a := range articles {
		sum += a.Score
	}
	s.CompositeScore = sum / float64(len(articles))
	s.CompositeLabel = SentimentLabel(s.CompositeScore)
	return s
}
