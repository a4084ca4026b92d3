package market

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Synthetic produces plausible placeholder data when every network source
// failed. Output depends only on the seed and the inputs.
type Synthetic struct {
	seed int64
	now  time.Time
}

// NewSynthetic returns a generator for the day of now. A zero seed is
// replaced by the date, so one day's runs agree with each other.
func NewSynthetic(seed int64, now time.Time) *Synthetic {
	if seed == 0 {
		y, m, d := now.UTC().Date()
		seed = int64(y*10000 + int(m)*100 + d)
	}
	return &Synthetic{seed: seed, now: now.UTC()}
}

var basePrices = map[InstrumentKey]float64{
	BroadMarket: 5000,
	TechMarket:  16000,
	Crypto:      60000,
}

// Series is a random walk of daily bars over the trailing window. Crypto
// trades every day, the others skip weekends.
func (s *Synthetic) Series(in Instrument, windowDays int) []Bar {
	rng := s.rng("series", string(in.Key))

	price, ok := basePrices[in.Key]
	if !ok {
		price = 100
	}
	vol := 0.012
	if in.Crypto {
		vol = 0.03
	}

	start := windowStart(s.now, windowDays)
	var bars []Bar
	for t := start; !t.After(s.now); t = t.AddDate(0, 0, 1) {
		if !in.Crypto && (t.Weekday() == time.Saturday || t.Weekday() == time.Sunday) {
			continue
		}
		open := price
		closePrice := open * (1 + rng.NormFloat64()*vol)
		high := math.Max(open, closePrice) * (1 + rng.Float64()*vol/2)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*vol/2)
		bars = append(bars, Bar{
			Time:   t,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(closePrice),
			Volume: float64(1_000_000 + rng.Intn(9_000_000)),
		})
		price = closePrice
	}
	return bars
}

// Quote returns a placeholder quote for symbol.
func (s *Synthetic) Quote(symbol string) Quote {
	rng := s.rng("quote", symbol)
	prev := 50 + rng.Float64()*450
	price := prev * (1 + (rng.Float64()*6-3)/100)
	return NewQuote(symbol, decimal.NewFromFloat(round2(price)), decimal.NewFromFloat(round2(prev)))
}

var syntheticInsiders = []struct{ name, title string }{
	{"Sample Director", "Director"},
	{"Sample Officer", "Chief Financial Officer"},
	{"Sample Executive", "Chief Executive Officer"},
}

// InsiderTransactions returns a few placeholder trades for symbol.
func (s *Synthetic) InsiderTransactions(symbol string) []InsiderTransaction {
	rng := s.rng("insider", symbol)

	txs := make([]InsiderTransaction, 0, len(syntheticInsiders))
	for i, who := range syntheticInsiders {
		action := "Buy"
		if rng.Intn(2) == 0 {
			action = "Sell"
		}
		txs = append(txs, InsiderTransaction{
			Date:   s.now.AddDate(0, 0, -(i*3 + 1)).Truncate(24 * time.Hour),
			Name:   who.name,
			Title:  who.title,
			Action: action,
			Shares: decimal.NewFromInt(int64(100 + rng.Intn(20_000))),
			Price:  decimal.NewFromFloat(round2(50 + rng.Float64()*450)),
		})
	}
	return txs
}

var syntheticLabels = []float64{-0.4, -0.2, 0, 0.2, 0.4}

// Sentiment returns placeholder scored articles mentioning tickers.
func (s *Synthetic) Sentiment(tickers []string, limit int) []SentimentArticle {
	rng := s.rng("sentiment", fmt.Sprint(tickers))
	if limit <= 0 || limit > 5 {
		limit = 5
	}

	articles := make([]SentimentArticle, 0, limit)
	for i := 0; i < limit; i++ {
		score := syntheticLabels[rng.Intn(len(syntheticLabels))]
		art := SentimentArticle{
			Title:     "Market sentiment sample #" + strconv.Itoa(i+1),
			Source:    "Sample data",
			Summary:   "Live market news was unavailable for this edition.",
			Published: s.now.Add(-time.Duration(i) * time.Hour),
			Score:     score,
			Label:     SentimentLabel(score),
		}
		if len(tickers) > 0 {
			t := tickers[rng.Intn(len(tickers))]
			art.Tickers = []TickerSentiment{{Ticker: t, Score: score, Label: SentimentLabel(score)}}
		}
		articles = append(articles, art)
	}
	return articles
}

// rng derives an independent stream per category and key so results do not
// depend on call order.
func (s *Synthetic) rng(category, key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
