package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticIsDeterministic(t *testing.T) {
	a := NewSynthetic(7, fixedNow)
	b := NewSynthetic(7, fixedNow)

	in, _ := LookupInstrument(BroadMarket)
	assert.Equal(t, a.Series(in, 30), b.Series(in, 30))
	assert.Equal(t, a.Quote("AAPL"), b.Quote("AAPL"))
	assert.Equal(t, a.InsiderTransactions("MSFT"), b.InsiderTransactions("MSFT"))
	assert.Equal(t, a.Sentiment([]string{"AAPL"}, 3), b.Sentiment([]string{"AAPL"}, 3))

	c := NewSynthetic(8, fixedNow)
	assert.NotEqual(t, a.Quote("AAPL"), c.Quote("AAPL"))
}

func TestSyntheticSeedFromDate(t *testing.T) {
	morning := NewSynthetic(0, time.Date(2024, 3, 14, 6, 0, 0, 0, time.UTC))
	evening := NewSynthetic(0, time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(20240314), morning.seed)
	assert.Equal(t, morning.Quote("NVDA"), evening.Quote("NVDA"))
}

func TestSyntheticSeriesCalendar(t *testing.T) {
	s := NewSynthetic(1, fixedNow)

	stocks, _ := LookupInstrument(TechMarket)
	for _, b := range s.Series(stocks, 30) {
		assert.NotEqual(t, time.Saturday, b.Time.Weekday())
		assert.NotEqual(t, time.Sunday, b.Time.Weekday())
		assert.GreaterOrEqual(t, b.High, b.Low)
	}

	crypto, _ := LookupInstrument(Crypto)
	assert.Len(t, s.Series(crypto, 30), 31)
}

func TestSyntheticSentimentLimit(t *testing.T) {
	s := NewSynthetic(1, fixedNow)
	articles := s.Sentiment([]string{"AAPL", "MSFT"}, 20)
	require.Len(t, articles, 5)
	for _, a := range articles {
		assert.Equal(t, SentimentLabel(a.Score), a.Label)
		require.Len(t, a.Tickers, 1)
	}
}
