package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/database"
	"newsdigest/logger"
	"newsdigest/market"
	"newsdigest/store"
)

type fakeQuotes struct {
	quotes map[string]market.Quote
	err    error
}

func (f fakeQuotes) Quotes(_ context.Context, symbols []string) (map[string]market.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]market.Quote{}
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func TestBatch(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}

	first, err := batch(symbols, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, first)

	second, err := batch(symbols, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "E"}, second)

	_, err = batch(symbols, 3)
	assert.Error(t, err)
}

func TestWarm(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	cache := store.NewQuoteCache(db)

	src := fakeQuotes{quotes: map[string]market.Quote{
		"AAPL": market.NewQuote("AAPL", decimal.RequireFromString("110"), decimal.RequireFromString("100")),
		"MSFT": market.NewQuote("MSFT", decimal.RequireFromString("95"), decimal.RequireFromString("100")),
	}}

	n, err := warm(context.Background(), src, cache, []string{"AAPL", "MSFT", "NVDA"}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := cache.Fresh([]string{"AAPL", "MSFT", "NVDA"}, time.Hour)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "up", rows["AAPL"].Direction)
	assert.InDelta(t, 110, rows["AAPL"].Price, 1e-9)
	assert.InDelta(t, 100, rows["AAPL"].PreviousClose, 1e-9)
	assert.InDelta(t, 10, rows["AAPL"].ChangePct, 1e-9)
	assert.Equal(t, "down", rows["MSFT"].Direction)
	assert.InDelta(t, -5, rows["MSFT"].ChangePct, 1e-9)
}

func TestWarmSourceFailure(t *testing.T) {
	src := fakeQuotes{err: errors.Wrap(market.ErrRateLimited, "quote AAPL")}

	n, err := warm(context.Background(), src, nil, []string{"AAPL"}, logger.Discard())

	assert.Zero(t, n)
	assert.ErrorIs(t, err, market.ErrRateLimited)
}
