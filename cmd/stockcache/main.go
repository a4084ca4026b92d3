// Command stockcache refreshes the quote cache from the primary market
// source. The tracked symbols are split in two batches so each run stays
// under the source's per-minute limit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"newsdigest/config"
	"newsdigest/database"
	"newsdigest/logger"
	"newsdigest/market"
	"newsdigest/models"
	"newsdigest/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("NEWSDIGEST_CONFIG"), "path to the YAML config file")
	batchNum := flag.Int("batch", 1, "which half of the tracked symbols to refresh (1 or 2)")
	flag.Parse()

	if err := run(*configPath, *batchNum); err != nil {
		fmt.Fprintln(os.Stderr, "stockcache:", err)
		os.Exit(1)
	}
}

func run(configPath string, batchNum int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	symbols, err := batch(cfg.Market.Symbols, batchNum)
	if err != nil {
		return err
	}
	if cfg.Market.AlphaVantageKey == "" {
		return errors.New("alphavantage key is required to refresh the quote cache")
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := warm(ctx, market.NewAlphaVantage(cfg.Market), store.NewQuoteCache(db), symbols, log)
	if err != nil {
		return err
	}
	log.Info("quote cache refreshed", "batch", batchNum, "symbols", len(symbols), "cached", n)
	return nil
}

// batch returns the first (1) or second (2) half of symbols. An odd
// middle symbol belongs to the first half.
func batch(symbols []string, n int) ([]string, error) {
	mid := (len(symbols) + 1) / 2
	switch n {
	case 1:
		return symbols[:mid], nil
	case 2:
		return symbols[mid:], nil
	default:
		return nil, errors.Errorf("batch must be 1 or 2, got %d", n)
	}
}

type quotePutter interface {
	Put(q models.CachedQuote) error
}

// warm fetches symbols from src and upserts every quote it gets. Symbols
// the source could not serve keep their previous cache row.
func warm(ctx context.Context, src market.QuoteSource, cache quotePutter, symbols []string, log *slog.Logger) (int, error) {
	quotes, err := src.Quotes(ctx, symbols)
	if err != nil {
		return 0, errors.Wrap(err, "fetch quotes")
	}

	cached := 0
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			log.Warn("no quote for symbol", "symbol", sym)
			continue
		}
		if err := cache.Put(cachedQuote(q)); err != nil {
			return cached, err
		}
		cached++
	}
	return cached, nil
}

func cachedQuote(q market.Quote) models.CachedQuote {
	direction := "down"
	if q.Up() {
		direction = "up"
	}
	price, _ := q.Price.Float64()
	prev, _ := q.Price.Sub(q.Change).Float64()
	pct, _ := q.ChangePercent.Round(2).Float64()
	return models.CachedQuote{
		Symbol:        q.Symbol,
		Price:         price,
		PreviousClose: prev,
		ChangePct:     pct,
		Direction:     direction,
	}
}
