package market

import "newsdigest/models"

// Request is the union of market features wanted by the subscribers of a
// run. Categories nobody asked for are never fetched.
type Request struct {
	Charts    []InstrumentKey
	Movers    bool
	Insider   bool
	Sentiment bool
}

// Empty reports whether nothing needs fetching.
func (r Request) Empty() bool {
	return len(r.Charts) == 0 && !r.Movers && !r.Insider && !r.Sentiment
}

// RequestFor computes the union of the effective flags of subs.
func RequestFor(subs []models.Subscriber) Request {
	var union models.Flags
	for _, s := range subs {
		f := s.EffectiveFlags()
		union.SP500Chart = union.SP500Chart || f.SP500Chart
		union.NasdaqChart = union.NasdaqChart || f.NasdaqChart
		union.BitcoinChart = union.BitcoinChart || f.BitcoinChart
		union.Top10Stocks = union.Top10Stocks || f.Top10Stocks
		union.InsiderTrading = union.InsiderTrading || f.InsiderTrading
		union.MarketNews = union.MarketNews || f.MarketNews
	}

	return Request{
		Charts:    ChartKeys(union),
		Movers:    union.Top10Stocks,
		Insider:   union.InsiderTrading,
		Sentiment: union.MarketNews,
	}
}

// ChartKeys lists the instruments whose chart flag is set, in display order.
func ChartKeys(f models.Flags) []InstrumentKey {
	var keys []InstrumentKey
	if f.SP500Chart {
		keys = append(keys, BroadMarket)
	}
	if f.NasdaqChart {
		keys = append(keys, TechMarket)
	}
	if f.BitcoinChart {
		keys = append(keys, Crypto)
	}
	return keys
}
