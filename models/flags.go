package models

// Flags are the per-subscriber content toggles, one boolean column each.
type Flags struct {
	SP500Chart     bool `json:"sp500_chart" gorm:"column:include_sp500_chart;not null;default:false" form:"include_sp500_chart"`
	NasdaqChart    bool `json:"nasdaq_chart" gorm:"column:include_nasdaq_chart;not null;default:false" form:"include_nasdaq_chart"`
	BitcoinChart   bool `json:"bitcoin_chart" gorm:"column:include_bitcoin_chart;not null;default:false" form:"include_bitcoin_chart"`
	Top10Stocks    bool `json:"top10_stocks" gorm:"column:include_top10_stocks;not null;default:false" form:"include_top10_stocks"`
	StockSuite     bool `json:"stock_suite" gorm:"column:include_stock_suite;not null;default:false" form:"include_stock_suite"`
	InsiderTrading bool `json:"insider_trading" gorm:"column:include_insider_trading;not null;default:false" form:"include_insider_trading"`
	MarketNews     bool `json:"market_news" gorm:"column:include_market_news;not null;default:false" form:"include_market_news"`
}

// Effective applies the stock-suite override: with the suite on, insider
// trading and market news are on too. The stored flags are not touched,
// so turning the suite off later restores the individual choices.
func (f Flags) Effective() Flags {
	if f.StockSuite {
		f.InsiderTrading = true
		f.MarketNews = true
	}
	return f
}

// AnyChart reports whether at least one chart is requested.
func (f Flags) AnyChart() bool {
	return f.SP500Chart || f.NasdaqChart || f.BitcoinChart
}

// AnyMarket reports whether any market-data section is requested.
func (f Flags) AnyMarket() bool {
	e := f.Effective()
	return e.AnyChart() || e.Top10Stocks || e.InsiderTrading || e.MarketNews
}
