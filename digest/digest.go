package digest

import (
	"net/url"
	"strings"
	"time"

	"newsdigest/market"
	"newsdigest/models"
	"newsdigest/news"
)

// Links is the personalized action pair carried by every email.
type Links struct {
	Manage      string
	Unsubscribe string
}

// LinksFor builds the manage and unsubscribe links for token.
func LinksFor(baseURL, token string) Links {
	base := strings.TrimRight(baseURL, "/")
	q := url.Values{"token": {token}}.Encode()
	return Links{
		Manage:      base + "/update_info?" + q,
		Unsubscribe: base + "/unsubscribe?" + q,
	}
}

// Chart is one instrument's bars for the email.
type Chart struct {
	Key  market.InstrumentKey
	Name string
	Bars []market.Bar
	Tier market.Tier
}

// InsiderBlock is the insider table of one symbol.
type InsiderBlock struct {
	Symbol       string
	Transactions []market.InsiderTransaction
	Tier         market.Tier
}

// Payload is everything the renderer needs for one subscriber's email.
type Payload struct {
	To        string
	Subject   string
	Keywords  []string
	Date      time.Time
	Articles  []news.Article
	Charts    []Chart
	Movers    []market.Quote
	Insider   []InsiderBlock
	Sentiment *market.Sentiment
	Links     Links
	// Synthetic is set when any included market section is placeholder data.
	Synthetic bool
}

// HasMarket reports whether any market section made it into the payload.
func (p Payload) HasMarket() bool {
	return len(p.Charts) > 0 || len(p.Movers) > 0 || len(p.Insider) > 0 || p.Sentiment != nil
}

// Empty reports whether the email would carry no content at all.
func (p Payload) Empty() bool {
	return len(p.Articles) == 0 && !p.HasMarket()
}

// Subject is the email subject line for keywords.
func Subject(keywords []string) string {
	if len(keywords) == 0 {
		return "News Update"
	}
	return "News Update: " + strings.Join(keywords, ", ")
}

// Build assembles the payload of sub from already fetched data. Sections
// are included only when the subscriber's effective flags ask for them and
// the snapshot has data for them. snap may be nil.
func Build(sub models.Subscriber, snap *market.Snapshot, articles []news.Article, links Links) Payload {
	keywords := sub.Keywords()
	p := Payload{
		To:       sub.Email,
		Subject:  Subject(keywords),
		Keywords: keywords,
		Articles: articles,
		Links:    links,
	}
	if snap == nil {
		return p
	}
	p.Date = snap.FetchedAt

	flags := sub.EffectiveFlags()

	for _, key := range market.ChartKeys(flags) {
		c, ok := snap.Charts[key]
		if !ok || !c.Available() || len(c.Value) == 0 {
			continue
		}
		in, _ := market.LookupInstrument(key)
		p.Charts = append(p.Charts, Chart{Key: key, Name: in.Name, Bars: c.Value, Tier: c.Tier})
		p.Synthetic = p.Synthetic || c.Tier == market.TierSynthetic
	}

	if flags.Top10Stocks {
		for _, m := range snap.Movers {
			if m.Available() {
				p.Movers = append(p.Movers, m.Value)
				p.Synthetic = p.Synthetic || m.Tier == market.TierSynthetic
			}
		}
	}

	if flags.InsiderTrading {
		for _, sym := range snap.InsiderOrder {
			block, ok := snap.Insider[sym]
			if !ok || !block.Available() || len(block.Value) == 0 {
				continue
			}
			p.Insider = append(p.Insider, InsiderBlock{Symbol: sym, Transactions: block.Value, Tier: block.Tier})
			p.Synthetic = p.Synthetic || block.Tier == market.TierSynthetic
		}
	}

	if flags.MarketNews && snap.Sentiment.Available() && len(snap.Sentiment.Value.Articles) > 0 {
		s := snap.Sentiment.Value
		p.Sentiment = &s
		p.Synthetic = p.Synthetic || snap.Sentiment.Tier == market.TierSynthetic
	}

	return p
}
