package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveSuiteOverride(t *testing.T) {
	stored := Flags{StockSuite: true}
	eff := stored.Effective()

	assert.True(t, eff.InsiderTrading)
	assert.True(t, eff.MarketNews)
	assert.True(t, eff.StockSuite)
	// Derivation is pure.
	assert.False(t, stored.InsiderTrading)
	assert.False(t, stored.MarketNews)
}

func TestEffectiveWithoutSuite(t *testing.T) {
	stored := Flags{InsiderTrading: true, MarketNews: true}
	eff := stored.Effective()

	assert.False(t, eff.StockSuite)
	assert.Equal(t, stored, eff)
}

func TestSuiteOffKeepsIndividualChoices(t *testing.T) {
	stored := Flags{StockSuite: true, InsiderTrading: true}
	stored.StockSuite = false

	eff := stored.Effective()
	assert.True(t, eff.InsiderTrading)
	assert.False(t, eff.MarketNews)
}

func TestAnyMarket(t *testing.T) {
	assert.False(t, Flags{}.AnyMarket())
	assert.True(t, Flags{BitcoinChart: true}.AnyMarket())
	assert.True(t, Flags{StockSuite: true}.AnyMarket())
	assert.True(t, Flags{Top10Stocks: true}.AnyMarket())
}

func TestKeywords(t *testing.T) {
	s := Subscriber{Topics: " bitcoin, stocks ,, ai "}
	assert.Equal(t, []string{"bitcoin", "stocks", "ai"}, s.Keywords())

	assert.Empty(t, Subscriber{Topics: "  "}.Keywords())
}
