package store

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newsdigest/models"
)

// QuoteCache persists the last known quote per symbol.
type QuoteCache struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQuoteCache wraps an open database.
func NewQuoteCache(db *gorm.DB) *QuoteCache {
	return &QuoteCache{db: db, now: time.Now}
}

// Put inserts or replaces the cached quote for q.Symbol.
func (c *QuoteCache) Put(q models.CachedQuote) error {
	q.UpdatedAt = c.now()
	err := c.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&q).Error
	return errors.Wrapf(err, "cache quote %s", q.Symbol)
}

// Fresh returns the cached quotes for symbols updated within maxAge.
// Symbols without a fresh row are absent from the result.
func (c *QuoteCache) Fresh(symbols []string, maxAge time.Duration) (map[string]models.CachedQuote, error) {
	var rows []models.CachedQuote
	err := c.db.Where("symbol IN ? AND updated_at >= ?", symbols, c.now().Add(-maxAge)).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "read quote cache")
	}

	out := make(map[string]models.CachedQuote, len(rows))
	for _, r := range rows {
		out[r.Symbol] = r
	}
	return out, nil
}
