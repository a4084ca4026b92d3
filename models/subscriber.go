package models

import (
	"strings"
	"time"
)

// Subscriber is one signed-up reader. Column names follow the legacy
// `user` table so an existing database keeps working.
type Subscriber struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"column:email;size:120;uniqueIndex;not null"`
	Topics    string    `json:"topics" gorm:"column:text;type:text;not null"`
	Token     string    `json:"-" gorm:"column:unsubscribe_token;size:64;uniqueIndex;not null"`
	Flags     Flags     `json:"flags" gorm:"embedded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscriber) TableName() string {
	return "user"
}

// Keywords splits the comma-delimited topics, dropping blanks.
func (s Subscriber) Keywords() []string {
	var keywords []string
	for _, k := range strings.Split(s.Topics, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// EffectiveFlags is the flag set the subscriber actually receives.
func (s Subscriber) EffectiveFlags() Flags {
	return s.Flags.Effective()
}

// CachedQuote is one row of the quote cache filled by the stockcache job.
type CachedQuote struct {
	Symbol        string    `json:"symbol" gorm:"primaryKey;size:16"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	ChangePct     float64   `json:"change_pct"`
	Direction     string    `json:"direction" gorm:"size:8"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (CachedQuote) TableName() string {
	return "stock_cache"
}
