package store

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"newsdigest/models"
)

var (
	// ErrDuplicateEmail is returned when signing up an address already on file.
	ErrDuplicateEmail = errors.New("email already subscribed")
	// ErrInvalidToken covers every token-authenticated action without a
	// matching subscriber. It never says why the token did not match.
	ErrInvalidToken = errors.New("invalid or expired link")
	// ErrNotFound is returned by the email lookup.
	ErrNotFound = errors.New("subscriber not found")
	// ErrInvalidEmail is returned for an empty or malformed address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// validate applies the same rules gin uses for form binding.
var validate = validator.New()

// flagColumns lists the boolean feature columns in Flags field order.
var flagColumns = []string{
	"include_sp500_chart",
	"include_nasdaq_chart",
	"include_bitcoin_chart",
	"include_top10_stocks",
	"include_stock_suite",
	"include_insider_trading",
	"include_market_news",
}

const (
	tokenBytes    = 16
	tokenAttempts = 3
)

// Subscribers is the persistent subscriber store.
type Subscribers struct {
	db *gorm.DB
}

// NewSubscribers wraps an open database.
func NewSubscribers(db *gorm.DB) *Subscribers {
	return &Subscribers{db: db}
}

// UpdateInput carries the optional fields of an update. Nil fields are
// left unchanged.
type UpdateInput struct {
	Topics *string
	Flags  *models.Flags
}

// Stats are the per-flag subscriber counts shown by the stats endpoint.
type Stats struct {
	Total          int64 `json:"total"`
	SP500Chart     int64 `json:"sp500_chart"`
	NasdaqChart    int64 `json:"nasdaq_chart"`
	BitcoinChart   int64 `json:"bitcoin_chart"`
	Top10Stocks    int64 `json:"top10_stocks"`
	StockSuite     int64 `json:"stock_suite"`
	InsiderTrading int64 `json:"insider_trading"`
	MarketNews     int64 `json:"market_news"`
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewToken returns 16 random bytes, URL-safe base64 encoded without padding.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "read random token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create inserts a new subscriber with a fresh token. Uniqueness of the
// email is enforced by the unique index, not by a prior lookup.
func (s *Subscribers) Create(email, topics string, flags models.Flags) (*models.Subscriber, error) {
	email = NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, errors.Wrapf(ErrInvalidEmail, "%q", email)
	}

	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := NewToken()
		if err != nil {
			return nil, err
		}

		sub := &models.Subscriber{
			Email:  email,
			Topics: strings.TrimSpace(topics),
			Token:  token,
			Flags:  flags,
		}

		err = s.db.Create(sub).Error
		if err == nil {
			return sub, nil
		}
		if !isDuplicate(err) {
			return nil, errors.Wrap(err, "create subscriber")
		}

		// The email index or the token index fired. Only the latter is
		// worth another attempt.
		taken, lookupErr := s.emailTaken(email)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if taken {
			return nil, ErrDuplicateEmail
		}
	}
	return nil, errors.New("could not allocate a unique token")
}

// FindByToken returns the subscriber holding exactly this token.
func (s *Subscribers) FindByToken(token string) (*models.Subscriber, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var sub models.Subscriber
	err := s.db.Where("unsubscribe_token = ?", token).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "find subscriber by token")
	}

	if subtle.ConstantTimeCompare([]byte(sub.Token), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}
	return &sub, nil
}

// FindByEmail returns the subscriber registered with email.
func (s *Subscribers) FindByEmail(email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := s.db.Where("email = ?", NormalizeEmail(email)).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find subscriber by email")
	}
	return &sub, nil
}

// Update changes topics and/or flags of the subscriber holding token.
// Email and token are never written.
func (s *Subscribers) Update(token string, in UpdateInput) (*models.Subscriber, error) {
	var updated *models.Subscriber

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := NewSubscribers(tx).FindByToken(token)
		if err != nil {
			return err
		}

		var columns []string
		if in.Topics != nil {
			sub.Topics = strings.TrimSpace(*in.Topics)
			columns = append(columns, "text")
		}
		if in.Flags != nil {
			sub.Flags = *in.Flags
			columns = append(columns, flagColumns...)
		}

		if len(columns) > 0 {
			// Select forces false booleans to be written too.
			if err := tx.Model(sub).Select(columns).Updates(sub).Error; err != nil {
				return errors.Wrap(err, "update subscriber")
			}
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete permanently removes the subscriber holding token.
func (s *Subscribers) Delete(token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	res := s.db.Where("unsubscribe_token = ?", token).Delete(&models.Subscriber{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete subscriber")
	}
	if res.RowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

// All returns every subscriber in unspecified order.
func (s *Subscribers) All() ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := s.db.Find(&subs).Error; err != nil {
		return nil, errors.Wrap(err, "list subscribers")
	}
	return subs, nil
}

// Stats counts subscribers per stored flag.
func (s *Subscribers) Stats() (*Stats, error) {
	var stats Stats

	dst := []*int64{
		&stats.SP500Chart,
		&stats.NasdaqChart,
		&stats.BitcoinChart,
		&stats.Top10Stocks,
		&stats.StockSuite,
		&stats.InsiderTrading,
		&stats.MarketNews,
	}

	if err := s.db.Model(&models.Subscriber{}).Count(&stats.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count subscribers")
	}
	for i, column := range flagColumns {
		err := s.db.Model(&models.Subscriber{}).Where(column+" = ?", true).Count(dst[i]).Error
		if err != nil {
			return nil, errors.Wrapf(err, "count %s", column)
		}
	}
	return &stats, nil
}

func (s *Subscribers) emailTaken(email string) (bool, error) {
	var n int64
	if err := s.db.Model(&models.Subscriber{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, errors.Wrap(err, "check email")
	}
	return n > 0, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
