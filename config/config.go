package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the web server and the batch job. It is
// loaded once at startup and handed to each constructor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Mail     MailConfig     `yaml:"mail"`
	News     NewsConfig     `yaml:"news"`
	Market   MarketConfig   `yaml:"market"`
	Job      JobConfig      `yaml:"job"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BaseURL   string `yaml:"base_url"`
	SecretKey string `yaml:"secret_key"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MailConfig selects the outbound transport. Provider "log" never
// contacts a mail service.
type MailConfig struct {
	Provider          string `yaml:"provider"`
	Sender            string `yaml:"sender"`
	SenderName        string `yaml:"sender_name"`
	MailjetPublicKey  string `yaml:"mailjet_public_key"`
	MailjetPrivateKey string `yaml:"mailjet_private_key"`
	DumpDir           string `yaml:"dump_dir"`
}

type NewsConfig struct {
	MediastackKey  string        `yaml:"mediastack_key"`
	MediastackURL  string        `yaml:"mediastack_url"`
	Countries      string        `yaml:"countries"`
	Languages      string        `yaml:"languages"`
	Sort           string        `yaml:"sort"`
	PerKeyword     int           `yaml:"per_keyword"`
	RSSFallback    bool          `yaml:"rss_fallback"`
	RSSURL         string        `yaml:"rss_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type MarketConfig struct {
	AlphaVantageKey   string        `yaml:"alphavantage_key"`
	AlphaVantageURL   string        `yaml:"alphavantage_url"`
	YahooURL          string        `yaml:"yahoo_url"`
	Symbols           []string      `yaml:"symbols"`
	SentimentTopics   []string      `yaml:"sentiment_topics"`
	SentimentLimit    int           `yaml:"sentiment_limit"`
	InsiderCap        int           `yaml:"insider_cap"`
	InsiderPerSymbol  int           `yaml:"insider_per_symbol"`
	WindowDays        int           `yaml:"window_days"`
	CallDelay         time.Duration `yaml:"call_delay"`
	ThrottleBackoff   time.Duration `yaml:"throttle_backoff"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CacheMaxAge       time.Duration `yaml:"cache_max_age"`
	SyntheticFallback bool          `yaml:"synthetic_fallback"`
	SyntheticSeed     int64         `yaml:"synthetic_seed"`
}

type JobConfig struct {
	Schedule string `yaml:"schedule"`
	Workers  int    `yaml:"workers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TopSymbols is the tracked top-10 S&P 500 list by index weight.
var TopSymbols = []string{"AAPL", "MSFT", "NVDA", "AMZN", "META", "GOOGL", "TSLA", "BRK.B", "LLY", "AVGO"}

// Default returns a configuration usable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8090",
			BaseURL:   "http://localhost:8090",
			SecretKey: "dev-secret-key-change-in-production",
		},
		Database: DatabaseConfig{Path: "instance/users.db"},
		Mail: MailConfig{
			Provider:   "log",
			Sender:     "digest@example.com",
			SenderName: "Daily News Digest",
		},
		News: NewsConfig{
			MediastackURL:  "http://api.mediastack.com/v1/news",
			Countries:      "us",
			Languages:      "en",
			Sort:           "published_asc",
			PerKeyword:     3,
			RSSFallback:    true,
			RSSURL:         "https://news.google.com/rss/search",
			RequestTimeout: 15 * time.Second,
		},
		Market: MarketConfig{
			AlphaVantageURL:   "https://www.alphavantage.co/query",
			YahooURL:          "https://query1.finance.yahoo.com",
			Symbols:           append([]string(nil), TopSymbols...),
			SentimentTopics:   []string{"financial_markets", "technology"},
			SentimentLimit:    10,
			InsiderCap:        5,
			InsiderPerSymbol:  5,
			WindowDays:        30,
			CallDelay:         13 * time.Second,
			ThrottleBackoff:   60 * time.Second,
			RequestTimeout:    10 * time.Second,
			CacheMaxAge:       24 * time.Hour,
			SyntheticFallback: true,
		},
		Job: JobConfig{Workers: 1},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late, mid-run.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return errors.Errorf("invalid base url: %q", c.Server.BaseURL)
	}
	switch c.Mail.Provider {
	case "log":
	case "mailjet":
		if c.Mail.MailjetPublicKey == "" || c.Mail.MailjetPrivateKey == "" {
			return errors.New("mailjet provider requires public and private keys")
		}
	default:
		return errors.Errorf("unknown mail provider: %q", c.Mail.Provider)
	}
	if c.Mail.Sender == "" {
		return errors.New("mail sender is required")
	}
	if len(c.Market.Symbols) == 0 {
		return errors.New("at least one market symbol is required")
	}
	if c.Market.InsiderCap < 0 || c.Market.WindowDays <= 0 {
		return errors.New("insider cap must be >= 0 and window days > 0")
	}
	if c.Market.CallDelay < 0 || c.Market.ThrottleBackoff < 0 {
		return errors.New("market delays must not be negative")
	}
	if c.Job.Workers < 1 {
		return errors.New("job workers must be at least 1")
	}
	return nil
}

// overrideWithEnv lets secrets and deployment values come from the
// environment instead of the config file.
func overrideWithEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&cfg.Server.SecretKey, "SECRET_KEY")
	set(&cfg.Server.BaseURL, "BASE_URL")
	set(&cfg.Database.Path, "DATABASE_PATH")
	set(&cfg.Mail.Sender, "MAIL_SENDER")
	set(&cfg.Mail.MailjetPublicKey, "MAILJET_PUBLIC_KEY")
	set(&cfg.Mail.MailjetPrivateKey, "MAILJET_PRIVATE_KEY")
	set(&cfg.News.MediastackKey, "MEDIASTACK_API_KEY")
	set(&cfg.Market.AlphaVantageKey, "ALPHAVANTAGE_API_KEY")

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
}
