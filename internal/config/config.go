package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// Tier holds the per-tier polling settings.
type Tier struct {
	IntervalSeconds int  `yaml:"interval_seconds"`
	DailyCap        int  `yaml:"daily_cap"` // 0 means unlimited
	Enrichment      bool `yaml:"enrichment"`
	ComplexFilter   bool `yaml:"complex_filter"`
}

func (t Tier) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Parser configures the fetcher.
type Parser struct {
	BaseURL    string
	City       string
	Backend    string // http or browser
	ChromePath string
	RetryCount int
	DelayMin   time.Duration
	DelayMax   time.Duration
	Timeout    time.Duration
	Proxies    []string
}

// Dispatch configures the outbound queue.
type Dispatch struct {
	RatePerSecond float64
	RetryCount    int
	Capacity      int
	ShutdownGrace time.Duration
}

// Enrichment configures the annotation gate.
type Enrichment struct {
	Concurrency int
	CacheTTL    time.Duration
}

// Config holds runtime configuration loaded from the environment.
type Config struct {
	TelegramToken string
	OpenAIToken   string
	OpenAIBaseURL string
	OpenAIModel   string
	DBConnString  string
	RedisURL      string
	HTTPAddr      string
	LogLevel      string
	TiersFile     string

	SeenCacheTTL           time.Duration
	ComplexRefreshInterval time.Duration

	Tiers      map[model.Tier]Tier
	Parser     Parser
	Dispatch   Dispatch
	Enrichment Enrichment
}

// FromEnv loads configuration from environment variables, reading a .env file
// first when one exists. TELEGRAM_TOKEN (or BOT_TOKEN / TOKEN) and DATABASE_URL
// are required. TIERS_FILE optionally points at a YAML file overriding the
// per-tier settings.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Println("config: load .env:", err)
	}

	c := &Config{
		TelegramToken: firstEnv("TELEGRAM_TOKEN", "BOT_TOKEN", "TOKEN"),
		OpenAIToken:   firstEnv("OPENAI_TOKEN", "OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		DBConnString:  os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		HTTPAddr:      os.Getenv("HTTP_ADDR"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		TiersFile:     os.Getenv("TIERS_FILE"),

		SeenCacheTTL:           getEnvSeconds("SEEN_CACHE_TTL", 3600),
		ComplexRefreshInterval: getEnvSeconds("COMPLEX_REFRESH_INTERVAL", 300),

		Tiers: map[model.Tier]Tier{
			model.TierPro:      {IntervalSeconds: getEnvInt("PRO_CHECK_INTERVAL", 30), Enrichment: true, ComplexFilter: true},
			model.TierStandard: {IntervalSeconds: getEnvInt("STANDARD_CHECK_INTERVAL", 120)},
			model.TierFree:     {IntervalSeconds: getEnvInt("FREE_CHECK_INTERVAL", 600), DailyCap: getEnvInt("FREE_MAX_LISTINGS_PER_DAY", 5)},
		},
		Parser: Parser{
			BaseURL:    strings.TrimRight(getEnv("SITE_BASE_URL", "https://krisha.kz"), "/"),
			City:       getEnv("SITE_CITY", "almaty"),
			Backend:    getEnv("FETCH_BACKEND", "http"),
			ChromePath: os.Getenv("CHROME_PATH"),
			RetryCount: getEnvInt("PARSER_RETRY_COUNT", 3),
			DelayMin:   getEnvFloatSeconds("PARSER_DELAY_MIN", 1.5),
			DelayMax:   getEnvFloatSeconds("PARSER_DELAY_MAX", 4.5),
			Timeout:    getEnvSeconds("PARSER_TIMEOUT", 15),
			Proxies:    splitList(os.Getenv("PROXY_LIST")),
		},
		Dispatch: Dispatch{
			RatePerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 1.0),
			RetryCount:    getEnvInt("SEND_RETRY_COUNT", 3),
			Capacity:      getEnvInt("QUEUE_CAPACITY", 10000),
			ShutdownGrace: getEnvSeconds("SHUTDOWN_GRACE", 10),
		},
		Enrichment: Enrichment{
			Concurrency: getEnvInt("ENRICH_CONCURRENCY", 3),
			CacheTTL:    getEnvSeconds("ENRICH_CACHE_TTL", 21600),
		},
	}

	if c.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_TOKEN is not set")
	}
	if c.DBConnString == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	if c.TiersFile != "" {
		if err := c.loadTiers(); err != nil {
			return nil, fmt.Errorf("load tiers: %w", err)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadTiers overlays the tiers described in TiersFile on top of the env values.
func (c *Config) loadTiers() error {
	data, err := os.ReadFile(c.TiersFile)
	if err != nil {
		return err
	}
	var overrides map[string]Tier
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return err
	}
	for name, t := range overrides {
		tier := model.Tier(strings.ToLower(name))
		if !tier.Valid() {
			return fmt.Errorf("unknown tier %q", name)
		}
		c.Tiers[tier] = t
	}
	return nil
}

func (c *Config) validate() error {
	for tier, t := range c.Tiers {
		if t.IntervalSeconds <= 0 {
			return fmt.Errorf("tier %s: interval must be positive", tier)
		}
	}
	if c.Parser.RetryCount < 1 {
		c.Parser.RetryCount = 1
	}
	if c.Parser.DelayMax < c.Parser.DelayMin {
		c.Parser.DelayMin, c.Parser.DelayMax = c.Parser.DelayMax, c.Parser.DelayMin
	}
	if c.Parser.Backend != "http" && c.Parser.Backend != "browser" {
		return fmt.Errorf("unknown FETCH_BACKEND %q", c.Parser.Backend)
	}
	if c.Dispatch.RatePerSecond <= 0 {
		return errors.New("RATE_LIMIT_PER_SECOND must be positive")
	}
	if c.Dispatch.RetryCount < 1 {
		c.Dispatch.RetryCount = 1
	}
	if c.Enrichment.Concurrency < 1 {
		c.Enrichment.Concurrency = 1
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return n
		}
		log.Printf("config: %s=%q is not an integer, using %d", key, val, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil {
			return f
		}
		log.Printf("config: %s=%q is not a number, using %v", key, val, fallback)
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnvFloatSeconds(key string, fallback float64) time.Duration {
	return time.Duration(getEnvFloat(key, fallback) * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
