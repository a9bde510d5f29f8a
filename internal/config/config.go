// Package config loads service settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/piratebg/crypto-bubbles/internal/market"
	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/normalize"
	"github.com/piratebg/crypto-bubbles/internal/sim"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds every setting the server reads at startup.
type Config struct {
	Port string

	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	CoinGeckoURL    string
	CoinGeckoAPIKey string
	VsCurrency      string
	FetchTimeout    time.Duration
	FreshFor        time.Duration
	DefaultCount    int
	MaxCount        int

	Metric          model.Metric
	ArenaWidth      float64
	ArenaHeight     float64
	Sizes           normalize.Range
	MaxSpeed        float64
	FrameHz         int
	BroadcastHz     int
	NudgeCoincident bool
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, so tests need not touch
// the real environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	cfg := &Config{
		Port:            p.str("PORT", "8080"),
		DatabaseURL:     p.str("DATABASE_URL", ""),
		RedisURL:        p.str("REDIS_URL", ""),
		CacheTTL:        p.duration("CACHE_TTL", 30*time.Second),
		CoinGeckoURL:    p.str("COINGECKO_URL", market.DefaultBaseURL),
		CoinGeckoAPIKey: p.str("COINGECKO_API_KEY", ""),
		VsCurrency:      p.str("VS_CURRENCY", "usd"),
		FetchTimeout:    p.duration("FETCH_TIMEOUT", 10*time.Second),
		FreshFor:        p.duration("FRESH_FOR", 60*time.Second),
		DefaultCount:    p.integer("DEFAULT_COUNT", 20),
		MaxCount:        p.integer("MAX_COUNT", market.MaxCount),
		ArenaWidth:      p.float("ARENA_WIDTH", 1280),
		ArenaHeight:     p.float("ARENA_HEIGHT", 720),
		Sizes: normalize.Range{
			Min: p.float("BUBBLE_MIN_SIZE", normalize.DefaultRange.Min),
			Max: p.float("BUBBLE_MAX_SIZE", normalize.DefaultRange.Max),
		},
		MaxSpeed:        p.float("MAX_SPEED", sim.DefaultMaxSpeed),
		FrameHz:         p.integer("FRAME_HZ", sim.DefaultLoopConfig.FrameHz),
		BroadcastHz:     p.integer("BROADCAST_HZ", sim.DefaultLoopConfig.BroadcastHz),
		NudgeCoincident: p.boolean("NUDGE_COINCIDENT", false),
	}

	metric, err := model.ParseMetric(p.str("METRIC", string(model.MetricMarketCap)))
	if err != nil {
		p.fail("METRIC", err)
	}
	cfg.Metric = metric

	if err := p.err(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}
	check(c.MaxCount > 0 && c.MaxCount <= market.MaxCount, "MAX_COUNT %d not in 1..%d", c.MaxCount, market.MaxCount)
	check(market.CheckCount(c.DefaultCount, c.MaxCount) == nil, "DEFAULT_COUNT %d not in 1..%d", c.DefaultCount, c.MaxCount)
	check(c.Sizes.Validate() == nil, "bubble size range %v..%v", c.Sizes.Min, c.Sizes.Max)
	check(finite(c.ArenaWidth) && finite(c.ArenaHeight), "arena %vx%v must be finite", c.ArenaWidth, c.ArenaHeight)
	check(c.MaxSpeed > 0, "MAX_SPEED %v must be positive", c.MaxSpeed)
	check(c.FrameHz > 0, "FRAME_HZ %d must be positive", c.FrameHz)
	check(c.BroadcastHz > 0 && c.BroadcastHz <= c.FrameHz, "BROADCAST_HZ %d not in 1..FRAME_HZ", c.BroadcastHz)
	check(c.FetchTimeout > 0, "FETCH_TIMEOUT %s must be positive", c.FetchTimeout)
	check(c.FreshFor >= 0, "FRESH_FOR %s must not be negative", c.FreshFor)
	return errors.Join(errs...)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// LogValue keeps secrets out of the startup log line.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("port", c.Port),
		slog.Bool("postgres", c.DatabaseURL != ""),
		slog.Bool("redis", c.RedisURL != ""),
		slog.String("coingecko_url", c.CoinGeckoURL),
		slog.Bool("coingecko_api_key", c.CoinGeckoAPIKey != ""),
		slog.String("vs_currency", c.VsCurrency),
		slog.Duration("fresh_for", c.FreshFor),
		slog.Int("default_count", c.DefaultCount),
		slog.String("metric", string(c.Metric)),
		slog.Float64("arena_width", c.ArenaWidth),
		slog.Float64("arena_height", c.ArenaHeight),
		slog.Int("frame_hz", c.FrameHz),
		slog.Int("broadcast_hz", c.BroadcastHz),
		slog.Bool("nudge_coincident", c.NudgeCoincident),
	)
}

// parser collects the first problem with each variable instead of stopping
// at the first bad one.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err))
}

func (p *parser) err() error { return errors.Join(p.errs...) }

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}
