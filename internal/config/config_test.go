package config

import (
	"errors"
	"testing"
	"time"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Port != "8080" || cfg.DefaultCount != 20 || cfg.MaxCount != 250 {
		t.Errorf("port/counts = %s/%d/%d", cfg.Port, cfg.DefaultCount, cfg.MaxCount)
	}
	if cfg.Metric != model.MetricMarketCap {
		t.Errorf("metric = %s", cfg.Metric)
	}
	if cfg.Sizes.Min != 80 || cfg.Sizes.Max != 180 {
		t.Errorf("sizes = %+v, want 80..180", cfg.Sizes)
	}
	if cfg.ArenaWidth != 1280 || cfg.ArenaHeight != 720 {
		t.Errorf("arena = %vx%v", cfg.ArenaWidth, cfg.ArenaHeight)
	}
	if cfg.FrameHz != 60 || cfg.BroadcastHz != 30 || cfg.MaxSpeed != 9 {
		t.Errorf("loop = %d/%d speed %v", cfg.FrameHz, cfg.BroadcastHz, cfg.MaxSpeed)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.FreshFor != time.Minute || cfg.FetchTimeout != 10*time.Second {
		t.Errorf("durations = %s/%s/%s", cfg.CacheTTL, cfg.FreshFor, cfg.FetchTimeout)
	}
	if cfg.NudgeCoincident {
		t.Error("coincident nudge must be opt-in")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":             "9090",
		"METRIC":           " change_24h ",
		"DEFAULT_COUNT":    "50",
		"BUBBLE_MIN_SIZE":  "40",
		"BUBBLE_MAX_SIZE":  "120",
		"ARENA_WIDTH":      "390",
		"ARENA_HEIGHT":     "844",
		"FRESH_FOR":        "0s",
		"NUDGE_COINCIDENT": "true",
		"COINGECKO_URL":    "http://localhost:9999",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.Metric != model.MetricChange24h || cfg.DefaultCount != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Sizes.Min != 40 || cfg.Sizes.Max != 120 || cfg.ArenaWidth != 390 {
		t.Errorf("geometry = %+v %v", cfg.Sizes, cfg.ArenaWidth)
	}
	if cfg.FreshFor != 0 || !cfg.NudgeCoincident || cfg.CoinGeckoURL != "http://localhost:9999" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []map[string]string{
		{"DEFAULT_COUNT": "twenty"},
		{"DEFAULT_COUNT": "300"},
		{"MAX_COUNT": "0"},
		{"METRIC": "volume"},
		{"BUBBLE_MIN_SIZE": "200"},
		{"BUBBLE_MIN_SIZE": "0"},
		{"MAX_SPEED": "-1"},
		{"FRAME_HZ": "30", "BROADCAST_HZ": "60"},
		{"CACHE_TTL": "soon"},
		{"ARENA_WIDTH": "NaN"},
		{"NUDGE_COINCIDENT": "maybe"},
	}
	for _, vars := range tests {
		if _, err := FromEnv(env(vars)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%v: err = %v, want ErrInvalidConfig", vars, err)
		}
	}
}
