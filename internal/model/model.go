// Package model defines the core domain types shared across the bubble engine.
// All monetary values use shopspring/decimal, never float64.
// Floats only appear where a value leaves the money domain and becomes a
// visual magnitude (see Metric.Raw).
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Entity is one ranked asset as reported by the market source.
// Entities are immutable for a session; a re-fetch replaces the whole list.
// JSON tags follow the CoinGecko /coins/markets field names.
type Entity struct {
	ID                       string          `json:"id" db:"id"`
	Symbol                   string          `json:"symbol" db:"symbol"`
	Name                     string          `json:"name" db:"name"`
	Image                    string          `json:"image" db:"image"`
	CurrentPrice             decimal.Decimal `json:"current_price" db:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap" db:"market_cap"`
	MarketCapRank            int             `json:"market_cap_rank" db:"market_cap_rank"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h" db:"price_change_percentage_24h"` // signed, zero when unreported
}

// Label is the short display text drawn inside a bubble.
func (e Entity) Label() string {
	return strings.ToUpper(e.Symbol)
}

// Positive reports whether the 24h change is non-negative.
func (e Entity) Positive() bool {
	return !e.PriceChangePercentage24h.IsNegative()
}

// FormattedPrice renders the price as "$1,234.56". Sub-dollar prices keep
// up to six decimals so small caps do not collapse to "$0.00".
func (e Entity) FormattedPrice() string {
	p := e.CurrentPrice
	if p.Abs().LessThan(decimal.NewFromInt(1)) {
		return "$" + p.Round(6).String()
	}
	return "$" + groupThousands(p.StringFixed(2))
}

// FormattedChange renders the 24h change as "+1.23%" / "-0.50%".
func (e Entity) FormattedChange() string {
	c := e.PriceChangePercentage24h.StringFixed(2)
	if e.Positive() {
		return "+" + c + "%"
	}
	return c + "%"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

// Metric selects which entity field drives bubble size.
type Metric string

const (
	// MetricMarketCap sizes bubbles by market capitalization (magnitude).
	MetricMarketCap Metric = "market_cap"
	// MetricChange24h sizes bubbles by |24h percent change| (absoluteChange).
	MetricChange24h Metric = "change_24h"
)

// ErrUnknownMetric is returned by ParseMetric for unsupported mode names.
var ErrUnknownMetric = errors.New("model: unknown metric")

// ParseMetric validates a metric mode name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.TrimSpace(s)); m {
	case MetricMarketCap, MetricChange24h:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %s or %s)", ErrUnknownMetric, s, MetricMarketCap, MetricChange24h)
	}
}

// Raw returns the unnormalized magnitude of e under this metric.
func (m Metric) Raw(e Entity) float64 {
	if m == MetricChange24h {
		return e.PriceChangePercentage24h.Abs().InexactFloat64()
	}
	return e.MarketCap.InexactFloat64()
}

// Toggle returns the other metric.
func (m Metric) Toggle() Metric {
	if m == MetricChange24h {
		return MetricMarketCap
	}
	return MetricChange24h
}

// Snapshot is one fetched entity list. It is the unit of persistence and
// caching; simulation state itself is never stored.
type Snapshot struct {
	ID        string    `json:"id" db:"id"`
	Count     int       `json:"count" db:"count"` // requested count, may exceed len(Entities)
	FetchedAt time.Time `json:"fetched_at" db:"fetched_at"`
	Entities  []Entity  `json:"entities"`
}

// SnapshotInfo is the list-view summary of a Snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Count     int       `json:"count"`
	Entities  int       `json:"entities"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Info summarizes s for listings.
func (s *Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{ID: s.ID, Count: s.Count, Entities: len(s.Entities), FetchedAt: s.FetchedAt}
}
