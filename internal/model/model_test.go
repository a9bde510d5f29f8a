package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"market_cap", MetricMarketCap, false},
		{" change_24h ", MetricChange24h, false},
		{"volume", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMetric) {
				t.Errorf("ParseMetric(%q): expected ErrUnknownMetric, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMetric(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMetric(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMetricRaw(t *testing.T) {
	e := Entity{MarketCap: d(1000), PriceChangePercentage24h: d(-3.5)}
	if got := MetricMarketCap.Raw(e); got != 1000 {
		t.Errorf("market cap raw = %f, want 1000", got)
	}
	if got := MetricChange24h.Raw(e); got != 3.5 {
		t.Errorf("change raw = %f, want 3.5 (absolute value)", got)
	}
}

func TestMetricToggle(t *testing.T) {
	if MetricMarketCap.Toggle() != MetricChange24h || MetricChange24h.Toggle() != MetricMarketCap {
		t.Error("toggle should flip between the two metrics")
	}
}

func TestFormattedPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{67234.5, "$67,234.50"},
		{1234567.891, "$1,234,567.89"},
		{999, "$999.00"},
		{1, "$1.00"},
		{0.123456789, "$0.123457"},
	}
	for _, tt := range tests {
		e := Entity{CurrentPrice: d(tt.price)}
		if got := e.FormattedPrice(); got != tt.want {
			t.Errorf("FormattedPrice(%v) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestFormattedChange(t *testing.T) {
	up := Entity{PriceChangePercentage24h: d(1.234)}
	if got := up.FormattedChange(); got != "+1.23%" {
		t.Errorf("got %q, want +1.23%%", got)
	}
	down := Entity{PriceChangePercentage24h: d(-0.5)}
	if got := down.FormattedChange(); got != "-0.50%" {
		t.Errorf("got %q, want -0.50%%", got)
	}
	if down.Positive() {
		t.Error("negative change should not be positive")
	}
	flat := Entity{}
	if !flat.Positive() || flat.FormattedChange() != "+0.00%" {
		t.Errorf("zero change should render as positive +0.00%%, got %q", flat.FormattedChange())
	}
}

func TestLabel(t *testing.T) {
	if got := (Entity{Symbol: "btc"}).Label(); got != "BTC" {
		t.Errorf("Label() = %q, want BTC", got)
	}
}
