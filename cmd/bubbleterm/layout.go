package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/sim"
)

// A terminal cell is roughly twice as tall as it is wide, so one cell covers
// cellW x cellH world units and circles stay round on screen.
const (
	cellW = 8.0
	cellH = 16.0
)

// worldSize maps a terminal of cols x rows (header row excluded) to arena units.
func worldSize(cols, rows int) (float64, float64) {
	return float64(cols) * cellW, float64(rows-1) * cellH
}

// circleCells calls fn for every cell whose center lies inside b.
// Rows are screen rows below the header.
func circleCells(b sim.Bubble, fn func(col, row int)) {
	cx, cy := b.X+b.Radius, b.Y+b.Radius
	c0 := int(math.Floor(b.X / cellW))
	c1 := int(math.Ceil((b.X + b.Size) / cellW))
	r0 := int(math.Floor(b.Y / cellH))
	r1 := int(math.Ceil((b.Y + b.Size) / cellH))
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			px := (float64(col) + 0.5) * cellW
			py := (float64(row) + 0.5) * cellH
			if math.Hypot(px-cx, py-cy) <= b.Radius {
				fn(col, row+1)
			}
		}
	}
}

// centerCell is the screen cell holding b's center.
func centerCell(b sim.Bubble) (int, int) {
	return int((b.X + b.Radius) / cellW), int((b.Y+b.Radius)/cellH) + 1
}

// syntheticMarkets builds a plausible ranked list for -offline runs.
func syntheticMarkets(rng *rand.Rand, n int) []model.Entity {
	out := make([]model.Entity, n)
	for i := range out {
		rank := i + 1
		capUSD := 1.3e12 / math.Pow(float64(rank), 1.4)
		out[i] = model.Entity{
			ID:                       fmt.Sprintf("coin-%d", rank),
			Symbol:                   fmt.Sprintf("c%d", rank),
			Name:                     fmt.Sprintf("Coin %d", rank),
			CurrentPrice:             decimal.NewFromFloat(capUSD / 1e8).Round(2),
			MarketCap:                decimal.NewFromFloat(capUSD).Round(0),
			MarketCapRank:            rank,
			PriceChangePercentage24h: decimal.NewFromFloat((rng.Float64() - 0.5) * 20).Round(2),
		}
	}
	return out
}
