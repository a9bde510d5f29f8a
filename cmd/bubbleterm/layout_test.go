package main

import (
	"math/rand/v2"
	"testing"

	"github.com/piratebg/crypto-bubbles/internal/sim"
)

func TestWorldSize(t *testing.T) {
	w, h := worldSize(100, 41)
	if w != 800 || h != 640 {
		t.Fatalf("worldSize = %vx%v, want 800x640", w, h)
	}
}

func TestCircleCellsStayNearBubble(t *testing.T) {
	b := sim.Bubble{X: 80, Y: 160, Radius: 40, Size: 80}
	var n int
	circleCells(b, func(col, row int) {
		n++
		// Bounding box in cells: cols 10..20, rows 10..15 plus the header offset.
		if col < 10 || col > 20 || row < 11 || row > 16 {
			t.Errorf("cell (%d,%d) outside bubble bounds", col, row)
		}
	})
	// Area pi*40^2 over 8x16 cells is about 39 cells.
	if n < 30 || n > 50 {
		t.Fatalf("filled %d cells, want roughly 39", n)
	}

	col, row := centerCell(b)
	if col != 15 || row != 13 {
		t.Fatalf("center cell = (%d,%d), want (15,13)", col, row)
	}
}

func TestSyntheticMarketsRanked(t *testing.T) {
	list := syntheticMarkets(rand.New(rand.NewPCG(1, 2)), 25)
	if len(list) != 25 {
		t.Fatalf("len = %d", len(list))
	}
	seen := map[string]bool{}
	for i, e := range list {
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
		if i > 0 && !e.MarketCap.LessThan(list[i-1].MarketCap) {
			t.Fatalf("market cap not descending at %d", i)
		}
	}
}
