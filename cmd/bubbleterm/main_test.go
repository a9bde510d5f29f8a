package main

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/piratebg/crypto-bubbles/internal/sim"
)

func TestViewerDropsStaleFetch(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	v := &viewer{
		session: sim.NewSession(sim.Options{Width: 800, Height: 600, Rand: rng}),
		gen:     2,
		loading: true,
	}

	v.apply(fetchResult{gen: 1, entities: syntheticMarkets(rng, 30)})
	if v.session.Len() != 0 || !v.loading {
		t.Fatalf("stale fetch applied: %d bodies", v.session.Len())
	}

	v.apply(fetchResult{gen: 2, entities: syntheticMarkets(rng, 10)})
	if v.session.Len() != 10 || v.loading {
		t.Fatalf("current fetch not applied: %d bodies, loading=%v", v.session.Len(), v.loading)
	}

	v.gen = 3
	v.apply(fetchResult{gen: 3, err: errors.New("boom")})
	if v.session.Len() != 10 {
		t.Fatal("failed fetch must keep the current bodies")
	}
	if v.status == "" {
		t.Fatal("failed fetch should set a status")
	}
}
