// Command bubbleterm runs the bubble simulation locally and draws it in the
// terminal, one frame per display tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/piratebg/crypto-bubbles/internal/config"
	"github.com/piratebg/crypto-bubbles/internal/market"
	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/physics"
	"github.com/piratebg/crypto-bubbles/internal/sim"
)

// fetchResult carries a finished fetch back to the frame loop.
type fetchResult struct {
	gen      uint64
	count    int
	entities []model.Entity
	err      error
}

type viewer struct {
	screen  tcell.Screen
	session *sim.Session
	source  market.Source
	timeout time.Duration

	count    int
	maxCount int
	gen      uint64 // latest requested fetch
	loading  bool
	status   string
	frame    sim.Frame
	results  chan fetchResult
}

func newViewer(screen tcell.Screen, cfg *config.Config, src market.Source, count int) *viewer {
	cols, rows := screen.Size()
	w, h := worldSize(cols, rows)
	coincident := physics.CoincidentSkip
	if cfg.NudgeCoincident {
		coincident = physics.CoincidentNudge
	}
	session := sim.NewSession(sim.Options{
		Width:      w,
		Height:     h,
		Range:      cfg.Sizes,
		Metric:     cfg.Metric,
		MaxSpeed:   cfg.MaxSpeed,
		Coincident: coincident,
	})
	return &viewer{
		screen:   screen,
		session:  session,
		source:   src,
		timeout:  cfg.FetchTimeout,
		count:    count,
		maxCount: cfg.MaxCount,
		results:  make(chan fetchResult, 4),
	}
}

// fetch starts a load in the background. Only the newest request is applied.
func (v *viewer) fetch(ctx context.Context) {
	v.gen++
	gen, count := v.gen, v.count
	v.loading = true
	go func() {
		ctx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		entities, err := v.source.Markets(ctx, count)
		v.results <- fetchResult{gen: gen, count: count, entities: entities, err: err}
	}()
}

func (v *viewer) apply(res fetchResult) {
	if res.gen != v.gen {
		slog.Info("discarding stale entity list", "generation", res.gen, "latest", v.gen)
		return
	}
	v.loading = false
	if res.err != nil {
		slog.Error("market fetch failed", "count", res.count, "error", res.err)
		v.status = "fetch failed: " + res.err.Error()
		return
	}
	v.session.Load(res.entities)
	v.status = fmt.Sprintf("loaded %d", len(res.entities))
	slog.Info("entity list loaded", "generation", res.gen, "entities", len(res.entities))
}

// handleKey reports false when the viewer should exit.
func (v *viewer) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'm':
			v.session.SetMetric(v.session.Metric().Toggle())
		case 'r':
			v.fetch(ctx)
		case '+', '=':
			if market.CheckCount(v.count+5, v.maxCount) == nil {
				v.count += 5
				v.fetch(ctx)
			}
		case '-', '_':
			if market.CheckCount(v.count-5, v.maxCount) == nil {
				v.count -= 5
				v.fetch(ctx)
			}
		}
	}
	return true
}

func (v *viewer) resize() {
	v.screen.Sync()
	cols, rows := v.screen.Size()
	v.session.Resize(worldSize(cols, rows))
}

func (v *viewer) run(ctx context.Context) {
	ticker := time.NewTicker(16 * time.Millisecond) // ~60 FPS
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return // screen finalized
			}
			eventChan <- ev
		}
	}()

	v.fetch(ctx)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !v.handleKey(ctx, ev) {
					return
				}
			case *tcell.EventResize:
				v.resize()
			}

		case res := <-v.results:
			v.apply(res)

		case now := <-ticker.C:
			v.frame, _ = v.session.Step(now.Sub(last).Seconds())
			last = now
			v.draw()
		}
	}
}

var (
	styleHeader   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	stylePositive = tcell.StyleDefault.Background(tcell.NewRGBColor(0, 110, 40)).Foreground(tcell.ColorWhite)
	styleNegative = tcell.StyleDefault.Background(tcell.NewRGBColor(150, 30, 30)).Foreground(tcell.ColorWhite)
)

func (v *viewer) draw() {
	v.screen.Clear()
	cols, rows := v.screen.Size()

	for _, b := range v.frame.Bubbles {
		style := stylePositive
		if !b.Positive {
			style = styleNegative
		}
		circleCells(b, func(col, row int) {
			if col >= 0 && col < cols && row >= 1 && row < rows {
				v.screen.SetContent(col, row, ' ', nil, style)
			}
		})
		col, row := centerCell(b)
		text := b.Label
		if v.frame.Metric == model.MetricChange24h {
			text = b.Change
		}
		v.drawText(col-len(text)/2, row, text, style.Bold(true), cols, rows)
	}

	state := v.status
	if v.loading {
		state = "loading..."
	}
	header := fmt.Sprintf(" bubbles | mode %s | count %d | %s | [m]ode [r]eload [+/-]count [q]uit",
		v.session.Metric(), v.count, state)
	for col := 0; col < cols; col++ {
		v.screen.SetContent(col, 0, ' ', nil, styleHeader)
	}
	v.drawText(0, 0, header, styleHeader, cols, rows)

	v.screen.Show()
}

func (v *viewer) drawText(col, row int, s string, style tcell.Style, cols, rows int) {
	if row < 0 || row >= rows {
		return
	}
	for _, r := range s {
		if col >= 0 && col < cols {
			v.screen.SetContent(col, row, r, nil, style)
		}
		col++
	}
}

func main() {
	count := flag.Int("count", 0, "number of entities (default DEFAULT_COUNT)")
	offline := flag.Bool("offline", false, "use a synthetic entity list instead of CoinGecko")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	// The terminal is the display, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, nil)))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	n := cfg.DefaultCount
	if *count != 0 {
		if err := market.CheckCount(*count, cfg.MaxCount); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		n = *count
	}

	var src market.Source = market.NewClient(market.ClientConfig{
		BaseURL:    cfg.CoinGeckoURL,
		APIKey:     cfg.CoinGeckoAPIKey,
		VsCurrency: cfg.VsCurrency,
		Timeout:    cfg.FetchTimeout,
	})
	if *offline {
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		src = &offlineSource{rng: rng}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	newViewer(screen, cfg, src, n).run(ctx)
}

// offlineSource serves synthetic lists without touching the network.
type offlineSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *offlineSource) Markets(_ context.Context, count int) ([]model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return syntheticMarkets(s.rng, count), nil
}
