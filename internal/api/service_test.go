package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/piratebg/crypto-bubbles/internal/api"
	"github.com/piratebg/crypto-bubbles/internal/market"
	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/sim"
	"github.com/piratebg/crypto-bubbles/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeEngine records commands instead of running a loop.
type fakeEngine struct {
	mu     sync.Mutex
	cmds   []any
	latest *sim.Frame
	err    error
}

func (e *fakeEngine) Send(_ context.Context, cmd any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.cmds = append(e.cmds, cmd)
	return nil
}

func (e *fakeEngine) Latest() *sim.Frame { return e.latest }

func (e *fakeEngine) last() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cmds) == 0 {
		return nil
	}
	return e.cmds[len(e.cmds)-1]
}

type fakeSource struct {
	err   error
	calls int
}

func (s *fakeSource) Markets(_ context.Context, n int) ([]model.Entity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Entity, n)
	for i := range out {
		out[i] = model.Entity{
			ID:           fmt.Sprintf("coin-%d", i),
			Symbol:       fmt.Sprintf("c%d", i),
			CurrentPrice: d(1.5),
			MarketCap:    d(float64(1000 * (n - i))),
		}
	}
	return out, nil
}

type testEnv struct {
	engine *fakeEngine
	source *fakeSource
	store  *store.MemoryStore
	router chi.Router
}

// newTestEnv creates a Service over an in-memory store and a chi router.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		engine: &fakeEngine{},
		source: &fakeSource{},
		store:  store.NewMemoryStore(),
	}
	loader := market.NewLoader(env.source, env.store, env.engine, market.LoaderConfig{MaxCount: 250})
	svc := api.NewService(loader, env.engine, env.store, 20)

	r := chi.NewRouter()
	r.Post("/api/v1/load", svc.Load)
	r.Put("/api/v1/mode", svc.SetMode)
	r.Put("/api/v1/viewport", svc.SetViewport)
	r.Get("/api/v1/frame", svc.GetFrame)
	r.Get("/api/v1/snapshots", svc.ListSnapshots)
	r.Get("/api/v1/snapshots/{snapshotID}", svc.GetSnapshot)
	env.router = r
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %s", w.Body.String())
	}
	return resp["error"]
}

// --- Load ---

func TestLoad_StringAndNumberCounts(t *testing.T) {
	for _, body := range []string{`{"count":"7"}`, `{"count":7}`, `{"count":" 7 "}`} {
		env := newTestEnv(t)
		w := env.do(t, "POST", "/api/v1/load", body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", body, w.Code, w.Body.String())
		}
		var res market.Result
		json.Unmarshal(w.Body.Bytes(), &res)
		if !res.Applied || res.Count != 7 || res.Entities != 7 || res.SnapshotID == "" {
			t.Fatalf("%s: result = %+v", body, res)
		}
		rep, ok := env.engine.last().(sim.Replace)
		if !ok || len(rep.Entities) != 7 || rep.Generation != res.Generation {
			t.Fatalf("%s: engine got %+v", body, env.engine.last())
		}
	}
}

func TestLoad_DefaultCount(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/api/v1/load", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res market.Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Count != 20 {
		t.Fatalf("default count = %d, want 20", res.Count)
	}
}

func TestLoad_InvalidCount(t *testing.T) {
	for _, body := range []string{`{"count":"0"}`, `{"count":"251"}`, `{"count":"abc"}`, `{"count":-4}`, `{"count":true}`, `not json`} {
		env := newTestEnv(t)
		w := env.do(t, "POST", "/api/v1/load", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", body, w.Code, w.Body.String())
		}
		if env.source.calls != 0 || env.engine.last() != nil {
			t.Errorf("%s: invalid count must not fetch or touch the arena", body)
		}
	}
}

func TestLoad_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.source.err = &market.StatusError{StatusCode: 429, Body: "rate limited"}

	w := env.do(t, "POST", "/api/v1/load", `{"count":"10"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(errorMessage(t, w), "429") {
		t.Errorf("error should mention upstream status: %s", w.Body.String())
	}
	if env.engine.last() != nil {
		t.Fatal("failed fetch must leave the arena untouched")
	}
}

func TestLoad_EngineStopped(t *testing.T) {
	env := newTestEnv(t)
	env.engine.err = sim.ErrStopped
	w := env.do(t, "POST", "/api/v1/load", `{"count":"3"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Mode ---

func TestSetMode(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "PUT", "/api/v1/mode", `{"mode":"change_24h"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cmd, ok := env.engine.last().(sim.SetMetric)
	if !ok || cmd.Metric != model.MetricChange24h {
		t.Fatalf("engine got %+v", env.engine.last())
	}
}

func TestSetMode_Unknown(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "PUT", "/api/v1/mode", `{"mode":"volume"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if env.engine.last() != nil {
		t.Fatal("unknown mode must not reach the engine")
	}
}

// --- Viewport ---

func TestSetViewport(t *testing.T) {
	tests := []struct {
		body string
		code int
	}{
		{`{"width":390,"height":844}`, http.StatusOK},
		{`{"width":0,"height":-10}`, http.StatusOK}, // degenerate but finite
		{`{"width":390}`, http.StatusBadRequest},
		{`{"width":1e999,"height":10}`, http.StatusBadRequest},
		{`{"width":"wide","height":10}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		w := env.do(t, "PUT", "/api/v1/viewport", tt.body)
		if w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d: %s", tt.body, tt.code, w.Code, w.Body.String())
			continue
		}
		if tt.code == http.StatusOK {
			if _, ok := env.engine.last().(sim.Resize); !ok {
				t.Errorf("%s: engine got %+v", tt.body, env.engine.last())
			}
		} else if env.engine.last() != nil {
			t.Errorf("%s: rejected viewport reached the engine", tt.body)
		}
	}
}

// --- Frame ---

func TestGetFrame(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, "GET", "/api/v1/frame", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 before first tick, got %d", w.Code)
	}

	env.engine.latest = &sim.Frame{Tick: 3, Width: 1280, Height: 720, Bubbles: []sim.Bubble{{ID: "bitcoin", Radius: 90}}}
	w := env.do(t, "GET", "/api/v1/frame", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var f sim.Frame
	json.Unmarshal(w.Body.Bytes(), &f)
	if f.Tick != 3 || len(f.Bubbles) != 1 || f.Bubbles[0].ID != "bitcoin" {
		t.Fatalf("frame = %+v", f)
	}
}

// --- Snapshots ---

func TestSnapshots(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/v1/snapshots", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty list: %d %s", w.Code, w.Body.String())
	}

	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		env.store.SaveSnapshot(ctx, &model.Snapshot{
			ID:        fmt.Sprintf("snap-%d", i),
			Count:     5,
			FetchedAt: t0.Add(time.Duration(i) * time.Minute),
			Entities:  []model.Entity{{ID: "bitcoin", MarketCap: d(1e12)}},
		})
	}

	w = env.do(t, "GET", "/api/v1/snapshots?limit=2", "")
	var infos []model.SnapshotInfo
	json.Unmarshal(w.Body.Bytes(), &infos)
	if len(infos) != 2 || infos[0].ID != "snap-2" {
		t.Fatalf("list = %+v", infos)
	}

	if w := env.do(t, "GET", "/api/v1/snapshots?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/snapshots/snap-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var snap model.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.ID != "snap-1" || len(snap.Entities) != 1 || !snap.Entities[0].MarketCap.Equal(d(1e12)) {
		t.Fatalf("snapshot = %+v", snap)
	}

	if w := env.do(t, "GET", "/api/v1/snapshots/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", w.Code)
	}
}
