// Package api provides the HTTP handlers for loading entity lists, switching
// the sizing metric, resizing the viewport and reading frames and snapshots.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/piratebg/crypto-bubbles/internal/market"
	"github.com/piratebg/crypto-bubbles/internal/model"
	"github.com/piratebg/crypto-bubbles/internal/sim"
	"github.com/piratebg/crypto-bubbles/internal/store"
)

// Engine is the running simulation. *sim.Loop satisfies it.
type Engine interface {
	Send(ctx context.Context, cmd any) error
	Latest() *sim.Frame
}

// Loader loads entity lists into the engine. *market.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, count int) (market.Result, error)
	MaxCount() int
}

// Service serves the HTTP API. It holds no simulation state of its own;
// every mutation goes through the engine's inbox.
type Service struct {
	loader       Loader
	engine       Engine
	store        store.Store
	defaultCount int
}

// NewService creates the API service. defaultCount is used when a load
// request omits the count.
func NewService(loader Loader, engine Engine, st store.Store, defaultCount int) *Service {
	return &Service{
		loader:       loader,
		engine:       engine,
		store:        st,
		defaultCount: defaultCount,
	}
}

// --- Request types ---

// Count accepts either a JSON string ("20") or number (20), since the count
// usually comes straight from a text field.
type Count string

func (c *Count) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Count(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Count(n.String())
	return nil
}

// LoadRequest is the JSON body for POST /api/v1/load.
type LoadRequest struct {
	Count Count `json:"count"`
}

// ModeRequest is the JSON body for PUT /api/v1/mode.
type ModeRequest struct {
	Mode string `json:"mode"` // market_cap or change_24h
}

// ViewportRequest is the JSON body for PUT /api/v1/viewport.
type ViewportRequest struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// --- HTTP Handlers ---

// Load handles POST /api/v1/load
func (s *Service) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	// An empty body loads the default count.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	count := s.defaultCount
	if strings.TrimSpace(string(req.Count)) != "" {
		n, err := market.ParseCount(string(req.Count), s.loader.MaxCount())
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		count = n
	}

	res, err := s.loader.Load(r.Context(), count)
	switch {
	case err == nil:
	case errors.Is(err, market.ErrInvalidCount):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, market.ErrUpstream), errors.Is(err, market.ErrMalformed):
		writeError(w, "market source unavailable: "+err.Error(), http.StatusBadGateway)
		return
	case errors.Is(err, sim.ErrStopped):
		writeError(w, "simulation stopped", http.StatusServiceUnavailable)
		return
	default:
		slog.Error("load failed", "count", count, "error", err)
		writeError(w, "failed to load entities", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// SetMode handles PUT /api/v1/mode
func (s *Service) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	m, err := model.ParseMetric(req.Mode)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.send(w, r, sim.SetMetric{Metric: m}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(m)})
}

// SetViewport handles PUT /api/v1/viewport
// Zero or negative extents are accepted and collapse the arena; non-finite
// values are rejected.
func (s *Service) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Width == nil || req.Height == nil {
		writeError(w, "width and height are required", http.StatusBadRequest)
		return
	}
	width, height := *req.Width, *req.Height
	if !finite(width) || !finite(height) {
		writeError(w, "width and height must be finite", http.StatusBadRequest)
		return
	}
	if !s.send(w, r, sim.Resize{Width: width, Height: height}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"width": width, "height": height})
}

// GetFrame handles GET /api/v1/frame
func (s *Service) GetFrame(w http.ResponseWriter, r *http.Request) {
	f := s.engine.Latest()
	if f == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ListSnapshots handles GET /api/v1/snapshots
// Optional ?limit=N bounds the result.
func (s *Service) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	infos, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []model.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// GetSnapshot handles GET /api/v1/snapshots/{snapshotID}
func (s *Service) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "snapshotID")

	snap, err := s.store.GetSnapshot(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to get snapshot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) send(w http.ResponseWriter, r *http.Request, cmd any) bool {
	if err := s.engine.Send(r.Context(), cmd); err != nil {
		if errors.Is(err, sim.ErrStopped) {
			writeError(w, "simulation stopped", http.StatusServiceUnavailable)
		} else {
			writeError(w, "request cancelled", http.StatusServiceUnavailable)
		}
		return false
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
