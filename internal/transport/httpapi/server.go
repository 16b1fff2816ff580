// Package httpapi serves a read view of the swing state for renderers, plus
// pause/resume controls and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"SwingSentinel/internal/aggregator"
	"SwingSentinel/internal/model"
)

// StateSource is the part of state.Manager the view needs.
type StateSource interface {
	Snapshot() model.SwingState
	Version() uint64
	Bars() model.BarSeries
	Pause()
	Resume(ctx context.Context) error
}

// Handler serves the HTTP view.
type Handler struct {
	state   StateSource
	base    aggregator.Resolution
	metrics http.Handler
}

// NewHandler creates a Handler. base is the resolution of the bars held by
// state. metrics may be nil.
func NewHandler(state StateSource, base aggregator.Resolution, metrics http.Handler) *Handler {
	return &Handler{state: state, base: base, metrics: metrics}
}

// Routes returns the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/snapshot", h.Snapshot)
		r.Get("/bars", h.Bars)
		r.Get("/healthz", h.Health)
		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)
	})
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
	return r
}

func etag(version uint64) string {
	return `"` + strconv.FormatUint(version, 10) + `"`
}

// Snapshot handles GET /snapshot. The ETag is the state version, so a
// client polling with If-None-Match gets 304 until the state changes.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	tag := etag(h.state.Version())
	if r.Header.Get("If-None-Match") == tag {
		w.Header().Set("ETag", tag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	st := h.state.Snapshot()
	w.Header().Set("ETag", etag(st.Version))
	render.JSON(w, r, st)
}

type barsResponse struct {
	Resolution aggregator.Resolution `json:"resolution"`
	Bars       model.BarSeries       `json:"bars"`
}

// Bars handles GET /bars. With ?resolution the series is aggregated to it;
// with ?max_bars the coarsest needed resolution is picked for the zoom.
func (h *Handler) Bars(w http.ResponseWriter, r *http.Request) {
	bars := h.state.Bars()
	res := h.base

	if s := r.URL.Query().Get("resolution"); s != "" {
		parsed, err := aggregator.ParseResolution(s)
		if err != nil {
			h.error(w, r, http.StatusBadRequest, err)
			return
		}
		if parsed.Seconds() < h.base.Seconds() {
			h.error(w, r, http.StatusBadRequest, errors.New("resolution finer than the series"))
			return
		}
		res = parsed
	} else if s := r.URL.Query().Get("max_bars"); s != "" {
		maxBars, err := strconv.Atoi(s)
		if err != nil || maxBars <= 0 {
			h.error(w, r, http.StatusBadRequest, errors.New("max_bars must be a positive integer"))
			return
		}
		res = aggregator.ForZoom(h.base, len(bars), maxBars)
	}

	if res != h.base {
		agg, err := aggregator.Aggregate(bars, res)
		if err != nil {
			h.error(w, r, http.StatusInternalServerError, err)
			return
		}
		bars = agg
	}
	if bars == nil {
		bars = model.BarSeries{}
	}
	render.JSON(w, r, barsResponse{Resolution: res, Bars: bars})
}

// Health handles GET /healthz. A faulted writer makes the view stale.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.state.Snapshot()
	body := map[string]interface{}{
		"status":  "ok",
		"version": st.Version,
		"stale":   st.Stale,
		"paused":  st.Paused,
	}
	if st.Stale {
		body["status"] = "stale"
		body["fault"] = st.Fault
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, body)
}

// Pause handles POST /pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.state.Pause()
	log.Println("[INFO] state paused via http")
	render.JSON(w, r, map[string]interface{}{"paused": true})
}

// Resume handles POST /resume. Buffered bars rejected during the drain are
// reported but do not fail the request unless the manager stayed paused.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	err := h.state.Resume(r.Context())
	st := h.state.Snapshot()
	body := map[string]interface{}{
		"paused":   st.Paused,
		"buffered": st.Buffered,
		"version":  st.Version,
	}
	if err != nil {
		log.Printf("[WARN] resume: %v", err)
		body["error"] = err.Error()
		if st.Paused {
			render.Status(r, http.StatusConflict)
		}
	}
	render.JSON(w, r, body)
}

func (h *Handler) error(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{"error": err.Error()})
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] http view listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
