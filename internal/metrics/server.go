package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"marketwatch/internal/report"
)

// ChartRenderer renders the trailing window as PNG.
type ChartRenderer interface {
	Chart(ctx context.Context, now time.Time, w io.Writer) (int, error)
}

// Server exposes /metrics, /healthz and /chart.png.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewRouter builds the ops router. chart may be nil.
func NewRouter(c *Collector, chart ChartRenderer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", c.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Health())
	})
	if chart != nil {
		r.Get("/chart.png", chartHandler(chart))
	}
	return r
}

func chartHandler(chart ChartRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		n, err := chart.Chart(r.Context(), time.Now(), &buf)
		switch {
		case errors.Is(err, report.ErrNoData):
			http.Error(w, "no data", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Chart-Points", strconv.Itoa(n))
		_, _ = w.Write(buf.Bytes())
	}
}

// NewServer constructs the ops listener.
func NewServer(addr string, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "ops_http").Logger(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("ops listener started")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("ops listener stopped")
	return nil
}
