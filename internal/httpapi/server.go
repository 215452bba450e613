package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/repository"
)

// QueueDepth reports how many notifications wait to be sent.
type QueueDepth interface {
	Len() int
}

// DeliveryCounter reports totals since process start.
type DeliveryCounter interface {
	Stats() (delivered, dropped int64)
}

// Server exposes health and status endpoints for operators.
type Server struct {
	addr    string
	queue   QueueDepth
	counter DeliveryCounter
	stats   repository.StatsRecorder
	log     *zap.Logger
	started time.Time
}

func NewServer(addr string, queue QueueDepth, counter DeliveryCounter, stats repository.StatsRecorder, log *zap.Logger) *Server {
	return &Server{addr: addr, queue: queue, counter: counter, stats: stats, log: log, started: time.Now()}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return r
}

type statusResponse struct {
	QueueDepth     int   `json:"queue_depth"`
	Delivered      int64 `json:"delivered"`
	Dropped        int64 `json:"dropped"`
	DeliveredToday int   `json:"delivered_today"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		QueueDepth:    s.queue.Len(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	resp.Delivered, resp.Dropped = s.counter.Stats()
	today, err := s.stats.CountEventsToday(r.Context())
	if err != nil {
		s.log.Warn("status: count events", zap.Error(err))
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	resp.DeliveredToday = today

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("status: encode", zap.Error(err))
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ops server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
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
	return srv.Shutdown(shutdownCtx)
}
