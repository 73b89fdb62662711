package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-shop-bot/internal/config"
	red "telegram-shop-bot/internal/infra/redis"
)

// Server exposes the operational endpoints: liveness (with a Redis ping) and
// Prometheus metrics. The bot itself never serves HTTP.
type Server struct {
	cfg    *config.AdminConfig
	redis  red.RedisClient
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(cfg *config.AdminConfig, redis red.RedisClient, log *zerolog.Logger) *Server {
	return &Server{cfg: cfg, redis: redis, log: log}
}

func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: r,
	}

	s.log.Info().Int("port", s.cfg.Port).Msg("ops server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.redis.Ping(r.Context()); err != nil {
		http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
