package httpstatus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/app/settings"
)

// Lo implementa music.Registry
type Players interface {
	Snapshots() []music.Snapshot
}

// Lo implementa settings.Cache
type CacheStats interface {
	Stats() settings.Stats
}

// Lo implementa audionode.Client
type NodeStatus interface {
	Ready() bool
}

type Server struct {
	players Players
	cache   CacheStats
	node    NodeStatus
	metrics http.Handler
	log     *zap.Logger
	mux     chi.Router
}

func New(players Players, cache CacheStats, node NodeStatus, metrics http.Handler, log *zap.Logger) *Server {
	s := &Server{players: players, cache: cache, node: node, metrics: metrics, log: log, mux: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Use(middleware.RealIP)
	s.mux.Use(middleware.Recoverer)
	s.mux.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Method(http.MethodGet, "/metrics", s.metrics)
	}
	s.mux.Route("/players", func(r chi.Router) {
		r.Get("/", s.handlePlayers)
		r.Get("/{guildID}", s.handlePlayer)
	})
}

func (s *Server) Handler() http.Handler { return s.mux }

type health struct {
	Status    string         `json:"status"`
	NodeReady bool           `json:"node_ready"`
	Sessions  int            `json:"sessions"`
	Cache     settings.Stats `json:"cache"`
}

// healthz devuelve 503 mientras el nodo de audio no esté listo.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		Status:    "ok",
		NodeReady: s.node.Ready(),
		Sessions:  len(s.players.Snapshots()),
		Cache:     s.cache.Stats(),
	}
	code := http.StatusOK
	if !h.NodeReady {
		h.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.players.Snapshots())
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	for _, snap := range s.players.Snapshots() {
		if snap.GuildID == guildID {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	http.Error(w, "no session", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start escucha en addr hasta que ctx se cancele y después apaga con gracia.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http escuchando", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
