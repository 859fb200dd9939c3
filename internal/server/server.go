package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/findly-app/findly/pkg/currency"
	"github.com/findly-app/findly/pkg/logging"
	"github.com/findly-app/findly/pkg/recommend"
	"github.com/findly-app/findly/pkg/search"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WriteLocker serializes database writes with other findly processes.
type WriteLocker interface {
	WithLock(fn func() error) error
}

type Config struct {
	DB *storage.DB
	// WriteLock guards the handlers that modify DB. Optional.
	WriteLock   WriteLocker
	Pipeline    *search.Pipeline
	Recommender *recommend.Composer
	Converter   *currency.Converter
	// Currency is the default display currency for ranking.
	Currency string

	Username string
	Password string
	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables rate limiting.
	RateLimit int
	// AllowedOrigins for CORS and websocket upgrades. Empty disables CORS
	// headers and allows websocket upgrades from any origin.
	AllowedOrigins []string
	Log            logging.Logger
}

type Server struct {
	cfg Config
	log logging.Logger
}

func New(cfg Config) *Server {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Server{cfg: cfg, log: logging.OrNop(cfg.Log)}
}

// write runs fn under the configured write lock.
func (s *Server) write(fn func() error) error {
	if s.cfg.WriteLock == nil {
		return fn()
	}
	return s.cfg.WriteLock.WithLock(fn)
}

// Handler returns the HTTP API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.basicAuth)

		r.Post("/search", s.handleSearch)
		r.Get("/search/ws", s.handleSearchWS)

		r.Get("/history", s.handleListHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Delete("/history/{id}", s.handleRemoveHistory)

		r.Get("/profile", s.handleProfile)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/convert", s.handleConvert)

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences/theme", s.handleSetTheme)
		r.Put("/preferences/user", s.handleSetUser)
		r.Delete("/preferences/user", s.handleDeleteUser)
	})
	return r
}

// Start serves the API on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Infof("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Username == "" && s.cfg.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
