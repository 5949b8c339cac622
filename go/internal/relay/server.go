package relay

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewHTTPHandler mounts the relay routes, health and info endpoints and the
// static client assets, wrapped with wildcard CORS.
func NewHTTPHandler(s *Service) http.Handler {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	s.RegisterRoutes(mux)
	setupHealthCheck(mux)
	setupInfo(mux, s)

	// Pre-built client assets
	mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))

	handler := c.Handler(mux)
	return h2c.NewHandler(handler, &http2.Server{})
}

// NewHTTPServer builds the listening server for config.
func NewHTTPServer(config Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         config.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func setupInfo(mux *http.ServeMux, s *Service) {
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		stats := s.GetStats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"globepath-relay","version":"1.0.0","connections":%d}`,
			stats["total_connections"])
	})
}
