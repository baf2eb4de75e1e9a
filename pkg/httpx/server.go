package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Server exposes spotlake's HTTP surface: /health and /metrics only. No
// spot or rollup data is ever served over HTTP — clients read the object
// store directly.
type Server struct {
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer builds a Server listening on addr.
func NewServer(addr string) *Server {
	router := mux.NewRouter()

	s := &Server{startedAt: time.Now()}

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return s
}

// ServeHTTP delegates to the underlying router, useful for testing without
// binding a port.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server. Returns http.ErrServerClosed on graceful
// shutdown.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}
