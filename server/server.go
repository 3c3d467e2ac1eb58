package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abate-Agegnehu/musiccollectionbackend/core/music"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
)

const shutdownTimeout = 10 * time.Second

// Options wires the router.
type Options struct {
	Music  *music.Service
	Events *EventHub // optional change feed
	Upload UploadConfig

	// MediaDir, when set, is served under /media/ for the local media provider.
	MediaDir string
}

// NewRouter builds the HTTP routes.
func NewRouter(opts Options) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, requestLogger, metricsMiddleware)

	musicHandler := NewMusicHandler(opts.Music)
	withUpload := UploadMiddleware(opts.Upload)

	router.Handle("/music", withUpload(http.HandlerFunc(musicHandler.CreateHandler))).Methods(http.MethodPost)
	router.HandleFunc("/music", musicHandler.ListHandler).Methods(http.MethodGet)
	if opts.Events != nil {
		router.HandleFunc("/music/events", opts.Events.ServeWS).Methods(http.MethodGet)
	}
	router.HandleFunc("/music/email/{email}", musicHandler.ListByEmailHandler).Methods(http.MethodGet)
	router.HandleFunc("/music/{key}", musicHandler.GetHandler).Methods(http.MethodGet)
	router.Handle("/music/{id}", withUpload(http.HandlerFunc(musicHandler.UpdateHandler))).Methods(http.MethodPut)
	router.HandleFunc("/music/{id}", musicHandler.DeleteHandler).Methods(http.MethodDelete)

	router.HandleFunc("/healthz", healthHandler(opts.Music)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if opts.MediaDir != "" {
		router.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	// Preflight requests for any path.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return router
}

func healthHandler(svc *music.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			logger.Error("health check failed", logger.ErrorField(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Server is the HTTP server with graceful shutdown.
type Server struct {
	httpServer *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Minute, // large media uploads
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
