package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// NewRouter wires the REST endpoints of the session service.
func NewRouter(logger *slog.Logger, sessions sessionUseCase) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)

	ping := NewPingHandler()
	handlers := NewSessionHandlers(logger, sessions)

	router.Get("/ping", ping.PingHandler)

	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", handlers.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetSession)
			r.Delete("/", handlers.DeleteSession)
			r.Post("/moves", handlers.ApplyMove)
			r.Post("/reset", handlers.Reset)
			r.Post("/new-game", handlers.NewGame)
		})
	})

	return router
}

// Start - serves handler until ctx is canceled.
func Start(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
