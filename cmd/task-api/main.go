package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prestserv/remanejo/internal/app/engine"
	"github.com/prestserv/remanejo/internal/app/httpapi"
	"github.com/prestserv/remanejo/internal/app/remanejamento"
	"github.com/prestserv/remanejo/internal/app/tarefa"
	"github.com/prestserv/remanejo/internal/platform/dbpool"
	"github.com/prestserv/remanejo/internal/platform/env"
	"github.com/prestserv/remanejo/internal/platform/metrics"
	"github.com/prestserv/remanejo/internal/platform/natsutil"
	"github.com/prestserv/remanejo/internal/setor"
)

func main() {
	env.Load()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiAddr := env.String("TASK_API_ADDR", env.DefaultAPIAddr)
	uiOrigin := env.String("UI_ORIGIN", "*")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	remRepo := remanejamento.NewPostgresRepository(pool)
	taskRepo := tarefa.NewPostgresRepository(pool)
	teamDir := setor.NewPostgresTeamDirectory(pool)
	if err := waitForSchema(runCtx, pool, 30*time.Second, remRepo.EnsureSchema, taskRepo.EnsureSchema, teamDir.EnsureSchema); err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	eng := engine.NewService(taskRepo, remRepo, publisher.Publish)
	tarefas := tarefa.NewService(taskRepo, remRepo, teamDir, publisher.Publish, eng.RecomputeAfterMutation)
	handler := httpapi.NewHandler(tarefas, eng, remRepo, uiOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              apiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Task API listening on %s", apiAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("task-api graceful shutdown failed: %v", err)
	}
}

func waitForSchema(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, ensures ...func(context.Context) error) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		for _, ensure := range ensures {
			if lastErr != nil {
				break
			}
			lastErr = ensure(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for postgres schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
