package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edvora-attempt-service/internal/app"
	"edvora-attempt-service/internal/config"
	"edvora-attempt-service/internal/domain"
	"edvora-attempt-service/internal/infra/memory"
	"edvora-attempt-service/internal/infra/postgres"
	redisinfra "edvora-attempt-service/internal/infra/redis"
	"edvora-attempt-service/internal/infra/remoteapi"
	transport "edvora-attempt-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the attempt gateway.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the attempt gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var apiClient *remoteapi.Client
	if cfg.API.BaseURL != "" {
		apiClient = remoteapi.New(remoteapi.Config{
			BaseURL: cfg.API.BaseURL,
			Timeout: config.Duration(cfg.API.Timeout, 10*time.Second),
		})
	}

	// Quiz source precedence: Postgres catalog, remote portal API, bundled
	// sample data.
	var source memory.QuizSource = memory.NewStaticQuizSource(sampleQuizzes())
	switch {
	case pool != nil:
		source = postgres.NewQuizSource(pool)
	case apiClient != nil:
		source = apiClient
	}

	catalogTTL := config.Duration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.QuizCatalog
	if redisClient != nil {
		catalog = redisinfra.NewCatalogCache(redisClient, source, catalogTTL)
	} else {
		catalog = memory.NewCatalogCache(source, catalogTTL)
	}

	sessionTTL := config.Duration(cfg.Session.TTL, 30*24*time.Hour)
	var sessions app.SessionHub
	if redisClient != nil {
		sessions = redisinfra.NewSessionHub(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionHub()
	}

	var grader app.Grader = app.OfflineGrader{}
	if apiClient != nil {
		grader = apiClient
	}

	var archive transport.AttemptArchive
	if pool != nil {
		archive = postgres.NewAttemptArchive(pool)
	}

	wsHandler := transport.NewWSHandler(catalog, sessions, grader, archive)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting attempt gateway on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides minimal quiz data for running without a catalog
// backend; configure Postgres or the portal API in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Arithmetic warm-up",
			Description: "Two quick questions",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "What is 2 + 2?",
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
				},
				{
					ID:           "q2",
					Text:         "What is 9 - 3?",
					Options:      []string{"6", "7", "8"},
					CorrectIndex: 0,
				},
			},
		},
	}
}
