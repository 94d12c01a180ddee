package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hzerradi/foodscan/internal/application"
	appscans "github.com/hzerradi/foodscan/internal/application/scans"
	"github.com/hzerradi/foodscan/internal/config"
	domain "github.com/hzerradi/foodscan/internal/domain/scans"
	"github.com/hzerradi/foodscan/internal/infra/ai/openrouter"
	"github.com/hzerradi/foodscan/internal/infra/history"
	"github.com/hzerradi/foodscan/internal/infra/httpserver"
	minioStore "github.com/hzerradi/foodscan/internal/infra/storage"
	"github.com/hzerradi/foodscan/internal/infra/vision"
	"github.com/hzerradi/foodscan/internal/middleware"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	store, db, err := buildHistoryStore(ctx, cfg)
	if err != nil {
		log.Fatalf("history store error: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	client := openrouter.New(cfg.OpenRouter.APIKey, openrouter.Config{
		BaseURL:     cfg.OpenRouter.BaseURL,
		Model:       cfg.OpenRouter.Model,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Temperature: cfg.OpenRouter.Temperature,
	})

	svc, err := appscans.New(ctx, store, client, vision.NewSampler(time.Now().UnixNano()), application.SystemClock{})
	if err != nil {
		log.Fatalf("scan service init error: %v", err)
	}
	svc.DailyLimit = cfg.Scan.DailyLimit
	svc.HistoryLimit = cfg.Scan.HistoryLimit

	var images domain.ImageStore
	if cfg.Minio.Enabled {
		s, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		images = s
	}

	keys := make(map[string]middleware.User, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		if err := middleware.ValidateUserID(u.ID); err != nil {
			log.Fatalf("config auth user %q: %v", u.ID, err)
		}
		keys[u.Key] = middleware.User{ID: u.ID, Name: u.Name}
	}

	checkers := map[string]middleware.HealthChecker{
		"analysis_api": middleware.CheckFunc(func(ctx context.Context) error {
			if !client.TestConnection(ctx) {
				return fmt.Errorf("completion endpoint unreachable")
			}
			return nil
		}),
	}
	if db != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(skipForProbes(middleware.APIKeyAuth(keys)))
	mux.Use(skipForProbes(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)))
	mux.Mount("/", httpserver.NewRouter(svc, images, checkers))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// buildHistoryStore picks the persistence adapter from config. The sql.DB
// is returned so main can close it and feed the health checker.
func buildHistoryStore(ctx context.Context, cfg *config.Config) (domain.HistoryStore, *sql.DB, error) {
	switch cfg.History.Driver {
	case "file":
		return history.NewFileStore(cfg.History.File), nil, nil
	case "mysql":
		db, err := history.ConnectMySQL(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		store, err := history.NewMySQLStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	case "postgres":
		db, err := history.ConnectPostgres(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		store, err := history.NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown history driver: %s", cfg.History.Driver)
	}
}

// skipForProbes exempts the operational endpoints from auth and rate
// limiting.
func skipForProbes(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/live", "/metrics":
				next.ServeHTTP(w, r)
			default:
				wrapped.ServeHTTP(w, r)
			}
		})
	}
}
