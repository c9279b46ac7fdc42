package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"retailnexus/internal/config"
	"retailnexus/internal/wallet"
	"retailnexus/pkg/eventstore"
	"retailnexus/pkg/telemetry"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	if cfg.TracingEnabled {
		shutdown, err := telemetry.Setup(ctx, "wallet", cfg.OTLPEndpoint)
		if err != nil {
			logger.Fatal("failed to set up tracing", zap.Error(err))
		}
		defer shutdown(ctx)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	es := eventstore.New(db)
	store := wallet.NewPostgresStore(db)
	svc := wallet.NewService(es, store, logger)
	handler := wallet.NewHandler(svc, wallet.Policy{AllowPartialPayments: cfg.AllowPartialPayments})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	handler.Routes(r)

	logger.Info("starting wallet service", zap.String("port", cfg.ServerPort))
	if err := http.ListenAndServe(":"+cfg.ServerPort, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
