package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"retailnexus/chaos"
	"retailnexus/internal/config"
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

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	engine := chaos.NewEngine(db, logger)
	engine.RegisterExperiments(cfg.LoyaltyServiceURL, cfg.WalletServiceURL)

	gameDay := chaos.GameDay{
		Name:      "Weekly Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
	}

	if err := engine.ExecuteGameDay(context.Background(), gameDay); err != nil {
		logger.Fatal("game day failed", zap.Error(err))
	}
}
