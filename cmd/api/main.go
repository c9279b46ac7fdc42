package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"retailnexus/internal/config"
)

// The gateway is a thin reverse proxy in front of the four services.
// It owns no business logic; path prefixes map one-to-one onto
// upstream services.
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

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	mountProxy(r, logger, "/api/v1/products", cfg.ProductsServiceURL)
	mountProxy(r, logger, "/api/v1/sales", cfg.SalesServiceURL)
	mountProxy(r, logger, "/api/v1/customers", cfg.LoyaltyServiceURL)
	mountProxy(r, logger, "/api/v1/wallets", cfg.WalletServiceURL)

	logger.Info("starting api gateway", zap.String("port", cfg.ServerPort))
	if err := http.ListenAndServe(":"+cfg.ServerPort, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func mountProxy(r chi.Router, logger *zap.Logger, prefix, upstream string) {
	target, err := url.Parse(upstream)
	if err != nil {
		logger.Fatal("invalid upstream URL",
			zap.String("prefix", prefix),
			zap.String("upstream", upstream),
			zap.Error(err),
		)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	r.Handle(prefix+"/*", http.StripPrefix("/api/v1", proxy))
	r.Handle(prefix, http.StripPrefix("/api/v1", proxy))
}
