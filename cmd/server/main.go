// Command server starts the ledger's HTTP/JSON surface, wiring
// config, the bbolt-backed ledger, and the chi router together.
// Grounded in the zap.NewProduction / defer logger.Sync() startup
// idiom the example pack's services use.
package main

import (
	"flag"
	"log"
	"net/http"

	"go.uber.org/zap"

	corebank "corebank"
	"corebank/api"
	"corebank/config"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ledger, err := corebank.NewLedger(cfg.Storage.Path, cfg.Reports.OutputDir, logger)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer ledger.Close()

	handler := api.NewHandler(ledger)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	logger.Info("corebank server starting", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, router); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
