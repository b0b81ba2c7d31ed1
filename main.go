package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"transport-ledger/internal/config"
	"transport-ledger/internal/observability/metrics"
	"transport-ledger/internal/server"
	"transport-ledger/internal/storage"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	var db *sql.DB
	if cfg.Storage == config.StoragePostgres {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}
	metrics.Init(db, logger)

	backend, err := storage.Open(db)
	if err != nil {
		logger.Fatalf("storage error: %v", err)
	}
	srv, err := server.New(cfg, backend, logger)
	if err != nil {
		logger.Fatalf("server error: %v", err)
	}
	defer srv.Close()

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler}
	logger.Printf("http listening on %s storage=%s", cfg.HTTPAddr, cfg.Storage)
	logger.Fatal(httpServer.ListenAndServe())
}
