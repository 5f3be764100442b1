package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/astracat/catform/analytics"
	"github.com/astracat/catform/app"
	"github.com/astracat/catform/config"
	"github.com/astracat/catform/database"
	"github.com/astracat/catform/httpx"
	"github.com/astracat/catform/ingest"
	"github.com/astracat/catform/log"
	"github.com/astracat/catform/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	app := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
		Ingestor:     ingest.NewIngestor(db, ingest.LogHook),
		Aggregator:   analytics.NewAggregator(db),
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
