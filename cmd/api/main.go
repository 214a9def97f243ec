package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tiergate.org/internal/config"
	"tiergate.org/internal/directory/pg"
	"tiergate.org/internal/groups"
	"tiergate.org/internal/httpapi"
	"tiergate.org/internal/obs"
	"tiergate.org/internal/profile"
	"tiergate.org/internal/signup"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("missing TIERGATE_PG_DSN")
	}

	dir, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dir.Close()
	db := dir.DB()

	api := httpapi.New(
		httpapi.ReadyProbe{DB: db},
		version,
		buildServices(dir, db),
		httpapi.Options{
			WebhookSecret: cfg.WebhookSecret,
			RequireAdmin:  cfg.RequireAdmin,
			RateBurst:     cfg.RateBurst,
			RatePerSec:    cfg.RatePerSec,
		},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tiergate-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func buildServices(dir *pg.Store, db *sql.DB) httpapi.Services {
	profiles := profile.NewPGStore(db)
	synchronizer := profile.NewSynchronizer(profiles)

	return httpapi.Services{
		Linker:    signup.NewLinker(dir, synchronizer),
		Confirmer: signup.NewPostConfirmation(synchronizer),
		Tiers:     groups.NewUpdater(groups.NewReconciler(dir), profiles),
		Profiles:  profiles,
	}
}
