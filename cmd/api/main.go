package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"hashvest.io/internal/auth"
	"hashvest.io/internal/config"
	"hashvest.io/internal/httpapi"
	"hashvest.io/internal/obs"
	"hashvest.io/internal/session"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("HASHVEST_CONFIG"), "Path to YAML config (optional)")
	flag.Parse()

	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := sql.Open("pgx", cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(cfg.Storage.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Storage.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Storage.ConnMaxLifetime)
	defer db.Close()

	var sessions session.Store
	var redisSessions *session.Redis
	switch cfg.Sessions.Kind {
	case "redis":
		redisSessions = session.NewRedis(cfg.Sessions.RedisAddr, cfg.Sessions.RedisDB)
		sessions = redisSessions
	default:
		sessions = session.NewMemory(0)
	}

	store := auth.NewPGStore(db)
	svc, err := auth.NewService(store, auth.TokenConfig{
		Keys: auth.Keys{
			User:  []byte(cfg.Auth.UserSecret),
			Admin: []byte(cfg.Auth.AdminSecret),
		},
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	},
		auth.WithSessions(sessions),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api, err := httpapi.New(svc, store, httpapi.ReadyProbe{DB: db}, version, httpapi.Options{
		CORSOrigin:          cfg.Server.CORSOrigin,
		RequestsPerMinute:   cfg.Rate.RequestsPerMinute,
		CredentialPerMinute: cfg.Rate.CredentialPerMinute,
	})
	if err != nil {
		log.Fatalf("http api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting hashvest-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if redisSessions != nil {
		_ = redisSessions.Close()
	}
	log.Println("Stopped")
}
