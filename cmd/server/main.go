package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"idwallet/internal/audit"
	authservice "idwallet/internal/auth/service"
	authstore "idwallet/internal/auth/store"
	"idwallet/internal/dispatch"
	jwttoken "idwallet/internal/jwt_token"
	"idwallet/internal/platform/config"
	"idwallet/internal/platform/httpserver"
	"idwallet/internal/platform/logger"
	"idwallet/internal/platform/metrics"
	"idwallet/internal/platform/postgres"
	redisplatform "idwallet/internal/platform/redis"
	httptransport "idwallet/internal/transport/http"
	tcptransport "idwallet/internal/transport/tcp"
	"idwallet/internal/wallet/crypto"
	walletservice "idwallet/internal/wallet/service"
	walletstore "idwallet/internal/wallet/store"
)

const tokenIssuer = "idwallet"

// main wires stores, services, and both transports, then runs everything
// under one errgroup so any fatal component takes the process down cleanly.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	pool, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Each store falls back to its in-memory variant when the backing
	// system is not configured, so a bare process is still fully usable.
	var users authstore.UserStore = authstore.NewInMemoryUserStore()
	var records walletstore.RecordStore = walletstore.NewInMemoryRecordStore()
	if pool != nil {
		users = authstore.NewPostgresUserStore(pool)
		records = walletstore.NewPostgresRecordStore(pool)
	}
	var sessions authstore.SessionStore = authstore.NewInMemorySessionStore()
	if redisClient != nil {
		sessions = authstore.NewRedisSessionStore(redisClient.Client)
	}

	inbox := make(chan audit.Event, 256)
	auditStore := audit.NewInMemoryStore()
	auditWorker := audit.NewWorker(auditStore, inbox, log)
	publisher := audit.NewPublisher(inbox, log)

	sealer, err := crypto.NewSealer(cfg.RecordKey)
	if err != nil {
		log.Error("invalid record key", "error", err)
		os.Exit(1)
	}

	auth := authservice.New(
		users,
		sessions,
		jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer),
		publisher,
		m,
		log,
		cfg.SessionTTL,
		cfg.SweepInterval,
	)
	wallet := walletservice.New(users, records, sealer, publisher, log)
	dispatcher := dispatch.New(auth, wallet, publisher, m, log, "stream")

	checks := make(map[string]httptransport.HealthChecker)
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	handler := httptransport.NewHandler(auth, dispatcher, auditStore, m, checks, log)
	srv := httpserver.New(cfg.HTTPAddr, httptransport.NewRouter(handler))

	streamServer := tcptransport.NewServer(tcptransport.Config{
		Addr:           cfg.TCPAddr,
		TLSCertFile:    cfg.TLSCertFile,
		TLSKeyFile:     cfg.TLSKeyFile,
		Terminator:     cfg.Terminator,
		MaxFrameBuffer: cfg.MaxFrameBuffer,
		ReadTimeout:    cfg.ReadTimeout,
	}, dispatcher, m, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return auditWorker.Run(ctx) })
	g.Go(func() error { return auth.Run(ctx) })
	g.Go(func() error { return streamServer.Run(ctx) })
	g.Go(func() error {
		log.Info("http transport listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
