package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codepair/internal/archive"
	"codepair/internal/config"
	"codepair/internal/db"
	"codepair/internal/ice"
	"codepair/internal/identity"
	myMiddleware "codepair/internal/middleware"
	"codepair/internal/runner"
	"codepair/internal/session"

	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Config & Flags
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Bad configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. ICE servers handed to every joiner
	iceServers, err := ice.Load(cfg.ICEConfig)
	if err != nil {
		log.Fatalf("❌ ICE config: %v", err)
	}
	log.Printf("✅ %d ICE server(s) configured", len(iceServers))

	opts := session.Options{
		RunTimeout: cfg.RunTimeout,
		IceServers: iceServers,
	}

	// 3. Archive (optional)
	var archiveLister session.ArchiveLister
	if cfg.ArchiveDriver != "" {
		database, err := db.NewDatabase(cfg.ArchiveDriver, cfg.ArchiveDSN)
		if err != nil {
			log.Fatalf("❌ Failed to connect to DB: %v", err)
		}
		defer database.Close()
		log.Printf("✅ Connected to archive database (%s)", cfg.ArchiveDriver)

		if err := database.AutoMigrate(); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Database Schema Initialized")

		repo := archive.NewRepository(database.Conn)
		opts.Archiver = repo
		archiveLister = repo
	} else {
		log.Println("⚠️ ARCHIVE_DRIVER not set, dissolved rooms are not archived")
	}

	// 4. Execution sandbox
	switch cfg.Runner {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("✅ Connected to Redis, jobs go to", runner.JobQueue)
		opts.Runner = runner.NewRedisRunner(redisClient, cfg.RunTimeout)
	default:
		opts.Runner = runner.NewHTTPRunner(cfg.RunnerURL, nil)
		log.Println("✅ Code runs forwarded to", cfg.RunnerURL)
	}

	// 5. Auth: without a secret everyone connects anonymously
	var validator myMiddleware.TokenValidator
	if cfg.JWTSecret != "" {
		validator = identity.NewService(cfg.JWTSecret)
	} else {
		log.Println("⚠️ JWT_SECRET not set, websocket connections are unauthenticated")
	}
	authMiddleware := myMiddleware.NewAuthMiddleware(validator)

	// 6. Start the Hub
	hub := session.NewHub(opts)
	go hub.Run(ctx)

	handler := session.NewHandler(hub, archiveLister, cfg.SendBuffer)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler.Routes(authMiddleware),
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 Server starting on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	// Rooms still open at shutdown are archived on the way out.
	hub.Wait()
	log.Println("✅ Hub stopped")
}
