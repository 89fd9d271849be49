package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/chat"
	"github.com/bakbak-chat/bakbakgo/internal/config"
	"github.com/bakbak-chat/bakbakgo/internal/database"
	"github.com/bakbak-chat/bakbakgo/internal/handlers"
	"github.com/bakbak-chat/bakbakgo/internal/keys"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/retention"
	"github.com/bakbak-chat/bakbakgo/internal/store"
	"github.com/bakbak-chat/bakbakgo/internal/summary"
	"github.com/bakbak-chat/bakbakgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database, cfg.NodeEnv == "production")
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-migrate schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.ChatPin{},
		&models.Message{},
		&models.MessageReaction{},
		&models.RetentionRecord{},
		&models.IdentityKey{},
		&models.OneTimePreKey{},
		&models.ChatSummary{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	st := store.NewGormStore(db.DB)

	// 4. Realtime hub
	hub := websocket.NewHub(st, st)
	go hub.Run()

	// 5. Domain services; the hub is their event sink
	chatSvc := chat.NewService(st, hub, cfg)
	hub.SetChatService(chatSvc)

	retentionMgr := retention.NewManager(st, hub, cfg)
	keyBroker := keys.NewBroker(st)

	var summarizer summary.Summarizer
	if cfg.Summarizer.Provider == "gemini" && cfg.Summarizer.APIKey != "" {
		gem, err := summary.NewGeminiSummarizer(context.Background(), cfg.Summarizer.APIKey, cfg.Summarizer.Model)
		if err != nil {
			log.Printf("⚠️ Gemini unavailable, falling back to local summarizer: %v", err)
			summarizer = summary.NewLocalSummarizer()
		} else {
			defer gem.Close()
			summarizer = gem
			log.Printf("✅ Summarizer: Gemini (%s)", cfg.Summarizer.Model)
		}
	} else {
		summarizer = summary.NewLocalSummarizer()
		log.Println("✅ Summarizer: local")
	}
	dispatcher := summary.NewDispatcher(st, summarizer, cfg)
	defer dispatcher.Close()

	// 6. Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go retentionMgr.RunSweeper(workerCtx)
	go dispatcher.RunWorker(workerCtx)

	// 7. HTTP router
	router := handlers.NewRouter(hub, chatSvc, retentionMgr, keyBroker, dispatcher, cfg.JWTSecret)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s [env: %s]\n", cfg.Port, cfg.NodeEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("⚠️ Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
