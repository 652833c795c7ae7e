package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SarajZimba/chatbot-llm/internal/api"
	"github.com/SarajZimba/chatbot-llm/internal/config"
	"github.com/SarajZimba/chatbot-llm/internal/core"
	"github.com/SarajZimba/chatbot-llm/internal/llm"
	"github.com/SarajZimba/chatbot-llm/internal/ocr"
	"github.com/SarajZimba/chatbot-llm/internal/session"
	"github.com/SarajZimba/chatbot-llm/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Pick the LLM backend
	embedder, generator, closeLLM, err := buildLLM()
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	defer closeLLM()

	// Slot sessions: Redis when configured, in-process otherwise
	var sessions session.Store
	if config.AppConfig.RedisAddr != "" {
		redisStore, err := session.NewRedisStore(config.AppConfig.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", config.AppConfig.RedisAddr, err)
		}
		sessions = redisStore
		log.Printf("Slot sessions stored in Redis at %s", config.AppConfig.RedisAddr)
	} else {
		sessions = session.NewMemoryStore()
		log.Println("Slot sessions stored in process memory")
	}

	// Initialize services
	ragService := core.NewRAGService(dbStore, embedder, generator, core.RAGConfig{
		TopK:         config.AppConfig.TopKChunks,
		ChunkSize:    config.AppConfig.ChunkSize,
		ChunkOverlap: config.AppConfig.ChunkOverlap,
	})
	commandService := core.NewCommandService(dbStore, sessions, ragService)
	menuService := core.NewMenuService(config.AppConfig.CatalogURL, generator)
	imageService := core.NewImageService(dbStore, ocr.NewCommand(config.AppConfig.OCRCommand), ragService)

	// Background expiry of unscoped documents and OCR records
	reaper := core.NewExpiryReaper(dbStore,
		time.Duration(config.AppConfig.SweepMinutes)*time.Minute,
		time.Duration(config.AppConfig.RetentionMinutes)*time.Minute,
	)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go reaper.Run(reaperCtx)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, ragService, commandService, menuService, imageService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopReaper()

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// buildLLM constructs the configured Embedder/Generator pair and returns a
// close function for the providers that hold connections.
func buildLLM() (core.Embedder, core.Generator, func(), error) {
	timeout := time.Duration(config.AppConfig.GenerationTimeout) * time.Second

	switch config.AppConfig.LLMProvider {
	case "gemini":
		gemini, err := llm.NewGemini(context.Background(), llm.GeminiConfig{
			APIKey:  config.AppConfig.GeminiAPIKey,
			Timeout: timeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Println("Using Gemini LLM provider")
		return gemini, gemini, gemini.Close, nil
	case "ollama":
		ollama := llm.NewOllama(llm.OllamaConfig{
			Path:           config.AppConfig.OllamaPath,
			Model:          config.AppConfig.OllamaModel,
			Host:           config.AppConfig.OllamaHost,
			EmbeddingModel: config.AppConfig.EmbeddingModel,
			Timeout:        timeout,
		})
		log.Printf("Using Ollama LLM provider (model %s)", config.AppConfig.OllamaModel)
		return ollama, ollama, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", config.AppConfig.LLMProvider)
	}
}
