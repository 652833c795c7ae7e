package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	// LLM backend: "ollama" (local process + HTTP embeddings) or "gemini".
	LLMProvider       string
	OllamaPath        string
	OllamaHost        string
	OllamaModel       string
	EmbeddingModel    string
	GeminiAPIKey      string
	GenerationTimeout int // seconds

	// Slot sessions live in Redis when an address is set, in-process otherwise.
	RedisAddr string

	CatalogURL string
	OCRCommand string

	ChunkSize        int
	ChunkOverlap     int
	TopKChunks       int
	RetentionMinutes int
	SweepMinutes     int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		HTTPPort:          getEnv("HTTP_PORT", "8015"),
		DatabaseURL:       getEnv("DATABASE_URL", "chatbot.db"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
		OllamaPath:        getEnv("OLLAMA_PATH", "/usr/local/bin/ollama"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.2:3b"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "all-minilm"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GenerationTimeout: getEnvAsInt("GENERATION_TIMEOUT_SECONDS", 60),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		CatalogURL:        getEnv("CATALOG_URL", "https://dummyjson.com/products"),
		OCRCommand:        getEnv("OCR_COMMAND", ""),
		ChunkSize:         getEnvAsInt("CHUNK_SIZE", 500),
		ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 50),
		TopKChunks:        getEnvAsInt("TOP_K_CHUNKS", 3),
		RetentionMinutes:  getEnvAsInt("DOCUMENT_RETENTION_MINUTES", 30),
		SweepMinutes:      getEnvAsInt("SWEEP_INTERVAL_MINUTES", 5),
	}

	if AppConfig.LLMProvider == "gemini" && AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required when LLM_PROVIDER=gemini")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
