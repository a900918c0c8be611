package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	News     NewsConfig
	Chat     ChatConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	TraceLogPath       string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "none"
	OllamaBaseURL     string
	EmbeddingModel    string
	LLMProvider       string // "ollama", "openai" or "none"
	LLMModel          string
	// LLMBaseURL points the openai provider at any compatible endpoint.
	LLMBaseURL        string
	// LLMCredential names the client credential forwarded to a hosted LLM.
	LLMCredential     string
}

type NewsConfig struct {
	SearchURL string
	Feeds     []string
	CacheTTL  time.Duration
	Results   int
}

type ChatConfig struct {
	// RequiredCredentials are the frame fields every turn must carry.
	RequiredCredentials []string
	HistoryMaxMessages  int
	ContextWindow       int
	SearchLimit         int
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			TraceLogPath:       getEnv("TRACE_LOG_PATH", "logs/trace.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMCredential:     getEnv("LLM_CREDENTIAL", "openai_key"),
		},
		News: NewsConfig{
			SearchURL: getEnv("NEWS_SEARCH_URL", "https://html.duckduckgo.com/html/"),
			Feeds: getEnvAsList("NEWS_FEEDS", []string{
				"https://www.rappler.com/feed/",
				"https://www.philstar.com/rss/headlines",
				"https://newsinfo.inquirer.net/feed",
			}),
			CacheTTL: getEnvAsDuration("NEWS_CACHE_TTL", 30*time.Minute),
			Results:  getEnvAsInt("NEWS_RESULTS", 3),
		},
		Chat: ChatConfig{
			RequiredCredentials: getEnvAsList("REQUIRED_CREDENTIALS", []string{"anthropic_key", "openai_key"}),
			HistoryMaxMessages:  getEnvAsInt("HISTORY_MAX_MESSAGES", 12),
			ContextWindow:       getEnvAsInt("HISTORY_CONTEXT_WINDOW", 8),
			SearchLimit:         getEnvAsInt("CHAT_SEARCH_LIMIT", 100),
		},
		Tracing: TracingConfig{
			Enabled:     getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "floodguard-backend"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30m") or plain seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// getEnvAsList splits a comma separated value. An explicitly empty variable
// yields an empty list.
func getEnvAsList(key string, fallback []string) []string {
	strValue, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
