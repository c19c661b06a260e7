package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	RAG       RAGConfig
	Vector    VectorConfig
	Report    ReportConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      int
	WriteTimeout     int
	BodyLimit        int
	MaxQuestionChars int
	AllowedOrigins   string
	Development      bool
}

type StorageConfig struct {
	DocumentsDir string
	DataDir      string
	IndexPath    string
	DatabasePath string
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	BatchSize  int
	TimeoutSec int
}

type RAGConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	MaxContextChars int
}

type VectorConfig struct {
	Backend string
	Milvus  MilvusConfig
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
}

type ReportConfig struct {
	RecentLimit       int
	MinAnomalySamples int
	TrendBaseline     string
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/factorymind")

	viper.SetEnvPrefix("FACTORYMIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(cfg *Config) error {
	if cfg.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunkSize must be positive, got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("rag.chunkOverlap must be in [0, chunkSize), got %d", cfg.RAG.ChunkOverlap)
	}
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Vector.Backend != "local" && cfg.Vector.Backend != "milvus" {
		return fmt.Errorf("vector.backend must be local or milvus, got %q", cfg.Vector.Backend)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 52428800)
	viper.SetDefault("server.maxQuestionChars", 5000)
	viper.SetDefault("server.allowedOrigins", "*")
	viper.SetDefault("server.development", false)

	viper.SetDefault("storage.documentsDir", "./data/documents")
	viper.SetDefault("storage.dataDir", "./data/datasets")
	viper.SetDefault("storage.indexPath", "./data/index/chunks.idx")
	viper.SetDefault("storage.databasePath", "./data/factorymind.db")

	viper.SetDefault("llm.apiKey", "")
	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", "llama-3.1-70b-versatile")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("embedding.apiKey", "")
	viper.SetDefault("embedding.baseURL", "")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 1536)
	viper.SetDefault("embedding.batchSize", 100)
	viper.SetDefault("embedding.timeoutSec", 30)

	viper.SetDefault("rag.chunkSize", 1000)
	viper.SetDefault("rag.chunkOverlap", 200)
	viper.SetDefault("rag.topK", 4)
	viper.SetDefault("rag.maxContextChars", 8000)

	viper.SetDefault("vector.backend", "local")
	viper.SetDefault("vector.milvus.endpoint", "localhost:19530")
	viper.SetDefault("vector.milvus.collectionName", "factorymind_chunks")

	viper.SetDefault("report.recentLimit", 50)
	viper.SetDefault("report.minAnomalySamples", 4)
	viper.SetDefault("report.trendBaseline", "previous")

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
