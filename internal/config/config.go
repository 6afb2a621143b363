package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Qdrant      QdrantConfig      `mapstructure:"qdrant"`
	OCR         OCRConfig         `mapstructure:"ocr"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	Path            string        `mapstructure:"path"`   // sqlite only
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
// Returns:
//   - string: DSN suitable for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type        string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
	PublicURL   string `mapstructure:"public_url"`
	CacheBucket string `mapstructure:"cache_bucket"` // intermediate pipeline artifacts
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

type OCRConfig struct {
	Endpoint     string            `mapstructure:"endpoint"`
	APIKey       string            `mapstructure:"api_key"`
	Strategy     string            `mapstructure:"strategy"` // fast, balanced, accurate
	Models       map[string]string `mapstructure:"models"`   // strategy -> model name
	MaxRetries   int               `mapstructure:"max_retries"`
	BaseDelay    time.Duration     `mapstructure:"base_delay"`
	PollInterval time.Duration     `mapstructure:"poll_interval"`
	PollTimeout  time.Duration     `mapstructure:"poll_timeout"`
}

type EmbeddingConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

type BillingConfig struct {
	LedgerURL     string `mapstructure:"ledger_url"`
	APIKey        string `mapstructure:"api_key"`
	BaseCost      int64  `mapstructure:"base_cost"`
	OCRPageCost   int64  `mapstructure:"ocr_page_cost"`
	ChunkingCost  int64  `mapstructure:"chunking_cost"`
	EmbeddingCost int64  `mapstructure:"embedding_cost"`
}

type RegistryConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type PipelineConfig struct {
	MaxTokensPerChunk int `mapstructure:"max_tokens_per_chunk"`
	ChunkOverlap      int `mapstructure:"chunk_overlap"`
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
}

type MaintenanceConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CleanInterval time.Duration `mapstructure:"clean_interval"`
	CleanBatch    int           `mapstructure:"clean_batch"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Environment string `mapstructure:"environment"`
	File        string `mapstructure:"file"`
	FileOnly    bool   `mapstructure:"file_only"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("ocr.endpoint", "OCR_ENDPOINT")
	v.BindEnv("ocr.api_key", "OCR_API_KEY")
	v.BindEnv("embedding.endpoint", "EMBEDDING_ENDPOINT")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("billing.ledger_url", "BILLING_LEDGER_URL")
	v.BindEnv("billing.api_key", "BILLING_API_KEY")
	v.BindEnv("registry.base_url", "REGISTRY_BASE_URL")
	v.BindEnv("registry.api_key", "REGISTRY_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/docindex.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "docindex")
	v.SetDefault("database.name", "docindex")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "s3compatible")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "documents")
	v.SetDefault("storage.cache_bucket", "rag-cache")

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("qdrant.collection", "document_embeddings")

	v.SetDefault("ocr.strategy", "balanced")
	v.SetDefault("ocr.models", map[string]string{
		"fast":     "prebuilt-read",
		"balanced": "prebuilt-layout",
		"accurate": "prebuilt-document",
	})
	v.SetDefault("ocr.max_retries", 3)
	v.SetDefault("ocr.base_delay", time.Second)
	v.SetDefault("ocr.poll_interval", 2*time.Second)
	v.SetDefault("ocr.poll_timeout", 5*time.Minute)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("billing.base_cost", 10)
	v.SetDefault("billing.ocr_page_cost", 5)
	v.SetDefault("billing.chunking_cost", 5)
	v.SetDefault("billing.embedding_cost", 2)

	v.SetDefault("pipeline.max_tokens_per_chunk", 400)
	v.SetDefault("pipeline.chunk_overlap", 0)
	v.SetDefault("pipeline.max_concurrent_jobs", 4)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.cache_ttl", 24*time.Hour)
	v.SetDefault("maintenance.clean_interval", time.Hour)
	v.SetDefault("maintenance.clean_batch", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
}
