package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Elasticsearch ElasticsearchConfig
	StepFunctions StepFunctionsConfig
	Valkey        ValkeyConfig
	MinIO         MinIOConfig
	Auth          AuthConfig
	Sync          SyncConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

type StepFunctionsConfig struct {
	Region   string
	Endpoint string // SFN_ENDPOINT (for LocalStack compatibility)
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AuthConfig struct {
	Enabled   bool
	IssuerURL string
	Audience  string
}

// SyncConfig bounds the incremental sync engine.
type SyncConfig struct {
	IndexName       string
	WatermarkIndex  string
	Stream          string
	PageSize        int
	Overlap         time.Duration
	MaxPerPartition int
	Interval        time.Duration
	LeaseKey        string
	LeaseTTL        time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "execsearch"),
			Password: getEnv("DB_PASSWORD", "execsearch"),
			Name:     getEnv("DB_NAME", "execsearch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: getEnvList("ES_ADDRESSES", "http://localhost:9200"),
			Username:  getEnv("ES_USERNAME", ""),
			Password:  getEnv("ES_PASSWORD", ""),
		},
		StepFunctions: StepFunctionsConfig{
			Region:   getEnv("SFN_REGION", "us-east-1"),
			Endpoint: getEnv("SFN_ENDPOINT", ""),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "execsearch"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "execsearch123"),
			Bucket:    getEnv("MINIO_BUCKET", "execsearch-reports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Auth: AuthConfig{
			Enabled:   getEnvBool("AUTH_ENABLED", false),
			IssuerURL: getEnv("AUTH_ISSUER_URL", ""),
			Audience:  getEnv("AUTH_AUDIENCE", "execsearch"),
		},
		Sync: SyncConfig{
			IndexName:       getEnv("SYNC_INDEX", "executions"),
			WatermarkIndex:  getEnv("SYNC_WATERMARK_INDEX", "executions-sync"),
			Stream:          getEnv("SYNC_STREAM", "executions"),
			PageSize:        getEnvInt("SYNC_PAGE_SIZE", 100),
			Overlap:         getEnvDuration("SYNC_OVERLAP", 5*time.Minute),
			MaxPerPartition: getEnvInt("SYNC_MAX_PER_PARTITION", 10000),
			Interval:        getEnvDuration("SYNC_INTERVAL", time.Minute),
			LeaseKey:        getEnv("SYNC_LEASE_KEY", "execsearch:sync"),
			LeaseTTL:        getEnvDuration("SYNC_LEASE_TTL", 10*time.Minute),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
