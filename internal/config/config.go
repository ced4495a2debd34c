package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// Remote modes understood by the client.
const (
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

// Config holds application configuration from environment.
// Server and client read the same keys; each uses the subset it needs.
type Config struct {
	// remote task API server
	HTTPPort        string
	DatabaseURL     string
	DBPoolSize      int
	RedisURL        string
	RedisPoolSize   int
	CacheTTL        time.Duration
	JWTSecret       string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaPartitions int

	// client
	LocalDBPath     string
	RemoteMode      string
	RemoteURL       string
	RemoteTimeout   time.Duration
	AuthToken       string
	User            string
	SyncInterval    time.Duration
	PushConcurrency int
	ProbeAddr       string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBPoolSize:      getIntEnv("DB_POOL_SIZE", 20),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize:   getIntEnv("REDIS_POOL_SIZE", 50),
		CacheTTL:        time.Duration(getIntEnv("CACHE_TTL_SEC", 300)) * time.Second,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		KafkaBrokers:    getSliceEnv("KAFKA_BROKERS"),
		KafkaTopic:      getEnv("KAFKA_SYNC_TOPIC", "task-sync-requests"),
		KafkaPartitions: getIntEnv("KAFKA_PARTITIONS", 4),

		LocalDBPath:     getEnv("LOCAL_DB_PATH", defaultLocalDBPath()),
		RemoteMode:      getEnv("REMOTE_MODE", RemoteHTTP),
		RemoteURL:       getEnv("REMOTE_URL", "http://localhost:8080"),
		RemoteTimeout:   time.Duration(getIntEnv("REMOTE_TIMEOUT_SEC", 10)) * time.Second,
		AuthToken:       os.Getenv("AUTH_TOKEN"),
		User:            os.Getenv("TASKS_USER"),
		SyncInterval:    time.Duration(getIntEnv("SYNC_INTERVAL_SEC", 900)) * time.Second,
		PushConcurrency: getIntEnv("PUSH_CONCURRENCY", 4),
		ProbeAddr:       os.Getenv("PROBE_ADDR"),
	}
}

// LoadEnvFile reads a .env file and sets env vars (only if not already set).
// A missing file is not an error.
func LoadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = unquote(strings.TrimSpace(val))
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}

func unquote(val string) string {
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			return val[1 : len(val)-1]
		}
	}
	return val
}

func defaultLocalDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tasks.db"
	}
	return home + "/.tasksync/tasks.db"
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// getSliceEnv splits a comma-separated list. An unset key yields nil, which
// disables the feature that depends on it (e.g. Kafka).
func getSliceEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
