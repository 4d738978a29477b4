// Package config provides runtime configuration values for the server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"

	DefaultMySQLDSN = "root:root@tcp(localhost:3306)/heladeria?parseTime=true"
)

var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Config holds the knobs for the HTTP and gRPC listeners, stores and workers.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	StoreDriver     string
	MySQLDSN        string
	RedisAddr       string // empty disables Redis
	JWTSecret       string
	TokenTTL        time.Duration
	CORSOrigin      string
	WorkerCount     int
	QueueSize       int
	ShutdownTimeout time.Duration
	LogLevel        string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// durenv accepts Go durations ("90s") or plain seconds ("90").
func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// MySQLDSN is the data source name from MYSQL_DSN. Tools that only need
// the database use it instead of Load.
func MySQLDSN() string {
	return getenv("MYSQL_DSN", DefaultMySQLDSN)
}

// Load collects configuration from the environment with defaults.
func Load() (Config, error) {
	c := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":50051"),
		StoreDriver:     getenv("STORE_DRIVER", DriverMySQL),
		MySQLDSN:        MySQLDSN(),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        durenv("TOKEN_TTL", time.Hour),
		CORSOrigin:      getenv("CORS_ORIGIN", "http://localhost:3001"),
		WorkerCount:     atoienv("WORKER_COUNT", 10),
		QueueSize:       atoienv("QUEUE_SIZE", 10000),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 5*time.Second),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}

	if c.JWTSecret == "" {
		return Config{}, ErrMissingSecret
	}
	switch c.StoreDriver {
	case DriverMySQL, DriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER %q: want %s or %s", c.StoreDriver, DriverMySQL, DriverMemory)
	}
	return c, nil
}
