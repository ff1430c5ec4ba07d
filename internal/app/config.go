package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by Config.StoreBackend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendEKV    = "ekv"
	BackendMemory = "memory"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home         string // state directory, e.g. $HOME/.e2ee
	RelayURL     string // relay base URL, e.g. http://127.0.0.1:8080
	DeviceID     string // this device's peer id on the relay
	StoreBackend string // file, sqlite, redis, ekv or memory
	SQLitePath   string // defaults to <Home>/<DeviceID>.db
	RedisURL     string
	LogLevel     string
	Env          string
	Passphrase   string // seals stored state at rest

	HTTP *http.Client // optional; defaults to a client with a timeout
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func LoadConfig() Config {
	_ = godotenv.Load()

	home := getEnv("E2EE_HOME", "")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(h, ".e2ee")
		} else {
			home = ".e2ee"
		}
	}
	return Config{
		Home:         home,
		RelayURL:     getEnv("E2EE_RELAY_URL", "http://127.0.0.1:8080"),
		DeviceID:     os.Getenv("E2EE_DEVICE"),
		StoreBackend: getEnv("E2EE_STORE", BackendFile),
		SQLitePath:   os.Getenv("E2EE_SQLITE_PATH"),
		RedisURL:     getEnv("E2EE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		LogLevel:     getEnv("E2EE_LOG_LEVEL", "info"),
		Env:          getEnv("ENV", "development"),
		Passphrase:   os.Getenv("E2EE_PASSPHRASE"),
	}
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return errors.New("device id is required (--device or E2EE_DEVICE)")
	}
	if strings.ContainsAny(c.DeviceID, "/\\") {
		return fmt.Errorf("device id %q must not contain path separators", c.DeviceID)
	}
	switch c.StoreBackend {
	case BackendFile, BackendSQLite, BackendEKV:
		if c.Home == "" {
			return errors.New("home directory is required")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis url is required for the redis store")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend != BackendMemory && c.Passphrase == "" {
		return errors.New("passphrase is required (--passphrase or E2EE_PASSPHRASE)")
	}
	return nil
}

// RelayConfig configures the relay server binary.
type RelayConfig struct {
	Addr            string
	Env             string
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadRelayConfig reads the relay settings from the environment, loading a
// .env file first if present.
func LoadRelayConfig() (RelayConfig, error) {
	_ = godotenv.Load()

	cfg := RelayConfig{
		Addr:     getEnv("RELAY_ADDR", ":8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	durations := []struct {
		key  string
		def  time.Duration
		into *time.Duration
	}{
		{"RELAY_READ_TIMEOUT", 15 * time.Second, &cfg.ReadTimeout},
		{"RELAY_WRITE_TIMEOUT", 15 * time.Second, &cfg.WriteTimeout},
		{"RELAY_IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
		{"RELAY_SHUTDOWN_TIMEOUT", 30 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def.String()))
		if err != nil {
			return RelayConfig{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.into = v
	}
	return cfg, cfg.Validate()
}

// Validate reports the first unusable relay setting.
func (c RelayConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("relay listen address is required (RELAY_ADDR)")
	}
	for name, d := range map[string]time.Duration{
		"read timeout":     c.ReadTimeout,
		"write timeout":    c.WriteTimeout,
		"idle timeout":     c.IdleTimeout,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// LogConfig is the subset of Config NewLogger reads.
func (c RelayConfig) LogConfig() Config {
	return Config{Env: c.Env, LogLevel: c.LogLevel}
}

// IsDevelopment returns true if running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// DeviceHome is the per-device state directory under Home.
func (c Config) DeviceHome() string {
	return filepath.Join(c.Home, c.DeviceID)
}

func (c Config) sqlitePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.Home, c.DeviceID+".db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
