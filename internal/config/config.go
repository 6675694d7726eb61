package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAddr is where discussd listens when nothing is configured.
	DefaultAddr = "127.0.0.1:7272"
	// DefaultWatchInterval is the watch command's refresh period.
	DefaultWatchInterval = "5s"
)

// Config represents the application configuration
type Config struct {
	DBPath         string   `yaml:"db_path"`
	DefaultActor   string   `yaml:"default_actor"`
	DaemonURL      string   `yaml:"daemon_url"`
	Token          string   `yaml:"token"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`
	Output         string   `yaml:"output"`
	WatchInterval  string   `yaml:"watch_interval"`
}

// Remote reports whether commands should talk to a daemon instead of the
// local database.
func (c *Config) Remote() bool {
	return c.DaemonURL != ""
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/discuss/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Addr:          DefaultAddr,
		LogLevel:      "info",
		Output:        "table",
		WatchInterval: DefaultWatchInterval,
	}

	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// The YAML file is optional.
	_ = loadYAMLConfig(cfg)

	if dbPath := getEnvOrFile("DISCUSS_DB_PATH", "DISCUSS_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if token := getEnvOrFile("DISCUSS_TOKEN", "DISCUSS_TOKEN_FILE"); token != "" {
		cfg.Token = token
	}
	if actor := os.Getenv("DISCUSS_ACTOR"); actor != "" {
		cfg.DefaultActor = actor
	}
	if url := os.Getenv("DISCUSS_DAEMON_URL"); url != "" {
		cfg.DaemonURL = url
	}
	if addr := os.Getenv("DISCUSS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if logLevel := os.Getenv("DISCUSS_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("DISCUSS_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if interval := os.Getenv("DISCUSS_WATCH_INTERVAL"); interval != "" {
		cfg.WatchInterval = interval
	}
	if origins := os.Getenv("DISCUSS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	if cfg.DBPath == "" {
		if _, err := os.Stat(".discuss/discuss.db"); err == nil {
			cfg.DBPath = ".discuss/discuss.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "discuss", "discuss.db")
		}
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/discuss/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(homeDir, ".config", "discuss", "config.yaml"))
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// GetActorID returns the current actor reference from environment or config.
// Priority: DISCUSS_ACTOR_ID > DISCUSS_ACTOR > config.default_actor
func (c *Config) GetActorID() string {
	if actorID := os.Getenv("DISCUSS_ACTOR_ID"); actorID != "" {
		return actorID
	}
	if actor := os.Getenv("DISCUSS_ACTOR"); actor != "" {
		return actor
	}
	return c.DefaultActor
}
