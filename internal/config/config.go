package config // package config loads console configuration from the environment and an optional .env file

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env           string // application environment (dev, prod)
	Port          string // local console API port
	LogLevel      string // debug, info, warn, error
	APIBaseURL    string // backend REST base URL
	SocketURL     string // push channel URL for the websocket transport
	Transport     string // websocket, amqp or nats
	AuthToken     string // bearer token; may be empty when a persisted token exists
	LoginEmail    string // logs in at start when no token is available
	LoginPassword string
	JWTSecret     string // verifies tokens when set; empty decodes without verification
	OAuthClientID string // forwarded to the backend on OAuth login
	ImageURL      string // image host upload endpoint
	ImagePreset   string // unsigned upload preset for the image host
	Theme         string // UI theme preference (light, dark)

	PersistEnabled   bool          // keep snapshots and prefs in MySQL
	PersistRetention time.Duration // snapshots older than this are pruned at start; 0 keeps all
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
}

// Load reads an optional .env file (path from ENV_FILE, default ".env") and
// then the environment. Missing required variables are reported together.
func Load() (Config, error) {
	envFile := envStr("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8089"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		APIBaseURL:     strings.TrimRight(must("API_BASE_URL"), "/"),
		Transport:      strings.ToLower(envStr("PUSH_TRANSPORT", "websocket")),
		AuthToken:      os.Getenv("AUTH_TOKEN"),
		LoginEmail:     os.Getenv("LOGIN_EMAIL"),
		LoginPassword:  os.Getenv("LOGIN_PASSWORD"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OAuthClientID:  os.Getenv("OAUTH_CLIENT_ID"),
		ImageURL:       os.Getenv("IMAGE_UPLOAD_URL"),
		ImagePreset:    os.Getenv("IMAGE_UPLOAD_PRESET"),
		Theme:          envStr("THEME", "light"),
		PersistEnabled: envBool("PERSIST_ENABLED", false),
	}

	switch cfg.Transport {
	case "websocket":
		cfg.SocketURL = must("SOCKET_URL")
	case "amqp", "nats":
		cfg.SocketURL = os.Getenv("SOCKET_URL")
	default:
		return Config{}, fmt.Errorf("unsupported PUSH_TRANSPORT %q", cfg.Transport)
	}

	if cfg.PersistEnabled {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
		cfg.PersistRetention = envDur("PERSIST_RETENTION", 30*24*time.Hour)
	} else if cfg.AuthToken == "" && cfg.LoginEmail == "" {
		// without persistence the token can only come from the environment
		missing = append(missing, "AUTH_TOKEN")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
