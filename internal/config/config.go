package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	WSURL      string `yaml:"ws_url"`
	APIKey     string `yaml:"api_key"`
	PlayerName string `yaml:"player_name"`
	SessionID  string `yaml:"session_id"`

	PingInterval      time.Duration `yaml:"ping_interval"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`

	Autoplay        bool          `yaml:"autoplay"`
	StockfishPath   string        `yaml:"stockfish_path"`
	EngineMoveTime  time.Duration `yaml:"engine_movetime"`
	TournamentOrder bool          `yaml:"tournament_order"`

	RedisURL         string `yaml:"redis_url"`
	DatabaseURL      string `yaml:"database_url"`
	NotifyWebhookURL string `yaml:"notify_webhook_url"`

	RenderDir   string `yaml:"render_dir"`
	MessagesDir string `yaml:"messages_dir"`
}

func Defaults() *AppConfig {
	return &AppConfig{
		WSURL:             "ws://localhost:9001",
		PingInterval:      30 * time.Second,
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		EngineMoveTime:    500 * time.Millisecond,
	}
}

// Load layers defaults, the YAML file named by KATA_CONFIG_FILE and the
// environment (including a .env file in the working directory).
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("KATA_CONFIG_FILE")); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the keys present in a YAML file.
func (c *AppConfig) MergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays non-empty environment values.
func (c *AppConfig) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("KATA_WS_URL", &c.WSURL)
	str("KATA_API_KEY", &c.APIKey)
	str("KATA_PLAYER_NAME", &c.PlayerName)
	str("KATA_SESSION_ID", &c.SessionID)
	str("STOCKFISH_PATH", &c.StockfishPath)
	str("REDIS_URL", &c.RedisURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("NOTIFY_WEBHOOK_URL", &c.NotifyWebhookURL)
	str("KATA_RENDER_DIR", &c.RenderDir)
	str("KATA_MESSAGES_DIR", &c.MessagesDir)

	if v := strings.TrimSpace(getenv("KATA_PING_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KATA_PING_INTERVAL: %w", err)
		}
		c.PingInterval = d
	}
	if v := strings.TrimSpace(getenv("KATA_RECONNECT_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KATA_RECONNECT_DELAY: %w", err)
		}
		c.ReconnectDelay = d
	}
	if v := strings.TrimSpace(getenv("KATA_RECONNECT_ATTEMPTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KATA_RECONNECT_ATTEMPTS: %w", err)
		}
		c.ReconnectAttempts = n
	}
	if v := strings.TrimSpace(getenv("KATA_ENGINE_MOVETIME_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KATA_ENGINE_MOVETIME_MS: %w", err)
		}
		c.EngineMoveTime = time.Duration(n) * time.Millisecond
	}
	if v := strings.TrimSpace(getenv("KATA_AUTOPLAY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Autoplay = b
		}
	}
	if v := strings.TrimSpace(getenv("KATA_TOURNAMENT_ORDER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TournamentOrder = b
		}
	}
	return nil
}

func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.WSURL)
	if err != nil {
		return fmt.Errorf("ws url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("ws url %q: scheme must be ws or wss", c.WSURL)
	}
	if c.PingInterval <= 0 {
		return errors.New("ping interval must be positive")
	}
	if c.ReconnectAttempts < 0 {
		return errors.New("reconnect attempts must be >= 0")
	}
	if c.ReconnectAttempts > 0 && c.ReconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	if c.EngineMoveTime <= 0 {
		return errors.New("engine movetime must be positive")
	}
	if c.NotifyWebhookURL != "" {
		wu, err := url.Parse(c.NotifyWebhookURL)
		if err != nil || (wu.Scheme != "http" && wu.Scheme != "https") {
			return fmt.Errorf("notify webhook url %q: scheme must be http or https", c.NotifyWebhookURL)
		}
	}
	return nil
}

// Headers returns the handshake headers sent with every websocket dial.
func (c *AppConfig) Headers() map[string]string {
	h := map[string]string{}
	if c.SessionID != "" {
		h["X-Session-Id"] = c.SessionID
	}
	return h
}
