package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPrefix        = "?"
	DefaultFetchTimeout  = 15 * time.Second
	DefaultImageMaxBytes = 0
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	EgressMode   string
	EgressDryRun bool

	RedisURL    string
	MessagesDir string

	AllowedRooms []string

	WorldPrimaryBaseURL  string
	WorldFallbackBaseURL string
	WorldFetchTimeout    time.Duration
	ImageMaxBytes        int
}

// Headers is the Iris auth header set; empty values are left out.
func (c *AppConfig) Headers() map[string]string {
	m := map[string]string{}
	if c.XUserID != "" {
		m["X-User-Id"] = c.XUserID
	}
	if c.XUserEmail != "" {
		m["X-User-Email"] = c.XUserEmail
	}
	if c.XSessionID != "" {
		m["X-Session-Id"] = c.XSessionID
	}
	return m
}

// Load reads the process environment, seeded from ./.env when present.
// Variables already set in the environment win over the file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{
		BotPrefix:         DefaultPrefix,
		EgressMode:        "http",
		WorldFetchTimeout: DefaultFetchTimeout,
		ImageMaxBytes:     DefaultImageMaxBytes,
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	if v := strings.TrimSpace(os.Getenv("BOT_PREFIX")); v != "" {
		cfg.BotPrefix = v
	}

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v != "" {
		switch v {
		case "http", "ws", "auto":
			cfg.EgressMode = v
		default:
			return nil, fmt.Errorf("EGRESS_MODE must be http, ws or auto, got %q", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("EGRESS_DRYRUN")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.EgressDryRun = b
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedRooms = append(cfg.AllowedRooms, s)
			}
		}
	}

	cfg.WorldPrimaryBaseURL = strings.TrimSpace(os.Getenv("WORLD_PRIMARY_BASE_URL"))
	cfg.WorldFallbackBaseURL = strings.TrimSpace(os.Getenv("WORLD_FALLBACK_BASE_URL"))
	if v := strings.TrimSpace(os.Getenv("WORLD_FETCH_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorldFetchTimeout = time.Duration(n) * time.Second
		}
	}
	// 0 sends images as fetched
	if v := strings.TrimSpace(os.Getenv("IMAGE_MAX_BYTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ImageMaxBytes = n
		}
	}

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.XSessionID == "" {
		return nil, errors.New("X_SESSION_ID is required")
	}

	return cfg, nil
}
