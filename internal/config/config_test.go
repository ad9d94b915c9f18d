package config

import (
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"IRIS_BASE_URL", "IRIS_WS_URL", "BOT_PREFIX", "X_USER_ID", "X_USER_EMAIL", "X_SESSION_ID",
	"EGRESS_MODE", "EGRESS_DRYRUN", "REDIS_URL", "MESSAGES_DIR", "ALLOWED_ROOMS",
	"WORLD_PRIMARY_BASE_URL", "WORLD_FALLBACK_BASE_URL", "WORLD_FETCH_TIMEOUT_SEC", "IMAGE_MAX_BYTES",
}

func setRequired(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	t.Setenv("IRIS_BASE_URL", "http://iris:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris:3000/ws")
	t.Setenv("X_SESSION_ID", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotPrefix != "?" {
		t.Fatalf("prefix = %q", cfg.BotPrefix)
	}
	if cfg.EgressMode != "http" || cfg.EgressDryRun {
		t.Fatalf("egress = %q dryrun=%v", cfg.EgressMode, cfg.EgressDryRun)
	}
	if cfg.WorldFetchTimeout != 15*time.Second {
		t.Fatalf("timeout = %s", cfg.WorldFetchTimeout)
	}
	if cfg.ImageMaxBytes != 0 {
		t.Fatalf("downscaling must be off by default, image max = %d", cfg.ImageMaxBytes)
	}
	if len(cfg.AllowedRooms) != 0 {
		t.Fatalf("rooms = %v", cfg.AllowedRooms)
	}
}

func TestLoadRequiredKeys(t *testing.T) {
	for _, key := range []string{"IRIS_BASE_URL", "IRIS_WS_URL", "X_SESSION_ID"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_PREFIX", "!")
	t.Setenv("EGRESS_MODE", "AUTO")
	t.Setenv("EGRESS_DRYRUN", "true")
	t.Setenv("ALLOWED_ROOMS", " a , ,b")
	t.Setenv("WORLD_FETCH_TIMEOUT_SEC", "5")
	t.Setenv("WORLD_PRIMARY_BASE_URL", "http://cdn/")
	t.Setenv("IMAGE_MAX_BYTES", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotPrefix != "!" || cfg.EgressMode != "auto" || !cfg.EgressDryRun {
		t.Fatalf("unexpected %+v", cfg)
	}
	if len(cfg.AllowedRooms) != 2 || cfg.AllowedRooms[0] != "a" || cfg.AllowedRooms[1] != "b" {
		t.Fatalf("rooms = %v", cfg.AllowedRooms)
	}
	if cfg.WorldFetchTimeout != 5*time.Second || cfg.WorldPrimaryBaseURL != "http://cdn/" {
		t.Fatalf("world settings not applied: %+v", cfg)
	}
	if cfg.ImageMaxBytes != DefaultImageMaxBytes {
		t.Fatalf("invalid IMAGE_MAX_BYTES should keep default, got %d", cfg.ImageMaxBytes)
	}
}

func TestLoadImageMaxBytes(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", DefaultImageMaxBytes},
		{"524288", 524288},
		{"0", 0},
		{"-1", DefaultImageMaxBytes},
	}
	for _, tc := range cases {
		setRequired(t)
		t.Setenv("IMAGE_MAX_BYTES", tc.raw)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load(%q): %v", tc.raw, err)
		}
		if cfg.ImageMaxBytes != tc.want {
			t.Fatalf("IMAGE_MAX_BYTES=%q: got %d, want %d", tc.raw, cfg.ImageMaxBytes, tc.want)
		}
	}
}

func TestLoadRejectsUnknownEgressMode(t *testing.T) {
	setRequired(t)
	t.Setenv("EGRESS_MODE", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHeadersSkipsEmpty(t *testing.T) {
	c := &AppConfig{XSessionID: "s", XUserID: ""}
	h := c.Headers()
	if len(h) != 1 || h["X-Session-Id"] != "s" {
		t.Fatalf("headers = %v", h)
	}
}
