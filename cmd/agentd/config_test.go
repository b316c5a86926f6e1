package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/agentctl/internal/agentd"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentd.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
socket = "/run/user/1000/agentd.sock"
admin_addr = "127.0.0.1:7070"
admin_token = "dev-token"
cors_origins = ["http://localhost:5173", "  ", "http://localhost:3000"]
heartbeat_interval = "5s"
max_payload_bytes = 65536
`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SocketPath != "/run/user/1000/agentd.sock" {
		t.Fatalf("unexpected socket: %q", cfg.SocketPath)
	}
	if cfg.AdminAddr != "127.0.0.1:7070" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminAddr)
	}
	if cfg.AdminToken != "dev-token" {
		t.Fatalf("unexpected admin token: %q", cfg.AdminToken)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("unexpected origins: %+v", cfg.CORSOrigins)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("unexpected heartbeat: %v", cfg.HeartbeatInterval)
	}
	if cfg.Limits.MaxPayloadBytes != 65536 {
		t.Fatalf("unexpected payload ceiling: %d", cfg.Limits.MaxPayloadBytes)
	}
}

func TestLoadServiceConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := agentd.DefaultServiceConfig()
	if cfg.SocketPath != want.SocketPath {
		t.Fatalf("socket default changed: %q", cfg.SocketPath)
	}
	if cfg.AdminAddr != "" {
		t.Fatalf("admin surface on by default: %q", cfg.AdminAddr)
	}
	if cfg.Limits.MaxPayloadBytes != want.Limits.MaxPayloadBytes {
		t.Fatalf("payload default changed: %d", cfg.Limits.MaxPayloadBytes)
	}
}

func TestLoadServiceConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `heartbeat_interval = "abc"`)
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServiceConfigRejectsPayloadOutOfRange(t *testing.T) {
	for _, content := range []string{
		`max_payload_bytes = 0`,
		`max_payload_bytes = -1`,
		`max_payload_bytes = 4294967296`,
	} {
		path := writeConfig(t, content)
		if _, err := loadServiceConfig(path); err == nil {
			t.Fatalf("expected range error for %q", content)
		}
	}
}
