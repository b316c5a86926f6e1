package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/agentctl/internal/agentd"
)

// agentd config.toml key mapping to daemon runtime settings.
type fileConfig struct {
	Socket            string   `toml:"socket"`
	AdminAddr         string   `toml:"admin_addr"`
	AdminToken        string   `toml:"admin_token"`
	CORSOrigins       []string `toml:"cors_origins"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	MaxPayloadBytes   int64    `toml:"max_payload_bytes"`
}

// loadServiceConfig overlays path onto the defaults. Only keys present
// in the file override.
func loadServiceConfig(path string) (agentd.ServiceConfig, error) {
	cfg := agentd.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return agentd.ServiceConfig{}, fmt.Errorf("load agentd config: %w", err)
	}

	if meta.IsDefined("socket") {
		cfg.SocketPath = strings.TrimSpace(raw.Socket)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return agentd.ServiceConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		if d <= 0 {
			return agentd.ServiceConfig{}, fmt.Errorf("heartbeat_interval %v must be positive", d)
		}
		cfg.HeartbeatInterval = d
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return agentd.ServiceConfig{}, fmt.Errorf("max_payload_bytes %d out of range", raw.MaxPayloadBytes)
		}
		cfg.Limits.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
