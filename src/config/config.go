// Package config loads TunnelForge's environment-driven configuration
// at startup: plain os.Getenv-with-defaults, no config file or
// third-party config library.
package config

import (
	"os"
	"strconv"
	"strings"
)

// AuthMode selects how the HTTP layer validates a caller.
type AuthMode string

const (
	AuthModeOS   AuthMode = "os"
	AuthModeNone AuthMode = "none"
)

// Config is the fully-resolved, immutable configuration for one
// server process.
type Config struct {
	Port             int
	ControlRoot      string
	AllowedOrigins   []string
	AuthMode         AuthMode
	LocalBypassToken string
	TunnelEnabled    bool
	IPCSocketMode    os.FileMode
}

const defaultPort = 4020

// Load reads configuration from the environment, applying the
// documented defaults for anything absent.
func Load() Config {
	return Config{
		Port:             envInt("TUNNELFORGE_PORT", defaultPort),
		ControlRoot:      envString("TUNNELFORGE_CONTROL_ROOT", defaultControlRoot()),
		AllowedOrigins:   envList("TUNNELFORGE_ALLOWED_ORIGINS", []string{"http://localhost"}),
		AuthMode:         AuthMode(envString("TUNNELFORGE_AUTH_MODE", string(AuthModeOS))),
		LocalBypassToken: envString("TUNNELFORGE_LOCAL_BYPASS_TOKEN", ""),
		TunnelEnabled:    envBool("TUNNELFORGE_TUNNEL_ENABLED", false),
		IPCSocketMode:    0o600,
	}
}

func defaultControlRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.tunnelforge"
	}
	return "/tmp/.tunnelforge"
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
