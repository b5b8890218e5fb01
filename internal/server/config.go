// Package server provides configuration helpers that define runtime
// defaults, sanitization, and environment overrides for the relay service.
package server

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Built-in defaults for the chat core.
const (
	defaultRoomName        = "main"
	defaultHistoryCapacity = 10
	defaultGuestPrefix     = "Guest-"
)

// Config holds the server configuration, covering both the HTTP/WebSocket
// transport and the chat core defaults.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	DefaultRoom     string
	HistoryCapacity int
	GuestPrefix     string
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  512,
		DefaultRoom:     defaultRoomName,
		HistoryCapacity: defaultHistoryCapacity,
		GuestPrefix:     defaultGuestPrefix,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}
	if strings.TrimSpace(cfg.DefaultRoom) == "" {
		cfg.DefaultRoom = defaultRoomName
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = defaultHistoryCapacity
	}
	if cfg.GuestPrefix == "" {
		cfg.GuestPrefix = defaultGuestPrefix
	}

	normalized, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalized

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalized))
	for _, origin := range normalized {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to
// defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitizeConfig(Config{
		Port:            cfg.Port,
		AllowedOrigins:  append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize:  cfg.MaxMessageSize,
		DefaultRoom:     cfg.DefaultRoom,
		HistoryCapacity: cfg.HistoryCapacity,
		GuestPrefix:     cfg.GuestPrefix,
	})
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset or unparseable.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseInt64Value(maxSize, cfg.MaxMessageSize)
	}
	if room := os.Getenv("DEFAULT_ROOM"); strings.TrimSpace(room) != "" {
		cfg.DefaultRoom = strings.TrimSpace(room)
	}
	if capacity := os.Getenv("HISTORY_CAPACITY"); capacity != "" {
		cfg.HistoryCapacity = parseIntValue(capacity, cfg.HistoryCapacity)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
