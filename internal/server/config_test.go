package server

import (
	"net/http/httptest"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %q", cfg.Port)
	}
	if cfg.DefaultRoom != "main" {
		t.Errorf("Expected default room main, got %q", cfg.DefaultRoom)
	}
	if cfg.HistoryCapacity != 10 {
		t.Errorf("Expected default history capacity 10, got %d", cfg.HistoryCapacity)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("Expected default max message size 512, got %d", cfg.MaxMessageSize)
	}
	if cfg.GuestPrefix != "Guest-" {
		t.Errorf("Expected default guest prefix Guest-, got %q", cfg.GuestPrefix)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("DEFAULT_ROOM", "lobby")
	t.Setenv("HISTORY_CAPACITY", "25")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9999" {
		t.Errorf("Expected port :9999, got %q", cfg.Port)
	}
	if cfg.DefaultRoom != "lobby" {
		t.Errorf("Expected room lobby, got %q", cfg.DefaultRoom)
	}
	if cfg.HistoryCapacity != 25 {
		t.Errorf("Expected history capacity 25, got %d", cfg.HistoryCapacity)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("Expected max message size 1024, got %d", cfg.MaxMessageSize)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("HISTORY_CAPACITY", "not-a-number")
	t.Setenv("MAX_MESSAGE_SIZE", "-5")

	cfg := NewConfigFromEnv()

	if cfg.HistoryCapacity != 10 {
		t.Errorf("Expected fallback history capacity 10, got %d", cfg.HistoryCapacity)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("Expected fallback max message size 512, got %d", cfg.MaxMessageSize)
	}
}

func TestSetConfigSanitizes(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(&Config{
		Port:            "",
		MaxMessageSize:  -1,
		DefaultRoom:     "   ",
		HistoryCapacity: 0,
	})

	cfg := currentConfig()
	if cfg.Port != ":8080" {
		t.Errorf("Expected sanitized port :8080, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("Expected sanitized max message size 512, got %d", cfg.MaxMessageSize)
	}
	if cfg.DefaultRoom != "main" {
		t.Errorf("Expected sanitized default room main, got %q", cfg.DefaultRoom)
	}
	if cfg.HistoryCapacity != 10 {
		t.Errorf("Expected sanitized history capacity 10, got %d", cfg.HistoryCapacity)
	}
}

func TestOriginAllowList(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(&Config{AllowedOrigins: []string{"http://Example.COM"}})

	allowed := httptest.NewRequest("GET", "/ws", nil)
	allowed.Header.Set("Origin", "http://example.com")
	if !isOriginAllowed(allowed) {
		t.Error("Expected normalized origin to be allowed")
	}

	denied := httptest.NewRequest("GET", "/ws", nil)
	denied.Header.Set("Origin", "http://other.example")
	if isOriginAllowed(denied) {
		t.Error("Expected unlisted origin to be denied")
	}

	missing := httptest.NewRequest("GET", "/ws", nil)
	if isOriginAllowed(missing) {
		t.Error("Expected missing origin header to be denied")
	}
}

func TestOriginAllowAll(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://anything.example")
	if !isOriginAllowed(req) {
		t.Error("Expected wildcard configuration to allow any origin")
	}
}

func TestOriginInvalidEntriesDropped(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(&Config{AllowedOrigins: []string{"not a url", "http://good.example"}})

	cfg := currentConfig()
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://good.example" {
		t.Errorf("Unexpected normalized origins: %v", cfg.AllowedOrigins)
	}
}
