package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.ChatDBPath = "/tmp/chat.db"
	cfg.Generation.Backend = BackendOpenAI
	cfg.Generation.Model = "gpt-4o-mini"
	cfg.Generation.RequestTimeout = Duration{90 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ChatDBPath != "/tmp/chat.db" {
		t.Errorf("ChatDBPath = %q", loaded.ChatDBPath)
	}
	if loaded.Generation.Backend != BackendOpenAI || loaded.Generation.Model != "gpt-4o-mini" {
		t.Errorf("Generation = %+v", loaded.Generation)
	}
	if loaded.Generation.RequestTimeout.Duration != 90*time.Second {
		t.Errorf("RequestTimeout = %v, want 90s", loaded.Generation.RequestTimeout)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestResolveMissingUsesDefaults(t *testing.T) {
	cfg, err := Resolve(filepath.Join(t.TempDir(), "none.toml"), func(string) string { return "" })
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Generation.Backend != BackendGemini {
		t.Errorf("Backend = %q, want gemini", cfg.Generation.Backend)
	}
	if cfg.Generation.SuggestionCount != 3 {
		t.Errorf("SuggestionCount = %d, want 3", cfg.Generation.SuggestionCount)
	}
	if cfg.Generation.Temperature != 0.8 {
		t.Errorf("Temperature = %v, want 0.8", cfg.Generation.Temperature)
	}
	if cfg.ChatDBPath == "" || cfg.ContextDBPath == "" || cfg.SocketPath == "" {
		t.Errorf("paths not defaulted: %+v", cfg)
	}
}

func TestResolveEnvOverrides(t *testing.T) {
	env := map[string]string{
		"IMESSAGE_DB_PATH": "/data/chat.db",
		"CONTEXT_DB_PATH":  "/data/context.db",
		"REPLYKIT_BACKEND": BackendOpenAI,
		"OPENAI_API_KEY":   "sk-test",
		"GEMINI_API_KEY":   "gm-test",
	}
	cfg, err := Resolve(filepath.Join(t.TempDir(), "none.toml"), func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatDBPath != "/data/chat.db" || cfg.ContextDBPath != "/data/context.db" {
		t.Errorf("paths = %q %q", cfg.ChatDBPath, cfg.ContextDBPath)
	}
	if cfg.Generation.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want the OpenAI key for the openai backend", cfg.Generation.APIKey)
	}
}

func TestResolveInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[generation]\nrequest_timeout = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(path, nil); err == nil {
		t.Error("Resolve() expected error for bad duration")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
