package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
		"RAG_BASE_URL", "SEARCH_ENDPOINT", "SEARCH_API_KEY", "SETTINGS_PATH",
		"LOG_DIR", "LOG_MAX_FILES", "CORS_ORIGINS", "DEBUG",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8000" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.LLMBaseURL != "http://localhost:8080/v1" {
		t.Errorf("llm base url = %q", cfg.LLMBaseURL)
	}
	if cfg.SettingsPath != "settings.json" {
		t.Errorf("settings path = %q", cfg.SettingsPath)
	}
	if cfg.LogMaxFiles != 5 {
		t.Errorf("log max files = %d", cfg.LogMaxFiles)
	}
	if !cfg.Debug {
		t.Error("debug should default on outside prod")
	}
}

func TestLoadProdDisablesDebug(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("DEBUG", "")

	cfg := Load()
	if cfg.Debug {
		t.Error("debug must default off in prod")
	}

	t.Setenv("DEBUG", "true")
	if !Load().Debug {
		t.Error("explicit DEBUG=true must win in prod")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LLM_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("LOG_MAX_FILES", "12")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.LLMBaseURL != "http://localhost:11434/v1" {
		t.Errorf("llm base url = %q", cfg.LLMBaseURL)
	}
	if cfg.LogMaxFiles != 12 {
		t.Errorf("log max files = %d", cfg.LogMaxFiles)
	}
}

func TestLoadBadIntKeepsDefault(t *testing.T) {
	t.Setenv("LOG_MAX_FILES", "not-a-number")
	if got := Load().LogMaxFiles; got != 5 {
		t.Errorf("log max files = %d, want default 5", got)
	}
}
