package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Gemini   GeminiConfig
	Research ResearchConfig
	Output   OutputConfig
	Log      LogConfig
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Agent   string
}

type ResearchConfig struct {
	// PollInterval is the delay between status checks, in seconds.
	PollInterval int
	// SoftTimeout is a duration string; the local polling budget.
	SoftTimeout string
}

type OutputConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Gemini: GeminiConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Agent:   "deep-research-pro-preview-12-2025",
		},
		Research: ResearchConfig{
			PollInterval: 10,
			SoftTimeout:  "9m",
		},
		Output: OutputConfig{
			Dir: defaultOutputDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend,
// environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.deepr.app) and the
// API key falls back to macOS Keychain. On Linux the backend is a JSON
// file at $XDG_CONFIG_HOME/deepr/config.json and the key falls back to
// a secrets file under $XDG_DATA_HOME/deepr.
//
// Environment variables (DEEPR_*, and GEMINI_API_KEY for the secret)
// override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts platform secret access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for the API key if still empty.
	if cfg.Gemini.APIKey == "" {
		if key, err := kc.Get("deepr", "gemini_api_key"); err == nil && key != "" {
			cfg.Gemini.APIKey = key
		}
	}

	if cfg.Gemini.APIKey == "" {
		msg := "missing required config: Gemini API key. " +
			"Set it via environment variable GEMINI_API_KEY or a .env file" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
