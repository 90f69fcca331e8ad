package translate

import (
	"log/slog"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "HOOKWATCH_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewTranslator creates a translator based on the HOOKWATCH_MODE environment
// variable. It returns nil when no endpoint is configured outside mock mode.
func NewTranslator(baseURL, apiKey, model string, timeout time.Duration) Translator {
	if os.Getenv(EnvMode) == ModeMock {
		slog.Info("HOOKWATCH_MODE=MOCK detected, using mock translator")
		return NewMockClient()
	}
	if baseURL == "" {
		return nil
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
