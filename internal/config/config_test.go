package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHAT_CONTEXT_WINDOW_SIZE", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 20, cfg.ChatContextWindowSize)
	assert.Equal(t, 50, cfg.DefaultMessageQuota)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "chat_titles", cfg.RabbitQueue)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoad_ClampsWindowAndConcurrency(t *testing.T) {
	t.Setenv("CHAT_CONTEXT_WINDOW_SIZE", "500")
	t.Setenv("WORKER_CONCURRENCY", "80")
	t.Setenv("GROQ_API_KEY", "  gsk-test  ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.ChatContextWindowSize)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, "gsk-test", cfg.GroqAPIKey)
}
