package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "QUESTIONS_COUNT", "HESITATION_URL", "HESITATION_TIMEOUT", "PRESENCE_TICK", "ARK_MODEL", "ARK_API_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Questions.Count)
	assert.False(t, cfg.Hesitation.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Hesitation.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Presence.TickInterval)
	assert.Equal(t, 15.0, cfg.Presence.SpeechThreshold)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("QUESTIONS_COUNT", "5")
	t.Setenv("HESITATION_URL", "http://hesitation:8000/")
	t.Setenv("HESITATION_TIMEOUT", "12")
	t.Setenv("PRESENCE_TICK", "40ms")
	t.Setenv("ARK_MODEL", "doubao")
	t.Setenv("ARK_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Questions.Count)
	assert.Equal(t, "http://hesitation:8000", cfg.Hesitation.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.Hesitation.Timeout)
	assert.Equal(t, 40*time.Millisecond, cfg.Presence.TickInterval)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"QUESTIONS_COUNT":    "0",
		"QUESTIONS_ADAPTIVE": "maybe",
		"HESITATION_TIMEOUT": "soon",
		"PRESENCE_TICK":      "1ms",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
