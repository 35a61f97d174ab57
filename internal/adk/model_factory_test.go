package adk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/bbn/internal/models"
)

func TestCreateOpenAIModel(t *testing.T) {
	f := NewModelFactory()
	llm, err := f.CreateModel(context.Background(), &models.AIConfig{
		Provider:  models.AIProviderOpenAI,
		APIKey:    "sk-test",
		BaseURL:   "https://example.com/",
		ModelName: "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", llm.Name())
}

func TestCreateModelUnsupported(t *testing.T) {
	_, err := NewModelFactory().CreateModel(context.Background(), &models.AIConfig{Provider: "claude"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestNormalizeOpenAIBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://api.deepseek.com":       "https://api.deepseek.com/v1",
		"https://api.deepseek.com/":      "https://api.deepseek.com/v1",
		"https://host/v1":                "https://host/v1",
		"https://host/compatible/v1/":    "https://host/compatible/v1",
		"https://host/v1/chat-endpoints": "https://host/v1/chat-endpoints",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, normalizeOpenAIBaseURL(in))
		})
	}
}
