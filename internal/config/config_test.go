package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/bbn/internal/models"
)

// clearEnv 清空会影响配置的环境变量
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BBN_CONFIG", "BBN_PROVIDER", "OPENAI_BASE_URL", "BBN_MODEL", "OPENAI_API_KEY",
		"GEMINI_API_KEY", "BBN_MAX_ROUND", "BBN_OUTPUT_DIR", "BBN_INDEX_TYPE",
		"BBN_INDEX_DSN", "BBN_LOG_LEVEL", "BBN_STREAM",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, models.AIProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-4o", cfg.AI.ModelName)
	assert.Equal(t, 10, cfg.Dialogue.MaxRound)
	assert.Equal(t, float32(0), cfg.Dialogue.Temperature)
	assert.Nil(t, cfg.Dialogue.Seed)
	assert.Equal(t, 1, cfg.Workers)
	assert.ErrorIs(t, cfg.Validate(), ErrNoAPIKey)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bbn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  provider: openai
  base_url: http://localhost:8000/v1
  model: qwen2.5
  no_system_role: true
  stream: true
dialogue:
  max_round: 6
  temperature: 0.5
  seed: 7
  sleep_time: 1.5
output:
  dir: /tmp/bbn-out
  index_type: sqlite
workers: 3
json_verdicts: true
`), 0644))

	t.Setenv("BBN_MODEL", "llama3")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/v1", cfg.AI.BaseURL)
	assert.Equal(t, "llama3", cfg.AI.ModelName, "环境变量覆盖配置文件")
	assert.True(t, cfg.AI.NoSystemRole)
	assert.True(t, cfg.AI.Stream)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 6, cfg.Dialogue.MaxRound)
	assert.Equal(t, float32(0.5), cfg.Dialogue.Temperature)
	require.NotNil(t, cfg.Dialogue.Seed)
	assert.Equal(t, 7, *cfg.Dialogue.Seed)
	assert.Equal(t, 1.5, cfg.Dialogue.SleepTime)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.JSONVerdicts)
	assert.NotEmpty(t, cfg.Output.IndexDSN, "sqlite 索引使用默认路径")
	assert.NoError(t, cfg.Validate())
}

func TestLoadGeminiKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("BBN_PROVIDER", "Gemini")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, models.AIProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "g-key", cfg.AI.APIKey)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("BBN_MAX_ROUND", "ten")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("BBN_MAX_ROUND", "")
	t.Setenv("BBN_STREAM", "maybe")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "k"
	cfg.Dialogue.MaxRound = 0
	assert.Error(t, cfg.Validate())

	cfg.Dialogue.MaxRound = 2
	cfg.Dialogue.SleepTime = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BBN_MODEL=from-dotenv\nBBN_LOG_LEVEL=debug\n"), 0644))
	t.Setenv("BBN_LOG_LEVEL", "warn")
	// godotenv 不覆盖已存在的变量，空值需要先移除
	require.NoError(t, os.Unsetenv("BBN_MODEL"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, ".env.local"), envFile))
	assert.Equal(t, "from-dotenv", os.Getenv("BBN_MODEL"))
	assert.Equal(t, "warn", os.Getenv("BBN_LOG_LEVEL"))
	require.NoError(t, os.Unsetenv("BBN_MODEL"))
}

func TestLoadPrompts(t *testing.T) {
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Contains(t, prompts.DoctorSystemPrompt, models.PlaceholderPatientCondition)
	assert.Contains(t, prompts.PatientInitPrompt, models.PlaceholderDoctorResponse)
	assert.Contains(t, prompts.ModeratorPrompt, models.VerdictSummaryKey)

	path := filepath.Join(t.TempDir(), "prompts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"doctor_prompt": "only one"}`), 0644))
	_, err = LoadPrompts(path)
	assert.Error(t, err, "模板不完整")

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
