package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/bbn/internal/embed"
	"github.com/run-bigpig/bbn/internal/logger"
	"github.com/run-bigpig/bbn/internal/models"
	"github.com/run-bigpig/bbn/internal/pkg/paths"
)

var log = logger.New("Config")

// ErrNoAPIKey 未配置模型服务的 API Key
var ErrNoAPIKey = errors.New("no API key configured")

// Config 运行配置
type Config struct {
	AI           models.AIConfig       `yaml:"ai"`
	Dialogue     models.DialogueConfig `yaml:"dialogue"`
	Output       OutputConfig          `yaml:"output"`
	InputPath    string                `yaml:"input"`
	PromptsPath  string                `yaml:"prompts"`
	Encoding     string                `yaml:"encoding"` // 输入文件编码，空为 utf-8
	Workers      int                   `yaml:"workers"`
	JSONVerdicts bool                  `yaml:"json_verdicts"`
	LogLevel     string                `yaml:"log_level"`
}

// OutputConfig 输出位置
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	IndexType string `yaml:"index_type"` // sqlite, mysql；空表示不记录索引
	IndexDSN  string `yaml:"index_dsn"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		AI:       models.DefaultAIConfig(),
		Dialogue: models.DefaultDialogueConfig(),
		Output: OutputConfig{
			Dir: "./output",
		},
		Workers:  1,
		LogLevel: "info",
	}
}

// Load 读取配置：默认值 < YAML 文件 < 环境变量
// path 为空时读取 BBN_CONFIG，仍为空则只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BBN_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Debug("loaded config from %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// applyEnv 环境变量优先级高于配置文件
func (c *Config) applyEnv() error {
	if v := os.Getenv("BBN_PROVIDER"); v != "" {
		c.AI.Provider = models.AIProvider(strings.ToLower(v))
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("BBN_MODEL"); v != "" {
		c.AI.ModelName = v
	}

	// 按提供方选择 API Key
	keyVar := "OPENAI_API_KEY"
	if c.AI.Provider == models.AIProviderGemini {
		keyVar = "GEMINI_API_KEY"
	}
	if v := os.Getenv(keyVar); v != "" {
		c.AI.APIKey = v
	}

	if v := os.Getenv("BBN_MAX_ROUND"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BBN_MAX_ROUND: %w", err)
		}
		c.Dialogue.MaxRound = n
	}
	if v := os.Getenv("BBN_STREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BBN_STREAM: %w", err)
		}
		c.AI.Stream = b
	}
	if v := os.Getenv("BBN_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("BBN_INDEX_TYPE"); v != "" {
		c.Output.IndexType = v
	}
	if v := os.Getenv("BBN_INDEX_DSN"); v != "" {
		c.Output.IndexDSN = v
	}
	if v := os.Getenv("BBN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) fillDefaults() {
	if c.AI.Provider == "" {
		c.AI.Provider = models.AIProviderOpenAI
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Output.IndexType == "sqlite" && c.Output.IndexDSN == "" {
		c.Output.IndexDSN = paths.DefaultIndexPath()
	}
}

// Validate 检查运行前必需的配置
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Dialogue.MaxRound < 1 {
		return fmt.Errorf("max_round must be at least 1, got %d", c.Dialogue.MaxRound)
	}
	if c.Dialogue.SleepTime < 0 {
		return fmt.Errorf("sleep_time must not be negative, got %v", c.Dialogue.SleepTime)
	}
	return nil
}

// LoadDotEnv 依次尝试加载 .env.local 与 .env，已存在的环境变量不会被覆盖
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, p := range files {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		log.Debug("loaded env from %s", p)
	}
	return nil
}

// LoadPrompts 读取提示词模板，path 为空时使用内置模板
func LoadPrompts(path string) (models.PromptTemplates, error) {
	var prompts models.PromptTemplates
	data := embed.DefaultPromptsJSON
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return prompts, fmt.Errorf("read prompts %s: %w", path, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&prompts); err != nil {
		return prompts, fmt.Errorf("parse prompts: %w", err)
	}
	if err := prompts.Validate(); err != nil {
		return prompts, err
	}
	return prompts, nil
}
