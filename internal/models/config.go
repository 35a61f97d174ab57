package models

// AIProvider 模型服务提供方
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderGemini AIProvider = "gemini"
)

// AIConfig 模型调用配置
type AIConfig struct {
	Provider     AIProvider `json:"provider" yaml:"provider"`
	BaseURL      string     `json:"baseUrl" yaml:"base_url"`
	APIKey       string     `json:"-" yaml:"api_key"`
	ModelName    string     `json:"modelName" yaml:"model"`
	NoSystemRole bool       `json:"noSystemRole" yaml:"no_system_role"` // 不支持 system role 的兼容接口
	MaxTokens    int        `json:"maxTokens" yaml:"max_tokens"`
	Stream       bool       `json:"stream" yaml:"stream"` // 流式调用模型
}

// DefaultAIConfig 默认模型配置
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider:  AIProviderOpenAI,
		ModelName: "gpt-4o",
	}
}

// DialogueConfig 对话配置
type DialogueConfig struct {
	MaxRound    int     `json:"maxRound" yaml:"max_round"`      // 最大轮数（含第一轮），默认 10
	Temperature float32 `json:"temperature" yaml:"temperature"` // 采样温度
	Seed        *int    `json:"seed,omitempty" yaml:"seed"`     // 采样种子，nil 表示不固定
	SleepTime   float64 `json:"sleepTime" yaml:"sleep_time"`    // 两次模型调用之间的最小间隔（秒）
}

// DefaultDialogueConfig 默认对话配置
func DefaultDialogueConfig() DialogueConfig {
	return DialogueConfig{
		MaxRound:    10,
		Temperature: 0,
	}
}
