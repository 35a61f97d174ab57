package agent

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/bbn/internal/models"
)

var (
	ErrMetaPromptSet = errors.New("meta prompt already set")
	ErrNoMetaPrompt  = errors.New("meta prompt not set")
)

// Options 单个角色的采样参数
type Options struct {
	Temperature float32
	Seed        *int
	MaxTokens   int
	JSONReplies bool // 要求模型只输出 JSON（主持人）
}

// Persona 绑定角色的对话 Agent
//
// memory 只追加；metaPrompt 首次提问前设置且之后不可修改。
// Ask 使用 metaPrompt + 历史上下文 + 待处理事件；AskSingleTurn 只使用一次性提示词。
type Persona struct {
	role       models.Role
	gen        Generator
	opts       Options
	metaPrompt string
	metaSet    bool

	memory  []string
	events  []string
	context []*genai.Content
}

// NewPersona 创建角色 Agent
func NewPersona(role models.Role, gen Generator, opts Options) *Persona {
	return &Persona{role: role, gen: gen, opts: opts}
}

// Name 角色名
func (p *Persona) Name() models.Role {
	return p.role
}

// SetMetaPrompt 设置系统提示词，只能调用一次
func (p *Persona) SetMetaPrompt(text string) error {
	if p.metaSet {
		return fmt.Errorf("%s: %w", p.role, ErrMetaPromptSet)
	}
	p.metaPrompt = text
	p.metaSet = true
	return nil
}

// MetaPrompt 系统提示词
func (p *Persona) MetaPrompt() string {
	return p.metaPrompt
}

// AddEvent 追加一条待处理的输入消息，不触发模型调用
func (p *Persona) AddEvent(text string) {
	p.events = append(p.events, text)
}

// PendingEvents 尚未被 Ask 消费的消息
func (p *Persona) PendingEvents() []string {
	return append([]string(nil), p.events...)
}

// Ask 基于累积上下文和待处理事件提问
// 回复不会自动写入记忆，调用方需要 AddMemory
func (p *Persona) Ask(ctx context.Context) (string, error) {
	if !p.metaSet {
		return "", fmt.Errorf("%s: %w", p.role, ErrNoMetaPrompt)
	}

	pending := make([]*genai.Content, 0, len(p.events))
	for _, e := range p.events {
		pending = append(pending, genai.NewContentFromText(e, genai.RoleUser))
	}

	contents := make([]*genai.Content, 0, len(p.context)+len(pending))
	contents = append(contents, p.context...)
	contents = append(contents, pending...)

	reply, err := p.gen.Generate(ctx, p.role, p.request(contents))
	if err != nil {
		return "", fmt.Errorf("%s ask: %w", p.role, err)
	}

	p.context = append(p.context, pending...)
	p.events = nil
	return reply, nil
}

// AskSingleTurn 用一次性提示词提问，不消费事件队列
func (p *Persona) AskSingleTurn(ctx context.Context, prompt string) (string, error) {
	if !p.metaSet {
		return "", fmt.Errorf("%s: %w", p.role, ErrNoMetaPrompt)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	reply, err := p.gen.Generate(ctx, p.role, p.request(contents))
	if err != nil {
		return "", fmt.Errorf("%s ask single turn: %w", p.role, err)
	}
	return reply, nil
}

// AddMemory 记录自己的回复
func (p *Persona) AddMemory(text string) {
	p.memory = append(p.memory, text)
	p.context = append(p.context, genai.NewContentFromText(text, genai.RoleModel))
}

// Memory 记忆副本
func (p *Persona) Memory() []string {
	return append([]string(nil), p.memory...)
}

// request 构建模型请求
func (p *Persona) request(contents []*genai.Content) *model.LLMRequest {
	temp := p.opts.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.metaPrompt, genai.RoleUser),
		Temperature:       &temp,
	}
	if p.opts.Seed != nil {
		seed := int32(*p.opts.Seed)
		cfg.Seed = &seed
	}
	if p.opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.opts.MaxTokens)
	}
	if p.opts.JSONReplies {
		cfg.ResponseMIMEType = "application/json"
	}
	return &model.LLMRequest{Contents: contents, Config: cfg}
}
