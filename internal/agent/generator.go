package agent

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/adk/model"

	"github.com/run-bigpig/bbn/internal/logger"
	"github.com/run-bigpig/bbn/internal/models"
)

var genLog = logger.New("Generator")

// Generator 模型调用能力：(角色, 请求) -> 文本回复
// 同步阻塞，可能较慢且可能失败
type Generator interface {
	Generate(ctx context.Context, role models.Role, req *model.LLMRequest) (string, error)
}

// LLMGenerator 基于 adk model.LLM 的实现
type LLMGenerator struct {
	llm     model.LLM
	limiter *rate.Limiter
	stream  bool
}

// NewLLMGenerator 创建生成器，interval > 0 时两次调用之间至少间隔 interval
// stream 为 true 时以流式方式调用模型，只取最终聚合的回复
func NewLLMGenerator(llm model.LLM, interval time.Duration, stream bool) *LLMGenerator {
	g := &LLMGenerator{llm: llm, stream: stream}
	if interval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return g
}

// Generate 调用模型，拼接文本片段并跳过思考内容与流式增量片段
func (g *LLMGenerator) Generate(ctx context.Context, role models.Role, req *model.LLMRequest) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	start := time.Now()
	var result strings.Builder
	for resp, err := range g.llm.GenerateContent(ctx, req, g.stream) {
		if err != nil {
			return "", err
		}
		// 增量片段的内容会在聚合回复里再出现一次
		if resp == nil || resp.Partial || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part.Thought {
				continue
			}
			if part.Text != "" {
				result.WriteString(part.Text)
			}
		}
	}

	genLog.Debug("%s <- %s, %d chars in %v", role, g.llm.Name(), result.Len(), time.Since(start).Round(time.Millisecond))
	return result.String(), nil
}
