package openai

import (
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// toOpenAIChatCompletionRequest 将 ADK 请求转换为 OpenAI 请求
func toOpenAIChatCompletionRequest(req *model.LLMRequest, modelName string, noSystemRole bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	for _, content := range req.Contents {
		if msg, ok := toOpenAIChatCompletionMessage(content); ok {
			messages = append(messages, msg)
		}
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: messages,
	}

	if req.Config == nil {
		return openaiReq
	}

	// go-openai 对 0 值做 omitempty，温度 0 需用极小值代替
	if req.Config.Temperature != nil {
		openaiReq.Temperature = *req.Config.Temperature
		if openaiReq.Temperature == 0 {
			openaiReq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if req.Config.MaxOutputTokens > 0 {
		openaiReq.MaxTokens = int(req.Config.MaxOutputTokens)
	}
	if req.Config.TopP != nil {
		openaiReq.TopP = *req.Config.TopP
	}
	if len(req.Config.StopSequences) > 0 {
		openaiReq.Stop = req.Config.StopSequences
	}
	if req.Config.Seed != nil {
		seed := int(*req.Config.Seed)
		openaiReq.Seed = &seed
	}

	// 处理系统指令
	if system := extractTextFromContent(req.Config.SystemInstruction); system != "" {
		openaiReq.Messages = withSystemPrompt(openaiReq.Messages, system, noSystemRole)
	}

	// 处理 JSON 模式
	if req.Config.ResponseMIMEType == "application/json" {
		openaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return openaiReq
}

// withSystemPrompt 插入系统提示词
// 不支持 system role 时合并到第一条用户消息前
func withSystemPrompt(messages []openai.ChatCompletionMessage, system string, noSystemRole bool) []openai.ChatCompletionMessage {
	if !noSystemRole {
		systemMsg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		}
		return append([]openai.ChatCompletionMessage{systemMsg}, messages...)
	}

	for i, msg := range messages {
		if msg.Role == openai.ChatMessageRoleUser {
			messages[i].Content = system + "\n\n" + msg.Content
			return messages
		}
	}
	userMsg := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: system,
	}
	return append([]openai.ChatCompletionMessage{userMsg}, messages...)
}

// toOpenAIChatCompletionMessage 将 genai.Content 转换为 OpenAI 消息
// 思考内容不回传给模型
func toOpenAIChatCompletionMessage(content *genai.Content) (openai.ChatCompletionMessage, bool) {
	if content == nil {
		return openai.ChatCompletionMessage{}, false
	}

	var text strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return openai.ChatCompletionMessage{}, false
	}

	return openai.ChatCompletionMessage{
		Role:    convertRoleToOpenAI(content.Role),
		Content: text.String(),
	}, true
}

// convertRoleToOpenAI 转换角色
func convertRoleToOpenAI(role string) string {
	switch role {
	case genai.RoleUser:
		return openai.ChatMessageRoleUser
	case genai.RoleModel:
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// extractTextFromContent 提取文本内容
func extractTextFromContent(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var texts []string
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertChatCompletionResponse 转换 OpenAI 响应
func convertChatCompletionResponse(resp *openai.ChatCompletionResponse) (*model.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	choice := resp.Choices[0]
	content := &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{},
	}

	// 处理 reasoning_content (thinking 模型)
	if choice.Message.ReasoningContent != "" {
		content.Parts = append(content.Parts, &genai.Part{
			Text:    choice.Message.ReasoningContent,
			Thought: true,
		})
	}

	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.Content})
	}

	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: convertUsage(resp.Usage),
		FinishReason:  convertFinishReason(string(choice.FinishReason)),
		TurnComplete:  true,
	}, nil
}

// convertUsage 转换 token 用量
func convertUsage(usage openai.Usage) *genai.GenerateContentResponseUsageMetadata {
	if usage.TotalTokens == 0 {
		return nil
	}
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(usage.PromptTokens),
		CandidatesTokenCount: int32(usage.CompletionTokens),
		TotalTokenCount:      int32(usage.TotalTokens),
	}
}

// convertFinishReason 转换结束原因
func convertFinishReason(reason string) genai.FinishReason {
	switch reason {
	case "stop":
		return genai.FinishReasonStop
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonUnspecified
	}
}
