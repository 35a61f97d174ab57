package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// newTestModel 启动假的 chat completions 服务
func newTestModel(t *testing.T, noSystemRole bool, handler http.HandlerFunc) *OpenAIModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAIModel("gpt-4o", cfg, noSystemRole)
}

func testRequest() *model.LLMRequest {
	temp := float32(0)
	seed := int32(7)
	return &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("你好，医生", genai.RoleUser),
			genai.NewContentFromText("你好，请坐", genai.RoleModel),
			genai.NewContentFromText("检查结果怎么样？", genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are the doctor.", genai.RoleUser),
			Temperature:       &temp,
			Seed:              &seed,
			ResponseMIMEType:  "application/json",
		},
	}
}

func TestGenerateNonStream(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestModel(t, false, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:             openai.ChatMessageRoleAssistant,
					Content:          "结果需要我们认真谈一谈。",
					ReasoningContent: "先确认患者的认知",
				},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	})

	var responses []*model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), testRequest(), false) {
		require.NoError(t, err)
		responses = append(responses, resp)
	}

	require.Len(t, responses, 1)
	resp := responses[0]
	require.Len(t, resp.Content.Parts, 2)
	assert.True(t, resp.Content.Parts[0].Thought)
	assert.Equal(t, "结果需要我们认真谈一谈。", resp.Content.Parts[1].Text)
	assert.Equal(t, genai.FinishReasonStop, resp.FinishReason)
	assert.EqualValues(t, 15, resp.UsageMetadata.TotalTokenCount)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[2].Role)
	assert.Greater(t, got.Temperature, float32(0), "温度 0 需要以极小值发送")
	require.NotNil(t, got.Seed)
	assert.Equal(t, 7, *got.Seed)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestGenerateNoSystemRole(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestModel(t, true, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		})
	})

	for _, err := range m.GenerateContent(context.Background(), testRequest(), false) {
		require.NoError(t, err)
	}

	require.Len(t, got.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[0].Role)
	assert.Equal(t, "You are the doctor.\n\n你好，医生", got.Messages[0].Content)
}

func TestGenerateNoChoices(t *testing.T) {
	m := newTestModel(t, false, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	})

	var gotErr error
	for _, err := range m.GenerateContent(context.Background(), testRequest(), false) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, ErrNoChoicesInResponse)
}

func TestGenerateStream(t *testing.T) {
	chunks := []string{"我们", "需要", "谈谈"}
	m := newTestModel(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			data, _ := json.Marshal(openai.ChatCompletionStreamResponse{
				Choices: []openai.ChatCompletionStreamChoice{{
					Delta: openai.ChatCompletionStreamChoiceDelta{Content: c},
				}},
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var partial int
	var final *model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), testRequest(), true) {
		require.NoError(t, err)
		if resp.Partial {
			partial++
			continue
		}
		final = resp
	}

	assert.Equal(t, len(chunks), partial)
	require.NotNil(t, final)
	require.Len(t, final.Content.Parts, 1)
	assert.Equal(t, "我们需要谈谈", final.Content.Parts[0].Text)
}
