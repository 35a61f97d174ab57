package meeting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		summary string
		reason  string
	}{
		{"纯 JSON", `{"Summary of Informing Situation": "done", "Reason": "ok"}`, "done", "ok"},
		{"代码块", "```json\n{\"Summary of Informing Situation\": \"\", \"Reason\": \"wait\"}\n```", "", "wait"},
		{"无语言标记的代码块", "```\n{\"Summary of Informing Situation\": \"s\"}\n```", "s", ""},
		{"null 总结", `{"Summary of Informing Situation": null, "Reason": "r"}`, "", "r"},
		{"非字符串总结", `{"Summary of Informing Situation": {"a": 1}}`, `{"a":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.content, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.summary, v.Summary)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, 2, v.Round)
			assert.Equal(t, tt.summary != "", v.Concluded())
		})
	}
}

func TestParseVerdictExtraFields(t *testing.T) {
	v, err := ParseVerdict(`{"Reason": "r", "Score": 3, "Summary of Informing Situation": "s", "Notes": ["a"]}`, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Score", "Notes"}, v.Extra.Keys())
	raw, ok := v.Extra.Get("Notes")
	require.True(t, ok)
	assert.JSONEq(t, `["a"]`, string(raw))
}

func TestParseVerdictMalformed(t *testing.T) {
	for name, content := range map[string]string{
		"empty":           "  ",
		"prose":           "The disclosure is complete.",
		"array":           `["done"]`,
		"missing summary": `{"Reason": "r"}`,
		"truncated":       `{"Summary of Informing Situation": "do`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVerdict(content, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedVerdict))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```\n"))
	assert.Equal(t, "plain", StripFences("  plain "))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "告知...", truncateString("告知完成", 2))
}
