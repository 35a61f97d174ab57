package meeting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/run-bigpig/bbn/internal/models"
)

// ErrMalformedVerdict 主持人回复无法解析为结构化裁决
var ErrMalformedVerdict = errors.New("malformed moderator verdict")

// fenceStripper 去掉 markdown 代码块标记
var fenceStripper = strings.NewReplacer("```json", "", "```", "")

// StripFences 去掉回复中的代码块标记并裁剪空白
func StripFences(content string) string {
	return strings.TrimSpace(fenceStripper.Replace(content))
}

// ParseVerdict 解析主持人的裁决
// 去掉代码块标记后必须是 JSON 对象，且包含 "Summary of Informing Situation" 字段
func ParseVerdict(content string, round int) (*models.Verdict, error) {
	cleaned := StripFences(content)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedVerdict)
	}

	var fields models.OrderedMap
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v, 原文: %s", ErrMalformedVerdict, err, truncateString(cleaned, 200))
	}

	rawSummary, ok := fields.Get(models.VerdictSummaryKey)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q, 原文: %s", ErrMalformedVerdict, models.VerdictSummaryKey, truncateString(cleaned, 200))
	}

	verdict := &models.Verdict{
		Summary: fieldText(rawSummary),
		Extra:   models.NewOrderedMap(),
		Round:   round,
	}
	if rawReason, ok := fields.Get(models.VerdictReasonKey); ok {
		verdict.Reason = fieldText(rawReason)
	}

	for _, key := range fields.Keys() {
		if key == models.VerdictSummaryKey || key == models.VerdictReasonKey {
			continue
		}
		raw, _ := fields.Get(key)
		if err := verdict.Extra.Set(key, raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
		}
	}
	return verdict, nil
}

// fieldText 字符串字段取原值，null 视为空，其他类型保留紧凑 JSON
func fieldText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// truncateString 截断字符串用于日志输出
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
