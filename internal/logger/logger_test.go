package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, "解析 %q 失败", in)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	SetGlobalLevel(WARN)
	t.Cleanup(func() {
		SetOutput(os.Stderr, true)
		SetGlobalLevel(INFO)
	})

	log := New("Meeting").Sub("subject-1")
	log.Info("不应输出")
	log.Warn("round %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "不应输出")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "Meeting/subject-1: round 2")
	assert.False(t, strings.Contains(out, "\033["), "关闭颜色后不应输出转义序列")

	buf.Reset()
	SetGlobalLevel(DEBUG)
	log.Debug("now visible")
	assert.Contains(t, buf.String(), "DEBUG", "已创建的记录器跟随全局级别")
}
