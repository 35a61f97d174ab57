package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/bbn/internal/models"
)

func testRecord(t *testing.T, subjectID int) *models.SaveFile {
	t.Helper()
	scores := models.NewOrderedMap()
	require.NoError(t, scores.Set("Openness", "High"))
	cfg := models.SubjectConfig{
		PromptTemplates:  models.PromptTemplates{DoctorPrompt: "<doctor> & ##dialog_history##"},
		Personality:      "Openness: curious",
		PersonalityScore: scores,
	}
	return models.NewSaveFile(subjectID, models.DefaultAIConfig(), models.DefaultDialogueConfig(), cfg,
		"full condition", "known condition", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestWriteSaveFile(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	record := testRecord(t, 3)
	record.Conclude(&models.Verdict{Summary: "disclosed", Round: 1}, 1)
	path, err := fs.WriteSaveFile(3, record)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fs.Dir(), "3.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"run_id\"", "应使用 4 空格缩进")
	assert.Contains(t, string(data), "<doctor> & ##dialog_history##", "不应转义 HTML 字符")
	assert.NotContains(t, string(data), "full condition", "病情原文不写入存档")

	obj, err := fs.ReadSaveFile(3)
	require.NoError(t, err)
	assert.Equal(t, true, obj["success"])
	assert.Equal(t, "disclosed", obj[models.VerdictSummaryKey])
	_, tmpErr := os.Stat(path + ".tmp")
	assert.True(t, errors.Is(tmpErr, os.ErrNotExist))
}

func TestUpdateRoundsCompleted(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	cfg := &models.SubjectConfig{Personality: "calm"}
	_, err = fs.WriteSubjectConfig(0, cfg)
	require.NoError(t, err)

	// 手工加入的字段需要保留
	raw, err := os.ReadFile(fs.ConfigPath(0))
	require.NoError(t, err)
	var obj map[string]any
	require.NoError(t, json.Unmarshal(raw, &obj))
	obj["custom_note"] = "keep me"
	data, _ := json.Marshal(obj)
	require.NoError(t, os.WriteFile(fs.ConfigPath(0), data, 0644))

	require.NoError(t, fs.UpdateRoundsCompleted(0, 4))

	raw, err = os.ReadFile(fs.ConfigPath(0))
	require.NoError(t, err)
	obj = nil
	require.NoError(t, json.Unmarshal(raw, &obj))
	assert.EqualValues(t, 4, obj["rounds_completed"])
	assert.Equal(t, "keep me", obj["custom_note"])
	assert.Equal(t, "calm", obj["personality"])
}

func TestUpdateRoundsCompletedMissingFile(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, fs.UpdateRoundsCompleted(9, 1))
}

func TestRunIndex(t *testing.T) {
	idx, err := OpenRunIndex("sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	ctx := context.Background()

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	ok := testRecord(t, 0)
	ok.Conclude(&models.Verdict{Summary: "disclosed", Round: 2}, 2)
	require.NoError(t, idx.Record(ctx, ok, "/tmp/0.json"))

	failed := testRecord(t, 1)
	failed.Fail(models.ErrorKindModelCall, errors.New("timeout"), 3)
	require.NoError(t, idx.Record(ctx, failed, "/tmp/1.json"))

	rows, err := idx.ListBySubject(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Success)
	assert.Equal(t, models.ErrorKindModelCall, rows[0].ErrorKind)
	assert.Equal(t, failed.RunID, rows[0].RunID)

	stats, err = idx.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Failed)
	assert.InDelta(t, 2.5, stats.AvgRounds, 1e-9)

	assert.Error(t, idx.Record(ctx, ok, "/tmp/dup.json"), "run_id 唯一")
}

func TestOpenRunIndexUnsupported(t *testing.T) {
	_, err := OpenRunIndex("oracle", "dsn")
	assert.Error(t, err)
}
