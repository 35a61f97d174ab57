package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/run-bigpig/bbn/internal/agent"
	"github.com/run-bigpig/bbn/internal/extract"
	"github.com/run-bigpig/bbn/internal/models"
	"github.com/run-bigpig/bbn/internal/store"
)

// Options 批量运行选项
type Options struct {
	Prompts      models.PromptTemplates
	AI           models.AIConfig
	Dialogue     models.DialogueConfig
	Workers      int  // 并行受试者数，默认 1
	JSONVerdicts bool // 主持人使用 JSON 模式
	MaxTokens    int
}

// Result 单个受试者的运行结果
type Result struct {
	SubjectID       int
	Success         bool
	RoundsCompleted int
	OutputPath      string
	Err             error
}

// Service 按受试者逐个驱动对话会话并持久化结果
type Service struct {
	gen      agent.Generator
	files    *store.FileStore
	index    *store.RunIndex
	opts     Options
	progress ProgressCallback
	now      func() time.Time
}

// NewService 创建批量运行服务
func NewService(gen agent.Generator, files *store.FileStore, opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		gen:   gen,
		files: files,
		opts:  opts,
		now:   time.Now,
	}
}

// SetRunIndex 设置运行索引，为 nil 时不记录
func (s *Service) SetRunIndex(index *store.RunIndex) {
	s.index = index
}

// SetProgressCallback 设置进度回调，并行运行时回调可能被多个 goroutine 同时调用
func (s *Service) SetProgressCallback(cb ProgressCallback) {
	s.progress = cb
}

// RunAll 运行全部受试者，单个受试者失败不影响其他受试者
// ctx 取消后尚未开始的受试者会被跳过
func (s *Service) RunAll(ctx context.Context, subjects []models.Subject) ([]Result, error) {
	results := make([]Result, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i := range subjects {
		id := i
		if gctx.Err() != nil {
			results[id] = Result{SubjectID: id, Err: gctx.Err()}
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				results[id] = Result{SubjectID: id, Err: gctx.Err()}
				return nil
			}
			results[id] = s.RunSubject(gctx, id, &subjects[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// RunSubject 运行单个受试者：提取字段、写配置、对话、写存档、回写轮数、记录索引
func (s *Service) RunSubject(ctx context.Context, id int, subject *models.Subject) Result {
	slog := log.Sub(fmt.Sprintf("subject-%d", id))
	slog.Info("start")

	cfg := &models.SubjectConfig{
		PromptTemplates:  s.opts.Prompts,
		Personality:      extract.BigFiveTraits(subject),
		PersonalityScore: extract.BigFiveScores(subject),
		EduCategory:      extract.EducationCategory(subject),
		EduBehavior:      extract.SimulatedBehaviors(subject),
	}
	if _, err := s.files.WriteSubjectConfig(id, cfg); err != nil {
		slog.Warn("write subject config failed: %v", err)
	}

	record := models.NewSaveFile(id, s.opts.AI, s.opts.Dialogue, *cfg,
		extract.PatientCondition(subject), extract.PreknowCondition(subject), s.now())

	var runErr error
	session, err := NewSession(record, s.gen, SessionOptions{
		MaxTokens:    s.opts.MaxTokens,
		JSONVerdicts: s.opts.JSONVerdicts,
		Progress:     s.progress,
	})
	if err != nil {
		runErr = err
		record.Fail(models.ErrorKindConfig, err, 0)
	} else if err := session.Run(ctx); err != nil {
		runErr = err
		record.Fail(classifyError(err), err, session.RoundsJudged())
	}
	if runErr != nil {
		slog.Error("run failed: %v", runErr)
	}

	record.Finalize(s.now())
	result := Result{
		SubjectID:       id,
		Success:         record.Success,
		RoundsCompleted: record.RoundsCompleted,
		Err:             runErr,
	}

	path, err := s.files.WriteSaveFile(id, record)
	if err != nil {
		slog.Error("save failed: %v", err)
		result.Err = errors.Join(runErr, err)
		return result
	}
	result.OutputPath = path
	slog.Info("saved to %s", path)

	if err := s.files.UpdateRoundsCompleted(id, record.RoundsCompleted); err != nil {
		slog.Warn("update rounds_completed failed: %v", err)
	}
	if s.index != nil {
		if err := s.index.Record(context.WithoutCancel(ctx), record, path); err != nil {
			slog.Warn("run index failed: %v", err)
		}
	}
	return result
}

// classifyError 区分裁决解析失败、取消与模型调用失败
func classifyError(err error) string {
	switch {
	case errors.Is(err, ErrMalformedVerdict):
		return models.ErrorKindMalformedVerdict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindCanceled
	default:
		return models.ErrorKindModelCall
	}
}
