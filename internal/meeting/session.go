package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/run-bigpig/bbn/internal/agent"
	"github.com/run-bigpig/bbn/internal/logger"
	"github.com/run-bigpig/bbn/internal/models"
)

// 日志实例
var log = logger.New("Meeting")

// ErrInvalidMaxRound 最大轮数必须至少为 1
var ErrInvalidMaxRound = errors.New("max round must be at least 1")

// 进度事件类型
const (
	EventRoundStart = "round_start"
	EventTurnDone   = "turn_done"
	EventVerdict    = "verdict"
)

// ProgressEvent 进度事件
type ProgressEvent struct {
	SubjectID int         `json:"subjectId"`
	Type      string      `json:"type"`
	Round     int         `json:"round"`
	Role      models.Role `json:"role,omitempty"`
	Content   string      `json:"content,omitempty"`
}

// ProgressCallback 进度回调，在会话所在的 goroutine 中同步调用
type ProgressCallback func(event ProgressEvent)

// SessionOptions 会话选项
type SessionOptions struct {
	MaxTokens    int              // 单次回复的最大 token，0 表示不限制
	JSONVerdicts bool             // 要求主持人以 JSON 模式回复
	Progress     ProgressCallback // 可为 nil
}

// Session 医生-患者-主持人三方对话状态机
//
// 第一轮单独执行（医生开场、患者回应、主持人首次裁决），
// 之后第 2..max_round 轮在主循环中执行，进入每一轮前检查上一轮的裁决，
// 总结字段非空即结束。
type Session struct {
	record   *models.SaveFile
	roster   *agent.Roster
	history  DialogueHistory
	verdict  *models.Verdict
	maxRound int
	progress ProgressCallback
	log      *logger.Logger

	iterations int // 主循环实际执行的轮数
	judged     int // 已得到裁决的轮数
}

// NewSession 创建会话：替换系统提示词中的占位符、创建三个角色并设置系统提示词
// 不发起任何模型调用
func NewSession(record *models.SaveFile, gen agent.Generator, opts SessionOptions) (*Session, error) {
	if record.MaxRound < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxRound, record.MaxRound)
	}
	if err := record.PromptTemplates.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		record:   record,
		maxRound: record.MaxRound,
		progress: opts.Progress,
		log:      log.Sub(fmt.Sprintf("subject-%d", record.SubjectID)),
	}
	s.initPrompts()

	base := agent.Options{
		Temperature: record.Temperature,
		Seed:        record.Seed,
		MaxTokens:   opts.MaxTokens,
	}
	moderatorOpts := base
	moderatorOpts.JSONReplies = opts.JSONVerdicts
	s.roster = agent.NewRoster(gen, map[models.Role]agent.Options{
		models.RoleDoctor:    base,
		models.RolePatient:   base,
		models.RoleModerator: moderatorOpts,
	})

	if err := s.initAgents(); err != nil {
		return nil, err
	}
	return s, nil
}

// initPrompts 替换三个系统提示词中的病情占位符
func (s *Session) initPrompts() {
	r := strings.NewReplacer(
		models.PlaceholderPatientCondition, s.record.PatientCondition,
		models.PlaceholderPreknowCondition, s.record.PreknowCondition,
	)
	s.record.DoctorSystemPrompt = r.Replace(s.record.DoctorSystemPrompt)
	s.record.PatientSystemPrompt = r.Replace(s.record.PatientSystemPrompt)
	s.record.ModeratorSystemPrompt = r.Replace(s.record.ModeratorSystemPrompt)
}

// initAgents 设置系统提示词，患者额外替换人格与教育背景
func (s *Session) initAgents() error {
	patientPrompt := strings.NewReplacer(
		models.PlaceholderPersonality, s.record.Personality,
		models.PlaceholderEducation, s.record.EduBehavior,
	).Replace(s.record.PatientSystemPrompt)

	prompts := map[models.Role]string{
		models.RoleDoctor:    s.record.DoctorSystemPrompt,
		models.RolePatient:   patientPrompt,
		models.RoleModerator: s.record.ModeratorSystemPrompt,
	}
	for _, p := range s.roster.All() {
		if err := p.SetMetaPrompt(prompts[p.Name()]); err != nil {
			return err
		}
		s.log.Debug("%s meta prompt: %d chars", p.Name(), len(p.MetaPrompt()))
	}
	return nil
}

// Run 执行整场对话并把结果写入存档
// 出错时立即返回，已产生的记录（记忆、对话历史、轮次）仍保留在存档中
func (s *Session) Run(ctx context.Context) error {
	defer s.syncRecord()

	if err := s.firstRound(ctx); err != nil {
		return err
	}

	for round := 2; round <= s.maxRound; round++ {
		if s.verdict.Concluded() {
			break
		}
		if err := s.nextRound(ctx, round); err != nil {
			return err
		}
		s.iterations++
	}

	s.record.Conclude(s.verdict, s.RoundsCompleted())
	s.log.Info("concluded: success=%v, rounds=%d, history rounds=%d",
		s.record.Success, s.record.RoundsCompleted, s.HistoryRounds())
	return nil
}

// firstRound 第一轮：基于事件队列的完整问答
func (s *Session) firstRound(ctx context.Context) error {
	const round = 1
	s.log.Info("===== Conversation %s =====", RoundLabel(round))
	s.emit(ProgressEvent{Type: EventRoundStart, Round: round})
	rec := s.beginRound(round)

	doctor := s.roster.Get(models.RoleDoctor)
	docAns, err := s.askWithEvent(ctx, doctor, s.record.DoctorInitPrompt)
	if err != nil {
		return err
	}
	s.remember(doctor, round, docAns)
	rec.Doctor = docAns

	patient := s.roster.Get(models.RolePatient)
	patAns, err := s.askWithEvent(ctx, patient,
		strings.ReplaceAll(s.record.PatientInitPrompt, models.PlaceholderDoctorResponse, docAns))
	if err != nil {
		return err
	}
	s.remember(patient, round, patAns)
	rec.Patient = patAns

	s.history.AppendRound(RoundLabel(round), docAns, patAns)

	moderator := s.roster.Get(models.RoleModerator)
	modAns, err := s.askWithEvent(ctx, moderator, s.moderatorPrompt(round))
	if err != nil {
		return err
	}
	s.remember(moderator, round, modAns)
	return s.judge(rec, modAns, round)
}

// askWithEvent 把提示词加入事件队列后提问，上下文随之累积
func (s *Session) askWithEvent(ctx context.Context, p *agent.Persona, event string) (string, error) {
	p.AddEvent(event)
	s.log.Debug("%s asks with %d pending events", p.Name(), len(p.PendingEvents()))
	return p.Ask(ctx)
}

// nextRound 第 2..max_round 轮：每个角色基于含历史的一次性提示词发言
func (s *Session) nextRound(ctx context.Context, round int) error {
	s.log.Info("===== Conversation %s =====", RoundLabel(round))
	s.emit(ProgressEvent{Type: EventRoundStart, Round: round})
	rec := s.beginRound(round)

	doctor := s.roster.Get(models.RoleDoctor)
	docAns, err := doctor.AskSingleTurn(ctx, s.doctorPrompt(round))
	if err != nil {
		return err
	}
	s.remember(doctor, round, docAns)
	rec.Doctor = docAns
	s.history.AppendDoctor(RoundLabel(round), docAns)

	patient := s.roster.Get(models.RolePatient)
	patAns, err := patient.AskSingleTurn(ctx, s.patientPrompt())
	if err != nil {
		return err
	}
	s.remember(patient, round, patAns)
	rec.Patient = patAns
	s.history.AppendPatient(patAns)

	moderator := s.roster.Get(models.RoleModerator)
	modAns, err := moderator.AskSingleTurn(ctx, s.moderatorPrompt(round))
	if err != nil {
		return err
	}
	s.remember(moderator, round, modAns)
	return s.judge(rec, modAns, round)
}

// doctorPrompt 医生提示词：历史、当前轮序数、剩余轮序数
func (s *Session) doctorPrompt(round int) string {
	return strings.NewReplacer(
		models.PlaceholderDialogHistory, s.history.String(),
		models.PlaceholderRound, Ordinal(round),
		models.PlaceholderResRound, Ordinal(s.maxRound-round),
	).Replace(s.record.DoctorPrompt)
}

// patientPrompt 患者提示词：包含本轮医生发言后的历史
func (s *Session) patientPrompt() string {
	return strings.ReplaceAll(s.record.PatientPrompt, models.PlaceholderDialogHistory, s.history.String())
}

// moderatorPrompt 主持人提示词：历史、当前轮序数、完整病情
func (s *Session) moderatorPrompt(round int) string {
	return strings.NewReplacer(
		models.PlaceholderDialogHistory, s.history.String(),
		models.PlaceholderRound, Ordinal(round),
		models.PlaceholderPatientCondition, s.record.PatientCondition,
	).Replace(s.record.ModeratorPrompt)
}

// judge 解析主持人回复并替换当前裁决
func (s *Session) judge(rec *models.RoundRecord, modAns string, round int) error {
	rec.Moderator = modAns
	verdict, err := ParseVerdict(modAns, round)
	if err != nil {
		return fmt.Errorf("round %d: %w", round, err)
	}
	s.verdict = verdict
	s.judged++
	rec.Summary = verdict.Summary
	rec.Reason = verdict.Reason

	s.emit(ProgressEvent{Type: EventVerdict, Round: round, Role: models.RoleModerator, Content: verdict.Summary})
	if verdict.Concluded() {
		s.log.Info("%s concluded: %s", RoundLabel(round), truncateString(verdict.Summary, 80))
	} else {
		s.log.Debug("%s continue: %s", RoundLabel(round), truncateString(verdict.Reason, 80))
	}
	return nil
}

// beginRound 追加本轮记录，发言在进行中逐步填入
func (s *Session) beginRound(round int) *models.RoundRecord {
	s.record.Rounds = append(s.record.Rounds, models.RoundRecord{
		Round:     round,
		Timestamp: time.Now().Unix(),
	})
	return &s.record.Rounds[len(s.record.Rounds)-1]
}

// remember 写入角色记忆并通知进度
func (s *Session) remember(p *agent.Persona, round int, ans string) {
	p.AddMemory(ans)
	s.emit(ProgressEvent{Type: EventTurnDone, Round: round, Role: p.Name(), Content: ans})
}

// emit 发送进度事件
func (s *Session) emit(event ProgressEvent) {
	if s.progress == nil {
		return
	}
	event.SubjectID = s.record.SubjectID
	s.progress(event)
}

// syncRecord 把对话历史和各角色记忆写入存档
func (s *Session) syncRecord() {
	s.record.DialogHistory = s.history.String()
	s.record.AttachMemories(s.roster.Memories())
}

// RoundsCompleted 主循环执行轮数 + 第一轮
func (s *Session) RoundsCompleted() int {
	return s.iterations + 1
}

// RoundsJudged 已得到裁决的轮数，用于失败时记录进度
func (s *Session) RoundsJudged() int {
	return s.judged
}

// HistoryRounds 对话历史中的轮数
func (s *Session) HistoryRounds() int {
	return s.history.Rounds()
}
