package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TimeLayout 存档中的时间格式
const TimeLayout = "2006-01-02_15:04:05"

// 失败类型
const (
	ErrorKindConfig           = "config"
	ErrorKindModelCall        = "model_call"
	ErrorKindMalformedVerdict = "malformed_verdict"
	ErrorKindCanceled         = "canceled"
)

// Role 对话角色
type Role string

const (
	RoleDoctor    Role = "Doctor"
	RolePatient   Role = "Patient"
	RoleModerator Role = "Moderator"
)

// Roles 固定的发言顺序
var Roles = []Role{RoleDoctor, RolePatient, RoleModerator}

// 主持人裁决中的固定字段
const (
	VerdictSummaryKey = "Summary of Informing Situation"
	VerdictReasonKey  = "Reason"
)

// Verdict 主持人每轮的结构化裁决
type Verdict struct {
	Summary string      // 非空表示告知已完成
	Reason  string      // 未结束或失败的原因
	Extra   *OrderedMap // 主持人额外输出的字段
	Round   int         // 产生该裁决的轮次
}

// Concluded 是否已得出结论
func (v *Verdict) Concluded() bool {
	return v != nil && v.Summary != ""
}

// RoundRecord 单轮记录
type RoundRecord struct {
	Round     int    `json:"round"`
	Doctor    string `json:"doctor"`
	Patient   string `json:"patient"`
	Moderator string `json:"moderator"`
	Summary   string `json:"summary"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// SaveFile 单个受试者的运行存档
// 整个运行期间只在内存中修改，结束时写出一次
type SaveFile struct {
	RunID            string            `json:"run_id"`
	SubjectID        int               `json:"subject_id"`
	StartTime        string            `json:"start_time"`
	EndTime          string            `json:"end_time"`
	Provider         AIProvider        `json:"provider"`
	ModelName        string            `json:"model_name"`
	Temperature      float32           `json:"temperature"`
	Seed             *int              `json:"seed,omitempty"`
	MaxRound         int               `json:"max_round"`
	NumPlayers       int               `json:"num_players"`
	Success          bool              `json:"success"`
	Summary          string            `json:"Summary of Informing Situation"`
	Reason           string            `json:"Reason"`
	VerdictRound     int               `json:"verdict_round"`
	Players          map[Role][]string `json:"players"`
	DialogHistory    string            `json:"dialog_history"`
	Rounds           []RoundRecord     `json:"rounds"`
	Personality      string            `json:"personality"`
	PersonalityScore *OrderedMap       `json:"personality_score"`
	EduCategory      string            `json:"edu_category"`
	EduBehavior      string            `json:"edu_behavior"`
	RoundsCompleted  int               `json:"rounds_completed"`
	Error            string            `json:"error,omitempty"`
	ErrorKind        string            `json:"error_kind,omitempty"`

	PromptTemplates

	// 仅运行期使用，不写入存档
	PatientCondition string `json:"-"`
	PreknowCondition string `json:"-"`

	verdictExtra *OrderedMap
}

// NewSaveFile 创建存档，可独立于对话会话构造
func NewSaveFile(subjectID int, ai AIConfig, dlg DialogueConfig, cfg SubjectConfig, patientCondition, preknowCondition string, now time.Time) *SaveFile {
	return &SaveFile{
		RunID:            uuid.NewString(),
		SubjectID:        subjectID,
		StartTime:        now.Format(TimeLayout),
		Provider:         ai.Provider,
		ModelName:        ai.ModelName,
		Temperature:      dlg.Temperature,
		Seed:             dlg.Seed,
		MaxRound:         dlg.MaxRound,
		NumPlayers:       len(Roles),
		Players:          make(map[Role][]string),
		Rounds:           []RoundRecord{},
		Personality:      cfg.Personality,
		PersonalityScore: cfg.PersonalityScore,
		EduCategory:      cfg.EduCategory,
		EduBehavior:      cfg.EduBehavior,
		PromptTemplates:  cfg.PromptTemplates,
		PatientCondition: patientCondition,
		PreknowCondition: preknowCondition,
	}
}

// MergeVerdict 合并裁决的全部字段，额外字段不会覆盖命名字段
func (s *SaveFile) MergeVerdict(v *Verdict) {
	s.Summary = v.Summary
	s.Reason = v.Reason
	s.VerdictRound = v.Round
	s.verdictExtra = v.Extra
}

// Conclude 根据最后一轮裁决设置结果
func (s *SaveFile) Conclude(v *Verdict, roundsCompleted int) {
	s.RoundsCompleted = roundsCompleted
	if v.Concluded() {
		s.MergeVerdict(v)
		s.Success = true
		return
	}
	s.Reason = v.Reason
	s.VerdictRound = v.Round
	s.Success = false
}

// Fail 标记失败
func (s *SaveFile) Fail(kind string, err error, roundsCompleted int) {
	s.Success = false
	s.ErrorKind = kind
	s.RoundsCompleted = roundsCompleted
	if err != nil {
		s.Error = err.Error()
	}
}

// AttachMemories 挂载各角色的完整记忆
func (s *SaveFile) AttachMemories(memories map[Role][]string) {
	for role, mem := range memories {
		s.Players[role] = mem
	}
}

// Finalize 写出前设置结束时间
func (s *SaveFile) Finalize(now time.Time) {
	s.EndTime = now.Format(TimeLayout)
}

// MarshalJSON 输出命名字段，再追加裁决中的额外字段
func (s SaveFile) MarshalJSON() ([]byte, error) {
	type alias SaveFile
	base, err := marshalNoEscape((*alias)(&s))
	if err != nil {
		return nil, err
	}
	if s.verdictExtra.Len() == 0 {
		return base, nil
	}

	var named map[string]json.RawMessage
	if err := json.Unmarshal(base, &named); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(base[:len(base)-1])
	for _, key := range s.verdictExtra.Keys() {
		if _, exists := named[key]; exists {
			continue
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		v, _ := s.verdictExtra.Get(key)
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalNoEscape 序列化且不转义 HTML 字符
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
