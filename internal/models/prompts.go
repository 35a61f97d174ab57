package models

import "fmt"

// 模板占位符
const (
	PlaceholderPatientCondition = "##patient_condition##"
	PlaceholderPreknowCondition = "##preknow_condition##"
	PlaceholderPersonality      = "##personality_trait##"
	PlaceholderEducation        = "##education##"
	PlaceholderDialogHistory    = "##dialog_history##"
	PlaceholderRound            = "##round##"
	PlaceholderResRound         = "##resround##"
	PlaceholderDoctorResponse   = "##doctor response##"
)

// PromptTemplates 三个角色的提示词模板
type PromptTemplates struct {
	DoctorSystemPrompt    string `json:"doctor_system_prompt"`
	PatientSystemPrompt   string `json:"patient_system_prompt"`
	ModeratorSystemPrompt string `json:"moderator_system_prompt"`
	DoctorInitPrompt      string `json:"doctor_init_prompt"`
	PatientInitPrompt     string `json:"patient_init_prompt"`
	ModeratorPrompt       string `json:"moderator_prompt"`
	DoctorPrompt          string `json:"doctor_prompt"`
	PatientPrompt         string `json:"patient_prompt"`
}

// Validate 检查模板是否完整
func (p PromptTemplates) Validate() error {
	fields := []struct {
		key   string
		value string
	}{
		{"doctor_system_prompt", p.DoctorSystemPrompt},
		{"patient_system_prompt", p.PatientSystemPrompt},
		{"moderator_system_prompt", p.ModeratorSystemPrompt},
		{"doctor_init_prompt", p.DoctorInitPrompt},
		{"patient_init_prompt", p.PatientInitPrompt},
		{"moderator_prompt", p.ModeratorPrompt},
		{"doctor_prompt", p.DoctorPrompt},
		{"patient_prompt", p.PatientPrompt},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("prompt template %q is empty", f.key)
		}
	}
	return nil
}

// SubjectConfig 单个受试者的配置文件内容（模板 + 派生字段）
type SubjectConfig struct {
	PromptTemplates
	Personality      string      `json:"personality"`
	PersonalityScore *OrderedMap `json:"personality_score"`
	EduCategory      string      `json:"edu_category"`
	EduBehavior      string      `json:"edu_behavior"`
	RoundsCompleted  int         `json:"rounds_completed,omitempty"`
}
