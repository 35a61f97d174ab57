// Package extract 把输入的受试者记录整理为提示词文本
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/run-bigpig/bbn/internal/logger"
	"github.com/run-bigpig/bbn/internal/models"
)

var log = logger.New("Extract")

// PatientCondition 完整病情（医生与主持人可见）
func PatientCondition(s *models.Subject) string {
	var sb strings.Builder
	sb.WriteString("Patient Information:\n")
	fmt.Fprintf(&sb, "Name: %s\n", Text(s.Patient.Name))
	fmt.Fprintf(&sb, "Age: %s\n", Text(s.Patient.Age))
	fmt.Fprintf(&sb, "Gender: %s\n", Text(s.Patient.Gender))
	fmt.Fprintf(&sb, "Medical History: %s\n", Text(s.Patient.MedicalHistory))
	sb.WriteString("\nDisease Information:\n")
	fmt.Fprintf(&sb, "Disease: %s\n", Text(s.Disease.Disease))
	fmt.Fprintf(&sb, "Severity Level: %s\n", Text(s.Disease.SeverityLevel))
	fmt.Fprintf(&sb, "Symptoms: %s\n", Text(s.Disease.Symptoms))
	fmt.Fprintf(&sb, "Duration: %s\n", Text(s.Disease.Duration))
	fmt.Fprintf(&sb, "Curability: %s\n", Text(s.Disease.Curability))
	sb.WriteString("\nExamination Results:\n")

	for _, category := range s.Examination.Keys() {
		raw, _ := s.Examination.Get(category)
		fmt.Fprintf(&sb, "%s:\n", category)
		if tests, ok := asObject(raw); ok {
			for _, name := range tests.Keys() {
				result, _ := tests.Get(name)
				fmt.Fprintf(&sb, "%s: %s\n", name, Text(result))
			}
			continue
		}
		fmt.Fprintf(&sb, "%s\n", Text(raw))
	}

	sb.WriteString("\nTreatment Plan:\n")
	sb.WriteString(Text(s.TreatmentPlan))
	return sb.String()
}

// PreknowCondition 患者事先知道的信息
func PreknowCondition(s *models.Subject) string {
	var sb strings.Builder
	sb.WriteString("Patient Information:\n")
	fmt.Fprintf(&sb, "Name: %s\n", Text(s.Patient.Name))
	fmt.Fprintf(&sb, "Age: %s\n", Text(s.Patient.Age))
	fmt.Fprintf(&sb, "Gender: %s\n", Text(s.Patient.Gender))
	sb.WriteString("\nDisease Information:\n")
	fmt.Fprintf(&sb, "Symptoms: %s\n", Text(s.Disease.Symptoms))
	fmt.Fprintf(&sb, "Duration: %s", Text(s.Disease.Duration))
	return sb.String()
}

// BigFiveTraits 人格描述，"特质: 描述" 以空格连接
func BigFiveTraits(s *models.Subject) string {
	var parts []string
	for _, trait := range s.BigFive.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", trait, strings.TrimSpace(Text(bigFiveTrait(s, trait).Description))))
	}
	return strings.Join(parts, " ")
}

// BigFiveScores 各特质得分，保持输入顺序
func BigFiveScores(s *models.Subject) *models.OrderedMap {
	scores := models.NewOrderedMap()
	for _, trait := range s.BigFive.Keys() {
		if err := scores.Set(trait, scoreValue(bigFiveTrait(s, trait).Score)); err != nil {
			log.Warn("BigFive %q score: %v", trait, err)
		}
	}
	return scores
}

// EducationCategory 教育类别
func EducationCategory(s *models.Subject) string {
	if s.EducationProfile == nil {
		return ""
	}
	return strings.TrimSpace(Text(s.EducationProfile.Category))
}

// SimulatedBehaviors 教育背景对应的模拟行为
func SimulatedBehaviors(s *models.Subject) string {
	if s.EducationProfile == nil {
		return ""
	}
	return strings.TrimSpace(Text(s.EducationProfile.Behaviors))
}

// bigFiveTrait 读取单个特质，不是对象时记录警告并返回空值
func bigFiveTrait(s *models.Subject, trait string) models.BigFiveTrait {
	var t models.BigFiveTrait
	raw, ok := s.BigFive.Get(trait)
	if !ok {
		return t
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		log.Warn("BigFive %q is not an object: %v", trait, err)
	}
	return t
}

// scoreValue 文字得分去掉首尾空白，数值等其他类型原样保留，缺失为空字符串
func scoreValue(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		return strings.TrimSpace(Text(trimmed))
	}
	return json.RawMessage(trimmed)
}

// Text 把任意 JSON 值渲染为提示词文本
// 字符串取原值，数组以逗号连接，对象按 "键: 值" 分行，缺失或 null 为空
func Text(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			texts := make([]string, 0, len(items))
			for _, item := range items {
				texts = append(texts, Text(item))
			}
			return strings.Join(texts, ", ")
		}
	case '{':
		if obj, ok := asObject(trimmed); ok {
			lines := make([]string, 0, obj.Len())
			for _, key := range obj.Keys() {
				v, _ := obj.Get(key)
				lines = append(lines, fmt.Sprintf("%s: %s", key, Text(v)))
			}
			return strings.Join(lines, "\n")
		}
	}
	return string(trimmed)
}

// asObject 尝试解析为有序对象
func asObject(raw json.RawMessage) (*models.OrderedMap, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	obj := models.NewOrderedMap()
	if err := json.Unmarshal(trimmed, obj); err != nil {
		return nil, false
	}
	return obj, true
}
