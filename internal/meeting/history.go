package meeting

import (
	"fmt"
	"strings"
)

// RoundLabel 轮次标签，如 Round-3
func RoundLabel(round int) string {
	return fmt.Sprintf("Round-%d", round)
}

// DialogueHistory 只追加的对话记录，通过 ##dialog_history## 注入后续提示词
type DialogueHistory struct {
	b      strings.Builder
	rounds int
}

// AppendRound 追加完整的一轮（医生 + 患者）
func (h *DialogueHistory) AppendRound(label, doctor, patient string) {
	h.AppendDoctor(label, doctor)
	h.AppendPatient(patient)
}

// AppendDoctor 开启新一轮并写入医生发言
func (h *DialogueHistory) AppendDoctor(label, doctor string) {
	fmt.Fprintf(&h.b, "===== %s =====\ndoctor：%s\n", label, doctor)
	h.rounds++
}

// AppendPatient 在当前轮追加患者发言，不新增标签
func (h *DialogueHistory) AppendPatient(patient string) {
	fmt.Fprintf(&h.b, "patient：%s\n", patient)
}

// Rounds 已开启的轮数
func (h *DialogueHistory) Rounds() int {
	return h.rounds
}

// String 完整记录
func (h *DialogueHistory) String() string {
	return h.b.String()
}
