package models

import "encoding/json"

// PatientInformation 患者基本信息
type PatientInformation struct {
	Name           json.RawMessage `json:"Name"`
	Age            json.RawMessage `json:"Age"`
	Gender         json.RawMessage `json:"Gender"`
	MedicalHistory json.RawMessage `json:"Medical History"`
}

// DiseaseInformation 疾病信息
type DiseaseInformation struct {
	Disease       json.RawMessage `json:"Disease"`
	SeverityLevel json.RawMessage `json:"Severity Level"`
	Symptoms      json.RawMessage `json:"Symptoms"`
	Duration      json.RawMessage `json:"Duration"`
	Curability    json.RawMessage `json:"Curability"`
}

// BigFiveTrait 大五人格单项，得分可能是文字等级或数值
type BigFiveTrait struct {
	Description json.RawMessage `json:"Description"`
	Score       json.RawMessage `json:"Score"`
}

// EducationProfile 教育背景画像
type EducationProfile struct {
	Category  json.RawMessage `json:"Education Category"`
	Behaviors json.RawMessage `json:"Simulated Behaviors"`
}

// Subject 输入文件中的单个受试者记录
type Subject struct {
	Patient          PatientInformation `json:"Patient Information"`
	Disease          DiseaseInformation `json:"Disease Information"`
	Examination      *OrderedMap        `json:"Examination Results"`
	TreatmentPlan    json.RawMessage    `json:"Treatment Plan"`
	BigFive          *OrderedMap        `json:"BigFive,omitempty"`
	EducationProfile *EducationProfile  `json:"EducationProfile,omitempty"`
}
