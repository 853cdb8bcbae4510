package domain

import "strings"

// HealthParameters is the clinical input record scored by the risk scorer.
// All fields are required. Validation happens at the intake boundary.
type HealthParameters struct {
	Age            int            `json:"age"`
	Sex            Sex            `json:"sex"`
	ChestPainType  ChestPainType  `json:"chestPainType"`
	RestingBP      int            `json:"restingBP"`   // mmHg
	Cholesterol    int            `json:"cholesterol"` // mg/dl
	FastingBS      FastingBS      `json:"fastingBS"`
	RestingECG     RestingECG     `json:"restingECG"`
	MaxHR          int            `json:"maxHR"` // bpm
	ExerciseAngina ExerciseAngina `json:"exerciseAngina"`
	Oldpeak        float64        `json:"oldpeak"`
	STSlope        STSlope        `json:"stSlope"`
}

// Sex of the patient.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// ChestPainType classifies reported chest pain.
type ChestPainType string

const (
	ChestPainTypicalAngina  ChestPainType = "TA"
	ChestPainAtypicalAngina ChestPainType = "ATA"
	ChestPainNonAnginal     ChestPainType = "NAP"
	ChestPainAsymptomatic   ChestPainType = "ASY"
)

// FastingBS is "1" when fasting blood sugar is above 120 mg/dl.
type FastingBS string

const (
	FastingBSNormal   FastingBS = "0"
	FastingBSElevated FastingBS = "1"
)

// RestingECG is the resting electrocardiogram result.
type RestingECG string

const (
	RestingECGNormal RestingECG = "Normal"
	RestingECGST     RestingECG = "ST"
	RestingECGLVH    RestingECG = "LVH"
)

// ExerciseAngina reports exercise-induced angina.
type ExerciseAngina string

const (
	ExerciseAnginaYes ExerciseAngina = "Y"
	ExerciseAnginaNo  ExerciseAngina = "N"
)

// STSlope is the slope of the peak exercise ST segment.
type STSlope string

const (
	STSlopeUp   STSlope = "Up"
	STSlopeFlat STSlope = "Flat"
	STSlopeDown STSlope = "Down"
)

// RiskLevel is the ordinal category derived from a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// ParseRiskLevel maps a label to a RiskLevel, ignoring case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	for _, l := range []RiskLevel{RiskLow, RiskModerate, RiskHigh} {
		if strings.EqualFold(string(l), s) {
			return l, true
		}
	}
	return "", false
}

// RiskResult is the output of the risk scorer.
type RiskResult struct {
	RiskScore int       `json:"riskScore"` // 0-100
	RiskLevel RiskLevel `json:"riskLevel"`
	Factors   []string  `json:"factors"`
}

// FieldOrder lists the input fields in scoring order.
// Factor strings are always emitted in this order.
var FieldOrder = []string{
	"age",
	"sex",
	"chestPainType",
	"restingBP",
	"cholesterol",
	"fastingBS",
	"restingECG",
	"maxHR",
	"exerciseAngina",
	"oldpeak",
	"stSlope",
}
