// Package intake turns submitted form data into validated health parameters.
package intake

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// Sentinel errors, matched with errors.Is against a *ValidationError.
var (
	ErrMissingField = errors.New("missing required field")
	ErrOutOfRange   = errors.New("value out of range")
	ErrInvalidInput = errors.New("invalid input")
)

// Field error codes.
const (
	CodeRequired     = "required"
	CodeOutOfRange   = "out_of_range"
	CodeInvalidValue = "invalid_value"
)

// MsgFillAllFields is the top-level message when any field is missing.
const MsgFillAllFields = "Please fill in all fields"

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a submission.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if e.hasCode(CodeRequired) {
		return MsgFillAllFields
	}
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	return fmt.Sprintf("%d invalid fields", len(e.Fields))
}

// Is lets errors.Is match the sentinel for any contained code.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return true
	case ErrMissingField:
		return e.hasCode(CodeRequired)
	case ErrOutOfRange:
		return e.hasCode(CodeOutOfRange)
	}
	return false
}

func (e *ValidationError) hasCode(code string) bool {
	for _, f := range e.Fields {
		if f.Code == code {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, code, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// snake_case spellings used by the REST backend.
var aliases = map[string]string{
	"age":             "age",
	"sex":             "sex",
	"chest_pain_type": "chestPainType",
	"resting_bp":      "restingBP",
	"cholesterol":     "cholesterol",
	"fasting_bs":      "fastingBS",
	"resting_ecg":     "restingECG",
	"max_hr":          "maxHR",
	"exercise_angina": "exerciseAngina",
	"oldpeak":         "oldpeak",
	"st_slope":        "stSlope",
}

// Collect reads the eleven fields from a flat form mapping.
// Field names may be camelCase or snake_case; when both spellings are present
// the camelCase value is used. Values may be strings or numbers.
// The returned error reports missing and unparseable fields only; ranges and
// enums are checked by Validate.
func Collect(form map[string]any) (domain.HealthParameters, error) {
	values := make(map[string]any, len(form))
	for k, v := range form {
		values[k] = v
	}
	for alias, canon := range aliases {
		if alias == canon {
			continue
		}
		if v, ok := form[alias]; ok {
			if _, taken := form[canon]; !taken {
				values[canon] = v
			}
			delete(values, alias)
		}
	}

	var (
		p    domain.HealthParameters
		verr ValidationError
	)

	integer := func(field string, dst *int) {
		f, ok := number(field, values, &verr)
		if ok {
			*dst = int(math.Trunc(f))
		}
	}
	text := func(field string) string {
		v, present := values[field]
		s := ""
		if present && v != nil {
			s = strings.TrimSpace(fmt.Sprint(v))
		}
		if s == "" {
			verr.add(field, CodeRequired, fmt.Sprintf("%s is required", field))
		}
		return s
	}

	integer("age", &p.Age)
	p.Sex = domain.Sex(text("sex"))
	p.ChestPainType = domain.ChestPainType(text("chestPainType"))
	integer("restingBP", &p.RestingBP)
	integer("cholesterol", &p.Cholesterol)
	p.FastingBS = fastingBS(values, &verr)
	p.RestingECG = domain.RestingECG(text("restingECG"))
	integer("maxHR", &p.MaxHR)
	p.ExerciseAngina = domain.ExerciseAngina(text("exerciseAngina"))
	if f, ok := number("oldpeak", values, &verr); ok {
		p.Oldpeak = f
	}
	p.STSlope = domain.STSlope(text("stSlope"))

	return p, verr.orNil()
}

func number(field string, values map[string]any, verr *ValidationError) (float64, bool) {
	v, present := values[field]
	if !present || v == nil {
		verr.add(field, CodeRequired, fmt.Sprintf("%s is required", field))
		return 0, false
	}

	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, err = n.Float64()
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			verr.add(field, CodeRequired, fmt.Sprintf("%s is required", field))
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		verr.add(field, CodeInvalidValue, fmt.Sprintf("%s must be a number", field))
		return 0, false
	}
	return f, true
}

func fastingBS(values map[string]any, verr *ValidationError) domain.FastingBS {
	const field = "fastingBS"
	v, present := values[field]
	if !present || v == nil {
		verr.add(field, CodeRequired, "fastingBS is required")
		return ""
	}
	switch b := v.(type) {
	case bool:
		if b {
			return domain.FastingBSElevated
		}
		return domain.FastingBSNormal
	case float64:
		return domain.FastingBS(strconv.FormatFloat(b, 'f', -1, 64))
	case int:
		return domain.FastingBS(strconv.Itoa(b))
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return domain.FastingBS(b.String())
		}
		return domain.FastingBS(strconv.FormatFloat(f, 'f', -1, 64))
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		verr.add(field, CodeRequired, "fastingBS is required")
	}
	return domain.FastingBS(s)
}

type bound struct {
	field    string
	label    string
	min, max float64
}

var bounds = []bound{
	{"age", "Age", 1, 120},
	{"restingBP", "Resting blood pressure", 50, 300},
	{"cholesterol", "Cholesterol", 50, 600},
	{"maxHR", "Maximum heart rate", 60, 220},
	{"oldpeak", "Oldpeak", 0, 10},
}

var enums = map[string][]string{
	"sex":            {"M", "F"},
	"chestPainType":  {"TA", "ATA", "NAP", "ASY"},
	"fastingBS":      {"0", "1"},
	"restingECG":     {"Normal", "ST", "LVH"},
	"exerciseAngina": {"Y", "N"},
	"stSlope":        {"Up", "Flat", "Down"},
}

// Validate checks ranges and enum membership.
// Unlike the scorer, unknown enum values are rejected here.
func Validate(p domain.HealthParameters) error {
	var verr ValidationError

	nums := map[string]float64{
		"age":         float64(p.Age),
		"restingBP":   float64(p.RestingBP),
		"cholesterol": float64(p.Cholesterol),
		"maxHR":       float64(p.MaxHR),
		"oldpeak":     p.Oldpeak,
	}
	for _, b := range bounds {
		v := nums[b.field]
		if v < b.min || v > b.max {
			verr.add(b.field, CodeOutOfRange,
				fmt.Sprintf("%s must be between %g and %g", b.label, b.min, b.max))
		}
	}

	strs := map[string]string{
		"sex":            string(p.Sex),
		"chestPainType":  string(p.ChestPainType),
		"fastingBS":      string(p.FastingBS),
		"restingECG":     string(p.RestingECG),
		"exerciseAngina": string(p.ExerciseAngina),
		"stSlope":        string(p.STSlope),
	}
	for _, field := range domain.FieldOrder {
		allowed, ok := enums[field]
		if !ok {
			continue
		}
		v := strs[field]
		if v == "" {
			verr.add(field, CodeRequired, fmt.Sprintf("%s is required", field))
			continue
		}
		if !slices.Contains(allowed, v) {
			verr.add(field, CodeInvalidValue,
				fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
		}
	}

	sortByFieldOrder(verr.Fields)
	return verr.orNil()
}

// Parse collects and validates a form in one step.
func Parse(form map[string]any) (domain.HealthParameters, error) {
	p, err := Collect(form)
	if err != nil {
		return p, err
	}
	if err := Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

func sortByFieldOrder(fields []FieldError) {
	rank := make(map[string]int, len(domain.FieldOrder))
	for i, f := range domain.FieldOrder {
		rank[f] = i
	}
	slices.SortStableFunc(fields, func(a, b FieldError) int {
		return cmp.Compare(rank[a.Field], rank[b.Field])
	})
}
