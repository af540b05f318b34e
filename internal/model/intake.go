// Package model 包含了应用的数据模型定义。
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// 问诊表单中可选的枚举值。
var (
	AgeRanges = []string{"under-18", "18-29", "30-39", "40-49", "50-59", "60-69", "70+"}
	Sexes     = []string{"male", "female", "other", "prefer-not-to-say"}
	Durations = []string{"less than 24 hours", "1-3 days", "4-7 days", "1-2 weeks", "more than 2 weeks"}
)

const (
	MinSeverity = 1
	MaxSeverity = 5
)

// IntakeForm 是从表单或 JSON 中绑定的原始输入，所有字段都是字符串，校验前不做任何假设。
type IntakeForm struct {
	AgeRange string     `form:"ageRange" json:"ageRange"`
	Sex      string     `form:"sex" json:"sex"`
	Symptom  string     `form:"symptom" json:"symptom"`
	Duration string     `form:"duration" json:"duration"`
	Severity FlexString `form:"severity" json:"severity"`
	Context  string     `form:"context" json:"context"`
}

// FlexString 在 JSON 中同时接受字符串和数字，浏览器端存储的表单值两种形式都会出现。
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(b)
	return nil
}

// IntakeRecord 是校验通过后写入会话存储的问诊记录。
type IntakeRecord struct {
	// ID 区分同一会话内先后提交的问诊，对话历史按它分开存放
	ID        string    `json:"id,omitempty"`
	AgeRange  string    `json:"ageRange" validate:"required,agerange"`
	Sex       string    `json:"sex,omitempty" validate:"omitempty,sex"`
	Symptom   string    `json:"symptom" validate:"required,maxrunes=500"`
	Duration  string    `json:"duration" validate:"required,duration"`
	Severity  int       `json:"severity" validate:"required,min=1,max=5"`
	Context   string    `json:"context,omitempty" validate:"omitempty,maxrunes=2000"`
	CreatedAt time.Time `json:"createdAt"`
}

// FieldErrors 以表单字段名为 key 保存校验错误信息。
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, key := range []string{"ageRange", "sex", "symptom", "duration", "severity", "context"} {
		if msg, ok := fe[key]; ok {
			parts = append(parts, key+": "+msg)
		}
	}
	return "invalid intake: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("agerange", oneOf(AgeRanges))
	_ = v.RegisterValidation("sex", oneOf(Sexes))
	_ = v.RegisterValidation("duration", oneOf(Durations))
	_ = v.RegisterValidation("maxrunes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(fl.Field().String()) <= limit
	})
	return v
}

func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		got := fl.Field().String()
		for _, v := range values {
			if v == got {
				return true
			}
		}
		return false
	}
}

// ToRecord 规范化表单并进行校验。校验失败时返回 FieldErrors，记录为 nil。
func (f IntakeForm) ToRecord(now time.Time) (*IntakeRecord, FieldErrors) {
	errs := FieldErrors{}
	record := &IntakeRecord{
		AgeRange:  strings.TrimSpace(f.AgeRange),
		Sex:       strings.TrimSpace(f.Sex),
		Symptom:   strings.TrimSpace(f.Symptom),
		Duration:  strings.TrimSpace(f.Duration),
		Context:   strings.TrimSpace(f.Context),
		CreatedAt: now,
	}

	severity := strings.TrimSpace(string(f.Severity))
	if severity != "" {
		n, err := strconv.Atoi(severity)
		if err != nil {
			errs["severity"] = "Severity must be a whole number from 1 to 5."
		} else {
			record.Severity = n
		}
	}

	for field, msg := range record.Validate() {
		if _, exists := errs[field]; !exists {
			errs[field] = msg
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return record, nil
}

// Lenient 不做校验地转换表单，用于无状态的响应 API：缺失或非法的字段在提示词中显示为未指定。
func (f IntakeForm) Lenient() *IntakeRecord {
	severity, _ := strconv.Atoi(strings.TrimSpace(string(f.Severity)))
	if severity < MinSeverity || severity > MaxSeverity {
		severity = 0
	}
	return &IntakeRecord{
		AgeRange: strings.TrimSpace(f.AgeRange),
		Sex:      strings.TrimSpace(f.Sex),
		Symptom:  strings.TrimSpace(f.Symptom),
		Duration: strings.TrimSpace(f.Duration),
		Severity: severity,
		Context:  strings.TrimSpace(f.Context),
	}
}

// IsEmpty 判断表单是否完全没有内容。
func (f IntakeForm) IsEmpty() bool {
	return strings.TrimSpace(f.AgeRange+f.Sex+f.Symptom+f.Duration+string(f.Severity)+f.Context) == ""
}

// Validate 校验记录的所有字段，返回 nil 表示通过。
func (r *IntakeRecord) Validate() FieldErrors {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_": err.Error()}
	}
	errs := FieldErrors{}
	for _, fe := range verrs {
		errs[fe.Field()] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "ageRange":
		return "Please select your age range."
	case "sex":
		return "Please choose a listed option or leave this blank."
	case "symptom":
		if fe.Tag() == "maxrunes" {
			return "Please keep the description under 500 characters."
		}
		return "Please describe your main symptom."
	case "duration":
		return "Please select how long you have had this symptom."
	case "severity":
		return "Severity must be a whole number from 1 to 5."
	case "context":
		return "Please keep additional context under 2000 characters."
	}
	return "Invalid value."
}

// IsSevere 判断是否需要在首次评估中包含紧急就医提示。
func (r *IntakeRecord) IsSevere() bool {
	return r.Severity >= 4
}
