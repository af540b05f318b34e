package model

// AdviceSchemaVersion 是 UI 与响应 API 之间约定的内容格式版本。
const AdviceSchemaVersion = "v1"

// SectionKind 标识结构化回复中的一个建议分区。
type SectionKind string

const (
	SectionPossibleCauses SectionKind = "possible_causes"
	SectionSelfCare       SectionKind = "self_care"
	SectionImmediateCare  SectionKind = "immediate_care"
	SectionSeeDoctor      SectionKind = "see_doctor"
)

// SectionKinds 按展示顺序列出所有分区。
var SectionKinds = []SectionKind{SectionPossibleCauses, SectionSelfCare, SectionImmediateCare, SectionSeeDoctor}

// DefaultTitle 返回分区的默认标题。
func (k SectionKind) DefaultTitle() string {
	switch k {
	case SectionPossibleCauses:
		return "Possible Causes"
	case SectionSelfCare:
		return "Self-Care Advice"
	case SectionImmediateCare:
		return "When to Seek Immediate Care"
	case SectionSeeDoctor:
		return "When to See a Doctor"
	}
	return string(k)
}

// Valid 判断是否为已知的分区类型。
func (k SectionKind) Valid() bool {
	for _, known := range SectionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Section 是一个可折叠的建议分区，Body 为已净化的 HTML。
type Section struct {
	Kind  SectionKind `json:"kind"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

// StructuredResponse 是解析后的助手回复。没有识别到分区时 Sections 为空，Intro 即完整内容。
type StructuredResponse struct {
	Schema   string    `json:"schema"`
	Intro    string    `json:"intro,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Outro    string    `json:"outro,omitempty"`
}

// IsStructured 判断回复中是否包含至少一个分区。
func (r StructuredResponse) IsStructured() bool {
	return len(r.Sections) > 0
}

// Section 按类型查找分区。
func (r StructuredResponse) Section(kind SectionKind) (Section, bool) {
	for _, s := range r.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}
