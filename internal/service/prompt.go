package service

import (
	"fmt"
	"strconv"
	"strings"

	"medai-go/internal/advice"
	"medai-go/internal/config"
	"medai-go/internal/model"
)

const systemGuidelines = `You are MedAI, a compassionate and knowledgeable medical AI assistant. Your role is to provide evidence-based health information and guidance while maintaining appropriate medical boundaries.

IMPORTANT GUIDELINES:
1. Be empathetic, supportive, and use clear language
2. Provide general health information and education
3. Always emphasize that you're not a substitute for professional medical advice
4. Never provide specific medical diagnoses or prescriptions
5. Focus on self-care guidance and when to seek medical attention
6. If symptoms sound serious or life-threatening, strongly urge immediate medical attention
7. Structure responses clearly with sections like "Possible Causes", "Self-Care Advice", "When to See a Doctor"
8. Use HTML formatting for better readability (paragraphs, lists, bold text)

EMERGENCY SYMPTOMS that require immediate medical attention:
- Difficulty breathing or shortness of breath
- Chest pain or pressure
- Severe bleeding
- Loss of consciousness or severe confusion
- Severe allergic reactions
- Suspected stroke symptoms (FAST: Face drooping, Arm weakness, Speech difficulty, Time to call 911)
- Severe abdominal pain
- High fever (above 103°F/39.4°C) with other serious symptoms
`

// sectionFormat 描述 v1 内容格式，回复解析依赖这些标记。
const sectionFormat = `FORMAT YOUR RESPONSE WITH HTML:
- Use <p> for paragraphs
- Use <strong> for emphasis
- Use <ul> and <li> for lists
- Wrap each advisory section in a section element marked with data-advice, for example:

<section data-advice="self_care">
    <h3>Self-Care Advice</h3>
    <p>Content here with <strong>bold text</strong> and lists</p>
</section>

Allowed data-advice values: possible_causes, self_care, immediate_care, see_doctor.
Do not wrap the response in code fences.`

// promptBuilder 根据问诊记录与对话历史构建提示词。
type promptBuilder struct {
	chat config.ChatConfig
}

func newPromptBuilder(chat config.ChatConfig) promptBuilder {
	return promptBuilder{chat: chat.WithDefaults()}
}

func patientBlock(intake *model.IntakeRecord) string {
	if intake == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("PATIENT INFORMATION:\n")
	fmt.Fprintf(&sb, "- Age Range: %s\n", orDefault(intake.AgeRange, "Not specified"))
	fmt.Fprintf(&sb, "- Sex: %s\n", orDefault(intake.Sex, "Not specified"))
	fmt.Fprintf(&sb, "- Main Symptom: %s\n", orDefault(intake.Symptom, "Not specified"))
	fmt.Fprintf(&sb, "- Duration: %s\n", orDefault(intake.Duration, "Not specified"))
	severity := "Not specified"
	if intake.Severity > 0 {
		severity = strconv.Itoa(intake.Severity)
	}
	fmt.Fprintf(&sb, "- Severity (1-5): %s\n", severity)
	fmt.Fprintf(&sb, "- Additional Context: %s\n", orDefault(intake.Context, "None provided"))
	return sb.String()
}

// historyBlock 只保留最近 HistoryWindow 条消息，助手消息去掉 HTML 并截断。
func (b promptBuilder) historyBlock(history []model.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > b.chat.HistoryWindow {
		recent = recent[len(recent)-b.chat.HistoryWindow:]
	}
	var sb strings.Builder
	sb.WriteString("RECENT CONVERSATION:\n")
	for _, msg := range recent {
		switch msg.Role {
		case model.RoleUser:
			fmt.Fprintf(&sb, "Patient: %s\n", msg.Content)
		case model.RoleAssistant:
			if msg.Failed {
				continue
			}
			clean := advice.Truncate(advice.PlainText(msg.Content), b.chat.AssistantContextChars)
			fmt.Fprintf(&sb, "You: %s\n", clean)
		}
	}
	return sb.String()
}

// ChatMessages 组装一次跟进对话的 system 与 user 消息。
func (b promptBuilder) ChatMessages(message string, history []model.ChatMessage, intake *model.IntakeRecord) (system, user string) {
	var sys strings.Builder
	sys.WriteString(systemGuidelines)
	if block := patientBlock(intake); block != "" {
		sys.WriteString("\n")
		sys.WriteString(block)
	}
	if block := b.historyBlock(history); block != "" {
		sys.WriteString("\n")
		sys.WriteString(block)
	}
	sys.WriteString("\n")
	sys.WriteString(sectionFormat)

	user = fmt.Sprintf(`CURRENT PATIENT MESSAGE:
%s

Please provide a helpful, medically-informed response. Use HTML formatting (paragraphs, bold text, lists) to make your response clear and easy to read. Structure your response with appropriate sections if needed.`, message)
	return sys.String(), user
}

// InitialMessages 组装首次评估的提示词。严重程度为 4-5 时要求包含紧急就医分区。
func (b promptBuilder) InitialMessages(intake *model.IntakeRecord) (system, user string) {
	var sys strings.Builder
	sys.WriteString("You are MedAI, a compassionate medical AI assistant. A patient has just shared their symptoms with you. Provide a thorough initial assessment.\n\n")
	sys.WriteString(patientBlock(intake))
	sys.WriteString("\n")
	sys.WriteString(sectionFormat)

	sections := "possible_causes, self_care and see_doctor"
	if intake != nil && intake.IsSevere() {
		sections = "possible_causes, self_care, immediate_care and see_doctor"
	}
	user = fmt.Sprintf(`INSTRUCTIONS:
1. Start with a warm, empathetic greeting
2. Provide an initial assessment with possible causes
3. Offer evidence-based self-care advice
4. If severity is 4-5, include an urgent care warning
5. Explain when to see a doctor
6. End by asking if they have questions

Create sections for: %s.

Provide a comprehensive, caring, and medically-informed initial assessment.`, sections)
	return sys.String(), user
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
