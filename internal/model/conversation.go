package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 代表存储在会话存储中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Failed 标记由于模型调用失败而生成的致歉消息。
	Failed bool `json:"failed,omitempty"`
}

// TurnState 描述单个会话当前所处的轮次状态。
type TurnState string

const (
	TurnIdle             TurnState = "idle"
	TurnAwaitingResponse TurnState = "awaiting_response"
	TurnRendered         TurnState = "rendered"
)

// Conversation 是聊天页面所需的全部状态：问诊记录、消息序列与轮次状态。
type Conversation struct {
	Intake *IntakeRecord `json:"intake"`
	Turns  []ChatMessage `json:"turns"`
	State  TurnState     `json:"state"`
}

// TurnResult 是一次用户提交得到的终态结果。
type TurnResult struct {
	User          ChatMessage        `json:"user"`
	Assistant     ChatMessage        `json:"assistant"`
	Structured    StructuredResponse `json:"structured"`
	State         TurnState          `json:"state"`
	HistoryLength int                `json:"historyLength"`
}
