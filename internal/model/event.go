package model

import "time"

// TurnEvent 在每个轮次结束后发布，不包含任何患者输入或模型输出的内容。
type TurnEvent struct {
	SessionID  string    `json:"sessionId"`
	Kind       string    `json:"kind"`    // "initial" 或 "message"
	Outcome    string    `json:"outcome"` // "answered" 或 "failed"
	LatencyMs  int64     `json:"latencyMs"`
	Sections   []string  `json:"sections,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	TurnKindInitial = "initial"
	TurnKindMessage = "message"

	OutcomeAnswered = "answered"
	OutcomeFailed   = "failed"
)
