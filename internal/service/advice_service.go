// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"

	"medai-go/internal/config"
	"medai-go/internal/model"
	"medai-go/pkg/llm"
)

// AdviceRequest 是响应 API 的输入：当前消息、历史与问诊记录。
type AdviceRequest struct {
	Message string
	History []model.ChatMessage
	Intake  *model.IntakeRecord
}

// AdviceService 调用模型生成医疗建议回复。writer 非空时以流式方式输出分块。
type AdviceService interface {
	Respond(ctx context.Context, req AdviceRequest, writer llm.MessageWriter) (string, error)
	InitialAssessment(ctx context.Context, intake *model.IntakeRecord, writer llm.MessageWriter) (string, error)
}

type adviceService struct {
	llmClient llm.Client
	prompts   promptBuilder
	llmCfg    config.LLMConfig
}

// NewAdviceService 创建一个新的 AdviceService 实例。
func NewAdviceService(llmClient llm.Client, llmCfg config.LLMConfig, chatCfg config.ChatConfig) AdviceService {
	return &adviceService{
		llmClient: llmClient,
		prompts:   newPromptBuilder(chatCfg),
		llmCfg:    llmCfg,
	}
}

func (s *adviceService) Respond(ctx context.Context, req AdviceRequest, writer llm.MessageWriter) (string, error) {
	system, user := s.prompts.ChatMessages(req.Message, req.History, req.Intake)
	return s.complete(ctx, system, user, writer)
}

func (s *adviceService) InitialAssessment(ctx context.Context, intake *model.IntakeRecord, writer llm.MessageWriter) (string, error) {
	system, user := s.prompts.InitialMessages(intake)
	return s.complete(ctx, system, user, writer)
}

func (s *adviceService) complete(ctx context.Context, system, user string, writer llm.MessageWriter) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.llmCfg.Timeout())
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	var (
		answer string
		err    error
	)
	if writer != nil {
		answer, err = s.llmClient.StreamChatMessages(ctx, messages, nil, writer)
	} else {
		answer, err = s.llmClient.Chat(ctx, messages, nil)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate advice: %w", err)
	}
	return answer, nil
}
