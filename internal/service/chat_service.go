package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medai-go/internal/advice"
	"medai-go/internal/config"
	"medai-go/internal/model"
	"medai-go/internal/repository"
	"medai-go/pkg/llm"
	"medai-go/pkg/log"
)

var (
	// ErrEmptyMessage 表示提交的消息去掉空白后为空。
	ErrEmptyMessage = errors.New("no message provided")
	// ErrTurnInFlight 表示该会话已有轮次在等待响应，新的提交被拒绝。
	ErrTurnInFlight = errors.New("a response is already being generated for this session")
)

// ChatService 定义了聊天轮次的接口。
type ChatService interface {
	// Conversation 返回聊天页面需要的问诊记录、历史消息和轮次状态。
	Conversation(ctx context.Context, sessionID string) (*model.Conversation, error)
	// SubmitTurn 追加用户消息并调用模型。每个被接受的用户消息都恰好产生一个助手消息或一个致歉消息。
	SubmitTurn(ctx context.Context, sessionID, message string, writer llm.MessageWriter) (*model.TurnResult, error)
	// StartConsultation 在对话为空时生成首次评估，已开始的对话返回 nil。
	StartConsultation(ctx context.Context, sessionID string, writer llm.MessageWriter) (*model.TurnResult, error)
	// Reset 结束当前问诊，清除会话中的问诊记录与历史。有轮次在等待响应时返回 ErrTurnInFlight。
	Reset(ctx context.Context, sessionID string) error
}

type chatService struct {
	intakeRepo       repository.IntakeRepository
	conversationRepo repository.ConversationRepository
	guard            repository.TurnGuard
	advice           AdviceService
	publisher        EventPublisher
	apology          string
	now              func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	intakeRepo repository.IntakeRepository,
	conversationRepo repository.ConversationRepository,
	guard repository.TurnGuard,
	adviceService AdviceService,
	publisher EventPublisher,
	chatCfg config.ChatConfig,
) ChatService {
	if publisher == nil {
		publisher = NopPublisher
	}
	return &chatService{
		intakeRepo:       intakeRepo,
		conversationRepo: conversationRepo,
		guard:            guard,
		advice:           adviceService,
		publisher:        publisher,
		apology:          chatCfg.WithDefaults().ApologyMessage,
		now:              time.Now,
	}
}

func (s *chatService) Conversation(ctx context.Context, sessionID string) (*model.Conversation, error) {
	intake, err := loadIntake(ctx, s.intakeRepo, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.conversationRepo.GetConversationHistory(ctx, sessionID, intake.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	held, err := s.guard.Held(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	state := model.TurnRendered
	switch {
	case held:
		state = model.TurnAwaitingResponse
	case len(history) == 0:
		state = model.TurnIdle
	}
	return &model.Conversation{Intake: intake, Turns: history, State: state}, nil
}

func (s *chatService) SubmitTurn(ctx context.Context, sessionID, message string, writer llm.MessageWriter) (*model.TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	// 先占用再读取问诊记录，等待期间问诊记录不会被替换或清除
	release, err := acquireTurn(ctx, s.guard, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	intake, err := loadIntake(ctx, s.intakeRepo, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.conversationRepo.GetConversationHistory(ctx, sessionID, intake.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	prior := history

	// 乐观追加：用户消息先写入，之后无论模型成功与否都会追加一条终态消息
	userTurn := model.ChatMessage{Role: model.RoleUser, Content: message, Timestamp: s.now()}
	history = append(history[:len(history):len(history)], userTurn)
	if err := s.conversationRepo.UpdateConversationHistory(ctx, sessionID, intake.ID, history); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := s.settle(ctx, sessionID, intake.ID, model.TurnKindMessage, history, func(ctx context.Context) (string, error) {
		return s.advice.Respond(ctx, AdviceRequest{Message: message, History: prior, Intake: intake}, writer)
	})
	result.User = userTurn
	return result, nil
}

func (s *chatService) StartConsultation(ctx context.Context, sessionID string, writer llm.MessageWriter) (*model.TurnResult, error) {
	release, err := acquireTurn(ctx, s.guard, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	intake, err := loadIntake(ctx, s.intakeRepo, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.conversationRepo.GetConversationHistory(ctx, sessionID, intake.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(history) > 0 {
		return nil, nil
	}

	return s.settle(ctx, sessionID, intake.ID, model.TurnKindInitial, history, func(ctx context.Context) (string, error) {
		return s.advice.InitialAssessment(ctx, intake, writer)
	}), nil
}

func (s *chatService) Reset(ctx context.Context, sessionID string) error {
	// 等待中的轮次结束前不能清除，否则它的结果会写回已结束的问诊
	release, err := acquireTurn(ctx, s.guard, sessionID)
	if err != nil {
		return err
	}
	defer release()

	intake, err := loadIntake(ctx, s.intakeRepo, sessionID)
	if errors.Is(err, ErrIntakeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.conversationRepo.DeleteConversation(ctx, sessionID, intake.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.intakeRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// acquireTurn 进入 AwaitingResponse 状态，返回的函数负责释放占用。
// 问诊提交与重置也经过它，同一会话的写操作因此互斥。
func acquireTurn(ctx context.Context, guard repository.TurnGuard, sessionID string) (func(), error) {
	ok, err := guard.Acquire(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrTurnInFlight
	}
	return func() {
		if err := guard.Release(context.WithoutCancel(ctx), sessionID); err != nil {
			log.Errorf("释放会话占用失败: session=%s, err=%v", sessionID, err)
		}
	}, nil
}

// settle 调用模型并追加唯一的终态消息。模型失败或请求被取消时追加固定的致歉消息，模型结果被丢弃。
func (s *chatService) settle(
	ctx context.Context,
	sessionID, intakeID, kind string,
	history []model.ChatMessage,
	generate func(context.Context) (string, error),
) *model.TurnResult {
	start := s.now()
	content, err := generate(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	assistant := model.ChatMessage{Role: model.RoleAssistant, Timestamp: s.now()}
	var structured model.StructuredResponse
	outcome := model.OutcomeAnswered
	if err != nil {
		log.Warnw("模型调用失败，返回致歉消息", "sessionId", sessionID, "kind", kind, "error", err)
		assistant.Content = s.apology
		assistant.Failed = true
		structured = model.StructuredResponse{Schema: advice.SchemaPlain, Intro: advice.Sanitize(s.apology)}
		outcome = model.OutcomeFailed
	} else {
		assistant.Content = content
		structured = advice.Parse(content)
	}

	history = append(history, assistant)
	// 即使客户端已经离开，也要保证历史中用户消息与终态消息成对出现
	persistCtx := context.WithoutCancel(ctx)
	if err := s.conversationRepo.UpdateConversationHistory(persistCtx, sessionID, intakeID, history); err != nil {
		log.Errorf("保存对话历史失败: session=%s, err=%v", sessionID, err)
	} else {
		log.Debugw("conversation persisted", "sessionId", sessionID, "intakeId", intakeID, "turns", len(history))
	}

	latency := s.now().Sub(start)
	s.publish(persistCtx, model.TurnEvent{
		SessionID:  sessionID,
		Kind:       kind,
		Outcome:    outcome,
		LatencyMs:  latency.Milliseconds(),
		Sections:   sectionNames(structured),
		OccurredAt: s.now().UTC(),
	})
	log.Infow("chat turn settled", "sessionId", sessionID, "kind", kind, "outcome", outcome, "latency", latency.String())

	return &model.TurnResult{
		Assistant:     assistant,
		Structured:    structured,
		State:         model.TurnRendered,
		HistoryLength: len(history),
	}
}

func (s *chatService) publish(ctx context.Context, event model.TurnEvent) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishTurnEvent(ctx, event); err != nil {
		log.Warnf("发布轮次事件失败: session=%s, err=%v", event.SessionID, err)
	}
}

func sectionNames(r model.StructuredResponse) []string {
	if !r.IsStructured() {
		return nil
	}
	names := make([]string, 0, len(r.Sections))
	for _, sec := range r.Sections {
		names = append(names, string(sec.Kind))
	}
	return names
}
