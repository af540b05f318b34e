package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medai-go/internal/model"
	"medai-go/internal/repository"
	"medai-go/pkg/log"
)

var (
	// ErrIntakeNotFound 表示当前会话还没有提交问诊表单。
	ErrIntakeNotFound = errors.New("no intake record for this session")
	// ErrStoreUnavailable 表示会话存储无法访问。
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// IntakeService 定义了问诊表单的业务操作。
type IntakeService interface {
	// Submit 校验表单，通过后整体写入会话存储并开始一段新的对话。校验失败返回 FieldErrors 且不写入任何数据。
	// 会话中仍有轮次在等待响应时返回 ErrTurnInFlight。
	Submit(ctx context.Context, sessionID string, form model.IntakeForm) (*model.IntakeRecord, model.FieldErrors, error)
	Get(ctx context.Context, sessionID string) (*model.IntakeRecord, error)
}

type intakeService struct {
	repo             repository.IntakeRepository
	conversationRepo repository.ConversationRepository
	guard            repository.TurnGuard
	now              func() time.Time
}

// NewIntakeService 创建一个新的 IntakeService。
func NewIntakeService(
	repo repository.IntakeRepository,
	conversationRepo repository.ConversationRepository,
	guard repository.TurnGuard,
) IntakeService {
	return &intakeService{repo: repo, conversationRepo: conversationRepo, guard: guard, now: time.Now}
}

func (s *intakeService) Submit(ctx context.Context, sessionID string, form model.IntakeForm) (*model.IntakeRecord, model.FieldErrors, error) {
	record, fieldErrs := form.ToRecord(s.now().UTC())
	if fieldErrs != nil {
		return nil, fieldErrs, nil
	}

	release, err := acquireTurn(ctx, s.guard, sessionID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	previous, err := s.repo.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record.ID = uuid.NewString()
	if err := s.repo.Save(ctx, sessionID, record); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// 旧问诊的历史不再可达，删除失败时由 TTL 回收
	if previous != nil {
		if err := s.conversationRepo.DeleteConversation(ctx, sessionID, previous.ID); err != nil {
			log.Warnf("删除旧对话历史失败: session=%s, err=%v", sessionID, err)
		}
	}
	return record, nil, nil
}

func (s *intakeService) Get(ctx context.Context, sessionID string) (*model.IntakeRecord, error) {
	return loadIntake(ctx, s.repo, sessionID)
}

// loadIntake 把存储层错误转换为服务层的哨兵错误。
func loadIntake(ctx context.Context, repo repository.IntakeRepository, sessionID string) (*model.IntakeRecord, error) {
	record, err := repo.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrIntakeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}
