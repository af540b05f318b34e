package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medai-go/internal/middleware"
	"medai-go/internal/model"
	"medai-go/internal/service"
	"medai-go/internal/view"
	"medai-go/pkg/log"
)

// PageHandler 负责渲染问诊表单页与聊天页。
type PageHandler struct {
	intakeService service.IntakeService
	chatService   service.ChatService
}

// NewPageHandler 创建一个新的 PageHandler。
func NewPageHandler(intakeService service.IntakeService, chatService service.ChatService) *PageHandler {
	return &PageHandler{intakeService: intakeService, chatService: chatService}
}

// Landing 渲染问诊表单。已有问诊记录时回填上次的内容。
func (h *PageHandler) Landing(c *gin.Context) {
	var form model.IntakeForm
	if record, err := h.intakeService.Get(c.Request.Context(), middleware.SessionID(c)); err == nil {
		form = model.IntakeForm{
			AgeRange: record.AgeRange,
			Sex:      record.Sex,
			Symptom:  record.Symptom,
			Duration: record.Duration,
			Severity: model.FlexString(itoa(record.Severity)),
			Context:  record.Context,
		}
	} else if !errors.Is(err, service.ErrIntakeNotFound) {
		log.Warnf("Landing: 读取问诊记录失败: %v", err)
	}
	c.HTML(http.StatusOK, "landing.html", view.NewLandingPage(middleware.CSRFToken(c), form, nil))
}

// Chat 渲染聊天页。没有问诊记录或存储不可用时渲染阻断页面。
func (h *PageHandler) Chat(c *gin.Context) {
	conv, err := h.chatService.Conversation(c.Request.Context(), middleware.SessionID(c))
	switch {
	case errors.Is(err, service.ErrIntakeNotFound):
		c.HTML(http.StatusOK, "session_error.html", view.MissingIntakePage)
		return
	case err != nil:
		log.Errorf("Chat: 读取会话失败: %v", err)
		c.HTML(http.StatusServiceUnavailable, "session_error.html", view.StoreUnavailablePage)
		return
	}
	c.HTML(http.StatusOK, "chat.html", view.NewChatPage(middleware.CSRFToken(c), conv))
}
