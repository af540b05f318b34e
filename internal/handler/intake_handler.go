package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medai-go/internal/middleware"
	"medai-go/internal/model"
	"medai-go/internal/service"
	"medai-go/internal/view"
	"medai-go/pkg/log"
)

const chatPath = "/chat/"

// IntakeHandler 处理问诊表单提交。
type IntakeHandler struct {
	intakeService service.IntakeService
}

// NewIntakeHandler 创建一个新的 IntakeHandler。
func NewIntakeHandler(intakeService service.IntakeService) *IntakeHandler {
	return &IntakeHandler{intakeService: intakeService}
}

// Submit 接受表单或 JSON。校验通过后表单请求 303 跳转到聊天页，JSON 请求返回 201 和跳转地址。
func (h *IntakeHandler) Submit(c *gin.Context) {
	asJSON := wantsJSON(c)

	var form model.IntakeForm
	if err := c.ShouldBind(&form); err != nil {
		log.Warnf("Submit: 无效的问诊表单: %v", err)
		if asJSON {
			respondError(c, http.StatusBadRequest, "Invalid request payload")
			return
		}
		c.HTML(http.StatusBadRequest, "landing.html", view.NewLandingPage(middleware.CSRFToken(c), form, nil))
		return
	}

	record, fieldErrs, err := h.intakeService.Submit(c.Request.Context(), middleware.SessionID(c), form)
	switch {
	case errors.Is(err, service.ErrTurnInFlight):
		if asJSON {
			respondError(c, http.StatusConflict, "Please wait for the current response to finish")
			return
		}
		page := view.NewLandingPage(middleware.CSRFToken(c), form, nil)
		page.Notice = "MedAI is still answering your last message. Please wait a moment and submit again."
		c.HTML(http.StatusConflict, "landing.html", page)
		return
	case err != nil:
		log.Errorf("Submit: 保存问诊记录失败: %v", err)
		if asJSON {
			respondError(c, http.StatusServiceUnavailable, "Session store is temporarily unavailable, please try again")
			return
		}
		c.HTML(http.StatusServiceUnavailable, "session_error.html", view.StoreUnavailablePage)
		return
	case fieldErrs != nil:
		if asJSON {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":    http.StatusUnprocessableEntity,
				"message": "validation failed",
				"data":    gin.H{"errors": fieldErrs},
			})
			return
		}
		c.HTML(http.StatusUnprocessableEntity, "landing.html", view.NewLandingPage(middleware.CSRFToken(c), form, fieldErrs))
		return
	}

	log.Infow("intake stored", "sessionId", middleware.SessionID(c), "severity", record.Severity)
	if asJSON {
		respond(c, http.StatusCreated, gin.H{"redirect": chatPath, "intake": record})
		return
	}
	c.Redirect(http.StatusSeeOther, chatPath)
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
