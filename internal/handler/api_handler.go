package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medai-go/internal/advice"
	"medai-go/internal/model"
	"medai-go/internal/service"
	"medai-go/pkg/llm"
	"medai-go/pkg/log"
)

// APIHandler 实现无状态的响应接口：历史与问诊数据都由调用方随请求提交。
type APIHandler struct {
	adviceService service.AdviceService
}

// NewAPIHandler 创建一个新的 APIHandler。
func NewAPIHandler(adviceService service.AdviceService) *APIHandler {
	return &APIHandler{adviceService: adviceService}
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatAPIRequest struct {
	Message    string            `json:"message"`
	History    []historyEntry    `json:"history"`
	IntakeData *model.IntakeForm `json:"intake_data"`
}

type consultationAPIRequest struct {
	IntakeData *model.IntakeForm `json:"intake_data"`
}

// Chat 处理 POST /api/chat/。
func (h *APIHandler) Chat(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		methodNotAllowed(c)
		return
	}
	var req chatAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "status": "error"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided", "status": "error"})
		return
	}

	history := make([]model.ChatMessage, 0, len(req.History))
	for _, e := range req.History {
		if e.Role != model.RoleUser && e.Role != model.RoleAssistant {
			continue
		}
		history = append(history, model.ChatMessage{Role: e.Role, Content: e.Content})
	}
	// 空对象与缺失同样处理，提示词中不出现患者信息块
	var intake *model.IntakeRecord
	if req.IntakeData != nil && !req.IntakeData.IsEmpty() {
		intake = req.IntakeData.Lenient()
	}

	answer, err := h.adviceService.Respond(c.Request.Context(), service.AdviceRequest{
		Message: message,
		History: history,
		Intake:  intake,
	}, nil)
	h.reply(c, answer, err)
}

// InitialConsultation 处理 POST /api/initial-consultation/。
func (h *APIHandler) InitialConsultation(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		methodNotAllowed(c)
		return
	}
	var req consultationAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "status": "error"})
		return
	}
	if req.IntakeData == nil || req.IntakeData.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No intake data provided", "status": "error"})
		return
	}

	answer, err := h.adviceService.InitialAssessment(c.Request.Context(), req.IntakeData.Lenient(), nil)
	h.reply(c, answer, err)
}

func (h *APIHandler) reply(c *gin.Context, answer string, err error) {
	if errors.Is(err, llm.ErrEmptyResponse) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No response generated from AI", "status": "error"})
		return
	}
	if err != nil {
		log.Errorf("response API failed: path=%s, err=%v", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "An error occurred while processing your request",
			"details": err.Error(),
			"status":  "error",
		})
		return
	}
	structured := advice.Parse(answer)
	c.JSON(http.StatusOK, gin.H{
		"response": answer,
		"status":   "success",
		"sections": structured.Sections,
		"schema":   structured.Schema,
	})
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
