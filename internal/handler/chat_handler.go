package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"medai-go/internal/middleware"
	"medai-go/internal/model"
	"medai-go/internal/service"
	"medai-go/pkg/log"
)

// ChatHandler 负责聊天轮次的提交、流式连接与结束问诊。
type ChatHandler struct {
	chatService service.ChatService
	upgrader    websocket.Upgrader
}

// NewChatHandler 创建一个新的 ChatHandler。allowedOrigins 为空时 WebSocket 只接受同源连接。
func NewChatHandler(chatService service.ChatService, allowedOrigins []string) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(allowedOrigins),
		},
	}
}

type sendMessageRequest struct {
	Message string `form:"message" json:"message"`
}

// SendMessage 提交一条用户消息。表单请求 303 回到聊天页，JSON 请求返回该轮次的渲染结果。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	asJSON := wantsJSON(c)
	var req sendMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := h.chatService.SubmitTurn(c.Request.Context(), middleware.SessionID(c), req.Message, nil)
	if err != nil {
		if !asJSON && errors.Is(err, service.ErrEmptyMessage) {
			c.Redirect(http.StatusSeeOther, chatPath)
			return
		}
		h.fail(c, err)
		return
	}
	if !asJSON {
		c.Redirect(http.StatusSeeOther, chatPath)
		return
	}
	h.respondTurn(c, result)
}

// Start 在对话为空时生成首次评估。对话已经开始时返回 started=false。
func (h *ChatHandler) Start(c *gin.Context) {
	result, err := h.chatService.StartConsultation(c.Request.Context(), middleware.SessionID(c), nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result == nil {
		respond(c, http.StatusOK, gin.H{"started": false})
		return
	}
	h.respondTurn(c, result)
}

// Reset 结束当前问诊并回到表单页。
func (h *ChatHandler) Reset(c *gin.Context) {
	if err := h.chatService.Reset(c.Request.Context(), middleware.SessionID(c)); err != nil {
		// 表单提交时回到聊天页，页面会显示仍在等待的轮次
		if errors.Is(err, service.ErrTurnInFlight) && !wantsJSON(c) {
			c.Redirect(http.StatusSeeOther, chatPath)
			return
		}
		h.fail(c, err)
		return
	}
	if wantsJSON(c) {
		respond(c, http.StatusOK, gin.H{"redirect": "/"})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *ChatHandler) respondTurn(c *gin.Context, result *model.TurnResult) {
	payload, err := turnPayload(result)
	if err != nil {
		log.Error("渲染消息失败", err)
		respondError(c, http.StatusInternalServerError, "Unable to render the response")
		return
	}
	respond(c, http.StatusOK, payload)
}

// fail 把服务层错误映射为 HTTP 状态码。
func (h *ChatHandler) fail(c *gin.Context, err error) {
	status, message := chatErrorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("chat request failed: session=%s, err=%v", middleware.SessionID(c), err)
	}
	respondError(c, status, message)
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return http.StatusBadRequest, "No message provided"
	case errors.Is(err, service.ErrIntakeNotFound):
		return http.StatusBadRequest, "Please complete the intake form first"
	case errors.Is(err, service.ErrTurnInFlight):
		return http.StatusConflict, "Please wait for the current response to finish"
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Session store is temporarily unavailable, please try again"
	}
	return http.StatusInternalServerError, "An error occurred while processing your request"
}

// streamRequest 是客户端经 WebSocket 发送的指令：type 为 "message" 或 "start"。
type streamRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Stream 处理 /chat/ws 连接。每条指令对应一个轮次，模型输出以分块下发，结束时发送 completion。
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, session=%s", sessionID)

	ws := &lockedConn{conn: conn}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}
		var req streamRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			ws.writeJSON(gin.H{"type": "error", "error": "Invalid message format"})
			continue
		}

		interceptor := &chunkWriter{conn: ws}
		var result *model.TurnResult
		if req.Type == "start" {
			result, err = h.chatService.StartConsultation(c.Request.Context(), sessionID, interceptor)
		} else {
			result, err = h.chatService.SubmitTurn(c.Request.Context(), sessionID, req.Message, interceptor)
		}
		if err != nil {
			_, message := chatErrorStatus(err)
			ws.writeJSON(gin.H{"type": "error", "error": message})
			continue
		}
		if result == nil {
			ws.writeJSON(gin.H{"type": "completion", "status": "finished"})
			continue
		}
		payload, err := turnPayload(result)
		if err != nil {
			log.Error("渲染消息失败", err)
			ws.writeJSON(gin.H{"type": "error", "error": "Unable to render the response"})
			continue
		}
		payload["type"] = "completion"
		payload["status"] = "finished"
		ws.writeJSON(payload)
	}
}

// lockedConn 串行化对同一连接的写入。
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedConn) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

func (l *lockedConn) writeJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("序列化 WebSocket 消息失败", err)
		return
	}
	if err := l.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("WebSocket 写入失败: %v", err)
	}
}

// chunkWriter 把模型的原始分块包装成 {"chunk":"..."}。
type chunkWriter struct {
	conn *lockedConn
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	b, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, b)
}

// checkOrigin 允许同源连接以及 allowed 中列出的来源。
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}
