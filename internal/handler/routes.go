package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medai-go/internal/service"
	"medai-go/internal/view"
)

// Services 汇总路由需要的业务服务。
type Services struct {
	Intake service.IntakeService
	Chat   service.ChatService
	Advice service.AdviceService
}

// RegisterRoutes 注册所有页面、聊天与响应接口路由。调用方负责先挂载会话与 CSRF 中间件。
func RegisterRoutes(r *gin.Engine, svc Services, allowedOrigins []string) {
	r.SetHTMLTemplate(view.Templates())
	r.StaticFS("/static", view.Static())

	pages := NewPageHandler(svc.Intake, svc.Chat)
	intake := NewIntakeHandler(svc.Intake)
	chat := NewChatHandler(svc.Chat, allowedOrigins)
	api := NewAPIHandler(svc.Advice)

	r.GET("/", pages.Landing)
	r.POST("/intake", intake.Submit)

	chatGroup := r.Group("/chat")
	{
		chatGroup.GET("/", pages.Chat)
		chatGroup.POST("/messages", chat.SendMessage)
		chatGroup.POST("/start", chat.Start)
		chatGroup.GET("/ws", chat.Stream)
	}
	r.POST("/session/reset", chat.Reset)

	apiGroup := r.Group("/api")
	{
		apiGroup.Any("/chat/", api.Chat)
		apiGroup.Any("/initial-consultation/", api.InitialConsultation)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
