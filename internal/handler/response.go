// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"medai-go/internal/model"
	"medai-go/internal/view"
)

// wantsJSON 判断调用方是脚本还是浏览器表单，两者共用同一路由。
func wantsJSON(c *gin.Context) bool {
	return c.ContentType() == binding.MIMEJSON || strings.Contains(c.GetHeader("Accept"), binding.MIMEJSON)
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": "success", "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// turnPayload 是一个已结束轮次返回给前端的数据，html 为服务端渲染的消息片段。
func turnPayload(result *model.TurnResult) (gin.H, error) {
	html, err := view.RenderTurn(view.NewTurn(result.Assistant))
	if err != nil {
		return nil, err
	}
	return gin.H{
		"html":          html,
		"failed":        result.Assistant.Failed,
		"state":         result.State,
		"historyLength": result.HistoryLength,
		"sections":      result.Structured.Sections,
		"schema":        result.Structured.Schema,
	}, nil
}
