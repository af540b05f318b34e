// Package view 负责页面模板与静态资源，模板和资源都嵌入到二进制中。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"medai-go/internal/advice"
	"medai-go/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var funcs = template.FuncMap{
	// safe 只用于已经过 bluemonday 净化的助手内容
	"safe": func(s string) template.HTML { return template.HTML(s) },
	"openByDefault": func(k model.SectionKind) bool {
		return k == model.SectionImmediateCare
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("15:04")
	},
	"orDash": func(s string) string {
		if s == "" {
			return "Not specified"
		}
		return s
	},
	"selected": func(current, option string) bool { return current == option },
}

var templates = template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// Templates 返回解析好的模板集合，交给 gin.Engine.SetHTMLTemplate 使用。
func Templates() *template.Template {
	return templates
}

// Static 返回静态资源文件系统，挂载在 /static 下。
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// LandingPage 是问诊表单页面的数据。
type LandingPage struct {
	CSRFToken  string
	Form       model.IntakeForm
	Errors     model.FieldErrors
	Notice     string
	AgeRanges  []string
	Sexes      []string
	Durations  []string
	Severities []string
}

// NewLandingPage 构建表单页面数据，form 和 errs 用于校验失败后回填。
func NewLandingPage(csrfToken string, form model.IntakeForm, errs model.FieldErrors) LandingPage {
	severities := make([]string, 0, model.MaxSeverity)
	for i := model.MinSeverity; i <= model.MaxSeverity; i++ {
		severities = append(severities, fmt.Sprint(i))
	}
	return LandingPage{
		CSRFToken:  csrfToken,
		Form:       form,
		Errors:     errs,
		AgeRanges:  model.AgeRanges,
		Sexes:      model.Sexes,
		Durations:  model.Durations,
		Severities: severities,
	}
}

// Turn 是一条消息的展示形态。用户消息按纯文本转义输出，助手消息按分区渲染。
type Turn struct {
	User     bool
	Failed   bool
	Text     string
	Time     time.Time
	Response model.StructuredResponse
}

// NewTurn 把存储中的消息转换为展示形态。
func NewTurn(msg model.ChatMessage) Turn {
	t := Turn{User: msg.Role == model.RoleUser, Failed: msg.Failed, Time: msg.Timestamp}
	switch {
	case t.User:
		t.Text = msg.Content
	case msg.Failed:
		t.Response = model.StructuredResponse{Schema: advice.SchemaPlain, Intro: advice.Sanitize(msg.Content)}
	default:
		t.Response = advice.Parse(msg.Content)
	}
	return t
}

// ChatPage 是聊天页面的数据。
type ChatPage struct {
	CSRFToken string
	Intake    *model.IntakeRecord
	Turns     []Turn
	// Awaiting 为 true 时输入框禁用并显示输入提示
	Awaiting bool
}

// NewChatPage 根据会话状态构建聊天页面数据。
func NewChatPage(csrfToken string, conv *model.Conversation) ChatPage {
	turns := make([]Turn, 0, len(conv.Turns))
	for _, msg := range conv.Turns {
		turns = append(turns, NewTurn(msg))
	}
	return ChatPage{
		CSRFToken: csrfToken,
		Intake:    conv.Intake,
		Turns:     turns,
		Awaiting:  conv.State == model.TurnAwaitingResponse,
	}
}

// ErrorPage 是阻断页面的数据：问诊记录缺失或会话存储不可用时展示，并引导回到表单。
type ErrorPage struct {
	Title   string
	Message string
}

var (
	// MissingIntakePage 在没有问诊记录时展示。
	MissingIntakePage = ErrorPage{
		Title:   "No intake information found",
		Message: "Please complete the intake form first so we can tailor our guidance to you.",
	}
	// StoreUnavailablePage 在会话存储无法访问时展示。
	StoreUnavailablePage = ErrorPage{
		Title:   "Your session could not be loaded",
		Message: "We could not read your session right now. Please return to the intake form and try again.",
	}
)

// RenderTurn 渲染单条消息的 HTML 片段，供 JSON 与 WebSocket 响应在客户端直接插入。
func RenderTurn(turn Turn) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "turn", turn); err != nil {
		return "", fmt.Errorf("failed to render turn: %w", err)
	}
	return buf.String(), nil
}
