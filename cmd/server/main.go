// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"medai-go/internal/config"
	"medai-go/internal/handler"
	"medai-go/internal/middleware"
	"medai-go/internal/repository"
	"medai-go/internal/service"
	"medai-go/pkg/database"
	"medai-go/pkg/kafka"
	"medai-go/pkg/llm"
	"medai-go/pkg/log"
	"medai-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("MEDAI_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		panic(err)
	}
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	if cfg.Session.Secret == "" {
		log.Fatalf("session.secret 未配置，请设置 MEDAI_SESSION_SECRET")
	}
	if cfg.LLM.APIKey == "" {
		log.Warnf("llm.api_key 未配置，模型调用将失败并返回致歉消息")
	}

	// 3. 初始化 Redis 会话存储
	if err := database.InitRedis(cfg.Database.Redis); err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	defer database.CloseRedis()

	// 4. 初始化 Repository
	sessionTTL := cfg.Session.TTL()
	intakeRepo := repository.NewIntakeRepository(database.RDB, sessionTTL)
	conversationRepo := repository.NewConversationRepository(database.RDB, sessionTTL, cfg.Chat.MaxStoredTurns)
	// 占用的过期时间必须大于模型超时，崩溃的请求不会永久锁住会话
	turnGuard := repository.NewTurnGuard(database.RDB, cfg.LLM.Timeout()+30*time.Second)

	// 5. 初始化事件发布
	var publisher service.EventPublisher = service.NopPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("关闭 Kafka 生产者失败", err)
			}
		}()
		publisher = producer
	}

	// 6. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	adviceService := service.NewAdviceService(llmClient, cfg.LLM, cfg.Chat)
	intakeService := service.NewIntakeService(intakeRepo, conversationRepo, turnGuard)
	chatService := service.NewChatService(intakeRepo, conversationRepo, turnGuard, adviceService, publisher, cfg.Chat)
	sessionManager := token.NewSessionManager(cfg.Session.Secret, sessionTTL)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.SessionMiddleware(sessionManager, middleware.SessionOptions{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.Secure,
		}),
		middleware.CSRFMiddleware(cfg.Session.Secure),
	)

	// 8. 注册路由
	handler.RegisterRoutes(r, handler.Services{
		Intake: intakeService,
		Chat:   chatService,
		Advice: adviceService,
	}, cfg.Server.AllowedOrigins)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 正在等待模型的请求最多需要 llm 超时时间才能结束
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout()+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
