// Package log 是 MedAI 的全局日志入口，底层使用 zap 的 SugaredLogger。
//
// 日志中只记录会话 ID、轮次类型、耗时等元数据。问诊内容和聊天正文属于患者数据，不要传给这里的任何函数。
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName 出现在每条日志的 service 字段中。
const ServiceName = "medai"

// logFileName 是 outputPath 目录下的日志文件名。
const logFileName = "medai.log"

// Init 之前是 no-op，测试和工具代码可以直接调用。
var sugar = zap.NewNop().Sugar()

// Init 按配置构建全局 logger。format 为 "console" 时输出彩色文本，其余情况输出 JSON。
// outputPath 非空时额外写入 outputPath/medai.log。
func Init(level, format, outputPath string) error {
	logger, err := build(level, format, outputPath)
	if err != nil {
		return err
	}
	sugar = logger.Sugar()
	return nil
}

func build(level, format, outputPath string) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, filepath.Join(outputPath, logFileName))
	}

	logger, err := zapConfig.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func Info(msg string) {
	sugar.Info(msg)
}

func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow 记录结构化日志，键值对交替排列，例如 Infow("turn settled", "sessionId", sid)。
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

// Debugw 用于逐轮次的诊断信息，生产环境默认 info 级别不会输出。
func Debugw(msg string, keysAndValues ...interface{}) {
	sugar.Debugw(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	sugar.Warnw(msg, keysAndValues...)
}

// Error 记录错误，err 放在 error 字段中。
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Fatal 记录错误后退出进程，只在启动阶段使用。
func Fatal(msg string, err error) {
	sugar.Fatalw(msg, "error", err)
}

func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}

// Sync 刷新缓冲的日志，在进程退出前调用。
func Sync() {
	_ = sugar.Sync()
}
