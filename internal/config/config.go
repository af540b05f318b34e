// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// AllowedOrigins 为空时 WebSocket 只接受同源请求。
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig 存储会话 cookie 与临时存储的配置。
type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	CookieName string `mapstructure:"cookie_name"`
	TTLHours   int    `mapstructure:"ttl_hours"`
	Secure     bool   `mapstructure:"secure"`
}

// TTL 返回会话数据在 Redis 中的存活时间。
func (c SessionConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// Timeout 返回单次模型调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChatConfig 配置聊天轮次与提示词上下文。
type ChatConfig struct {
	HistoryWindow         int    `mapstructure:"history_window"`
	AssistantContextChars int    `mapstructure:"assistant_context_chars"`
	MaxStoredTurns        int    `mapstructure:"max_stored_turns"`
	ApologyMessage        string `mapstructure:"apology_message"`
}

// DefaultApologyMessage 是模型调用失败时展示给用户的固定消息。
const DefaultApologyMessage = "I'm sorry, I encountered an error while processing your request. Please try again in a moment."

// WithDefaults 为未配置的字段填充默认值。
func (c ChatConfig) WithDefaults() ChatConfig {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 6
	}
	if c.AssistantContextChars <= 0 {
		c.AssistantContextChars = 500
	}
	if c.MaxStoredTurns <= 0 {
		c.MaxStoredTurns = 40
	}
	if c.ApologyMessage == "" {
		c.ApologyMessage = DefaultApologyMessage
	}
	return c
}

// Load 从指定路径读取 YAML 文件，并允许 MEDAI_ 前缀的环境变量覆盖，例如 MEDAI_LLM_API_KEY。
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("medai")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 密钥类配置通常不写入文件，需要显式绑定才能被 Unmarshal 读取。
	for _, key := range []string{"llm.api_key", "session.secret", "database.redis.password"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "medai_session"
	}
	cfg.Chat = cfg.Chat.WithDefaults()
	return cfg, nil
}

// Init 加载配置到全局变量 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
