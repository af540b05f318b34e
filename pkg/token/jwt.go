// Package token 提供了会话令牌与随机令牌的生成和验证功能。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "medai"

// SessionManager 负责签发和验证存放在会话 cookie 中的 JWT。
type SessionManager struct {
	secretKey []byte        // secretKey 用于签名和验证 token 的密钥
	ttl       time.Duration // ttl 与服务端会话数据的存活时间保持一致
}

// SessionClaims 定义了会话 JWT 中存储的数据。
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionManager 创建一个新的 SessionManager 实例。
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secretKey: []byte(secret),
		ttl:       ttl,
	}
}

// NewSession 生成新的会话 ID 并签发对应的 token。
func (m *SessionManager) NewSession() (sessionID, tokenString string, err error) {
	sessionID = uuid.NewString()
	tokenString, err = m.Sign(sessionID)
	return sessionID, tokenString, err
}

// Sign 为给定的会话 ID 签发 token。
func (m *SessionManager) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify 验证 token 并返回其中的会话 ID。
func (m *SessionManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", errors.New("invalid session token")
	}
	return claims.SessionID, nil
}

// randRead 在测试中可以替换，用于模拟随机源失败。
var randRead = rand.Read

// GenerateRandomString 生成 length 字节的随机值并以十六进制返回。随机源不可用时返回错误，不退化为可预测的值。
func GenerateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
