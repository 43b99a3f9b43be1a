package handler

import (
	"time"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/config"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthHandler 认证处理器。为账户签发访问令牌，
// 令牌中的账户即引擎操作的调用者身份。
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// TokenRequest 签发令牌请求
type TokenRequest struct {
	Account string `json:"account" binding:"required"`
}

// IssueToken 为账户签发JWT
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	now := time.Now()
	claims := middleware.JWTClaims{
		Account: req.Account,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Account,
			Issuer:    h.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.JWT.AccessTokenExpire)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.JWT.Secret))
	if err != nil {
		InternalError(c, "Failed to sign token")
		return
	}

	Success(c, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(h.cfg.JWT.AccessTokenExpire.Seconds()),
	})
}
