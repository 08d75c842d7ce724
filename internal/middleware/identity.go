package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextKeyActorID   = "actor_id"
	ContextKeyActorRole = "actor_role"

	// 未設定 JWT secret 時 (開發環境) 直接信任這兩個 header
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

type IdentityConfig struct {
	JWTSecret string
	Issuer    string
}

// ActorClaims bearer token 內容，sub 為 actor id
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity 解析請求者身分並寫入 gin context
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			actorID string
			role    string
		)
		if cfg.JWTSecret == "" {
			actorID = strings.TrimSpace(c.GetHeader(HeaderActorID))
			role = strings.TrimSpace(c.GetHeader(HeaderActorRole))
		} else {
			claims, err := parseBearer(c.GetHeader("Authorization"), cfg)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid or missing token",
				})
				return
			}
			actorID = claims.Subject
			role = claims.Role
		}

		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing actor identity",
			})
			return
		}
		if role != RoleStaff {
			role = RoleCustomer
		}

		c.Set(ContextKeyActorID, actorID)
		c.Set(ContextKeyActorRole, role)
		c.Next()
	}
}

// RequireStaff 只允許櫃台人員
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsStaff(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Staff role required",
			})
			return
		}
		c.Next()
	}
}

func ActorID(c *gin.Context) string {
	return c.GetString(ContextKeyActorID)
}

func IsStaff(c *gin.Context) bool {
	return c.GetString(ContextKeyActorRole) == RoleStaff
}

func parseBearer(header string, cfg IdentityConfig) (*ActorClaims, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("missing bearer token")
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// IssueToken 簽發 HS256 token，供測試與內部工具使用
func IssueToken(cfg IdentityConfig, actorID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}
