package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/apiutil"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Roles carried in the role claim
const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

// Gin context keys set by Middleware
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// Claims is the bearer token payload
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthorizationConfig configures token verification
type AuthorizationConfig struct {
	Secret []byte
	Issuer string
}

// Middleware verifies an HS256 bearer token and stores the caller's id and
// role in the gin context.
func Middleware(log *zap.Logger, cfg AuthorizationConfig) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			apiutil.RFC7807UnauthorizedResponse(c, "missing bearer token")
			c.Abort()
			return
		}

		claims := &Claims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return cfg.Secret, nil
		})
		if err == nil && claims.UserID == "" {
			err = errors.New("token has no id claim")
		}
		if err != nil {
			log.Debug("Rejected bearer token", zap.Error(err))
			apiutil.RFC7807UnauthorizedResponse(c, "JWT is invalid")
			c.Abort()
			return
		}

		role := strings.ToUpper(claims.Role)
		if role == "" {
			role = RoleClient
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireRole checks if user has required role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString(ContextRole)
		if roleStr == "" {
			apiutil.RFC7807ForbiddenResponse(c, "role not found")
			c.Abort()
			return
		}
		if roleStr != requiredRole && roleStr != RoleAdmin {
			apiutil.RFC7807ForbiddenResponse(c, "insufficient role")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// IssueToken signs an HS256 token, used by tests and operator tooling
func IssueToken(secret []byte, issuer, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
