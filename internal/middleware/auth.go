package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bonuspark/internal/config"
)

// The API is consumed by trusted collaborating services (webhook receivers,
// bot backends, CRM bridges), not end users. Tokens identify the calling
// service, are long-lived, and are issued out of band.
const serviceTokenExpiry = 30 * 24 * time.Hour

const callerKey = "caller"

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// ServiceClaims represents the claims in a service token.
type ServiceClaims struct {
	Service   string `json:"service"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateServiceToken issues a signed token for a collaborating service.
func GenerateServiceToken(service string) (string, error) {
	claims := &ServiceClaims{
		Service:   service,
		TokenType: "service",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(serviceTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "bonuspark-api",
			Subject:   service,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// AuthMiddleware validates the Authorization bearer token and records the
// calling service on the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"}})
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims := &ServiceClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return getJWTKey(), nil
		})
		if err != nil || !token.Valid || claims.TokenType != "service" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Invalid or expired token"}})
			return
		}

		c.Set(callerKey, claims.Service)
		c.Next()
	}
}

// Caller returns the authenticated service name from the context.
func Caller(c *gin.Context) string {
	if v, ok := c.Get(callerKey); ok {
		return v.(string)
	}
	return ""
}
