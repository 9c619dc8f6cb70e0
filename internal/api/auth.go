package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const sessionUserKey = "session_user_id"

// SessionAuth validates the signed session cookie issued by the platform's
// auth service and exposes the caller's user id to handlers
type SessionAuth struct {
	secret     []byte
	cookieName string
}

// NewSessionAuth creates a new session authenticator
func NewSessionAuth(secret, cookieName string) *SessionAuth {
	return &SessionAuth{secret: []byte(secret), cookieName: cookieName}
}

// Require rejects requests without a valid session cookie
func (a *SessionAuth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(a.cookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		userID, err := a.parseSession(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		c.Set(sessionUserKey, userID)
		c.Next()
	}
}

func (a *SessionAuth) parseSession(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid session claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("session missing subject")
	}
	return sub, nil
}

// SessionUserID returns the authenticated user id set by Require
func SessionUserID(c *gin.Context) string {
	return c.GetString(sessionUserKey)
}
