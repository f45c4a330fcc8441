package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "leaf_session"

const sessionKey = "session"

// FromContext returns the session attached by Middleware.
func FromContext(c *gin.Context) (*Session, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := value.(*Session)
	return sess, ok && sess != nil
}

// CookieOpts configures the session cookie.
type CookieOpts struct {
	Secret string
	TTL    time.Duration
	// Secure restricts the cookie to HTTPS.
	Secure bool
}

// Middleware resolves the browser's session from its signed cookie, issuing
// a fresh session when the cookie is missing, expired or tampered with.
func Middleware(store *Store, opts CookieOpts, logger *zap.Logger) gin.HandlerFunc {
	key := []byte(strings.TrimSpace(opts.Secret))
	ttl := opts.TTL
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		id, err := parseToken(cookieValue(c), key)
		if err != nil {
			id = uuid.NewString()
			token, signErr := issueToken(id, key, ttl)
			if signErr != nil {
				logger.Error("failed to sign session token", zap.Error(signErr))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", opts.Secure, true)
		}

		c.Set(sessionKey, store.Get(id))
		c.Next()
	}
}

func cookieValue(c *gin.Context) string {
	value, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return value
}

func issueToken(id string, key []byte, ttl time.Duration) (string, error) {
	if len(key) == 0 {
		return "", errors.New("missing session secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func parseToken(tokenString string, key []byte) (string, error) {
	if tokenString == "" {
		return "", errors.New("session cookie missing")
	}
	if len(key) == 0 {
		return "", errors.New("missing session secret")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid session token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errors.New("invalid session subject")
	}
	return claims.Subject, nil
}
