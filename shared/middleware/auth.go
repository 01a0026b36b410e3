package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"novel-engine/shared/authutils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// TokenVerifier checks a raw token string. Errors are authutils.ErrToken*.
type TokenVerifier func(ctx context.Context, tokenString string) (*authutils.Claims, error)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JWTAuth verifies the bearer token and stores the user ID in the gin context.
// Browsers cannot set headers on a websocket upgrade, so when allowQueryToken is true
// a "token" query parameter is accepted as well.
func JWTAuth(verifier TokenVerifier, logger *zap.Logger, allowQueryToken bool) gin.HandlerFunc {
	log := logger.Named("JWTAuth")
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQueryToken {
			tokenString = c.Query("token")
			ok = tokenString != ""
		}
		if !ok {
			log.Warn("Missing or malformed Authorization header", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: "token_invalid", Message: "Unauthorized: missing token"})
			return
		}

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			resp := ErrorResponse{Code: "token_invalid", Message: "Unauthorized: invalid token"}
			status := http.StatusUnauthorized
			switch {
			case errors.Is(err, authutils.ErrTokenExpired):
				resp = ErrorResponse{Code: "token_expired", Message: "Unauthorized: token expired"}
			case errors.Is(err, authutils.ErrTokenInvalid), errors.Is(err, authutils.ErrTokenMalformed):
			default:
				log.Error("Unexpected token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				resp = ErrorResponse{Code: "internal", Message: "Internal server error during token verification"}
			}
			c.AbortWithStatusJSON(status, resp)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the user set by JWTAuth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
