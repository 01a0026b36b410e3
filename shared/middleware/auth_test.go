package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"novel-engine/shared/authutils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fakeVerifier(_ context.Context, token string) (*authutils.Claims, error) {
	switch token {
	case "good":
		return &authutils.Claims{UserID: "user-1"}, nil
	case "old":
		return nil, authutils.ErrTokenExpired
	default:
		return nil, authutils.ErrTokenInvalid
	}
}

func newRouter(allowQuery bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuth(fakeVerifier, zap.NewNop(), allowQuery))
	r.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id)
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	tests := []struct {
		name       string
		allowQuery bool
		header     string
		url        string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", header: "Bearer good", url: "/me", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "missing header", url: "/me", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", url: "/me", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer old", url: "/me", wantStatus: http.StatusUnauthorized, wantBody: "token_expired"},
		{name: "query token ignored by default", url: "/me?token=good", wantStatus: http.StatusUnauthorized},
		{name: "query token allowed", allowQuery: true, url: "/me?token=good", wantStatus: http.StatusOK, wantBody: "user-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.allowQuery).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}
