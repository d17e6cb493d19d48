package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusprint/print-api/internal/models"
	"github.com/campusprint/print-api/internal/service"
	"github.com/campusprint/print-api/pkg/config"
)

func protectedRouter(authSvc *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", JWT(authSvc), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"user": claims.(*models.JWTClaims).Username})
	})
	return r
}

func TestJWTAllowsValidToken(t *testing.T) {
	authSvc := service.NewAuthService(nil, zap.NewNop(), config.AdminConfig{
		Username: "admin", Password: "s3cret", JWTSecret: "test-secret", JWTExpiry: time.Hour,
	})
	resp, err := authSvc.Login(models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	r := protectedRouter(authSvc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "admin")
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	authSvc := service.NewAuthService(nil, zap.NewNop(), config.AdminConfig{
		Username: "admin", Password: "s3cret", JWTSecret: "test-secret", JWTExpiry: time.Hour,
	})
	r := protectedRouter(authSvc)

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer bad.token.here"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}
