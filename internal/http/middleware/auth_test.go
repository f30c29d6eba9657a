package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-competency/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	am, err := NewAuthMiddleware(logger.Nop(), AuthConfig{Secret: testSecret})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/read", am.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.GetPrincipal(c.Request.Context()).Subject)
	})
	r.POST("/write", am.RequireAuth(), am.RequireScope(ScopeManage), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter(t)
	exp := time.Now().Add(time.Hour).Unix()

	reader := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-report", "exp": exp})
	manager := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-sync", "exp": exp, "scope": "openid competency:manage"})
	listScoped := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-sync", "exp": exp, "scopes": []string{ScopeManage}})
	expired := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-sync", "exp": time.Now().Add(-time.Hour).Unix(), "scope": ScopeManage})
	noExp := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-sync", "scope": ScopeManage})
	wrongKey := sign(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-sync", "exp": exp, "scope": ScopeManage})
	wrongAlg := sign(t, testSecret, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "svc-sync", "exp": exp, "scope": ScopeManage})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/read", "", http.StatusUnauthorized},
		{"reader can read", http.MethodGet, "/read", reader, http.StatusOK},
		{"reader cannot write", http.MethodPost, "/write", reader, http.StatusForbidden},
		{"space delimited scope", http.MethodPost, "/write", manager, http.StatusNoContent},
		{"scope list", http.MethodPost, "/write", listScoped, http.StatusNoContent},
		{"expired", http.MethodPost, "/write", expired, http.StatusUnauthorized},
		{"exp required", http.MethodPost, "/write", noExp, http.StatusUnauthorized},
		{"wrong key", http.MethodPost, "/write", wrongKey, http.StatusUnauthorized},
		{"wrong alg", http.MethodPost, "/write", wrongAlg, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(r, tc.method, tc.path, tc.token)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	rec := do(r, http.MethodGet, "/read", reader)
	require.Equal(t, "svc-report", rec.Body.String())
}

func TestNewAuthMiddlewareRequiresSecret(t *testing.T) {
	_, err := NewAuthMiddleware(logger.Nop(), AuthConfig{})
	require.Error(t, err)
}
