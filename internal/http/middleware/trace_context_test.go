package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-competency/internal/platform/ctxutil"
)

func TestAttachTraceContextCarriesCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got *ctxutil.TraceData
	r := gin.New()
	r.Use(AttachTraceContext())
	r.POST("/v1/courses/:course_id/sync", func(c *gin.Context) {
		got = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	r.GET("/healthz", func(c *gin.Context) {
		got = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/courses/gdp/sync", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got == nil {
		t.Fatalf("trace data missing from request context")
	}
	if got.CourseID != "gdp" || got.RequestID != "req-1" || got.TraceID == "" {
		t.Fatalf("trace data = %+v", got)
	}
	if rec.Header().Get("X-Request-Id") != "req-1" || rec.Header().Get("X-Trace-Id") != got.TraceID {
		t.Fatalf("response headers = %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got == nil || got.CourseID != "" {
		t.Fatalf("course id must be empty outside course routes: %+v", got)
	}
}
