package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-competency/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-competency/internal/http/middleware"
	"github.com/yungbote/neurobridge-competency/internal/observability"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AuthMiddleware *httpMW.AuthMiddleware
	CORSOrigins    []string
	// Optional: nil disables /metrics.
	Metrics *observability.Metrics

	CompetencyHandler *httpH.CompetencyHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "competency"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	v1 := r.Group("/v1")
	manage := []gin.HandlerFunc{}
	if cfg.AuthMiddleware != nil {
		v1.Use(cfg.AuthMiddleware.RequireAuth())
		manage = append(manage, cfg.AuthMiddleware.RequireScope(httpMW.ScopeManage))
	}

	if h := cfg.CompetencyHandler; h != nil {
		// Reads
		v1.GET("/courses/:course_id/sync-state", h.GetSyncState)
		v1.GET("/courses/:course_id/sync-runs", h.ListSyncRuns)
		v1.GET("/courses/:course_id/competencies", h.ListCompetencies)
		v1.GET("/nodes/:node_id/edges", h.ListIncidentEdges)

		// Mutations
		v1.POST("/courses/:course_id/runs", append(manage, h.RunCourse)...)
		v1.POST("/courses/:course_id/sync", append(manage, h.SyncCourse)...)
	}

	return r
}
