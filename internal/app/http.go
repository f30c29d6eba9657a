package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/neurobridge-competency/internal/http"
	httpH "github.com/yungbote/neurobridge-competency/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-competency/internal/http/middleware"
	"github.com/yungbote/neurobridge-competency/internal/observability"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/temporalx/courserun"
)

func wireRouter(log *logger.Logger, cfg Config, c Clients, s Services) (*gin.Engine, error) {
	log.Info("Wiring router...")
	var auth *httpMW.AuthMiddleware
	if cfg.AuthDisabled {
		log.Warn("AUTH_DISABLED set; API is unauthenticated")
	} else {
		am, err := httpMW.NewAuthMiddleware(log, cfg.Auth)
		if err != nil {
			return nil, err
		}
		auth = am
	}

	var schedule httpH.RunScheduler
	if c.Temporal != nil {
		schedule = temporalScheduler(c.Temporal, cfg.Temporal.TaskQueue)
	}

	return http.NewRouter(http.RouterConfig{
		Log:               log,
		ServiceName:       cfg.Otel.ServiceName,
		AuthMiddleware:    auth,
		CORSOrigins:       cfg.CORSOrigins,
		Metrics:           observability.Current(),
		CompetencyHandler: httpH.NewCompetencyHandler(s.Usecases, schedule),
		HealthHandler:     httpH.NewHealthHandler(c.healthChecks()),
	}), nil
}

func temporalScheduler(tc temporalsdkclient.Client, taskQueue string) httpH.RunScheduler {
	return func(ctx context.Context, in courserun.Input) (httpH.ScheduledRun, error) {
		run, err := courserun.Start(ctx, tc, taskQueue, in)
		if err != nil {
			return httpH.ScheduledRun{}, fmt.Errorf("start course run: %w", err)
		}
		return httpH.ScheduledRun{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
	}
}
