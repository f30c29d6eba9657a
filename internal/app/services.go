package app

import (
	"context"
	"fmt"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	"github.com/yungbote/neurobridge-competency/internal/data/graph"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/temporalx/courserun"
)

type Services struct {
	Repos      repos.Repos
	Graph      *graph.CompetencyGraph
	Pipeline   *competency.Pipeline
	Sync       *hierarchy.Synchronizer
	Usecases   competency.Usecases
	Activities *courserun.Activities
}

func wireServices(ctx context.Context, log *logger.Logger, cfg Config, c Clients, loader competency.TextLoader) (Services, error) {
	log.Info("Wiring services...")
	var s Services
	s.Repos = repos.New(c.DB, log)

	var projection competency.GraphProjection
	var incident competency.IncidentReader
	if c.Neo4j != nil {
		s.Graph = graph.NewCompetencyGraph(c.Neo4j, log)
		s.Graph.EnsureSchema(ctx)
		projection = s.Graph
		incident = s.Graph
	}

	if c.OpenAI != nil {
		gw := gateway.New(c.OpenAI, log, gateway.PolicyFromEnv(), gateway.NewRedisCache(c.Redis, log, cfg.GatewayCacheTTL))
		var embedder competency.Embedder
		if cfg.EmbedDedupe {
			embedder = c.OpenAI
		}
		p, err := competency.NewPipeline(competency.PipelineDeps{
			Log:      log,
			Repos:    s.Repos,
			Reasoner: gw,
			Catalog:  competency.NewCatalog(s.Repos.Competencies, log, embedder, cfg.NearDuplicateThreshold),
			Loader:   loader,
			Graph:    projection,
		}, cfg.Pipeline)
		if err != nil {
			return Services{}, fmt.Errorf("init pipeline: %w", err)
		}
		s.Pipeline = p
	}

	if c.Moodle != nil {
		lease, err := wireLease(log, cfg, c)
		if err != nil {
			return Services{}, err
		}
		syncer, err := hierarchy.New(hierarchy.Deps{
			Log:      log,
			Repos:    s.Repos,
			Platform: hierarchy.NewMoodlePlatform(c.Moodle),
			Lease:    lease,
		}, cfg.Sync)
		if err != nil {
			return Services{}, fmt.Errorf("init synchronizer: %w", err)
		}
		s.Sync = syncer
	}

	s.Usecases = competency.New(competency.UsecasesDeps{
		Log:      log.With("service", "CompetencyUsecases"),
		Repos:    s.Repos,
		Pipeline: s.Pipeline,
		Sync:     s.Sync,
		Graph:    incident,
	})
	s.Activities = &courserun.Activities{Log: log.With("service", "CourseRunActivities"), Usecases: s.Usecases}
	return s, nil
}

// wireLease picks the sync lease backend. "auto" prefers a postgres advisory
// lock, then redis, then an in-process lease.
func wireLease(log *logger.Logger, cfg Config, c Clients) (hierarchy.Lease, error) {
	switch cfg.LeaseBackend {
	case LeasePostgres:
		if c.PgPool == nil {
			return nil, fmt.Errorf("SYNC_LEASE_BACKEND=postgres needs DB_DRIVER=postgres")
		}
		return hierarchy.NewPostgresLease(c.PgPool), nil
	case LeaseRedis:
		if c.Redis == nil {
			return nil, fmt.Errorf("SYNC_LEASE_BACKEND=redis needs REDIS_ADDR")
		}
		return hierarchy.NewRedisLease(c.Redis, log), nil
	case LeaseMemory:
		return hierarchy.NewMemoryLease(), nil
	case LeaseAuto, "":
		switch {
		case c.PgPool != nil:
			return hierarchy.NewPostgresLease(c.PgPool), nil
		case c.Redis != nil:
			return hierarchy.NewRedisLease(c.Redis, log), nil
		}
		log.Warn("Sync lease is in-process; concurrent replicas are not excluded")
		return hierarchy.NewMemoryLease(), nil
	}
	return nil, fmt.Errorf("unknown SYNC_LEASE_BACKEND %q", cfg.LeaseBackend)
}
