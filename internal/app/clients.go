package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-competency/internal/data/db"
	httpH "github.com/yungbote/neurobridge-competency/internal/http/handlers"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/platform/moodle"
	"github.com/yungbote/neurobridge-competency/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-competency/internal/platform/openai"
	"github.com/yungbote/neurobridge-competency/internal/platform/redisx"
	"github.com/yungbote/neurobridge-competency/internal/temporalx"
)

// Clients holds every external connection. Optional clients are nil when
// their environment is not configured.
type Clients struct {
	DBService *db.Service
	DB        *gorm.DB
	PgPool    *pgxpool.Pool
	Redis     *goredis.Client
	Neo4j     *neo4jdb.Client
	Moodle    *moodle.Client
	OpenAI    openai.Client
	Temporal  temporalsdkclient.Client
}

type clientOptions struct {
	// withTemporal dials Temporal; CLI runs execute inline and skip it.
	withTemporal bool
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, opts clientOptions) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	svc, err := db.Open(log)
	if err != nil {
		return c, fmt.Errorf("init database: %w", err)
	}
	c.DBService = svc
	c.DB = svc.DB()

	if dsn := svc.DSN(); dsn != "" && cfg.LeaseBackend != LeaseMemory && cfg.LeaseBackend != LeaseRedis {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			c.Close(log)
			return Clients{}, fmt.Errorf("init pgx pool: %w", err)
		}
		c.PgPool = pool
	}

	if c.Redis, err = redisx.NewFromEnv(log); err != nil {
		c.Close(log)
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}

	if c.Neo4j, err = neo4jdb.NewFromEnv(log); err != nil {
		c.Close(log)
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	if mcfg := moodle.ConfigFromEnv(); mcfg.BaseURL != "" {
		if c.Moodle, err = moodle.NewClient(log, mcfg); err != nil {
			c.Close(log)
			return Clients{}, fmt.Errorf("init moodle client: %w", err)
		}
	} else {
		log.Warn("MOODLE_URL not set; platform sync disabled")
	}

	if ocfg := openai.ConfigFromEnv(); ocfg.APIKey != "" {
		if c.OpenAI, err = openai.NewClient(log, ocfg); err != nil {
			c.Close(log)
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
	} else {
		log.Warn("OPENAI_API_KEY not set; course analysis disabled")
	}

	if opts.withTemporal {
		if c.Temporal, err = temporalx.NewClient(log, cfg.Temporal); err != nil {
			c.Close(log)
			return Clients{}, fmt.Errorf("init temporal: %w", err)
		}
	}
	return c, nil
}

func (c Clients) Close(log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Neo4j != nil {
		if err := c.Neo4j.Close(ctx); err != nil {
			log.Warn("Neo4j close failed", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn("Redis close failed", "error", err)
		}
	}
	if c.PgPool != nil {
		c.PgPool.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// healthChecks lists a probe per configured dependency.
func (c Clients) healthChecks() map[string]httpH.HealthCheck {
	checks := map[string]httpH.HealthCheck{}
	if c.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	if c.Neo4j != nil {
		checks["neo4j"] = func(ctx context.Context) error { return c.Neo4j.Driver.VerifyConnectivity(ctx) }
	}
	return checks
}
