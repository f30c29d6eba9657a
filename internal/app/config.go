package app

import (
	"strings"
	"time"

	httpMW "github.com/yungbote/neurobridge-competency/internal/http/middleware"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
	"github.com/yungbote/neurobridge-competency/internal/observability"
	"github.com/yungbote/neurobridge-competency/internal/platform/envutil"
	"github.com/yungbote/neurobridge-competency/internal/temporalx"
)

const (
	LeaseAuto     = "auto"
	LeasePostgres = "postgres"
	LeaseRedis    = "redis"
	LeaseMemory   = "memory"
)

type Config struct {
	LogMode string

	HTTPAddr     string
	CORSOrigins  []string
	Auth         httpMW.AuthConfig
	AuthDisabled bool

	// ContentRoot resolves document paths for runs submitted over HTTP.
	ContentRoot string

	Pipeline               competency.PipelineConfig
	NearDuplicateThreshold float64
	EmbedDedupe            bool
	GatewayCacheTTL        time.Duration

	Sync         hierarchy.Config
	LeaseBackend string

	Temporal temporalx.Config
	Otel     observability.OtelConfig
}

func LoadConfig() Config {
	return Config{
		LogMode: envutil.String("LOG_MODE", "development"),

		HTTPAddr:    envutil.String("HTTP_ADDR", ":8080"),
		CORSOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		Auth: httpMW.AuthConfig{
			Secret:   envutil.String("AUTH_JWT_SECRET", ""),
			Issuer:   envutil.String("AUTH_JWT_ISSUER", ""),
			Audience: envutil.String("AUTH_JWT_AUDIENCE", ""),
		},
		AuthDisabled: envutil.Bool("AUTH_DISABLED", false),

		ContentRoot: envutil.String("CONTENT_ROOT", "."),

		Pipeline: competency.PipelineConfig{
			Concurrency:                 envutil.Int("PIPELINE_CONCURRENCY", 4),
			RequireCompleteEdgeSnapshot: envutil.Bool("REQUIRE_COMPLETE_EDGE_SNAPSHOT", true),
			ExtractMaxChars:             envutil.Int("EXTRACT_MAX_CHARS", 24000),
		},
		NearDuplicateThreshold: envutil.Float("NEAR_DUPLICATE_THRESHOLD", competency.DefaultNearDuplicateThreshold),
		EmbedDedupe:            envutil.Bool("EMBED_DEDUPE", true),
		GatewayCacheTTL:        time.Duration(envutil.Int("GATEWAY_CACHE_TTL_HOURS", 24)) * time.Hour,

		Sync: hierarchy.Config{
			PruneStaleLinks:        envutil.Bool("SYNC_PRUNE_STALE_LINKS", false),
			UpdateSectionSummaries: envutil.Bool("SYNC_UPDATE_SECTIONS", true),
			LeaseTTL:               envutil.Seconds("SYNC_LEASE_TTL_SECONDS", 10*time.Minute),
		},
		LeaseBackend: strings.ToLower(envutil.String("SYNC_LEASE_BACKEND", LeaseAuto)),

		Temporal: temporalx.LoadConfig(),
		Otel:     observability.OtelConfigFromEnv("competency"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
