package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/neurobridge-competency/internal/observability"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/platform/openai"
	"github.com/yungbote/neurobridge-competency/internal/platform/promptstyle"
)

// LLM is the structured-output call the Gateway is built on.
type LLM interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

// Gateway is the reasoning-service boundary. Every call kind goes through the
// same retry policy and returns a validated, typed result or an *Error.
type Gateway struct {
	llm    LLM
	log    *logger.Logger
	policy Policy
	cache  Cache
	model  string
}

func New(llm LLM, log *logger.Logger, policy Policy, cache Cache) *Gateway {
	if cache == nil {
		cache = NoopCache()
	}
	model := ""
	if m, ok := llm.(interface{ Model() string }); ok {
		model = m.Model()
	}
	return &Gateway{
		llm:    llm,
		log:    log.With("service", "ReasoningGateway"),
		policy: policy.normalized(),
		cache:  cache,
		model:  model,
	}
}

var _ LLM = (openai.Client)(nil)

const reformatInstruction = "Your previous answer could not be used. Reply with exactly one JSON object that conforms to this JSON schema and nothing else:\n"

func (g *Gateway) call(ctx context.Context, kind Kind, system, user string, schema map[string]any, parse func(map[string]any) error) error {
	ctx, span := otel.Tracer("competency/gateway").Start(ctx, "gateway."+string(kind))
	defer span.End()

	started := time.Now()
	system = promptstyle.ApplySystem(system, "json")
	key := cacheKey(string(kind), g.model, system, user)
	if raw, ok := g.cache.Get(ctx, key); ok {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err == nil && parse(obj) == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			observability.Current().ObserveLLMCall(string(kind), "cached", 0, 0)
			return nil
		}
	}

	var (
		lastErr   error
		malformed bool
		timeout   bool
	)
	attempts := 0
	for attempts < g.policy.MaxAttempts {
		attempts++
		prompt := user
		if attempts > 1 {
			schemaJSON, _ := json.Marshal(schema)
			prompt = user + "\n\n" + reformatInstruction + string(schemaJSON)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.policy.AttemptTimeout)
		obj, err := g.llm.GenerateJSON(attemptCtx, system, prompt, string(kind), schema)
		attemptTimedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err != nil && ctx.Err() != nil {
			lastErr = ctx.Err()
			timeout = errors.Is(lastErr, context.DeadlineExceeded)
			malformed = false
			break
		}
		if err == nil {
			perr := parse(obj)
			if perr == nil {
				if raw, merr := json.Marshal(obj); merr == nil {
					g.cache.Set(ctx, key, raw)
				}
				span.SetAttributes(attribute.Int("attempts", attempts))
				observability.Current().ObserveLLMCall(string(kind), "ok", attempts, time.Since(started))
				return nil
			}
			err = fmt.Errorf("%w: %v", ErrMalformed, perr)
			malformed, timeout = true, false
		} else {
			timeout = attemptTimedOut || errors.Is(err, context.DeadlineExceeded)
			malformed = !timeout && isDecodeFailure(err)
		}
		lastErr = err
		g.log.Warn("gateway attempt failed",
			"kind", string(kind),
			"attempt", attempts,
			"max_attempts", g.policy.MaxAttempts,
			"malformed", malformed,
			"timeout", timeout,
			"error", err.Error(),
		)
	}

	gerr := &Error{Kind: kind, Attempts: attempts, Malformed: malformed, Timeout: timeout, Err: lastErr}
	status := "error"
	switch {
	case timeout:
		status = "timeout"
	case malformed:
		status = "malformed"
	}
	observability.Current().ObserveLLMCall(string(kind), status, attempts, time.Since(started))
	span.RecordError(gerr)
	span.SetStatus(codes.Error, gerr.Error())
	return gerr
}

func isDecodeFailure(err error) bool {
	if errors.Is(err, openai.ErrEmptyOutput) {
		return true
	}
	return strings.Contains(err.Error(), "failed to parse model JSON")
}

const extractSystem = `You analyse university course material and list the competencies it teaches.
Name each competency as a noun phrase describing the taught topic or technique (for example "Recursion over linked lists"), never as a learner action ("Students can ..."). Keep the language of the material.
Return 4 to 10 specific, non-overlapping competencies, a short topic title for the document, and one sentence of reasoning.`

func (g *Gateway) Extract(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	var b strings.Builder
	if req.CourseContext != "" {
		b.WriteString("Course context: " + req.CourseContext + "\n")
	}
	b.WriteString("Document title: " + req.DocumentTitle + "\n\nDocument text:\n")
	b.WriteString(req.DocumentText)

	var out ExtractResult
	err := g.call(ctx, KindExtract, extractSystem, b.String(), extractSchema(), func(obj map[string]any) error {
		r, err := parseExtract(obj)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

const clusterSystem = `You consolidate raw competency candidates extracted from one document.
Group candidates that describe the same taught topic. Name every group with a concise noun phrase describing what is taught, never what the learner does; phrasings such as "Students can ...", "Die Studierenden können ..." or "be able to ..." are invalid.
Reference candidates only by their index. Assign each group one Bloom taxonomy level. Return between 2 and 5 groups when the input allows it.`

func (g *Gateway) Cluster(ctx context.Context, req ClusterRequest) (ClusterResult, error) {
	var b strings.Builder
	b.WriteString("Document title: " + req.DocumentTitle + "\n\nCandidates:\n")
	for i, c := range req.Candidates {
		fmt.Fprintf(&b, "%d: %s\n", i, c)
	}

	var out ClusterResult
	err := g.call(ctx, KindCluster, clusterSystem, b.String(), clusterSchema(), func(obj map[string]any) error {
		r, err := parseCluster(obj, len(req.Candidates))
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

const relateSystem = `You compare two documents of the same course. Document A is taught before document B.
Judge whether A is a prerequisite for B, whether B builds upon A, whether B is more difficult, how similar the two are (0 to 1) and how much their content overlaps (0 to 1).
Pick the relationship type that fits best and explain it in one sentence. Report weak relationships too; "independent" is a valid answer.`

func writeSummary(b *strings.Builder, label string, s DocumentSummary) {
	fmt.Fprintf(b, "Document %s (position %d): %s\n", label, s.Ordinal, s.Title)
	if len(s.Competencies) > 0 {
		b.WriteString("Competencies: " + strings.Join(s.Competencies, "; ") + "\n")
	}
	if s.Excerpt != "" {
		b.WriteString("Excerpt: " + s.Excerpt + "\n")
	}
}

func (g *Gateway) Relate(ctx context.Context, req RelateRequest) (RelateResult, error) {
	var b strings.Builder
	writeSummary(&b, "A", req.A)
	b.WriteString("\n")
	writeSummary(&b, "B", req.B)

	var out RelateResult
	err := g.call(ctx, KindRelate, relateSystem, b.String(), relateSchema(), func(obj map[string]any) error {
		r, err := parseRelate(obj)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

const matchSystem = `You map a graded assignment to the course competencies it addresses.
Select only ids from the candidate list, at most 7, and prefer fewer well-justified competencies over a long list.
Also return a short descriptive title for the assignment and one sentence of reasoning.`

func (g *Gateway) Match(ctx context.Context, req MatchRequest) (MatchResult, error) {
	var b strings.Builder
	b.WriteString("Assignment: " + req.AssignmentTitle + "\n")
	if req.AssignmentText != "" {
		b.WriteString(req.AssignmentText + "\n")
	}
	b.WriteString("\nCandidate competencies:\n")
	for _, c := range req.Candidates {
		if c.TaxonomyLevel != "" {
			fmt.Fprintf(&b, "ID: %s | %s (%s)\n", c.ID, c.Name, c.TaxonomyLevel)
		} else {
			fmt.Fprintf(&b, "ID: %s | %s\n", c.ID, c.Name)
		}
	}

	var out MatchResult
	err := g.call(ctx, KindMatch, matchSystem, b.String(), matchSchema(), func(obj map[string]any) error {
		r, err := parseMatch(obj)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}
