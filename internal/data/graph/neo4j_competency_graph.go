package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
	"github.com/yungbote/neurobridge-competency/internal/platform/neo4jdb"
)

// CompetencyGraph mirrors the relational store into Neo4j:
//
//	(:Document)-[:TEACHES]->(:Competency)
//	(:Document)-[:RELATES {kind, weight, ...}]->(:Document)
//	(:Assignment)-[:REQUIRES]->(:Competency)
//
// A nil client turns every call into a no-op.
type CompetencyGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewCompetencyGraph(client *neo4jdb.Client, log *logger.Logger) *CompetencyGraph {
	return &CompetencyGraph{client: client, log: log.With("graph", "CompetencyGraph")}
}

func (g *CompetencyGraph) Enabled() bool {
	return g != nil && g.client != nil && g.client.Driver != nil
}

func (g *CompetencyGraph) EnsureSchema(ctx context.Context) {
	if !g.Enabled() {
		return
	}
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)
	for _, stmt := range []string{
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT competency_id_unique IF NOT EXISTS FOR (c:Competency) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT assignment_id_unique IF NOT EXISTS FOR (a:Assignment) REQUIRE a.id IS UNIQUE`,
		`CREATE INDEX competency_course_idx IF NOT EXISTS FOR (c:Competency) ON (c.course_id)`,
	} {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			// restricted users may not manage schema
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// UpsertCourseCompetencies merges documents and competencies and rebuilds the
// TEACHES relations of the course from the competencies' origin documents.
func (g *CompetencyGraph) UpsertCourseCompetencies(ctx context.Context, courseID string, docs []*domain.Document, comps []*domain.Competency) error {
	if !g.Enabled() {
		return nil
	}
	if courseID == "" {
		return fmt.Errorf("neo4j competency graph: missing courseID")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	docNodes := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		docNodes = append(docNodes, map[string]any{
			"id":          d.ID,
			"course_id":   courseID,
			"title":       d.Title,
			"ordinal":     int64(d.Ordinal),
			"topic_title": d.TopicTitle,
			"synced_at":   now,
		})
	}
	compNodes := make([]map[string]any, 0, len(comps))
	teaches := make([]map[string]any, 0, len(comps))
	for _, c := range comps {
		if c == nil {
			continue
		}
		compNodes = append(compNodes, map[string]any{
			"id":              c.ID,
			"course_id":       courseID,
			"name":            c.Name,
			"normalized_name": c.NormalizedName,
			"taxonomy_level":  c.TaxonomyLevel.String(),
			"support_count":   int64(c.SupportCount),
			"external_id":     c.ExternalID,
			"synced_at":       now,
		})
		for _, docID := range c.OriginDocumentIDs {
			teaches = append(teaches, map[string]any{"doc_id": docID, "comp_id": c.ID})
		}
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(docNodes) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $nodes AS n
MERGE (d:Document {id: n.id})
SET d += n
`, map[string]any{"nodes": docNodes}); err != nil {
				return nil, err
			}
		}
		if len(compNodes) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $nodes AS n
MERGE (c:Competency {id: n.id})
SET c += n
`, map[string]any{"nodes": compNodes}); err != nil {
				return nil, err
			}
		}
		if err := runConsume(ctx, tx, `
MATCH (d:Document {course_id: $course_id})-[t:TEACHES]->(:Competency)
DELETE t
`, map[string]any{"course_id": courseID}); err != nil {
			return nil, err
		}
		if len(teaches) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $rels AS r
MATCH (d:Document {id: r.doc_id})
MATCH (c:Competency {id: r.comp_id})
MERGE (d)-[:TEACHES]->(c)
`, map[string]any{"rels": teaches}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j upsert competencies: %w", err)
	}
	return nil
}

// ReplaceDocumentRelations swaps all RELATES relations of the course in one
// write transaction.
func (g *CompetencyGraph) ReplaceDocumentRelations(ctx context.Context, courseID string, edges []*domain.CompetencyEdge) error {
	if !g.Enabled() {
		return nil
	}
	rels := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.SourceID == e.TargetID {
			continue
		}
		rels = append(rels, map[string]any{
			"id":                  e.ID,
			"from_id":             e.SourceID,
			"to_id":               e.TargetID,
			"kind":                string(e.Kind),
			"weight":              e.Weight,
			"overlap":             e.Overlap,
			"is_prerequisite":     e.IsPrerequisite,
			"builds_upon":         e.BuildsUpon,
			"difficulty_increase": e.DifficultyIncrease,
			"reason":              e.Reason,
			"course_id":           courseID,
		})
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := runConsume(ctx, tx, `
MATCH (:Document)-[r:RELATES {course_id: $course_id}]->(:Document)
DELETE r
`, map[string]any{"course_id": courseID}); err != nil {
			return nil, err
		}
		if len(rels) == 0 {
			return nil, nil
		}
		return nil, runConsume(ctx, tx, `
UNWIND $rels AS r
MATCH (a:Document {id: r.from_id})
MATCH (b:Document {id: r.to_id})
CREATE (a)-[e:RELATES]->(b)
SET e = r
`, map[string]any{"rels": rels})
	})
	if err != nil {
		return fmt.Errorf("neo4j replace relations: %w", err)
	}
	return nil
}

// ReplaceAssignmentRequirements merges assignment nodes and rebuilds their
// REQUIRES relations from the matcher result.
func (g *CompetencyGraph) ReplaceAssignmentRequirements(ctx context.Context, courseID string, assignments []*domain.Assignment) error {
	if !g.Enabled() {
		return nil
	}
	nodes := make([]map[string]any, 0, len(assignments))
	requires := make([]map[string]any, 0)
	for _, a := range assignments {
		if a == nil {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":            a.ID,
			"course_id":     courseID,
			"module_id":     a.ModuleID,
			"title":         a.Title,
			"display_title": a.DisplayTitle,
		})
		for _, compID := range a.LinkedCompetencyIDs {
			requires = append(requires, map[string]any{"assignment_id": a.ID, "comp_id": compID})
		}
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $nodes AS n
MERGE (a:Assignment {id: n.id})
SET a += n
`, map[string]any{"nodes": nodes}); err != nil {
				return nil, err
			}
		}
		if err := runConsume(ctx, tx, `
MATCH (a:Assignment {course_id: $course_id})-[r:REQUIRES]->(:Competency)
DELETE r
`, map[string]any{"course_id": courseID}); err != nil {
			return nil, err
		}
		if len(requires) == 0 {
			return nil, nil
		}
		return nil, runConsume(ctx, tx, `
UNWIND $rels AS r
MATCH (a:Assignment {id: r.assignment_id})
MATCH (c:Competency {id: r.comp_id})
MERGE (a)-[:REQUIRES]->(c)
`, map[string]any{"rels": requires})
	})
	if err != nil {
		return fmt.Errorf("neo4j replace requirements: %w", err)
	}
	return nil
}

// IncidentRelations returns the RELATES relations touching a document, in both
// directions.
func (g *CompetencyGraph) IncidentRelations(ctx context.Context, nodeID string) ([]*domain.CompetencyEdge, error) {
	if !g.Enabled() {
		return nil, nil
	}
	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Document)-[r:RELATES]->(b:Document)
WHERE a.id = $id OR b.id = $id
RETURN a.id AS source, b.id AS target, r.kind AS kind, r.weight AS weight,
       r.overlap AS overlap, r.is_prerequisite AS prereq, r.builds_upon AS builds,
       r.difficulty_increase AS harder, r.course_id AS course_id
`, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		var edges []*domain.CompetencyEdge
		for res.Next(ctx) {
			rec := res.Record()
			e := &domain.CompetencyEdge{NodeType: domain.NodeDocument}
			if v, ok := rec.Get("source"); ok {
				e.SourceID, _ = v.(string)
			}
			if v, ok := rec.Get("target"); ok {
				e.TargetID, _ = v.(string)
			}
			if v, ok := rec.Get("kind"); ok {
				s, _ := v.(string)
				e.Kind = domain.EdgeKind(s)
			}
			if v, ok := rec.Get("weight"); ok {
				e.Weight, _ = v.(float64)
			}
			if v, ok := rec.Get("overlap"); ok {
				e.Overlap, _ = v.(float64)
			}
			if v, ok := rec.Get("prereq"); ok {
				e.IsPrerequisite, _ = v.(bool)
			}
			if v, ok := rec.Get("builds"); ok {
				e.BuildsUpon, _ = v.(bool)
			}
			if v, ok := rec.Get("harder"); ok {
				e.DifficultyIncrease, _ = v.(bool)
			}
			if v, ok := rec.Get("course_id"); ok {
				e.CourseID, _ = v.(string)
			}
			edges = append(edges, e)
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, err
	}
	edges, _ := out.([]*domain.CompetencyEdge)
	return edges, nil
}
