package competency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// TextLoader resolves a document content reference to plain text.
type TextLoader interface {
	LoadText(ctx context.Context, ref string) (string, error)
}

// GraphProjection mirrors the course graph into a secondary store.
type GraphProjection interface {
	UpsertCourseCompetencies(ctx context.Context, courseID string, docs []*domain.Document, comps []*domain.Competency) error
	ReplaceDocumentRelations(ctx context.Context, courseID string, edges []*domain.CompetencyEdge) error
	ReplaceAssignmentRequirements(ctx context.Context, courseID string, assignments []*domain.Assignment) error
}

type DocumentInput struct {
	ID         string
	Title      string
	ContentRef string
	Ordinal    int
}

type AssignmentInput struct {
	ID          string
	ModuleID    int64
	Title       string
	Description string
	RuleOutcome domain.RuleOutcome
}

type CourseInput struct {
	CourseID    string
	ShortName   string
	FullName    string
	ExternalID  int64
	Context     string
	Documents   []DocumentInput
	Assignments []AssignmentInput
}

type RunOptions struct {
	// Force re-extracts unchanged documents and recomputes every relation.
	Force bool
}

type PipelineConfig struct {
	Concurrency int
	// RequireCompleteEdgeSnapshot keeps the previous edge set when any pair
	// evaluation failed.
	RequireCompleteEdgeSnapshot bool
	ExtractMaxChars             int
}

type PipelineDeps struct {
	Log      *logger.Logger
	Repos    repos.Repos
	Reasoner Reasoner
	Catalog  *Catalog
	Loader   TextLoader
	// Graph is optional.
	Graph GraphProjection
}

// Pipeline runs extraction, consolidation, relation inference and assignment
// matching for one course.
type Pipeline struct {
	log          *logger.Logger
	repos        repos.Repos
	catalog      *Catalog
	loader       TextLoader
	graph        GraphProjection
	extractor    *Extractor
	consolidator *Consolidator
	evaluator    *Evaluator
	matcher      *Matcher
	edgeLocks    *KeyedMutex
	cfg          PipelineConfig
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) (*Pipeline, error) {
	if deps.Log == nil {
		return nil, errors.New("pipeline: logger required")
	}
	if deps.Reasoner == nil || deps.Loader == nil {
		return nil, errors.New("pipeline: reasoner and text loader required")
	}
	if deps.Repos.Courses == nil || deps.Repos.Documents == nil || deps.Repos.Competencies == nil ||
		deps.Repos.Edges == nil || deps.Repos.Assignments == nil {
		return nil, errors.New("pipeline: repositories required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	log := deps.Log.With("service", "CoursePipeline")
	catalog := deps.Catalog
	if catalog == nil {
		catalog = NewCatalog(deps.Repos.Competencies, deps.Log, nil, 0)
	}
	return &Pipeline{
		log:          log,
		repos:        deps.Repos,
		catalog:      catalog,
		loader:       deps.Loader,
		graph:        deps.Graph,
		extractor:    NewExtractor(deps.Reasoner, deps.Log, cfg.ExtractMaxChars),
		consolidator: NewConsolidator(deps.Reasoner, deps.Log),
		evaluator:    NewEvaluator(deps.Reasoner, deps.Log),
		matcher:      NewMatcher(deps.Reasoner, deps.Log),
		edgeLocks:    NewKeyedMutex(),
		cfg:          cfg,
	}, nil
}

func (p *Pipeline) Catalog() *Catalog { return p.catalog }

// Run processes the course. Item failures are counted in the report and never
// stop sibling items; the returned error is reserved for failures that leave
// nothing to report, such as an unreachable database.
func (p *Pipeline) Run(ctx context.Context, in CourseInput, opts RunOptions) (*Report, error) {
	if in.CourseID == "" {
		return nil, errors.New("course id required")
	}
	ctx, span := otel.Tracer("competency/pipeline").Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", in.CourseID), attribute.Int("documents", len(in.Documents)))

	report := NewReport(in.CourseID)
	log := p.log.With("course_id", in.CourseID)
	// Another process may have written this course since the last run.
	p.catalog.Invalidate(in.CourseID)

	shortName := in.ShortName
	if shortName == "" {
		shortName = in.CourseID
	}
	if err := p.repos.Courses.Upsert(dbctx.New(ctx), &domain.Course{
		ID:         in.CourseID,
		ShortName:  shortName,
		FullName:   in.FullName,
		ExternalID: in.ExternalID,
	}); err != nil {
		return nil, fmt.Errorf("upsert course: %w", err)
	}

	prevDocs, err := p.repos.Documents.ListByCourse(dbctx.New(ctx), in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	prevByID := make(map[string]*domain.Document, len(prevDocs))
	for _, d := range prevDocs {
		prevByID[d.ID] = d
	}

	var changed atomic.Bool
	if err := p.processDocuments(ctx, in, prevByID, opts, report, &changed); err != nil {
		return nil, err
	}

	keep := make([]string, 0, len(in.Documents))
	for _, d := range in.Documents {
		keep = append(keep, d.ID)
	}
	removed, err := p.repos.Documents.DeleteMissing(dbctx.New(ctx), in.CourseID, keep)
	if err != nil {
		report.Fail(StagePersist, fmt.Errorf("delete removed documents: %w", err))
	} else if removed > 0 {
		log.Info("Removed documents no longer in the course", "count", removed)
		changed.Store(true)
	}

	docs, err := p.repos.Documents.ListByCourse(dbctx.New(ctx), in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	comps, err := p.catalog.Load(ctx, in.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load competencies: %w", err)
	}
	if p.graph != nil {
		if err := p.graph.UpsertCourseCompetencies(ctx, in.CourseID, docs, comps); err != nil {
			report.Fail(StagePersist, fmt.Errorf("graph projection: %w", err))
		}
	}

	needRelations := changed.Load() || opts.Force
	if !needRelations {
		existing, err := p.repos.Edges.ListByCourse(dbctx.New(ctx), in.CourseID, domain.NodeDocument)
		if err != nil {
			return nil, fmt.Errorf("list edges: %w", err)
		}
		needRelations = len(existing) == 0 && len(ForwardPairs(docs)) > 0
	}
	if needRelations {
		p.relateDocuments(ctx, in.CourseID, docs, comps, report)
	} else {
		report.Skip(StageRelate)
	}

	if err := p.matchAssignments(ctx, in, comps, changed.Load() || opts.Force, report); err != nil {
		return nil, err
	}

	t := report.Totals()
	log.Info("Course run finished", "succeeded", t.Succeeded, "skipped", t.Skipped, "failed", t.Failed)
	return report, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) processDocuments(ctx context.Context, in CourseInput, prev map[string]*domain.Document, opts RunOptions, report *Report, changed *atomic.Bool) error {
	ctx, span := otel.Tracer("competency/pipeline").Start(ctx, "pipeline.documents")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, d := range in.Documents {
		d := d
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			p.processDocument(gctx, in, d, prev[d.ID], opts, report, changed)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) processDocument(ctx context.Context, in CourseInput, d DocumentInput, prev *domain.Document, opts RunOptions, report *Report, changed *atomic.Bool) {
	log := p.log.With("course_id", in.CourseID, "document_id", d.ID)
	if d.ID == "" {
		report.Fail(StageExtract, errors.New("document without id"))
		return
	}

	text, err := p.loader.LoadText(ctx, d.ContentRef)
	if err != nil {
		report.Fail(StageExtract, &ExtractionError{DocumentID: d.ID, Err: err})
		return
	}
	hash := contentHash(text)
	row := &domain.Document{
		ID:          d.ID,
		CourseID:    in.CourseID,
		Title:       d.Title,
		ContentRef:  d.ContentRef,
		ContentHash: hash,
		Ordinal:     d.Ordinal,
	}

	if !opts.Force && prev != nil && prev.ContentHash == hash {
		report.Skip(StageExtract)
		report.Skip(StageConsolidate)
		if prev.Title != d.Title || prev.Ordinal != d.Ordinal || prev.ContentRef != d.ContentRef {
			row.TopicTitle = prev.TopicTitle
			if err := p.repos.Documents.Upsert(dbctx.New(ctx), row); err != nil {
				report.Fail(StagePersist, fmt.Errorf("document %s: %w", d.ID, err))
				return
			}
			changed.Store(true)
			report.Succeed(StagePersist)
			return
		}
		report.Skip(StagePersist)
		return
	}

	row.Title = d.Title
	ext, err := p.extractor.Extract(ctx, row, text, in.Context)
	if err != nil {
		log.Warn("Extraction failed", "error", err)
		report.Fail(StageExtract, err)
		return
	}
	report.Succeed(StageExtract)
	row.TopicTitle = ext.TopicTitle

	comps, err := p.consolidator.Consolidate(ctx, row, ext.Candidates)
	var cerr *ConsolidationError
	switch {
	case errors.As(err, &cerr) && errors.Is(err, ErrNoCandidates):
		log.Info("No competency candidates for document")
		report.Skip(StageConsolidate)
		comps = nil
	case err != nil:
		report.Fail(StageConsolidate, err)
		return
	default:
		report.Succeed(StageConsolidate)
	}

	if len(comps) > 0 {
		if _, _, err := p.catalog.Merge(ctx, in.CourseID, comps); err != nil {
			report.Fail(StagePersist, fmt.Errorf("document %s competencies: %w", d.ID, err))
			return
		}
	}
	if err := p.repos.Documents.Upsert(dbctx.New(ctx), row); err != nil {
		report.Fail(StagePersist, fmt.Errorf("document %s: %w", d.ID, err))
		return
	}
	changed.Store(true)
	report.Succeed(StagePersist)
}

// summaries builds what the relation prompt sees of each document.
func summaries(docs []*domain.Document, comps []*domain.Competency) map[string]gateway.DocumentSummary {
	out := make(map[string]gateway.DocumentSummary, len(docs))
	for _, d := range docs {
		s := gateway.DocumentSummary{ID: d.ID, Title: d.Title, Ordinal: d.Ordinal, Excerpt: d.TopicTitle}
		for _, c := range comps {
			if c.HasOrigin(d.ID) {
				s.Competencies = append(s.Competencies, c.Name)
			}
		}
		out[d.ID] = s
	}
	return out
}

func (p *Pipeline) relateDocuments(ctx context.Context, courseID string, docs []*domain.Document, comps []*domain.Competency, report *Report) {
	ctx, span := otel.Tracer("competency/pipeline").Start(ctx, "pipeline.relate")
	defer span.End()
	log := p.log.With("course_id", courseID)

	pairs := ForwardPairs(docs)
	sums := summaries(docs, comps)

	var (
		mu     sync.Mutex
		edges  []*domain.CompetencyEdge
		failed int32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			edge, err := p.evaluator.Evaluate(gctx, sums[pair[0].ID], sums[pair[1].ID])
			if err != nil {
				atomic.AddInt32(&failed, 1)
				report.Fail(StageRelate, err)
				return nil
			}
			edge.CourseID = courseID
			mu.Lock()
			edges = append(edges, edge)
			mu.Unlock()
			report.Succeed(StageRelate)
			return nil
		})
	}
	_ = g.Wait()
	span.SetAttributes(attribute.Int("pairs", len(pairs)), attribute.Int("failed", int(failed)))

	if failed > 0 && p.cfg.RequireCompleteEdgeSnapshot {
		log.Warn("Keeping previous relation snapshot; some pairs failed", "failed", failed, "pairs", len(pairs))
		return
	}

	ordinal := make(map[string]int, len(docs))
	for _, d := range docs {
		ordinal[d.ID] = d.Ordinal
	}
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if ordinal[a.SourceID] != ordinal[b.SourceID] {
			return ordinal[a.SourceID] < ordinal[b.SourceID]
		}
		return ordinal[a.TargetID] < ordinal[b.TargetID]
	})
	set := NewEdgeSet()
	for _, e := range edges {
		if err := set.Add(e); err != nil {
			log.Warn("Edge rejected", "error", err)
		}
	}

	unlock := p.edgeLocks.Lock(courseID)
	defer unlock()
	if err := p.repos.Edges.ReplaceForCourse(dbctx.New(ctx), courseID, domain.NodeDocument, set.Edges()); err != nil {
		report.Fail(StagePersist, fmt.Errorf("replace relations: %w", err))
		return
	}
	if p.graph != nil {
		if err := p.graph.ReplaceDocumentRelations(ctx, courseID, set.Edges()); err != nil {
			report.Fail(StagePersist, fmt.Errorf("graph relations: %w", err))
		}
	}
	log.Info("Relations replaced", "edges", set.Len())
}

func (p *Pipeline) matchAssignments(ctx context.Context, in CourseInput, comps []*domain.Competency, rematch bool, report *Report) error {
	ctx, span := otel.Tracer("competency/pipeline").Start(ctx, "pipeline.match")
	defer span.End()

	var jobs []*domain.Assignment
	for _, a := range in.Assignments {
		if a.ID == "" {
			report.Fail(StageMatch, errors.New("assignment without id"))
			continue
		}
		prev, err := p.repos.Assignments.GetByID(dbctx.New(ctx), a.ID)
		if err != nil {
			return fmt.Errorf("get assignment %s: %w", a.ID, err)
		}
		outcome := a.RuleOutcome
		if !outcome.Valid() {
			outcome = domain.OutcomeEvidence
		}
		row := &domain.Assignment{
			ID:          a.ID,
			CourseID:    in.CourseID,
			ModuleID:    a.ModuleID,
			Title:       a.Title,
			Description: a.Description,
			RuleOutcome: outcome,
		}
		if err := p.repos.Assignments.Upsert(dbctx.New(ctx), row); err != nil {
			report.Fail(StageMatch, fmt.Errorf("assignment %s: %w", a.ID, err))
			continue
		}
		unchanged := prev != nil && prev.Title == a.Title && prev.Description == a.Description && prev.DisplayTitle != ""
		if unchanged && !rematch {
			report.Skip(StageMatch)
			continue
		}
		jobs = append(jobs, row)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, row := range jobs {
		row := row
		g.Go(func() error {
			res, err := p.matcher.Match(gctx, row, comps)
			if err != nil {
				report.Fail(StageMatch, fmt.Errorf("assignment %s: %w", row.ID, err))
				return nil
			}
			if w := res.Warning(row.ID); w != nil {
				report.Warn(w.Error())
			}
			if err := p.repos.Assignments.SetMatch(dbctx.New(gctx), row.ID, res.Title, res.SelectedIDs, res.Reasoning); err != nil {
				report.Fail(StageMatch, fmt.Errorf("assignment %s: %w", row.ID, err))
				return nil
			}
			report.Succeed(StageMatch)
			return nil
		})
	}
	_ = g.Wait()

	if p.graph != nil {
		rows, err := p.repos.Assignments.ListByCourse(dbctx.New(ctx), in.CourseID)
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		if err := p.graph.ReplaceAssignmentRequirements(ctx, in.CourseID, rows); err != nil {
			report.Fail(StagePersist, fmt.Errorf("graph requirements: %w", err))
		}
	}
	return nil
}
