package competency

import (
	"context"
	"math"
	"sync"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// DefaultNearDuplicateThreshold is the cosine similarity at which a new name is
// folded into an existing competency.
const DefaultNearDuplicateThreshold = 0.92

// Catalog is the course-scoped view of persisted competencies. Entries are
// loaded on first use and dropped by Invalidate; all writes for a course are
// serialized through Merge.
type Catalog struct {
	repo      repos.CompetencyRepo
	log       *logger.Logger
	locks     *KeyedMutex
	embedder  Embedder
	threshold float64

	mu      sync.Mutex
	courses map[string]*catalogEntry
}

type catalogEntry struct {
	byNorm  map[string]*domain.Competency
	order   []string
	vectors map[string][]float32
}

// NewCatalog builds a catalog. embedder may be nil, which disables
// near-duplicate reuse by embedding similarity.
func NewCatalog(repo repos.CompetencyRepo, log *logger.Logger, embedder Embedder, threshold float64) *Catalog {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultNearDuplicateThreshold
	}
	return &Catalog{
		repo:      repo,
		log:       log.With("service", "CompetencyCatalog"),
		locks:     NewKeyedMutex(),
		embedder:  embedder,
		threshold: threshold,
		courses:   map[string]*catalogEntry{},
	}
}

// Load returns the competencies of a course, reading the repository when the
// course is not cached.
func (c *Catalog) Load(ctx context.Context, courseID string) ([]*domain.Competency, error) {
	unlock := c.locks.Lock(courseID)
	defer unlock()
	entry, err := c.entry(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return entry.list(), nil
}

// Invalidate drops the cached view of a course.
func (c *Catalog) Invalidate(courseID string) {
	c.mu.Lock()
	delete(c.courses, courseID)
	c.mu.Unlock()
}

// entry must be called with the course lock held.
func (c *Catalog) entry(ctx context.Context, courseID string) (*catalogEntry, error) {
	c.mu.Lock()
	e, ok := c.courses[courseID]
	c.mu.Unlock()
	if ok {
		return e, nil
	}
	rows, err := c.repo.ListByCourse(dbctx.New(ctx), courseID)
	if err != nil {
		return nil, err
	}
	e = &catalogEntry{byNorm: map[string]*domain.Competency{}, vectors: map[string][]float32{}}
	for _, r := range rows {
		e.put(r)
	}
	c.mu.Lock()
	c.courses[courseID] = e
	c.mu.Unlock()
	return e, nil
}

func (e *catalogEntry) put(comp *domain.Competency) {
	if _, ok := e.byNorm[comp.NormalizedName]; !ok {
		e.order = append(e.order, comp.NormalizedName)
	}
	e.byNorm[comp.NormalizedName] = comp
}

func (e *catalogEntry) list() []*domain.Competency {
	out := make([]*domain.Competency, 0, len(e.order))
	for _, n := range e.order {
		cp := *e.byNorm[n]
		out = append(out, &cp)
	}
	return out
}

// Merge persists consolidated competencies of one document. A name already
// known in the course (exactly, or by embedding similarity when enabled) is
// merged into the stored competency. It returns the stored rows and how many
// were newly created.
func (c *Catalog) Merge(ctx context.Context, courseID string, items []*domain.Competency) ([]*domain.Competency, int, error) {
	unlock := c.locks.Lock(courseID)
	defer unlock()

	entry, err := c.entry(ctx, courseID)
	if err != nil {
		return nil, 0, err
	}
	if c.embedder != nil {
		c.foldNearDuplicates(ctx, entry, items)
	}

	out := make([]*domain.Competency, 0, len(items))
	created := 0
	for _, item := range items {
		if item == nil || item.NormalizedName == "" {
			continue
		}
		item.CourseID = courseID
		stored, isNew, err := c.repo.UpsertByName(dbctx.New(ctx), item)
		if err != nil {
			// the cached view may now disagree with the store
			c.Invalidate(courseID)
			return out, created, err
		}
		if isNew {
			created++
		}
		entry.put(stored)
		cp := *stored
		out = append(out, &cp)
	}
	return out, created, nil
}

// foldNearDuplicates renames items whose embedding is close to an existing
// competency so the upsert merges into it. Embedding failures only disable the
// fold for this call.
func (c *Catalog) foldNearDuplicates(ctx context.Context, entry *catalogEntry, items []*domain.Competency) {
	var (
		texts []string
		keys  []string
	)
	for _, n := range entry.order {
		if _, ok := entry.vectors[n]; !ok {
			texts = append(texts, entry.byNorm[n].Name)
			keys = append(keys, n)
		}
	}
	var fresh []*domain.Competency
	for _, it := range items {
		if it == nil || it.NormalizedName == "" {
			continue
		}
		if _, ok := entry.byNorm[it.NormalizedName]; ok {
			continue
		}
		fresh = append(fresh, it)
		texts = append(texts, it.Name)
		keys = append(keys, "")
	}
	if len(fresh) == 0 {
		return
	}

	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		c.log.Warn("Embedding failed; near-duplicate fold skipped", "error", err)
		return
	}
	newVecs := make([][]float32, 0, len(fresh))
	for i, k := range keys {
		if k != "" {
			entry.vectors[k] = vecs[i]
			continue
		}
		newVecs = append(newVecs, vecs[i])
	}

	for i, it := range fresh {
		bestNorm, bestScore := "", 0.0
		for _, n := range entry.order {
			if s := cosine(newVecs[i], entry.vectors[n]); s > bestScore {
				bestNorm, bestScore = n, s
			}
		}
		if bestNorm != "" && bestScore >= c.threshold {
			existing := entry.byNorm[bestNorm]
			c.log.Info("Reusing near-duplicate competency", "name", it.Name, "existing", existing.Name, "score", bestScore)
			it.Name = existing.Name
			it.NormalizedName = existing.NormalizedName
			continue
		}
		entry.vectors[it.NormalizedName] = newVecs[i]
	}
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
