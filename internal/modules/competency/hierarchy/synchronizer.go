package hierarchy

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeRemoved   Outcome = "removed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// OpResult is the outcome of one planned platform operation.
type OpResult struct {
	Op         Op         `json:"op"`
	Target     string     `json:"target"`
	Outcome    Outcome    `json:"outcome"`
	ExternalID int64      `json:"external_id,omitempty"`
	Err        *SyncError `json:"-"`
	Error      string     `json:"error,omitempty"`
}

type Result struct {
	CourseID   string           `json:"course_id"`
	State      domain.SyncState `json:"state"`
	Ops        []OpResult       `json:"ops"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

func (r *Result) add(op OpResult) {
	if op.Err != nil {
		op.Error = op.Err.Error()
	}
	r.Ops = append(r.Ops, op)
}

func (r *Result) Count(o Outcome) int {
	n := 0
	for _, op := range r.Ops {
		if op.Outcome == o {
			n++
		}
	}
	return n
}

// Writes counts operations that changed the platform.
func (r *Result) Writes() int {
	return r.Count(OutcomeCreated) + r.Count(OutcomeUpdated) + r.Count(OutcomeRemoved)
}

func (r *Result) Errors(limit int) []string {
	var out []string
	for _, op := range r.Ops {
		if op.Err == nil {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, op.Err.Error())
	}
	return out
}

type Config struct {
	// PruneStaleLinks removes module links to this framework's competencies
	// that the matcher no longer selects.
	PruneStaleLinks bool
	// UpdateSectionSummaries lists each document's competencies in the summary
	// of the course section holding it.
	UpdateSectionSummaries bool
	LeaseTTL               time.Duration
}

type Deps struct {
	Log      *logger.Logger
	Repos    repos.Repos
	Platform Platform
	Lease    Lease
}

// Synchronizer drives a course through UNSYNCED -> FRAMEWORK_CREATED ->
// COMPETENCIES_UPLOADED -> MODULES_LINKED. Progress is always re-derived from
// the platform.
type Synchronizer struct {
	log      *logger.Logger
	repos    repos.Repos
	platform Platform
	lease    Lease
	cfg      Config
}

func New(deps Deps, cfg Config) (*Synchronizer, error) {
	if deps.Log == nil {
		return nil, errors.New("synchronizer: logger required")
	}
	if deps.Platform == nil {
		return nil, errors.New("synchronizer: platform required")
	}
	if deps.Repos.Courses == nil || deps.Repos.Competencies == nil || deps.Repos.Assignments == nil {
		return nil, errors.New("synchronizer: repositories required")
	}
	if deps.Lease == nil {
		deps.Lease = NewMemoryLease()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10 * time.Minute
	}
	return &Synchronizer{
		log:      deps.Log.With("service", "HierarchySynchronizer"),
		repos:    deps.Repos,
		platform: deps.Platform,
		lease:    deps.Lease,
		cfg:      cfg,
	}, nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// FrameworkIDNumber is the platform idnumber bound to a course.
func FrameworkIDNumber(courseID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(courseID))
	return fmt.Sprintf("fw_%s_%08x", truncate(slug(courseID), 40), h.Sum32())
}

// CompetencyIDNumber is the platform idnumber of a competency.
func CompetencyIDNumber(courseID, normalizedName string) string {
	sum := sha1.Sum([]byte(courseID + "\x00" + normalizedName))
	return "comp_" + hex.EncodeToString(sum[:])[:16]
}

type courseData struct {
	course      *domain.Course
	comps       []*domain.Competency
	assignments []*domain.Assignment
}

func (s *Synchronizer) load(ctx context.Context, courseID string) (*courseData, error) {
	dbc := dbctx.New(ctx)
	course, err := s.repos.Courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotStored, courseID)
	}
	if course.ExternalID <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotBound, courseID)
	}
	comps, err := s.repos.Competencies.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.repos.Assignments.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	return &courseData{course: course, comps: comps, assignments: assignments}, nil
}

// remoteIndex finds platform competencies by idnumber or normalized name.
type remoteIndex struct {
	byIDNumber map[string]int64
	byName     map[string]int64
	ids        map[int64]bool
}

func newRemoteIndex(list []RemoteCompetency) *remoteIndex {
	idx := &remoteIndex{byIDNumber: map[string]int64{}, byName: map[string]int64{}, ids: map[int64]bool{}}
	for _, rc := range list {
		idx.put(rc)
	}
	return idx
}

func (x *remoteIndex) put(rc RemoteCompetency) {
	if rc.IDNumber != "" {
		x.byIDNumber[rc.IDNumber] = rc.ID
	}
	if n := domain.NormalizeName(rc.ShortName); n != "" {
		if _, ok := x.byName[n]; !ok {
			x.byName[n] = rc.ID
		}
	}
	x.ids[rc.ID] = true
}

func (x *remoteIndex) lookup(courseID string, c *domain.Competency) (int64, bool) {
	if id, ok := x.byIDNumber[CompetencyIDNumber(courseID, c.NormalizedName)]; ok {
		return id, true
	}
	if id, ok := x.byName[domain.NormalizeName(truncate(c.Name, maxShortNameRunes))]; ok {
		return id, true
	}
	id, ok := x.byName[c.NormalizedName]
	return id, ok
}

// desiredLinks maps platform competency id to rule outcome for an assignment.
// Competencies without a platform id are returned separately.
func desiredLinks(a *domain.Assignment, byID map[string]*domain.Competency, ext map[string]int64) (map[int64]domain.RuleOutcome, []string) {
	outcome := a.RuleOutcome
	if !outcome.Valid() {
		outcome = domain.OutcomeEvidence
	}
	want := map[int64]domain.RuleOutcome{}
	var missing []string
	for _, id := range a.LinkedCompetencyIDs {
		if _, known := byID[id]; !known {
			continue
		}
		e, ok := ext[id]
		if !ok || e == 0 {
			missing = append(missing, id)
			continue
		}
		want[e] = outcome
	}
	return want, missing
}

// State derives the course state from the platform alone.
func (s *Synchronizer) State(ctx context.Context, courseID string) (domain.SyncState, error) {
	data, err := s.load(ctx, courseID)
	if err != nil {
		return domain.StateUnsynced, err
	}
	return s.derive(ctx, data)
}

// derive returns the furthest state the platform confirms; on a read error it
// returns the state confirmed so far together with the error.
func (s *Synchronizer) derive(ctx context.Context, data *courseData) (domain.SyncState, error) {
	courseID := data.course.ID
	fw, err := s.platform.FindFramework(ctx, FrameworkIDNumber(courseID))
	if err != nil {
		return domain.StateUnsynced, err
	}
	if fw == nil {
		return domain.StateUnsynced, nil
	}

	remote, err := s.platform.ListFrameworkCompetencies(ctx, fw.ExternalID)
	if err != nil {
		return domain.StateFrameworkCreated, err
	}
	idx := newRemoteIndex(remote)
	ext := map[string]int64{}
	byID := map[string]*domain.Competency{}
	for _, c := range data.comps {
		byID[c.ID] = c
		id, ok := idx.lookup(courseID, c)
		if !ok {
			return domain.StateFrameworkCreated, nil
		}
		ext[c.ID] = id
	}
	if len(data.comps) > 0 {
		bound, err := s.platform.ListCourseCompetencies(ctx, data.course.ExternalID)
		if err != nil {
			return domain.StateFrameworkCreated, err
		}
		boundSet := map[int64]bool{}
		for _, id := range bound {
			boundSet[id] = true
		}
		for _, id := range ext {
			if !boundSet[id] {
				return domain.StateFrameworkCreated, nil
			}
		}
	}

	for _, a := range data.assignments {
		if a.ModuleID <= 0 {
			continue
		}
		want, missing := desiredLinks(a, byID, ext)
		if len(missing) > 0 {
			return domain.StateCompetenciesUploaded, nil
		}
		if len(want) == 0 && !s.cfg.PruneStaleLinks {
			continue
		}
		links, err := s.platform.ListModuleLinks(ctx, a.ModuleID)
		if err != nil {
			return domain.StateCompetenciesUploaded, err
		}
		have := map[int64]domain.RuleOutcome{}
		for _, l := range links {
			have[l.CompetencyID] = l.RuleOutcome
		}
		for id, o := range want {
			if cur, ok := have[id]; !ok || cur != o {
				return domain.StateCompetenciesUploaded, nil
			}
		}
		if s.cfg.PruneStaleLinks {
			for id := range have {
				if _, wanted := want[id]; !wanted && idx.ids[id] {
					return domain.StateCompetenciesUploaded, nil
				}
			}
		}
	}
	return domain.StateModulesLinked, nil
}

// Sync brings the platform in line with the stored hierarchy. Operation
// failures are recorded in the result; the returned error is reserved for
// failures before any operation was planned.
func (s *Synchronizer) Sync(ctx context.Context, courseID string) (*Result, error) {
	ctx, span := otel.Tracer("competency/sync").Start(ctx, "sync.course")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID))

	release, err := s.lease.Acquire(ctx, leaseKey(courseID), s.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("Lease release failed", "course_id", courseID, "error", err)
		}
	}()

	data, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	log := s.log.With("course_id", courseID)
	res := &Result{CourseID: courseID, StartedAt: time.Now().UTC()}

	caps, err := s.platform.Capabilities(ctx)
	if err != nil {
		res.add(OpResult{Op: OpFetchCapabilities, Target: "site", Outcome: OutcomeFailed, Err: newSyncError(OpFetchCapabilities, "site", err)})
		caps = map[Op]bool{}
	}
	w := NewGatedWriter(s.platform, caps)

	if st := s.syncHierarchy(ctx, data, w, res); st != nil {
		s.syncModuleLinks(ctx, data, w, st, res)
		if n, err := s.repos.Competencies.SetExternalIDs(dbctx.New(ctx), courseID, st.ids); err != nil {
			log.Warn("Writing back platform ids failed", "error", err)
		} else {
			log.Debug("Platform ids written back", "count", n)
		}
		if s.cfg.UpdateSectionSummaries {
			s.syncSections(ctx, data, w, res)
		}
	}

	state, err := s.derive(ctx, data)
	if err != nil {
		log.Warn("State derivation incomplete", "error", err)
	}
	res.State = state
	res.FinishedAt = time.Now().UTC()

	run := &domain.SyncRun{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		FinalState:  state.String(),
		Created:     res.Count(OutcomeCreated),
		Updated:     res.Count(OutcomeUpdated),
		Removed:     res.Count(OutcomeRemoved),
		Unchanged:   res.Count(OutcomeUnchanged),
		Skipped:     res.Count(OutcomeSkipped),
		Failed:      res.Count(OutcomeFailed),
		FirstErrors: res.Errors(5),
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
	}
	if s.repos.SyncRuns != nil {
		if err := s.repos.SyncRuns.Create(dbctx.New(ctx), run); err != nil {
			log.Warn("Storing sync run failed", "error", err)
		}
	}
	span.SetAttributes(attribute.String("state", state.String()), attribute.Int("writes", res.Writes()), attribute.Int("failed", run.Failed))
	log.Info("Sync finished", "state", state.String(), "created", run.Created, "updated", run.Updated,
		"removed", run.Removed, "unchanged", run.Unchanged, "skipped", run.Skipped, "failed", run.Failed)
	return res, nil
}

// hierarchyState carries platform ids from the framework and competency steps
// to the module step.
type hierarchyState struct {
	ids     map[string]int64
	bound   map[int64]bool
	byID    map[string]*domain.Competency
	remote  *remoteIndex
	boundOK bool
}

func competencyTarget(c *domain.Competency) string { return "competency:" + c.Name }

func (s *Synchronizer) skipCompetencies(data *courseData, res *Result, op Op, reason string) {
	for _, c := range data.comps {
		res.add(OpResult{Op: op, Target: competencyTarget(c), Outcome: OutcomeSkipped, Error: reason})
	}
}

func (s *Synchronizer) skipLinks(data *courseData, res *Result, reason string) {
	for _, a := range data.assignments {
		if a.ModuleID <= 0 {
			continue
		}
		for _, id := range a.LinkedCompetencyIDs {
			res.add(OpResult{Op: OpAddToModule, Target: fmt.Sprintf("module:%d/competency:%s", a.ModuleID, id), Outcome: OutcomeSkipped, Error: reason})
		}
	}
}

// syncHierarchy ensures framework, competencies and course binding. It returns
// nil when the framework is unavailable.
func (s *Synchronizer) syncHierarchy(ctx context.Context, data *courseData, w Writer, res *Result) *hierarchyState {
	course := data.course
	idNumber := FrameworkIDNumber(course.ID)
	fwTarget := "framework:" + idNumber

	fw, err := s.platform.FindFramework(ctx, idNumber)
	if err != nil {
		res.add(OpResult{Op: OpListFrameworks, Target: fwTarget, Outcome: OutcomeFailed, Err: newSyncError(OpListFrameworks, fwTarget, err)})
		s.skipCompetencies(data, res, OpCreateCompetency, "framework lookup failed")
		s.skipLinks(data, res, "framework lookup failed")
		return nil
	}
	var fwID int64
	if fw != nil {
		fwID = fw.ExternalID
		res.add(OpResult{Op: OpCreateFramework, Target: fwTarget, Outcome: OutcomeUnchanged, ExternalID: fwID})
	} else {
		name := course.FullName
		if name == "" {
			name = course.ShortName
		}
		fwID, err = w.CreateFramework(ctx, FrameworkSpec{
			CourseID:    course.ID,
			IDNumber:    idNumber,
			ShortName:   "framework_" + strings.ToLower(course.ShortName),
			Description: "Generated competency framework for " + name,
		})
		if err != nil {
			res.add(OpResult{Op: OpCreateFramework, Target: fwTarget, Outcome: OutcomeFailed, Err: newSyncError(OpCreateFramework, fwTarget, err)})
			s.skipCompetencies(data, res, OpCreateCompetency, "framework unavailable")
			s.skipLinks(data, res, "framework unavailable")
			return nil
		}
		res.add(OpResult{Op: OpCreateFramework, Target: fwTarget, Outcome: OutcomeCreated, ExternalID: fwID})
	}

	st := &hierarchyState{ids: map[string]int64{}, bound: map[int64]bool{}, byID: map[string]*domain.Competency{}}
	for _, c := range data.comps {
		st.byID[c.ID] = c
	}

	remote, err := s.platform.ListFrameworkCompetencies(ctx, fwID)
	if err != nil {
		res.add(OpResult{Op: OpListCompetencies, Target: fwTarget, Outcome: OutcomeFailed, Err: newSyncError(OpListCompetencies, fwTarget, err)})
		s.skipCompetencies(data, res, OpCreateCompetency, "competency lookup failed")
		return st
	}
	st.remote = newRemoteIndex(remote)

	for _, c := range data.comps {
		target := competencyTarget(c)
		if id, ok := st.remote.lookup(course.ID, c); ok {
			st.ids[c.ID] = id
			res.add(OpResult{Op: OpCreateCompetency, Target: target, Outcome: OutcomeUnchanged, ExternalID: id})
			continue
		}
		spec := CompetencySpec{
			FrameworkID:   fwID,
			IDNumber:      CompetencyIDNumber(course.ID, c.NormalizedName),
			ShortName:     c.Name,
			Description:   competencyDescription(c),
			TaxonomyLevel: c.TaxonomyLevel,
		}
		id, err := w.CreateCompetency(ctx, spec)
		if err != nil {
			res.add(OpResult{Op: OpCreateCompetency, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpCreateCompetency, target, err)})
			continue
		}
		st.ids[c.ID] = id
		st.remote.put(RemoteCompetency{ID: id, IDNumber: spec.IDNumber, ShortName: spec.ShortName})
		res.add(OpResult{Op: OpCreateCompetency, Target: target, Outcome: OutcomeCreated, ExternalID: id})
	}

	if len(st.ids) == 0 {
		st.boundOK = true
		return st
	}
	courseTarget := fmt.Sprintf("course:%d", course.ExternalID)
	bound, err := s.platform.ListCourseCompetencies(ctx, course.ExternalID)
	if err != nil {
		res.add(OpResult{Op: OpListCourseLinks, Target: courseTarget, Outcome: OutcomeFailed, Err: newSyncError(OpListCourseLinks, courseTarget, err)})
		return st
	}
	st.boundOK = true
	for _, id := range bound {
		st.bound[id] = true
	}
	for _, c := range data.comps {
		id, ok := st.ids[c.ID]
		if !ok {
			continue
		}
		target := fmt.Sprintf("%s/competency:%d", courseTarget, id)
		if st.bound[id] {
			res.add(OpResult{Op: OpAddToCourse, Target: target, Outcome: OutcomeUnchanged, ExternalID: id})
			continue
		}
		if err := w.AddCompetencyToCourse(ctx, course.ExternalID, id); err != nil {
			res.add(OpResult{Op: OpAddToCourse, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpAddToCourse, target, err)})
			continue
		}
		st.bound[id] = true
		res.add(OpResult{Op: OpAddToCourse, Target: target, Outcome: OutcomeCreated, ExternalID: id})
	}
	return st
}

func competencyDescription(c *domain.Competency) string {
	level := c.TaxonomyLevel
	if !level.Valid() {
		level = domain.LevelApply
	}
	if c.Description == "" {
		return "Taxonomy level: " + level.Title()
	}
	return c.Description + "\nTaxonomy level: " + level.Title()
}

func (s *Synchronizer) syncModuleLinks(ctx context.Context, data *courseData, w Writer, st *hierarchyState, res *Result) {
	for _, a := range data.assignments {
		if a.ModuleID <= 0 {
			continue
		}
		moduleTarget := fmt.Sprintf("module:%d", a.ModuleID)
		want, missing := desiredLinks(a, st.byID, st.ids)
		for _, id := range missing {
			res.add(OpResult{Op: OpAddToModule, Target: moduleTarget + "/competency:" + id, Outcome: OutcomeSkipped, Error: "competency not on platform"})
		}
		if len(want) == 0 && !s.cfg.PruneStaleLinks {
			continue
		}
		links, err := s.platform.ListModuleLinks(ctx, a.ModuleID)
		if err != nil {
			res.add(OpResult{Op: OpListModuleLinks, Target: moduleTarget, Outcome: OutcomeFailed, Err: newSyncError(OpListModuleLinks, moduleTarget, err)})
			for id := range want {
				res.add(OpResult{Op: OpAddToModule, Target: fmt.Sprintf("%s/competency:%d", moduleTarget, id), Outcome: OutcomeSkipped, Error: "module lookup failed"})
			}
			continue
		}
		have := map[int64]domain.RuleOutcome{}
		for _, l := range links {
			have[l.CompetencyID] = l.RuleOutcome
		}

		for _, c := range data.comps {
			id, ok := st.ids[c.ID]
			if !ok {
				continue
			}
			outcome, wanted := want[id]
			if !wanted {
				continue
			}
			target := fmt.Sprintf("%s/competency:%d", moduleTarget, id)
			cur, linked := have[id]
			switch {
			case linked && cur == outcome:
				res.add(OpResult{Op: OpAddToModule, Target: target, Outcome: OutcomeUnchanged, ExternalID: id})
			case linked:
				if err := w.SetModuleCompetencyRuleOutcome(ctx, a.ModuleID, id, outcome); err != nil {
					res.add(OpResult{Op: OpSetModuleOutcome, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpSetModuleOutcome, target, err)})
					continue
				}
				res.add(OpResult{Op: OpSetModuleOutcome, Target: target, Outcome: OutcomeUpdated, ExternalID: id})
			case !st.boundOK || !st.bound[id]:
				res.add(OpResult{Op: OpAddToModule, Target: target, Outcome: OutcomeSkipped, Error: "competency not bound to course"})
			default:
				if err := w.AddCompetencyToModule(ctx, a.ModuleID, id, outcome); err != nil {
					res.add(OpResult{Op: OpAddToModule, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpAddToModule, target, err)})
					continue
				}
				res.add(OpResult{Op: OpAddToModule, Target: target, Outcome: OutcomeCreated, ExternalID: id})
			}
		}

		if !s.cfg.PruneStaleLinks || st.remote == nil {
			continue
		}
		for _, l := range links {
			if _, wanted := want[l.CompetencyID]; wanted || !st.remote.ids[l.CompetencyID] {
				continue
			}
			target := fmt.Sprintf("%s/competency:%d", moduleTarget, l.CompetencyID)
			if err := w.RemoveCompetencyFromModule(ctx, a.ModuleID, l.CompetencyID); err != nil {
				res.add(OpResult{Op: OpRemoveFromModule, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpRemoveFromModule, target, err)})
				continue
			}
			res.add(OpResult{Op: OpRemoveFromModule, Target: target, Outcome: OutcomeRemoved, ExternalID: l.CompetencyID})
		}
	}
}

// PullAssignments lists the course's graded activities on the platform.
func (s *Synchronizer) PullAssignments(ctx context.Context, courseExternalID int64) ([]RemoteAssignment, error) {
	if courseExternalID <= 0 {
		return nil, ErrCourseNotBound
	}
	return s.platform.ListAssignments(ctx, courseExternalID)
}
