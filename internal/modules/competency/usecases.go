package competency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	repos "github.com/yungbote/neurobridge-competency/internal/data/repos/competency"
	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
	"github.com/yungbote/neurobridge-competency/internal/observability"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// ErrSyncDisabled is returned by platform operations when no platform is
// configured.
var ErrSyncDisabled = errors.New("platform sync is not configured")

// IncidentReader answers incident-edge queries from the graph projection.
type IncidentReader interface {
	IncidentRelations(ctx context.Context, nodeID string) ([]*domain.CompetencyEdge, error)
}

type UsecasesDeps struct {
	Log      *logger.Logger
	Repos    repos.Repos
	Pipeline *Pipeline
	// Optional: nil disables every platform operation.
	Sync *hierarchy.Synchronizer
	// Optional: serves IncidentEdges with FromGraph set.
	Graph IncidentReader
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type AnalyzeInput struct {
	Course CourseInput
	Force  bool
	// Sync runs the synchronizer after a successful analysis.
	Sync bool
	// PullAssignments adds the platform's assignments to those of the input.
	// Input assignments win on id collisions.
	PullAssignments bool
}

type AnalyzeOutput struct {
	Report *Report           `json:"report"`
	Sync   *hierarchy.Result `json:"sync,omitempty"`
	State  *domain.SyncState `json:"state,omitempty"`
}

func (u Usecases) AnalyzeCourse(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	if u.deps.Pipeline == nil {
		return AnalyzeOutput{}, errors.New("pipeline not configured")
	}
	course := in.Course
	if in.PullAssignments {
		merged, err := u.pullAssignments(ctx, course)
		if err != nil {
			return AnalyzeOutput{}, err
		}
		course.Assignments = merged
	}

	report, err := u.deps.Pipeline.Run(ctx, course, RunOptions{Force: in.Force})
	if err != nil {
		return AnalyzeOutput{}, err
	}
	for _, s := range stageOrder {
		if s == StageSync {
			continue
		}
		c := report.Get(s)
		observability.Current().ObserveStage(string(s), c.Succeeded, c.Skipped, c.Failed)
	}
	out := AnalyzeOutput{Report: report}
	if !in.Sync {
		return out, nil
	}

	res, err := u.SyncCourse(ctx, course.CourseID)
	if err != nil {
		report.Fail(StageSync, err)
		return out, nil
	}
	report.AddSync(res)
	out.Sync = res
	state := res.State
	out.State = &state
	return out, nil
}

func (u Usecases) pullAssignments(ctx context.Context, course CourseInput) ([]AssignmentInput, error) {
	if u.deps.Sync == nil {
		return nil, ErrSyncDisabled
	}
	remote, err := u.deps.Sync.PullAssignments(ctx, course.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("pull assignments: %w", err)
	}
	out := append([]AssignmentInput(nil), course.Assignments...)
	have := make(map[string]bool, len(out))
	for _, a := range out {
		have[a.ID] = true
	}
	for _, r := range remote {
		id := strconv.FormatInt(r.ModuleID, 10)
		if have[id] {
			continue
		}
		have[id] = true
		out = append(out, AssignmentInput{
			ID:          id,
			ModuleID:    r.ModuleID,
			Title:       r.Name,
			Description: r.Description,
			RuleOutcome: domain.OutcomeEvidence,
		})
	}
	if u.deps.Log != nil {
		u.deps.Log.Info("Assignments pulled from platform", "course_id", course.CourseID, "remote", len(remote), "total", len(out))
	}
	return out, nil
}

// AddSync counts platform operations under StageSync.
func (r *Report) AddSync(res *hierarchy.Result) {
	if res == nil {
		return
	}
	for _, op := range res.Ops {
		switch op.Outcome {
		case hierarchy.OutcomeCreated, hierarchy.OutcomeUpdated, hierarchy.OutcomeRemoved:
			r.Succeed(StageSync)
		case hierarchy.OutcomeUnchanged, hierarchy.OutcomeSkipped:
			r.Skip(StageSync)
		case hierarchy.OutcomeFailed:
			if op.Err != nil {
				r.Fail(StageSync, op.Err)
			} else {
				r.Fail(StageSync, errors.New(op.Error))
			}
		}
	}
}

func (u Usecases) SyncCourse(ctx context.Context, courseID string) (*hierarchy.Result, error) {
	if u.deps.Sync == nil {
		return nil, ErrSyncDisabled
	}
	started := time.Now()
	res, err := u.deps.Sync.Sync(ctx, courseID)
	if res != nil {
		m := observability.Current()
		for _, op := range res.Ops {
			m.IncSyncOp(string(op.Op), string(op.Outcome))
		}
		m.ObserveSyncRun(res.State.String(), time.Since(started))
	}
	return res, err
}

func (u Usecases) SyncState(ctx context.Context, courseID string) (domain.SyncState, error) {
	if u.deps.Sync == nil {
		return domain.StateUnsynced, ErrSyncDisabled
	}
	return u.deps.Sync.State(ctx, courseID)
}

func (u Usecases) ListSyncRuns(ctx context.Context, courseID string, limit int) ([]*domain.SyncRun, error) {
	if u.deps.Repos.SyncRuns == nil {
		return nil, nil
	}
	return u.deps.Repos.SyncRuns.ListByCourse(dbctx.New(ctx), courseID, limit)
}

func (u Usecases) ListCompetencies(ctx context.Context, courseID string) ([]*domain.Competency, error) {
	return u.deps.Repos.Competencies.ListByCourse(dbctx.New(ctx), courseID)
}

type IncidentEdgesInput struct {
	NodeID    string
	FromGraph bool
}

// IncidentEdges lists every edge touching a node. The relational store is the
// source unless FromGraph is set and a graph projection is configured.
func (u Usecases) IncidentEdges(ctx context.Context, in IncidentEdgesInput) ([]*domain.CompetencyEdge, error) {
	if in.NodeID == "" {
		return nil, errors.New("node id required")
	}
	if in.FromGraph && u.deps.Graph != nil {
		return u.deps.Graph.IncidentRelations(ctx, in.NodeID)
	}
	return u.deps.Repos.Edges.ListIncident(dbctx.New(ctx), in.NodeID)
}
