package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-competency/internal/http/response"
	"github.com/yungbote/neurobridge-competency/internal/manifest"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
	"github.com/yungbote/neurobridge-competency/internal/platform/apierr"
	"github.com/yungbote/neurobridge-competency/internal/temporalx/courserun"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
)

const maxManifestBytes = 4 << 20

type CompetencyService interface {
	AnalyzeCourse(ctx context.Context, in competency.AnalyzeInput) (competency.AnalyzeOutput, error)
	SyncCourse(ctx context.Context, courseID string) (*hierarchy.Result, error)
	SyncState(ctx context.Context, courseID string) (domain.SyncState, error)
	ListSyncRuns(ctx context.Context, courseID string, limit int) ([]*domain.SyncRun, error)
	ListCompetencies(ctx context.Context, courseID string) ([]*domain.Competency, error)
	IncidentEdges(ctx context.Context, in competency.IncidentEdgesInput) ([]*domain.CompetencyEdge, error)
}

// ScheduledRun identifies a course run handed to the workflow engine.
type ScheduledRun struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// RunScheduler hands course runs to the workflow engine.
type RunScheduler func(ctx context.Context, in courserun.Input) (ScheduledRun, error)

type CompetencyHandler struct {
	svc      CompetencyService
	schedule RunScheduler
}

// NewCompetencyHandler runs analyses inline when schedule is nil.
func NewCompetencyHandler(svc CompetencyService, schedule RunScheduler) *CompetencyHandler {
	return &CompetencyHandler{svc: svc, schedule: schedule}
}

// POST /v1/courses/:course_id/runs
//
// The body is the course manifest, YAML or JSON.
func (h *CompetencyHandler) RunCourse(c *gin.Context) {
	courseID := strings.TrimSpace(c.Param("course_id"))
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxManifestBytes))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	m, err := manifest.Parse(body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_manifest", err)
		return
	}
	if m.Course.ID != courseID {
		response.RespondError(c, http.StatusBadRequest, "course_id_mismatch",
			fmt.Errorf("manifest course %q does not match %q", m.Course.ID, courseID))
		return
	}
	force := queryBool(c, "force")
	sync := queryBool(c, "sync")

	if h.schedule != nil {
		run, err := h.schedule(c.Request.Context(), courserun.Input{Course: m.CourseInput(), Force: force, Sync: sync})
		if err != nil {
			response.RespondError(c, http.StatusServiceUnavailable, "schedule_run_failed", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"run": run})
		return
	}

	out, err := h.svc.AnalyzeCourse(c.Request.Context(), competency.AnalyzeInput{
		Course:          m.CourseInput(),
		Force:           force,
		Sync:            sync,
		PullAssignments: queryBool(c, "pull_assignments"),
	})
	if err != nil {
		response.RespondAPIError(c, mapError(err), http.StatusInternalServerError, "run_failed")
		return
	}
	response.RespondOK(c, gin.H{"report": out.Report, "sync": out.Sync, "totals": out.Report.Totals()})
}

// POST /v1/courses/:course_id/sync
func (h *CompetencyHandler) SyncCourse(c *gin.Context) {
	res, err := h.svc.SyncCourse(c.Request.Context(), c.Param("course_id"))
	if err != nil {
		response.RespondAPIError(c, mapError(err), http.StatusBadGateway, "sync_failed")
		return
	}
	response.RespondOK(c, gin.H{"sync": res, "errors": res.Errors(competency.MaxReportedFailures)})
}

// GET /v1/courses/:course_id/sync-state
func (h *CompetencyHandler) GetSyncState(c *gin.Context) {
	courseID := c.Param("course_id")
	state, err := h.svc.SyncState(c.Request.Context(), courseID)
	if err != nil {
		response.RespondAPIError(c, mapError(err), http.StatusBadGateway, "sync_state_failed")
		return
	}
	response.RespondOK(c, gin.H{"course_id": courseID, "state": state})
}

// GET /v1/courses/:course_id/sync-runs
func (h *CompetencyHandler) ListSyncRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	runs, err := h.svc.ListSyncRuns(c.Request.Context(), c.Param("course_id"), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_sync_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /v1/courses/:course_id/competencies
func (h *CompetencyHandler) ListCompetencies(c *gin.Context) {
	list, err := h.svc.ListCompetencies(c.Request.Context(), c.Param("course_id"))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_competencies_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"competencies": list})
}

// GET /v1/nodes/:node_id/edges
func (h *CompetencyHandler) ListIncidentEdges(c *gin.Context) {
	edges, err := h.svc.IncidentEdges(c.Request.Context(), competency.IncidentEdgesInput{
		NodeID:    strings.TrimSpace(c.Param("node_id")),
		FromGraph: c.Query("source") == "graph",
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_edges_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"edges": edges})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, competency.ErrSyncDisabled):
		return apierr.Unavailable(apierr.CodeSyncDisabled, err)
	case errors.Is(err, hierarchy.ErrLeaseHeld):
		return apierr.Conflict(apierr.CodeSyncInProgress, err)
	case errors.Is(err, hierarchy.ErrCourseNotStored):
		return apierr.NotFound(apierr.CodeCourseNotFound, err)
	case errors.Is(err, hierarchy.ErrCourseNotBound):
		return apierr.Unprocessable(apierr.CodeCourseNotBound, err)
	}
	return err
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.DefaultQuery(key, "false"))
	return err == nil && v
}
