package courserun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// CourseUsecases is the slice of the competency usecases the activities drive.
type CourseUsecases interface {
	AnalyzeCourse(ctx context.Context, in competency.AnalyzeInput) (competency.AnalyzeOutput, error)
	SyncCourse(ctx context.Context, courseID string) (*hierarchy.Result, error)
}

type Activities struct {
	Log      *logger.Logger
	Usecases CourseUsecases
}

// Analyze runs the pipeline only; the workflow schedules the sync separately
// so each side retries on its own policy.
func (a *Activities) Analyze(ctx context.Context, in Input) (Output, error) {
	if a == nil || a.Usecases == nil {
		return Output{}, fmt.Errorf("courserun: activity not configured")
	}
	stopHB := startHeartbeat(ctx)
	defer stopHB()

	out, err := a.Usecases.AnalyzeCourse(ctx, competency.AnalyzeInput{Course: in.Course, Force: in.Force})
	if err != nil {
		return Output{}, err
	}
	if a.Log != nil && out.Report != nil {
		a.Log.Info("Course analyzed", "course_id", in.Course.CourseID, "failed", out.Report.Totals().Failed)
	}
	return Output{Report: out.Report}, nil
}

func (a *Activities) Sync(ctx context.Context, courseID string) (*hierarchy.Result, error) {
	courseID = strings.TrimSpace(courseID)
	if a == nil || a.Usecases == nil {
		return nil, fmt.Errorf("courserun: activity not configured")
	}
	if courseID == "" {
		return nil, fmt.Errorf("courserun: missing course id")
	}
	return a.Usecases.SyncCourse(ctx, courseID)
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
