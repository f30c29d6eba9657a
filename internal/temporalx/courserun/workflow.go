package courserun

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
)

// Workflow analyzes one course and optionally syncs it to the platform. The
// analysis is retried by Temporal; item failures inside it are part of the
// report and never fail the workflow.
func Workflow(ctx workflow.Context, in Input) (Output, error) {
	if in.Course.CourseID == "" {
		return Output{}, fmt.Errorf("courserun: missing course id")
	}
	analyzeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	})

	var out Output
	if err := workflow.ExecuteActivity(analyzeCtx, ActivityAnalyze, in).Get(ctx, &out); err != nil {
		return Output{}, err
	}
	if !in.Sync {
		return out, nil
	}

	syncCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    5,
		},
	})
	var res *hierarchy.Result
	if err := workflow.ExecuteActivity(syncCtx, ActivitySync, in.Course.CourseID).Get(ctx, &res); err != nil {
		if out.Report != nil {
			out.Report.Fail(competency.StageSync, err)
		}
		workflow.GetLogger(ctx).Warn("Course sync failed", "course_id", in.Course.CourseID, "error", err)
		return out, nil
	}
	if out.Report != nil {
		out.Report.AddSync(res)
	}
	out.Sync = res
	return out, nil
}
