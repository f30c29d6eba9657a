package courserun

import (
	"context"
	"fmt"
	"strings"

	enums "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
)

// Start schedules a course run. A run already in flight for the same course is
// returned instead of starting a second one.
func Start(ctx context.Context, tc temporalsdkclient.Client, taskQueue string, in Input) (temporalsdkclient.WorkflowRun, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal not configured")
	}
	if strings.TrimSpace(in.Course.CourseID) == "" {
		return nil, fmt.Errorf("courserun: missing course id")
	}
	if strings.TrimSpace(taskQueue) == "" {
		taskQueue = "competency"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                       WorkflowID(in.Course.CourseID),
		TaskQueue:                taskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	return tc.ExecuteWorkflow(ctx, opts, WorkflowName, in)
}
