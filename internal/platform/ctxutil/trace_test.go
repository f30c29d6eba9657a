package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceDataRoundTripAndFields(t *testing.T) {
	require.Nil(t, GetTraceData(context.Background()))
	require.Nil(t, GetTraceData(context.Background()).LogFields())

	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t1", CourseID: "gdp"})
	td := GetTraceData(ctx)
	require.NotNil(t, td)
	require.Equal(t, []interface{}{"trace_id", "t1", "course_id", "gdp"}, td.LogFields())
}
