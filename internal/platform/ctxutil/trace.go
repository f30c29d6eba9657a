package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies one API request across logs, spans and the response
// headers. CourseID is set for course-scoped routes.
type TraceData struct {
	TraceID   string
	RequestID string
	CourseID  string
}

// LogFields returns the non-empty identifiers as logger key/value pairs.
func (td *TraceData) LogFields() []interface{} {
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [][2]string{{"trace_id", td.TraceID}, {"request_id", td.RequestID}, {"course_id", td.CourseID}} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}
