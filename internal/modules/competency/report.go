package competency

import (
	"fmt"
	"strings"
	"sync"
)

type Stage string

const (
	StageExtract     Stage = "extract"
	StageConsolidate Stage = "consolidate"
	StagePersist     Stage = "persist"
	StageRelate      Stage = "relate"
	StageMatch       Stage = "match"
	StageSync        Stage = "sync"
)

var stageOrder = []Stage{StageExtract, StageConsolidate, StagePersist, StageRelate, StageMatch, StageSync}

// MaxReportedFailures bounds how many failure reasons a report keeps verbatim.
const MaxReportedFailures = 5

type StageCounts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Report accumulates per-item outcomes of a course run. Every failure is
// counted; only the first few reasons are kept.
type Report struct {
	mu       sync.Mutex
	CourseID string                 `json:"course_id"`
	Stages   map[Stage]*StageCounts `json:"stages"`
	Failures []string               `json:"failures"`
	Warnings []string               `json:"warnings,omitempty"`
}

func NewReport(courseID string) *Report {
	r := &Report{CourseID: courseID, Stages: map[Stage]*StageCounts{}, Failures: []string{}}
	for _, s := range stageOrder {
		r.Stages[s] = &StageCounts{}
	}
	return r
}

func (r *Report) counts(s Stage) *StageCounts {
	c, ok := r.Stages[s]
	if !ok {
		c = &StageCounts{}
		r.Stages[s] = c
	}
	return c
}

func (r *Report) Succeed(s Stage) { r.Add(s, 1, 0) }

func (r *Report) Skip(s Stage) { r.Add(s, 0, 1) }

// Add records succeeded and skipped items in bulk.
func (r *Report) Add(s Stage, succeeded, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counts(s)
	c.Succeeded += succeeded
	c.Skipped += skipped
}

func (r *Report) Fail(s Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts(s).Failed++
	if err != nil && len(r.Failures) < MaxReportedFailures {
		r.Failures = append(r.Failures, fmt.Sprintf("%s: %v", s, err))
	}
}

// Warn records a non-fatal problem, such as ids dropped from a match.
func (r *Report) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Warnings) < MaxReportedFailures {
		r.Warnings = append(r.Warnings, msg)
	}
}

func (r *Report) Get(s Stage) StageCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.counts(s)
}

func (r *Report) Totals() StageCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t StageCounts
	for _, c := range r.Stages {
		t.Succeeded += c.Succeeded
		t.Skipped += c.Skipped
		t.Failed += c.Failed
	}
	return t
}

func (r *Report) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "course %s\n", r.CourseID)
	for _, s := range stageOrder {
		c := r.Stages[s]
		if c == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-12s succeeded=%d skipped=%d failed=%d\n", s, c.Succeeded, c.Skipped, c.Failed)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  ! %s\n", f)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  ~ %s\n", w)
	}
	return b.String()
}
