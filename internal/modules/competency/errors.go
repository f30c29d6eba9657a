package competency

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBackwardPair is returned for pairs not in forward ordinal order; such
	// pairs are never sent to the reasoning service.
	ErrBackwardPair = errors.New("document pair is not in forward ordinal order")
	ErrNoCandidates = errors.New("no competency candidates")
)

// ExtractionError wraps a failed extraction for one document after the retry
// policy was exhausted.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConsolidationError marks a document whose candidates could not be
// consolidated. An empty candidate list is reported this way and treated as
// zero competencies.
type ConsolidationError struct {
	DocumentID string
	Err        error
}

func (e *ConsolidationError) Error() string {
	return fmt.Sprintf("consolidate %s: %v", e.DocumentID, e.Err)
}

func (e *ConsolidationError) Unwrap() error { return e.Err }

// MatchError lists ids the reasoning service returned outside the candidate
// set. It is a warning: the ids are dropped and the match stands.
type MatchError struct {
	AssignmentID string
	UnknownIDs   []string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("match %s: dropped unknown competency ids [%s]", e.AssignmentID, strings.Join(e.UnknownIDs, ", "))
}

// PairError wraps a failed relationship evaluation.
type PairError struct {
	SourceID string
	TargetID string
	Err      error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("relate %s->%s: %v", e.SourceID, e.TargetID, e.Err)
}

func (e *PairError) Unwrap() error { return e.Err }
