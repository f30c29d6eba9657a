package competency

import (
	"context"
	"errors"
	"unicode/utf8"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/gateway"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Reasoner is the subset of the reasoning gateway the course pipeline uses.
type Reasoner interface {
	Extract(ctx context.Context, req gateway.ExtractRequest) (gateway.ExtractResult, error)
	Cluster(ctx context.Context, req gateway.ClusterRequest) (gateway.ClusterResult, error)
	Relate(ctx context.Context, req gateway.RelateRequest) (gateway.RelateResult, error)
	Match(ctx context.Context, req gateway.MatchRequest) (gateway.MatchResult, error)
}

var _ Reasoner = (*gateway.Gateway)(nil)

type Extraction struct {
	Candidates []domain.Candidate
	TopicTitle string
	Reasoning  string
}

// Extractor turns one document's text into competency candidates.
type Extractor struct {
	reasoner Reasoner
	log      *logger.Logger
	maxChars int
}

func NewExtractor(reasoner Reasoner, log *logger.Logger, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = 24000
	}
	return &Extractor{reasoner: reasoner, log: log.With("service", "CandidateExtractor"), maxChars: maxChars}
}

// Extract returns the candidates for doc. Any gateway failure is returned as
// *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, text, courseContext string) (Extraction, error) {
	if doc == nil {
		return Extraction{}, &ExtractionError{Err: errors.New("nil document")}
	}
	res, err := e.reasoner.Extract(ctx, gateway.ExtractRequest{
		DocumentTitle: doc.Title,
		DocumentText:  truncateRunes(text, e.maxChars),
		CourseContext: courseContext,
	})
	if err != nil {
		return Extraction{}, &ExtractionError{DocumentID: doc.ID, Err: err}
	}

	out := Extraction{TopicTitle: res.TopicTitle, Reasoning: res.Reasoning}
	for _, c := range res.Competencies {
		out.Candidates = append(out.Candidates, domain.Candidate{Text: c, DocumentID: doc.ID})
	}
	e.log.Debug("Candidates extracted", "document_id", doc.ID, "count", len(out.Candidates))
	return out, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
