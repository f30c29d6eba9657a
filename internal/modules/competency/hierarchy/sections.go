package hierarchy

import (
	"context"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/platform/dbctx"
)

const maxSectionCompetencies = 5

// sectionFor finds the platform section holding a document, by module name or
// attached filename.
func sectionFor(sections []RemoteSection, doc *domain.Document) (RemoteSection, bool) {
	title := strings.ToLower(strings.TrimSpace(doc.Title))
	base := strings.ToLower(path.Base(strings.TrimSpace(doc.ContentRef)))
	if base == "." || base == "/" {
		base = ""
	}
	for _, sec := range sections {
		for _, mod := range sec.Modules {
			name := strings.ToLower(strings.TrimSpace(mod.Name))
			if title != "" && name == title {
				return sec, true
			}
			for _, f := range mod.Files {
				if base != "" && strings.ToLower(f) == base {
					return sec, true
				}
			}
		}
	}
	return RemoteSection{}, false
}

// sectionSummary lists the document's best supported competencies.
func sectionSummary(comps []*domain.Competency) string {
	sorted := append([]*domain.Competency(nil), comps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SupportCount != sorted[j].SupportCount {
			return sorted[i].SupportCount > sorted[j].SupportCount
		}
		return sorted[i].NormalizedName < sorted[j].NormalizedName
	})
	if len(sorted) > maxSectionCompetencies {
		sorted = sorted[:maxSectionCompetencies]
	}
	var b strings.Builder
	b.WriteString("<p>Competencies covered:</p><ul>")
	for _, c := range sorted {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(c.Name))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// syncSections writes each document's competencies into the summary of the
// section that holds it. Sections whose summary already matches are left alone.
func (s *Synchronizer) syncSections(ctx context.Context, data *courseData, w Writer, res *Result) {
	if s.repos.Documents == nil {
		return
	}
	dbc := dbctx.New(ctx)
	docs, err := s.repos.Documents.ListByCourse(dbc, data.course.ID)
	if err != nil {
		s.log.Warn("Listing documents for section summaries failed", "course_id", data.course.ID, "error", err)
		return
	}
	if len(docs) == 0 {
		return
	}
	courseTarget := fmt.Sprintf("course:%d", data.course.ExternalID)
	sections, err := s.platform.ListSections(ctx, data.course.ExternalID)
	if err != nil {
		res.add(OpResult{Op: OpListSections, Target: courseTarget, Outcome: OutcomeFailed, Err: newSyncError(OpListSections, courseTarget, err)})
		return
	}

	done := map[int]bool{}
	for _, doc := range docs {
		target := "document:" + doc.Title
		comps, err := s.repos.Competencies.ListByDocument(dbc, data.course.ID, doc.ID)
		if err != nil {
			res.add(OpResult{Op: OpUpdateSection, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpUpdateSection, target, err)})
			continue
		}
		if len(comps) == 0 {
			continue
		}
		sec, ok := sectionFor(sections, doc)
		if !ok {
			res.add(OpResult{Op: OpUpdateSection, Target: target, Outcome: OutcomeSkipped, Error: "no section holds document"})
			continue
		}
		if done[sec.Number] {
			continue
		}
		done[sec.Number] = true

		target = fmt.Sprintf("%s/section:%d", courseTarget, sec.Number)
		upd := SectionUpdate{Number: sec.Number, Name: doc.TopicTitle, Summary: sectionSummary(comps)}
		if upd.Summary == sec.Summary && (upd.Name == "" || upd.Name == sec.Name) {
			res.add(OpResult{Op: OpUpdateSection, Target: target, Outcome: OutcomeUnchanged})
			continue
		}
		if err := w.UpdateSection(ctx, data.course.ExternalID, upd); err != nil {
			res.add(OpResult{Op: OpUpdateSection, Target: target, Outcome: OutcomeFailed, Err: newSyncError(OpUpdateSection, target, err)})
			continue
		}
		res.add(OpResult{Op: OpUpdateSection, Target: target, Outcome: OutcomeUpdated})
	}
}
