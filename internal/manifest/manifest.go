package manifest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/yungbote/neurobridge-competency/internal/domain/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
)

// Manifest describes one course: its documents in teaching order and its
// graded assignments. Document paths are relative to the manifest file.
type Manifest struct {
	Course      Course       `yaml:"course"`
	Documents   []Document   `yaml:"documents"`
	Assignments []Assignment `yaml:"assignments"`

	// Dir is the directory relative document paths resolve against.
	Dir string `yaml:"-"`
}

type Course struct {
	ID         string `yaml:"id"`
	ShortName  string `yaml:"short_name"`
	FullName   string `yaml:"full_name"`
	ExternalID int64  `yaml:"external_id"`
	Context    string `yaml:"context"`
}

type Document struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Path    string `yaml:"path"`
	Ordinal int    `yaml:"ordinal"`
}

type Assignment struct {
	ID          string  `yaml:"id"`
	ModuleID    int64   `yaml:"module_id"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	RuleOutcome Outcome `yaml:"rule_outcome"`
}

// Outcome accepts a rule outcome by name or number. Unset means evidence.
type Outcome struct {
	domain.RuleOutcome
	set bool
}

func (o *Outcome) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.ToLower(strings.TrimSpace(node.Value))
	switch raw {
	case "":
		return nil
	case "none":
		o.RuleOutcome = domain.OutcomeNone
	case "evidence":
		o.RuleOutcome = domain.OutcomeEvidence
	case "recommend":
		o.RuleOutcome = domain.OutcomeRecommend
	case "complete":
		o.RuleOutcome = domain.OutcomeComplete
	default:
		n, err := strconv.Atoi(raw)
		if err != nil || !domain.RuleOutcome(n).Valid() {
			return fmt.Errorf("line %d: invalid rule outcome %q", node.Line, node.Value)
		}
		o.RuleOutcome = domain.RuleOutcome(n)
	}
	o.set = true
	return nil
}

// Value is the configured outcome, evidence when unset.
func (o Outcome) Value() domain.RuleOutcome {
	if !o.set {
		return domain.OutcomeEvidence
	}
	return o.RuleOutcome
}

// Parse decodes and validates a manifest payload.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("manifest: payload is empty")
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	m.Dir = filepath.Dir(filepath.Clean(path))
	return m, nil
}

// Validate checks ids and fills ordinals left at zero with the list position.
func (m *Manifest) Validate() error {
	m.Course.ID = strings.TrimSpace(m.Course.ID)
	if m.Course.ID == "" {
		return fmt.Errorf("manifest: course.id is required")
	}
	seen := map[string]bool{}
	for i := range m.Documents {
		d := &m.Documents[i]
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return fmt.Errorf("manifest: documents[%d].id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("manifest: duplicate document id %q", d.ID)
		}
		seen[d.ID] = true
		if strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("manifest: document %q has no path", d.ID)
		}
		if d.Title == "" {
			d.Title = d.ID
		}
		if d.Ordinal == 0 {
			d.Ordinal = i + 1
		}
	}
	seen = map[string]bool{}
	for i := range m.Assignments {
		a := &m.Assignments[i]
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" && a.ModuleID > 0 {
			a.ID = strconv.FormatInt(a.ModuleID, 10)
		}
		if a.ID == "" {
			return fmt.Errorf("manifest: assignments[%d] needs an id or module_id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("manifest: duplicate assignment id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// CourseInput converts the manifest into a pipeline input. Content references
// are the document paths as written; FileLoader resolves them.
func (m *Manifest) CourseInput() competency.CourseInput {
	in := competency.CourseInput{
		CourseID:   m.Course.ID,
		ShortName:  m.Course.ShortName,
		FullName:   m.Course.FullName,
		ExternalID: m.Course.ExternalID,
		Context:    m.Course.Context,
	}
	for _, d := range m.Documents {
		in.Documents = append(in.Documents, competency.DocumentInput{
			ID:         d.ID,
			Title:      d.Title,
			ContentRef: d.Path,
			Ordinal:    d.Ordinal,
		})
	}
	for _, a := range m.Assignments {
		in.Assignments = append(in.Assignments, competency.AssignmentInput{
			ID:          a.ID,
			ModuleID:    a.ModuleID,
			Title:       a.Title,
			Description: a.Description,
			RuleOutcome: a.RuleOutcome.Value(),
		})
	}
	return in
}

// FileLoader reads document text from disk. Relative references resolve
// against Root and may not leave it.
type FileLoader struct {
	Root string
}

var _ competency.TextLoader = FileLoader{}

func (l FileLoader) LoadText(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := l.resolve(ref)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ref, err)
	}
	return string(b), nil
}

func (l FileLoader) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty content reference")
	}
	if filepath.IsAbs(ref) || l.Root == "" {
		return filepath.Clean(ref), nil
	}
	rel := filepath.Clean(ref)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("content reference %q escapes %s", ref, l.Root)
	}
	return filepath.Join(l.Root, rel), nil
}
