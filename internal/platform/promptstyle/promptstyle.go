package promptstyle

import "strings"

const marker = "COMPETENCY_PROMPT_STYLE_V1"

// ApplySystem prepends the shared guidance block to a system prompt. It is
// idempotent: a prompt that already carries the block is returned unchanged.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.Contains(base, marker) {
		return base
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou support curriculum designers mapping course material to competencies.")
	b.WriteString("\nWork only from the material and candidates you are given; do not invent topics.")
	b.WriteString("\nKeep the language of the source material.")
	if strings.EqualFold(strings.TrimSpace(mode), "json") {
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}
