package gateway

// JSON schemas for strict structured output. Strict mode requires every
// property to be listed as required and forbids additional properties.

var taxonomyEnum = []any{"remember", "understand", "apply", "analyze", "evaluate", "create"}

func extractSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"competencies", "title", "reasoning"},
		"properties": map[string]any{
			"competencies": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"title":     map[string]any{"type": "string"},
			"reasoning": map[string]any{"type": "string"},
		},
	}
}

func clusterSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"clusters"},
		"properties": map[string]any{
			"clusters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "members", "taxonomy_level"},
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
						"members": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "integer"},
						},
						"taxonomy_level": map[string]any{"type": "string", "enum": taxonomyEnum},
					},
				},
			},
		},
	}
}

func relateSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []any{
			"similarity", "prerequisite", "overlap", "builds_upon",
			"difficulty_increase", "relationship_type", "reason",
		},
		"properties": map[string]any{
			"similarity":          map[string]any{"type": "number"},
			"prerequisite":        map[string]any{"type": "boolean"},
			"overlap":             map[string]any{"type": "number"},
			"builds_upon":         map[string]any{"type": "boolean"},
			"difficulty_increase": map[string]any{"type": "boolean"},
			"relationship_type": map[string]any{
				"type": "string",
				"enum": []any{"prerequisite", "similar", "builds_upon", "independent"},
			},
			"reason": map[string]any{"type": "string"},
		},
	}
}

func matchSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"selected_ids", "title", "reasoning"},
		"properties": map[string]any{
			"selected_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"title":     map[string]any{"type": "string"},
			"reasoning": map[string]any{"type": "string"},
		},
	}
}
