package llm

// Response schemas. Every property is required and no extras are allowed so
// the same definitions work with OpenAI strict structured outputs.

var choiceAnswerSchema = &Schema{
	Name:        "choice-answer",
	Description: "Selected option indices for a choice question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"choice": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
			"reasoning": map[string]any{"type": "string"},
		},
		"required":             []string{"choice", "reasoning"},
		"additionalProperties": false,
	},
}

var openAnswerSchema = &Schema{
	Name:        "open-answer",
	Description: "Free-text answer to an open-ended question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text_answer": map[string]any{"type": "string"},
			"reasoning":   map[string]any{"type": "string"},
		},
		"required":             []string{"text_answer", "reasoning"},
		"additionalProperties": false,
	},
}

var gradeSchema = &Schema{
	Name:        "open-ended-grade",
	Description: "Rubric-based grade of an open-ended answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rubric_scores": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
			"score":    map[string]any{"type": "number"},
			"feedback": map[string]any{"type": "string"},
		},
		"required":             []string{"rubric_scores", "score", "feedback"},
		"additionalProperties": false,
	},
}

var choiceQuestionSchema = &Schema{
	Name:        "generated-choice-question",
	Description: "A generated single or multiple choice question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stem": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"correct": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
		"required":             []string{"stem", "options", "correct"},
		"additionalProperties": false,
	},
}

var openQuestionSchema = &Schema{
	Name:        "generated-open-question",
	Description: "A generated open-ended question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stem":             map[string]any{"type": "string"},
			"reference_answer": map[string]any{"type": "string"},
			"rubric": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"stem", "reference_answer", "rubric"},
		"additionalProperties": false,
	},
}
