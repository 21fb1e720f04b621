package evaluator

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pavelanni/interviewprep/internal/llm"
)

// Shapes expected from each model call. A mismatch is logged and the object is
// still used: the accessors fall back to defaults field by field.
var schemaSources = map[string]string{
	"strategy": `{
		"type": "object",
		"properties": {
			"focus_skills": {"type": "array", "items": {"type": "string"}},
			"difficulty": {"type": "string"},
			"interview_style": {"type": "string"},
			"probing_enabled": {"type": "boolean"},
			"style_reason": {"type": "string"}
		},
		"required": ["focus_skills"]
	}`,
	"extraction": `{
		"type": "object",
		"properties": {
			"claimed_facts": {"type": "array"},
			"mentioned_equations": {"type": "array"},
			"mentioned_examples": {"type": "array"},
			"answer_length": {"enum": ["short", "medium", "long"]},
			"has_structure": {"type": "boolean"}
		}
	}`,
	"comparison": `{
		"type": "object",
		"properties": {
			"correct_points": {"type": "array"},
			"missing_concepts": {"type": "array"},
			"wrong_statements": {"type": "array"},
			"depth_assessment": {"enum": ["surface", "basic", "intermediate", "deep", "expert"]},
			"has_math": {"type": "boolean"},
			"has_real_example": {"type": "boolean"},
			"covers_tradeoffs": {"type": "boolean"}
		}
	}`,
	"scoring": `{
		"type": "object",
		"properties": {
			"overall_score": {"type": ["number", "string"]},
			"concept_score": {"type": ["number", "string"]},
			"clarity_score": {"type": ["number", "string"]},
			"confidence_score": {"type": ["number", "string"]},
			"strengths": {"type": "string"},
			"weaknesses": {"type": "string"},
			"improvement_tips": {"type": "string"},
			"weak_skills": {"type": "array", "items": {"type": "string"}},
			"ideal_answer": {"type": "string"},
			"follow_up_question": {"type": ["string", "null"]},
			"reasoning": {"type": "string"}
		},
		"required": ["overall_score", "concept_score", "clarity_score", "confidence_score"]
	}`,
}

var schemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(schemaSources))
	for name, src := range schemaSources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("evaluator: compile %s schema: %v", name, err))
		}
		out[name] = s
	}
	return out
}

// checkShape returns a description of every schema violation in obj.
func checkShape(name string, obj llm.Object) []string {
	s, ok := schemas[name]
	if !ok {
		return nil
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(map[string]any(obj)))
	if err != nil {
		return []string{err.Error()}
	}
	if res.Valid() {
		return nil
	}
	var problems []string
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}

func joinProblems(p []string) string {
	return strings.Join(p, "; ")
}
