package evaluator

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pavelanni/interviewprep/internal/llm"
	"github.com/pavelanni/interviewprep/internal/llm/prompts"
	"github.com/pavelanni/interviewprep/internal/model"
)

// Question phrasings that signal a mathematical answer is expected.
var mathCues = []string{"derive", "prove", "equation", "formula", "mathemat", "closed-form", "update rule"}

// threePass runs extraction, comparison and scoring in order. Each pass
// consumes the previous one's output.
func (s *Service) threePass(ctx context.Context, q model.Question, answer string) model.Evaluation {
	ideal := s.IdealAnswer(ctx, q.Text, q.Skill)

	var extracted llm.Object
	if p, err := prompts.Extraction(prompts.ExtractionData{Question: q.Text, Skill: q.Skill, Answer: answer}); err != nil {
		s.logger.Error("build extraction prompt", "error", err)
	} else {
		extracted = s.callJSON(ctx, "extraction", p, llm.Deterministic)
	}

	extJSON, _ := json.MarshalIndent(extracted, "", "  ")
	var comparison llm.Object
	if p, err := prompts.Comparison(prompts.ComparisonData{
		Question:   q.Text,
		Skill:      q.Skill,
		Difficulty: q.Difficulty,
		Ideal:      ideal,
		Extraction: string(extJSON),
		Answer:     answer,
	}); err != nil {
		s.logger.Error("build comparison prompt", "error", err)
	} else {
		comparison = s.callJSON(ctx, "comparison", p, llm.Deterministic)
	}

	var result llm.Object
	if p, err := prompts.Scoring(prompts.ScoringData{
		Question:        q.Text,
		Skill:           q.Skill,
		Difficulty:      q.Difficulty,
		Ideal:           ideal,
		Answer:          answer,
		CorrectPoints:   comparison.Strings("correct_points"),
		MissingConcepts: comparison.Strings("missing_concepts"),
		WrongStatements: comparison.Strings("wrong_statements"),
		Depth:           comparison.String("depth_assessment"),
		HasMath:         comparison.Bool("has_math", false),
		HasRealExample:  comparison.Bool("has_real_example", false),
		CoversTradeoffs: comparison.Bool("covers_tradeoffs", false),
	}); err != nil {
		s.logger.Error("build scoring prompt", "error", err)
	} else {
		result = s.callJSON(ctx, "scoring", p, llm.Deterministic)
	}

	ev := evaluationFromScoring(result, q.Skill, ideal)
	adjust(&ev, q, extracted, comparison)
	return ev
}

// evaluationFromScoring fills an Evaluation from the scoring pass, applying
// defaults to every missing field and clamping every score.
func evaluationFromScoring(r llm.Object, skill, ideal string) model.Evaluation {
	score := func(key string) float64 {
		v, _ := r.Number(key)
		return Clamp(v)
	}
	text := func(key, def string) string {
		if v := r.String(key); v != "" {
			return v
		}
		return def
	}

	weak := r.Strings("weak_skills")
	if len(weak) == 0 {
		weak = []string{skill}
	}
	follow := r.String("follow_up_question")
	if strings.EqualFold(follow, "null") || strings.EqualFold(follow, "none") {
		follow = ""
	}

	return model.Evaluation{
		OverallScore:    score("overall_score"),
		ConceptScore:    score("concept_score"),
		ClarityScore:    score("clarity_score"),
		ConfidenceScore: score("confidence_score"),
		Strengths:       text("strengths", "Attempted the question."),
		Weaknesses:      text("weaknesses", "Insufficient depth to fully evaluate."),
		ImprovementTips: text("improvement_tips", "Study the core concepts and practice with examples."),
		WeakSkills:      weak,
		IdealAnswer:     text("ideal_answer", ideal),
		FollowUp:        follow,
		Reasoning:       r.String("reasoning"),
	}
}

// adjust enforces the scoring caps the model is asked to apply. Caps only
// fire on signals a pass actually reported, so a failed pass changes nothing.
func adjust(ev *model.Evaluation, q model.Question, extracted, comparison llm.Object) {
	if comparison.Has("correct_points") && comparison.Len("correct_points") == 0 &&
		len(comparison.Strings("missing_concepts")) > 0 {
		ev.ConceptScore = min(ev.ConceptScore, 4)
	}
	if comparison.Has("has_math") && !comparison.Bool("has_math", true) && expectsMath(q.Text) {
		ev.ConceptScore = min(ev.ConceptScore, 6)
	}
	if comparison.Has("has_real_example") && !comparison.Bool("has_real_example", true) {
		ev.ClarityScore = min(ev.ClarityScore, 7)
	}
	if strings.EqualFold(extracted.String("answer_length"), "short") {
		ev.OverallScore = min(ev.OverallScore, 4)
	}
	if len(comparison.Strings("wrong_statements")) > 0 {
		ev.FollowUp = ""
	}
}

func expectsMath(question string) bool {
	q := strings.ToLower(question)
	for _, cue := range mathCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

// callJSON sends a structured request and decodes the reply. Failures and
// unparseable output yield an empty Object.
func (s *Service) callJSON(ctx context.Context, pass, prompt string, mode llm.Mode) llm.Object {
	ctx, span := tracer.Start(ctx, "evaluator.pass."+pass)
	defer span.End()

	text, err := s.model.Generate(ctx, llm.Request{Prompt: prompt, Mode: mode, JSON: true})
	if err != nil {
		s.logger.Warn("model call failed, using defaults", "pass", pass, "error", err)
		span.SetAttributes(attribute.Bool("pass.degraded", true))
		return llm.Object{}
	}
	obj := llm.ParseObject(text)
	if len(obj) == 0 {
		s.logger.Warn("unparseable model output, using defaults", "pass", pass)
		span.SetAttributes(attribute.Bool("pass.degraded", true))
		return obj
	}
	if problems := checkShape(pass, obj); len(problems) > 0 {
		s.logger.Warn("model output has unexpected shape", "pass", pass, "problems", joinProblems(problems))
	}
	return obj
}
