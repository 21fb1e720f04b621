// Package analytics turns a sequence of evaluations into readiness scores and
// reports. Every function is pure.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/pavelanni/interviewprep/internal/model"
)

// Weights are the composite readiness weights. They must sum to 1.
type Weights struct {
	Concept     float64 `json:"concept"`
	Clarity     float64 `json:"clarity"`
	Confidence  float64 `json:"confidence"`
	Consistency float64 `json:"consistency"`
}

// DefaultWeights returns 0.40/0.20/0.20/0.20.
func DefaultWeights() Weights {
	return Weights{Concept: 0.40, Clarity: 0.20, Confidence: 0.20, Consistency: 0.20}
}

// Validate checks that every weight is non-negative and they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"concept": w.Concept, "clarity": w.Clarity, "confidence": w.Confidence, "consistency": w.Consistency,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	sum := w.Concept + w.Clarity + w.Confidence + w.Consistency
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// DefaultWeakThreshold is the mean overall score below which a skill is weak.
const DefaultWeakThreshold = 5.0

// Level thresholds, inclusive lower bounds.
const (
	readyThreshold        = 7.0
	intermediateThreshold = 4.0
)

// ComputeReadiness aggregates evaluations into a composite readiness score.
func ComputeReadiness(evals []model.Evaluation, w Weights) model.Readiness {
	if len(evals) == 0 {
		return model.Readiness{Score: 0, Level: model.LevelBeginner}
	}

	n := float64(len(evals))
	var concept, clarity, confidence float64
	lo, hi := evals[0].OverallScore, evals[0].OverallScore
	for _, e := range evals {
		concept += e.ConceptScore
		clarity += e.ClarityScore
		confidence += e.ConfidenceScore
		lo = min(lo, e.OverallScore)
		hi = max(hi, e.OverallScore)
	}
	concept /= n
	clarity /= n
	confidence /= n

	consistency := evals[0].OverallScore
	if len(evals) > 1 {
		consistency = 10 - (hi - lo)
	}
	consistency = clamp(consistency)

	score := concept*w.Concept + clarity*w.Clarity + confidence*w.Confidence + consistency*w.Consistency
	score = round2(clamp(score))

	return model.Readiness{
		Score: score,
		Level: Level(score),
		Composite: model.Composite{
			Concept:     round2(concept),
			Clarity:     round2(clarity),
			Confidence:  round2(confidence),
			Consistency: round2(consistency),
		},
	}
}

// Level maps a composite score to its readiness label.
func Level(score float64) string {
	switch {
	case score >= readyThreshold:
		return model.LevelReady
	case score >= intermediateThreshold:
		return model.LevelIntermediate
	default:
		return model.LevelBeginner
	}
}

// SkillBreakdown groups evaluations by skill and averages each dimension.
func SkillBreakdown(evals []model.Evaluation) map[string]model.SkillStats {
	out := make(map[string]model.SkillStats)
	for _, g := range groupBySkill(evals) {
		out[g.skill] = g.stats()
	}
	return out
}

// WeakSkillClusters lists skills whose mean overall score is strictly below
// threshold, in the order they were first asked.
func WeakSkillClusters(evals []model.Evaluation, threshold float64) []string {
	weak := []string{}
	for _, g := range groupBySkill(evals) {
		if g.stats().Overall < threshold {
			weak = append(weak, g.skill)
		}
	}
	return weak
}

// Options control report generation.
type Options struct {
	Weights       Weights
	WeakThreshold float64
	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// FullReport bundles every aggregate for one session.
func FullReport(evals []model.Evaluation, p model.Profile, st model.Strategy, opts Options) model.Report {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	var avg float64
	if len(evals) > 0 {
		for _, e := range evals {
			avg += e.OverallScore
		}
		avg = round2(avg / float64(len(evals)))
	}
	return model.Report{
		Profile:        p,
		Strategy:       st,
		Readiness:      ComputeReadiness(evals, opts.Weights),
		SkillBreakdown: SkillBreakdown(evals),
		WeakClusters:   WeakSkillClusters(evals, opts.WeakThreshold),
		TotalQuestions: len(evals),
		AvgOverall:     avg,
		GeneratedAt:    now().UTC(),
	}
}

type skillGroup struct {
	skill string
	evals []model.Evaluation
}

func (g skillGroup) stats() model.SkillStats {
	n := float64(len(g.evals))
	var s model.SkillStats
	for _, e := range g.evals {
		s.Overall += e.OverallScore
		s.Concept += e.ConceptScore
		s.Clarity += e.ClarityScore
		s.Confidence += e.ConfidenceScore
	}
	s.Overall = round2(s.Overall / n)
	s.Concept = round2(s.Concept / n)
	s.Clarity = round2(s.Clarity / n)
	s.Confidence = round2(s.Confidence / n)
	s.Count = len(g.evals)
	return s
}

func groupBySkill(evals []model.Evaluation) []skillGroup {
	idx := make(map[string]int)
	var groups []skillGroup
	for _, e := range evals {
		skill := e.Skill
		if skill == "" {
			skill = "Unknown"
		}
		i, ok := idx[skill]
		if !ok {
			i = len(groups)
			idx[skill] = i
			groups = append(groups, skillGroup{skill: skill})
		}
		groups[i].evals = append(groups[i].evals, e)
	}
	return groups
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
