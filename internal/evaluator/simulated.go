package evaluator

import (
	"context"
	"fmt"

	"github.com/pavelanni/interviewprep/internal/model"
)

// Offsets applied to the simulated overall score to derive the other three.
var (
	conceptJitter    = [2]float64{-1.5, 1.0}
	clarityJitter    = [2]float64{-1.0, 1.0}
	confidenceJitter = [2]float64{-1.5, 0.8}
)

const simulatedFollowUp = "Can you walk through the mathematical formulation of this?"

func (s *Service) simulatedStrategy() model.Strategy {
	return model.Strategy{
		FocusSkills:    s.sampleSkills(4),
		Difficulty:     model.DifficultyMedium,
		InterviewStyle: "applied",
		ProbingEnabled: true,
		StyleReason:    "Balanced applied strategy targeting key ML fundamentals.",
	}
}

// pickBand draws a band according to the configured weights.
func (s *Service) pickBand() Band {
	var total float64
	for _, b := range s.cfg.Bands {
		total += b.Weight
	}
	r := s.uniform(0, total)
	for _, b := range s.cfg.Bands {
		if r < b.Weight {
			return b
		}
		r -= b.Weight
	}
	return s.cfg.Bands[len(s.cfg.Bands)-1]
}

func (s *Service) simulatedEvaluation(ctx context.Context, q model.Question) model.Evaluation {
	b := s.pickBand()
	overall := Clamp(s.uniform(b.Low, b.High))

	ev := model.Evaluation{
		OverallScore:    overall,
		ConceptScore:    Clamp(overall + s.uniform(conceptJitter[0], conceptJitter[1])),
		ClarityScore:    Clamp(overall + s.uniform(clarityJitter[0], clarityJitter[1])),
		ConfidenceScore: Clamp(overall + s.uniform(confidenceJitter[0], confidenceJitter[1])),
		Strengths:       "Demonstrated partial understanding of the core concept.",
		Weaknesses:      "Missing mathematical depth and production-level examples.",
		ImprovementTips: "1) Study the mathematical derivation. 2) Implement it from scratch. 3) Relate it to a real project you have worked on.",
		WeakSkills:      []string{q.Skill},
		IdealAnswer:     s.IdealAnswer(ctx, q.Text, q.Skill),
	}
	if overall < s.cfg.FollowUpBelow {
		ev.FollowUp = simulatedFollowUp
	}

	depth, gaps := "solid", "minor"
	if overall < s.cfg.FollowUpBelow {
		depth = "partial"
	}
	if overall < 5 {
		gaps = "significant"
	}
	ev.Reasoning = fmt.Sprintf("Score reflects %s understanding with %s gaps.", depth, gaps)
	return ev
}
