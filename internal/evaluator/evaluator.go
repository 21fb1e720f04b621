// Package evaluator scores interview answers and plans interviews, either with
// a generative model or with a simulated scorer when no model is configured.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/pavelanni/interviewprep/internal/cache"
	"github.com/pavelanni/interviewprep/internal/corpus"
	"github.com/pavelanni/interviewprep/internal/llm"
	"github.com/pavelanni/interviewprep/internal/llm/prompts"
	"github.com/pavelanni/interviewprep/internal/model"
)

var tracer = otel.Tracer("github.com/pavelanni/interviewprep/internal/evaluator")

// Band is a range of simulated overall scores and its sampling weight.
type Band struct {
	Low, High float64
	Weight    float64
}

// Config holds the tunable constants of the evaluator.
type Config struct {
	// MinAnswerLength is the trimmed length, in characters, below which an
	// answer is rejected as too short.
	MinAnswerLength int
	// Bands is the overall-score distribution of the simulated scorer.
	Bands []Band
	// FollowUpBelow is the simulated overall score under which a follow-up
	// question is attached.
	FollowUpBelow float64
	// IdealMaxChars truncates generated ideal answers.
	IdealMaxChars int
	// CacheTTL is how long generated ideal answers are kept.
	CacheTTL time.Duration
}

// DefaultConfig returns the standard evaluator settings.
func DefaultConfig() Config {
	return Config{
		MinAnswerLength: 25,
		Bands: []Band{
			{1, 2, 0.10},
			{3, 4, 0.20},
			{5, 6, 0.30},
			{6, 7, 0.25},
			{7, 8, 0.10},
			{8, 9, 0.05},
		},
		FollowUpBelow: 6,
		IdealMaxChars: 800,
		CacheTTL:      7 * 24 * time.Hour,
	}
}

// Service is the evaluation backend. It is safe for concurrent use.
type Service struct {
	model  llm.Model
	corpus *corpus.Corpus
	cache  cache.Cache
	cfg    Config
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	ideals singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithModel enables model-backed scoring. A nil model keeps simulated mode.
func WithModel(m llm.Model) Option {
	return func(s *Service) { s.model = m }
}

// WithCache sets the ideal-answer cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithRand sets the random source used for sampling.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates an evaluation backend over the given corpus.
func New(c *corpus.Corpus, opts ...Option) (*Service, error) {
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	s := &Service{
		corpus: c,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if len(s.cfg.Bands) == 0 {
		s.cfg.Bands = DefaultConfig().Bands
	}
	return s, nil
}

// Simulated reports whether answers are scored without a model.
func (s *Service) Simulated() bool {
	return s.model == nil
}

// GenerateStrategy builds the interview plan for a profile. It never fails:
// unusable model output falls back to defaults.
func (s *Service) GenerateStrategy(ctx context.Context, p model.Profile) model.Strategy {
	if s.Simulated() {
		return s.simulatedStrategy()
	}

	ctx, span := tracer.Start(ctx, "evaluator.strategy")
	defer span.End()

	prompt, err := prompts.Strategy(prompts.StrategyData{Profile: p, Skills: s.corpus.Skills()})
	if err != nil {
		s.logger.Error("build strategy prompt", "error", err)
	}
	var raw llm.Object
	if err == nil {
		raw = s.callJSON(ctx, "strategy", prompt, llm.Creative)
	}

	var valid []string
	for _, sk := range raw.Strings("focus_skills") {
		if s.corpus.Has(sk) && !slices.Contains(valid, sk) {
			valid = append(valid, sk)
		}
	}
	if len(valid) == 0 {
		valid = s.sampleSkills(4)
	} else if len(valid) > 4 {
		valid = valid[:4]
	}

	diff := model.Difficulty(strings.ToLower(raw.String("difficulty")))
	if !diff.Valid() {
		diff = model.DifficultyMedium
	}
	style := raw.String("interview_style")
	if style == "" {
		style = "applied"
	}
	reason := raw.String("style_reason")
	if reason == "" {
		reason = "Balanced strategy based on your profile."
	}

	span.SetAttributes(attribute.StringSlice("strategy.focus_skills", valid), attribute.String("strategy.difficulty", string(diff)))
	return model.Strategy{
		FocusSkills:    valid,
		Difficulty:     diff,
		InterviewStyle: style,
		ProbingEnabled: raw.Bool("probing_enabled", true),
		StyleReason:    reason,
	}
}

// EvaluateAnswer scores one answer to q. Skipped and too-short answers and
// simulated mode never reach the model. It never fails.
func (s *Service) EvaluateAnswer(ctx context.Context, q model.Question, answer string, skipped bool) model.Evaluation {
	ctx, span := tracer.Start(ctx, "evaluator.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("question.skill", q.Skill),
		attribute.String("question.difficulty", string(q.Difficulty)),
		attribute.Bool("answer.skipped", skipped),
	)

	var ev model.Evaluation
	clean := strings.TrimSpace(answer)
	switch {
	case skipped:
		ev = s.skippedEvaluation(ctx, q)
	case len([]rune(clean)) < s.cfg.MinAnswerLength:
		ev = s.tooShortEvaluation(ctx, q)
	case s.Simulated():
		ev = s.simulatedEvaluation(ctx, q)
	default:
		ev = s.threePass(ctx, q, clean)
	}
	ev.Skill = q.Skill
	span.SetAttributes(attribute.Float64("evaluation.overall", ev.OverallScore))
	return ev
}

func (s *Service) skippedEvaluation(ctx context.Context, q model.Question) model.Evaluation {
	return model.Evaluation{
		Strengths:       "Question was skipped.",
		Weaknesses:      "No attempt made. This is a critical gap.",
		ImprovementTips: fmt.Sprintf("Study %s thoroughly. Start with fundamentals, then work through derivations and real examples.", q.Skill),
		WeakSkills:      []string{q.Skill},
		IdealAnswer:     s.storedIdeal(ctx, q.Text, q.Skill),
		Reasoning:       "Skipped, no evaluation performed.",
	}
}

func (s *Service) tooShortEvaluation(ctx context.Context, q model.Question) model.Evaluation {
	return model.Evaluation{
		OverallScore:    0.5,
		ConceptScore:    0.5,
		Strengths:       "An attempt was made.",
		Weaknesses:      "Answer is too short to evaluate. Minimum 2-3 full sentences required.",
		ImprovementTips: "Write a complete answer: define the concept, explain it, give an equation or example.",
		WeakSkills:      []string{q.Skill},
		IdealAnswer:     s.storedIdeal(ctx, q.Text, q.Skill),
		Reasoning:       "Too short to evaluate.",
	}
}

// Clamp bounds a score to [0, 10] and rounds it to one decimal.
// NaN reads as 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(10, v))
	return math.Round(v*10) / 10
}

func (s *Service) uniform(lo, hi float64) float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Service) sampleSkills(n int) []string {
	skills := s.corpus.Skills()
	if n > len(skills) {
		n = len(skills)
	}
	s.rngMu.Lock()
	perm := s.rng.Perm(len(skills))
	s.rngMu.Unlock()
	out := make([]string, n)
	for i := range n {
		out[i] = skills[perm[i]]
	}
	return out
}
