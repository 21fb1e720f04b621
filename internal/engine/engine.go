// Package engine drives one interview session: it picks questions, routes
// answers to the evaluator, persists each turn and produces the final report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/corpus"
	"github.com/pavelanni/interviewprep/internal/model"
)

var (
	// ErrNoActiveQuestion is returned when an answer arrives with no open question.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrSessionFinished is returned for any turn on a finalized session.
	ErrSessionFinished = errors.New("session is finished")
	// ErrNilSession is returned when a nil session is passed in.
	ErrNilSession = errors.New("nil session")
)

// Evaluator plans interviews and scores answers.
type Evaluator interface {
	GenerateStrategy(ctx context.Context, p model.Profile) model.Strategy
	EvaluateAnswer(ctx context.Context, q model.Question, answer string, skipped bool) model.Evaluation
	Simulated() bool
}

// Store persists users, sessions and answers.
type Store interface {
	FindOrCreateUser(ctx context.Context, p model.Profile) (model.User, error)
	CreateSession(ctx context.Context, userID int64, st model.Strategy, startedAt time.Time) (int64, error)
	AddAnswer(ctx context.Context, rec model.AnswerRecord) (int64, error)
	FinalizeSession(ctx context.Context, sessionID int64, score float64, level string, completedAt time.Time) error
}

// Config holds the session limits and report settings.
type Config struct {
	MaxQuestions         int
	MaxFollowUpsPerSkill int
	Weights              analytics.Weights
	WeakThreshold        float64
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		MaxQuestions:         8,
		MaxFollowUpsPerSkill: 1,
		Weights:              analytics.DefaultWeights(),
		WeakThreshold:        analytics.DefaultWeakThreshold,
	}
}

// Engine runs interview sessions. One Engine serves many sessions, but a
// single session must not be driven from two goroutines at once.
type Engine struct {
	eval   Evaluator
	store  Store
	corpus *corpus.Corpus
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used to pick questions.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. The config's weights must sum to 1.
func New(ev Evaluator, st Store, c *corpus.Corpus, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxQuestions < 1 {
		return nil, fmt.Errorf("max questions must be positive, got %d", cfg.MaxQuestions)
	}
	if cfg.MaxFollowUpsPerSkill < 0 {
		return nil, fmt.Errorf("max follow-ups must not be negative, got %d", cfg.MaxFollowUpsPerSkill)
	}
	e := &Engine{
		eval:   ev,
		store:  st,
		corpus: c,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e, nil
}

// SetupProfile validates the profile, resolves its user, plans the interview
// and opens a persisted session.
func (e *Engine) SetupProfile(ctx context.Context, p model.Profile) (*model.Session, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if p.Email == "" {
		p.Email = fmt.Sprintf("user_%s@demo.local", uuid.NewString())
	}
	if p.WeakSkills == nil {
		p.WeakSkills = []string{}
	}

	user, err := e.store.FindOrCreateUser(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}

	st := e.eval.GenerateStrategy(ctx, p)
	if p.DifficultyOverride != "" {
		st.Difficulty = p.DifficultyOverride
	}

	maxQ := e.cfg.MaxQuestions
	if p.MaxQuestions > 0 {
		maxQ = p.MaxQuestions
	}

	started := e.now().UTC()
	id, err := e.store.CreateSession(ctx, user.ID, st, started)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	sess := &model.Session{
		ID:             id,
		UserID:         user.ID,
		Profile:        p,
		Strategy:       st,
		State:          model.StateNotStarted,
		Simulated:      e.eval.Simulated(),
		MaxQuestions:   maxQ,
		FollowUpCounts: map[string]int{},
		UsedSkills:     []string{},
		Evaluations:    []model.Evaluation{},
		StartedAt:      started,
	}
	mode := "model"
	if sess.Simulated {
		mode = "simulated"
	}
	e.logger.Info("interview session started",
		"session_id", id, "user_id", user.ID, "mode", mode,
		"focus_skills", st.FocusSkills, "difficulty", st.Difficulty, "max_questions", maxQ)
	return sess, nil
}

// NextQuestion advances the session. A non-empty followUp is asked on the
// current question's skill while that skill's follow-up quota lasts;
// otherwise a fresh question is drawn. It returns nil once the session has
// asked its maximum number of questions.
func (e *Engine) NextQuestion(sess *model.Session, followUp string) (*model.Question, error) {
	if err := checkOpen(sess); err != nil {
		return nil, err
	}
	if sess.QuestionCount >= sess.MaxQuestions {
		sess.Current = nil
		return nil, nil
	}

	if followUp != "" && sess.Current != nil {
		skill := sess.Current.Skill
		if sess.FollowUpCounts[skill] < e.cfg.MaxFollowUpsPerSkill {
			sess.FollowUpCounts[skill]++
			return e.ask(sess, model.Question{
				Text:       followUp,
				Skill:      skill,
				Difficulty: model.DifficultyHard,
				IsFollowUp: true,
			}), nil
		}
	}

	skill := e.pickSkill(sess)
	text := e.pickQuestion(skill, sess.Strategy.Difficulty)
	if !sess.HasUsed(skill) {
		sess.UsedSkills = append(sess.UsedSkills, skill)
	}
	return e.ask(sess, model.Question{
		Text:       text,
		Skill:      skill,
		Difficulty: sess.Strategy.Difficulty,
	}), nil
}

func (e *Engine) ask(sess *model.Session, q model.Question) *model.Question {
	sess.QuestionCount++
	sess.Current = &q
	sess.Answered = false
	sess.State = model.StateAwaitingAnswer
	return sess.Current
}

// SubmitAnswer scores the answer to the current question, persists it and
// appends the evaluation to the session.
func (e *Engine) SubmitAnswer(ctx context.Context, sess *model.Session, text string, skipped bool) (model.Evaluation, error) {
	if err := checkOpen(sess); err != nil {
		return model.Evaluation{}, err
	}
	if sess.Current == nil || sess.Answered {
		return model.Evaluation{}, ErrNoActiveQuestion
	}

	q := *sess.Current
	sess.State = model.StateEvaluating
	ev := e.eval.EvaluateAnswer(ctx, q, text, skipped)

	stored := text
	if skipped {
		stored = model.SkippedAnswer
	}
	rec := model.AnswerRecord{
		SessionID:  sess.ID,
		Question:   q,
		AnswerText: stored,
		Evaluation: ev,
		AnsweredAt: e.now().UTC(),
	}
	if _, err := e.store.AddAnswer(ctx, rec); err != nil {
		sess.State = model.StateAwaitingAnswer
		return model.Evaluation{}, fmt.Errorf("save answer: %w", err)
	}

	sess.Evaluations = append(sess.Evaluations, ev)
	sess.Answered = true
	sess.State = model.StateAwaitingAnswer
	e.logger.Debug("answer evaluated",
		"session_id", sess.ID, "skill", q.Skill, "follow_up", q.IsFollowUp,
		"skipped", skipped, "overall", ev.OverallScore)
	return ev, nil
}

// FollowUpFor returns the follow-up to ask after ev, or "" when none
// applies. Follow-ups require probing, a real answer, and a current question
// that is not itself a follow-up.
func (e *Engine) FollowUpFor(sess *model.Session, ev model.Evaluation, skipped bool) string {
	if sess == nil || skipped || !sess.Strategy.ProbingEnabled {
		return ""
	}
	if sess.Current == nil || sess.Current.IsFollowUp {
		return ""
	}
	return ev.FollowUp
}

// Finalize aggregates the session's evaluations into a report, records the
// readiness score and closes the session. Calling it again returns the same
// report.
func (e *Engine) Finalize(ctx context.Context, sess *model.Session) (model.Report, error) {
	if sess == nil {
		return model.Report{}, ErrNilSession
	}
	if sess.Report != nil {
		return *sess.Report, nil
	}

	report := analytics.FullReport(sess.Evaluations, sess.Profile, sess.Strategy, analytics.Options{
		Weights:       e.cfg.Weights,
		WeakThreshold: e.cfg.WeakThreshold,
		Now:           e.now,
	})
	completed := report.GeneratedAt
	if err := e.store.FinalizeSession(ctx, sess.ID, report.Readiness.Score, report.Readiness.Level, completed); err != nil {
		return model.Report{}, fmt.Errorf("finalize session: %w", err)
	}

	sess.Report = &report
	sess.CompletedAt = &completed
	sess.Current = nil
	sess.State = model.StateFinished
	e.logger.Info("interview session finished",
		"session_id", sess.ID, "questions", report.TotalQuestions,
		"score", report.Readiness.Score, "level", report.Readiness.Level)
	return report, nil
}

func checkOpen(sess *model.Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if sess.State == model.StateFinished {
		return ErrSessionFinished
	}
	return nil
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}
