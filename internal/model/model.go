package model

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Difficulty is a question difficulty tier.
type Difficulty string

const (
	// DifficultyEasy is the easy tier.
	DifficultyEasy Difficulty = "easy"
	// DifficultyMedium is the medium tier.
	DifficultyMedium Difficulty = "medium"
	// DifficultyHard is the hard tier.
	DifficultyHard Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Readiness levels.
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelReady        = "Interview Ready"
)

// SkippedAnswer replaces the answer text of a skipped question in storage.
const SkippedAnswer = "— skipped —"

// Profile holds the candidate-supplied attributes for one interview.
type Profile struct {
	Name               string     `json:"name" validate:"required,max=120"`
	Email              string     `json:"email,omitempty" validate:"omitempty,email"`
	Role               string     `json:"role" validate:"required"`
	CompanyType        string     `json:"company_type" validate:"required"`
	Experience         string     `json:"experience" validate:"required"`
	CareerGoal         string     `json:"career_goal"`
	WeakSkills         []string   `json:"weak_skills"`
	MaxQuestions       int        `json:"max_questions,omitempty" validate:"omitempty,min=1,max=20"`
	DifficultyOverride Difficulty `json:"difficulty_override,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

var validate = validator.New()

// Validate checks the profile's required fields and ranges.
func (p Profile) Validate() error {
	return validate.Struct(p)
}

// Strategy is the per-session interview plan.
type Strategy struct {
	FocusSkills    []string   `json:"focus_skills"`
	Difficulty     Difficulty `json:"difficulty"`
	InterviewStyle string     `json:"interview_style"`
	ProbingEnabled bool       `json:"probing_enabled"`
	StyleReason    string     `json:"style_reason"`
}

// Question is the prompt currently put to the candidate.
type Question struct {
	Text       string     `json:"text"`
	Skill      string     `json:"skill"`
	Difficulty Difficulty `json:"difficulty"`
	IsFollowUp bool       `json:"is_follow_up"`
}

// Evaluation is the scored outcome of one answer.
type Evaluation struct {
	Skill           string   `json:"skill"`
	OverallScore    float64  `json:"overall_score"`
	ConceptScore    float64  `json:"concept_score"`
	ClarityScore    float64  `json:"clarity_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	Strengths       string   `json:"strengths"`
	Weaknesses      string   `json:"weaknesses"`
	ImprovementTips string   `json:"improvement_tips"`
	WeakSkills      []string `json:"weak_skills"`
	IdealAnswer     string   `json:"ideal_answer"`
	FollowUp        string   `json:"follow_up,omitempty"`
	Reasoning       string   `json:"reasoning"`
}

// AnswerRecord is a persisted question, answer and evaluation.
type AnswerRecord struct {
	ID         int64      `json:"id"`
	SessionID  int64      `json:"session_id"`
	Question   Question   `json:"question"`
	AnswerText string     `json:"answer_text"`
	Evaluation Evaluation `json:"evaluation"`
	AnsweredAt time.Time  `json:"answered_at"`
}

// User is the account a profile resolves to.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Experience  string    `json:"experience"`
	CompanyType string    `json:"company_type"`
	CareerGoal  string    `json:"career_goal"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionState is a step of the interview state machine.
type SessionState string

const (
	// StateNotStarted means a strategy exists but no question was asked.
	StateNotStarted SessionState = "not_started"
	// StateAwaitingAnswer means a current question is open.
	StateAwaitingAnswer SessionState = "awaiting_answer"
	// StateEvaluating means an answer is being scored.
	StateEvaluating SessionState = "evaluating"
	// StateFinished means the session was finalized.
	StateFinished SessionState = "finished"
)

// Session is one interview attempt. It is owned by a single caller at a time.
type Session struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	Profile        Profile        `json:"profile"`
	Strategy       Strategy       `json:"strategy"`
	State          SessionState   `json:"state"`
	Simulated      bool           `json:"simulated"`
	MaxQuestions   int            `json:"max_questions"`
	QuestionCount  int            `json:"question_count"`
	FollowUpCounts map[string]int `json:"follow_up_counts"`
	UsedSkills     []string       `json:"used_skills"`
	Current        *Question      `json:"current,omitempty"`
	Answered       bool           `json:"answered"`
	Evaluations    []Evaluation   `json:"evaluations"`
	Report         *Report        `json:"report,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// HasUsed reports whether skill has already been asked as a fresh question.
func (s *Session) HasUsed(skill string) bool {
	for _, u := range s.UsedSkills {
		if u == skill {
			return true
		}
	}
	return false
}

// SessionSummary is a stored session row without its answers.
type SessionSummary struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Strategy       Strategy   `json:"strategy"`
	FinalScore     *float64   `json:"final_score,omitempty"`
	ReadinessLevel string     `json:"readiness_level,omitempty"`
	IsComplete     bool       `json:"is_complete"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
