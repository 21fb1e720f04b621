package model

import "time"

// Composite holds the per-dimension inputs of the readiness score.
type Composite struct {
	Concept     float64 `json:"concept"`
	Clarity     float64 `json:"clarity"`
	Confidence  float64 `json:"confidence"`
	Consistency float64 `json:"consistency"`
}

// Readiness is the aggregated readiness score and its level label.
type Readiness struct {
	Score     float64   `json:"score"`
	Level     string    `json:"level"`
	Composite Composite `json:"composite"`
}

// SkillStats is the per-skill row of a report breakdown.
type SkillStats struct {
	Overall    float64 `json:"overall"`
	Concept    float64 `json:"concept"`
	Clarity    float64 `json:"clarity"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
}

// Report is the terminal artifact of a session. It is derived data and can be
// recomputed from the answer records at any time.
type Report struct {
	Profile        Profile               `json:"profile"`
	Strategy       Strategy              `json:"strategy"`
	Readiness      Readiness             `json:"readiness"`
	SkillBreakdown map[string]SkillStats `json:"skill_breakdown"`
	WeakClusters   []string              `json:"weak_clusters"`
	TotalQuestions int                   `json:"total_questions"`
	AvgOverall     float64               `json:"avg_overall"`
	GeneratedAt    time.Time             `json:"generated_at"`
}

// SessionExport is one session in the export file.
type SessionExport struct {
	SessionID   int64          `json:"session_id"`
	User        User           `json:"user"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Report      Report         `json:"report"`
	Answers     []AnswerRecord `json:"answers"`
}

// RunInfo describes how the most recent run scored answers.
type RunInfo struct {
	Provider      string `json:"provider"`
	EvalModel     string `json:"eval_model,omitempty"`
	StrategyModel string `json:"strategy_model,omitempty"`
	Simulated     bool   `json:"simulated"`
	QuestionBank  string `json:"question_bank"`
	MaxQuestions  int    `json:"max_questions"`
}

// ReportExport is the top-level JSON structure written by the export command.
type ReportExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Run        RunInfo         `json:"run"`
	Sessions   []SessionExport `json:"sessions"`
}
