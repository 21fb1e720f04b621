package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/interviewprep/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writes and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT '',
		experience TEXT NOT NULL DEFAULT '',
		company_type TEXT NOT NULL DEFAULT '',
		career_goal TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interview_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		strategy TEXT NOT NULL DEFAULT '{}',
		final_score REAL,
		readiness_level TEXT,
		is_complete INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		skill TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		is_follow_up INTEGER NOT NULL DEFAULT 0,
		answer_text TEXT NOT NULL,
		overall_score REAL NOT NULL DEFAULT 0,
		concept_score REAL NOT NULL DEFAULT 0,
		clarity_score REAL NOT NULL DEFAULT 0,
		confidence_score REAL NOT NULL DEFAULT 0,
		strengths TEXT NOT NULL DEFAULT '',
		weaknesses TEXT NOT NULL DEFAULT '',
		improvement_tips TEXT NOT NULL DEFAULT '',
		weak_skills TEXT NOT NULL DEFAULT '[]',
		ideal_answer TEXT NOT NULL DEFAULT '',
		follow_up TEXT NOT NULL DEFAULT '',
		reasoning TEXT NOT NULL DEFAULT '',
		answered_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES interview_sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_answers_session ON answers(session_id);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession opens an interview session for a user with its strategy.
func (s *Store) CreateSession(ctx context.Context, userID int64, st model.Strategy, startedAt time.Time) (int64, error) {
	blob, err := json.Marshal(st)
	if err != nil {
		return 0, fmt.Errorf("encode strategy: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interview_sessions (user_id, strategy, started_at) VALUES (?, ?, ?)`,
		userID, string(blob), startedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinalizeSession freezes a session's readiness score and level.
func (s *Store) FinalizeSession(ctx context.Context, sessionID int64, score float64, level string, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interview_sessions
		 SET final_score = ?, readiness_level = ?, is_complete = 1, completed_at = ?
		 WHERE id = ?`,
		score, level, completedAt, sessionID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	return nil
}

const sessionColumns = `id, user_id, strategy, final_score, readiness_level, is_complete, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (model.SessionSummary, error) {
	var (
		sum   model.SessionSummary
		blob  string
		level sql.NullString
	)
	if err := r.Scan(&sum.ID, &sum.UserID, &blob, &sum.FinalScore, &level, &sum.IsComplete, &sum.StartedAt, &sum.CompletedAt); err != nil {
		return sum, err
	}
	if err := json.Unmarshal([]byte(blob), &sum.Strategy); err != nil {
		return sum, fmt.Errorf("decode strategy of session %d: %w", sum.ID, err)
	}
	sum.ReadinessLevel = level.String
	return sum, nil
}

// GetSession returns a stored session by ID.
func (s *Store) GetSession(ctx context.Context, id int64) (model.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM interview_sessions WHERE id = ?`, id)
	sum, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return sum, err
}

// ListSessions returns sessions in creation order. With completedOnly set,
// unfinished sessions are left out.
func (s *Store) ListSessions(ctx context.Context, completedOnly bool) ([]model.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + ` FROM interview_sessions`
	if completedOnly {
		query += ` WHERE is_complete = 1`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionSummary
	for rows.Next() {
		sum, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// AddAnswer appends an answer record to its session.
func (s *Store) AddAnswer(ctx context.Context, rec model.AnswerRecord) (int64, error) {
	weak := rec.Evaluation.WeakSkills
	if weak == nil {
		weak = []string{}
	}
	weakJSON, err := json.Marshal(weak)
	if err != nil {
		return 0, fmt.Errorf("encode weak skills: %w", err)
	}
	q, ev := rec.Question, rec.Evaluation
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (session_id, question, skill, difficulty, is_follow_up, answer_text,
			overall_score, concept_score, clarity_score, confidence_score,
			strengths, weaknesses, improvement_tips, weak_skills, ideal_answer, follow_up, reasoning, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, q.Text, q.Skill, q.Difficulty, q.IsFollowUp, rec.AnswerText,
		ev.OverallScore, ev.ConceptScore, ev.ClarityScore, ev.ConfidenceScore,
		ev.Strengths, ev.Weaknesses, ev.ImprovementTips, string(weakJSON), ev.IdealAnswer, ev.FollowUp, ev.Reasoning, rec.AnsweredAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAnswers returns a session's answer records in the order they were given.
func (s *Store) ListAnswers(ctx context.Context, sessionID int64) ([]model.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, skill, difficulty, is_follow_up, answer_text,
			overall_score, concept_score, clarity_score, confidence_score,
			strengths, weaknesses, improvement_tips, weak_skills, ideal_answer, follow_up, reasoning, answered_at
		 FROM answers WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.AnswerRecord
	for rows.Next() {
		var (
			r    model.AnswerRecord
			weak string
		)
		q, ev := &r.Question, &r.Evaluation
		if err := rows.Scan(&r.ID, &r.SessionID, &q.Text, &q.Skill, &q.Difficulty, &q.IsFollowUp, &r.AnswerText,
			&ev.OverallScore, &ev.ConceptScore, &ev.ClarityScore, &ev.ConfidenceScore,
			&ev.Strengths, &ev.Weaknesses, &ev.ImprovementTips, &weak, &ev.IdealAnswer, &ev.FollowUp, &ev.Reasoning, &r.AnsweredAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weak), &ev.WeakSkills); err != nil {
			return nil, fmt.Errorf("decode weak skills of answer %d: %w", r.ID, err)
		}
		if ev.WeakSkills == nil {
			ev.WeakSkills = []string{}
		}
		ev.Skill = q.Skill
		records = append(records, r)
	}
	return records, rows.Err()
}
