package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/pavelanni/interviewprep/internal/model"
)

// SetMetadata upserts a key-value pair in the app_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetRunInfo records how the current run scores answers.
func (s *Store) SetRunInfo(ctx context.Context, info model.RunInfo) error {
	pairs := []struct{ k, v string }{
		{"provider", info.Provider},
		{"eval_model", info.EvalModel},
		{"strategy_model", info.StrategyModel},
		{"simulated", strconv.FormatBool(info.Simulated)},
		{"question_bank", info.QuestionBank},
		{"max_questions", strconv.Itoa(info.MaxQuestions)},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(ctx, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetRunInfo reads the last recorded run settings. Missing keys stay zero.
func (s *Store) GetRunInfo(ctx context.Context) (model.RunInfo, error) {
	var info model.RunInfo
	var err error

	if info.Provider, err = s.GetMetadata(ctx, "provider"); err != nil {
		return info, err
	}
	if info.EvalModel, err = s.GetMetadata(ctx, "eval_model"); err != nil {
		return info, err
	}
	if info.StrategyModel, err = s.GetMetadata(ctx, "strategy_model"); err != nil {
		return info, err
	}
	if info.QuestionBank, err = s.GetMetadata(ctx, "question_bank"); err != nil {
		return info, err
	}
	sim, err := s.GetMetadata(ctx, "simulated")
	if err != nil {
		return info, err
	}
	if sim != "" {
		if info.Simulated, err = strconv.ParseBool(sim); err != nil {
			return info, err
		}
	}
	mq, err := s.GetMetadata(ctx, "max_questions")
	if err != nil {
		return info, err
	}
	if mq != "" {
		if info.MaxQuestions, err = strconv.Atoi(mq); err != nil {
			return info, err
		}
	}
	return info, nil
}
