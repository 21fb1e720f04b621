package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/interviewprep/internal/model"
)

const userColumns = `id, name, email, role, experience, company_type, career_goal, created_at`

// FindOrCreateUser returns the user with the profile's email, creating it
// from the profile when none exists. An existing user keeps its stored fields.
func (s *Store) FindOrCreateUser(ctx context.Context, p model.Profile) (model.User, error) {
	if p.Email == "" {
		return model.User{}, fmt.Errorf("profile has no email")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, role, experience, company_type, career_goal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		p.Name, p.Email, p.Role, p.Experience, p.CompanyType, p.CareerGoal, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to create user", "email", p.Email, "error", err)
		return model.User{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("created user", "email", p.Email, "role", p.Role)
	}

	var u model.User
	err = s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, p.Email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Experience, &u.CompanyType, &u.CareerGoal, &u.CreatedAt)
	return u, err
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Experience, &u.CompanyType, &u.CareerGoal, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, err
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
