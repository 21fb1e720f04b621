package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/model"
)

// SessionExport rebuilds one session's report from its stored answers.
// The profile is reconstructed from the user row, so weak skills the
// candidate declared at setup are not part of it.
func (s *Store) SessionExport(ctx context.Context, sessionID int64, opts analytics.Options) (model.SessionExport, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return model.SessionExport{}, err
	}
	return s.buildExport(ctx, sess, opts)
}

// ExportReports builds export-ready reports for all completed sessions.
func (s *Store) ExportReports(ctx context.Context, opts analytics.Options) (model.ReportExport, error) {
	sessions, err := s.ListSessions(ctx, true)
	if err != nil {
		return model.ReportExport{}, fmt.Errorf("list sessions: %w", err)
	}
	run, err := s.GetRunInfo(ctx)
	if err != nil {
		return model.ReportExport{}, fmt.Errorf("read run info: %w", err)
	}

	out := model.ReportExport{
		ExportedAt: time.Now().UTC(),
		Run:        run,
		Sessions:   []model.SessionExport{},
	}
	for _, sess := range sessions {
		se, err := s.buildExport(ctx, sess, opts)
		if err != nil {
			return model.ReportExport{}, fmt.Errorf("export session %d: %w", sess.ID, err)
		}
		out.Sessions = append(out.Sessions, se)
	}
	return out, nil
}

func (s *Store) buildExport(ctx context.Context, sess model.SessionSummary, opts analytics.Options) (model.SessionExport, error) {
	user, err := s.GetUser(ctx, sess.UserID)
	if err != nil {
		return model.SessionExport{}, fmt.Errorf("get user %d: %w", sess.UserID, err)
	}
	answers, err := s.ListAnswers(ctx, sess.ID)
	if err != nil {
		return model.SessionExport{}, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.AnswerRecord{}
	}

	evals := make([]model.Evaluation, len(answers))
	for i, a := range answers {
		evals[i] = a.Evaluation
	}
	profile := model.Profile{
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		CompanyType: user.CompanyType,
		Experience:  user.Experience,
		CareerGoal:  user.CareerGoal,
		WeakSkills:  []string{},
	}
	if sess.CompletedAt != nil && opts.Now == nil {
		completed := *sess.CompletedAt
		opts.Now = func() time.Time { return completed }
	}

	return model.SessionExport{
		SessionID:   sess.ID,
		User:        user,
		StartedAt:   sess.StartedAt,
		CompletedAt: sess.CompletedAt,
		Report:      analytics.FullReport(evals, profile, sess.Strategy, opts),
		Answers:     answers,
	}, nil
}
