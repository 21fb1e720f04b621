package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProfile(email string) model.Profile {
	return model.Profile{
		Name:        "Ada",
		Email:       email,
		Role:        "ML Engineer",
		CompanyType: "Startup",
		Experience:  "1-2 Years",
		CareerGoal:  "Lead a platform team",
	}
}

func testStrategy() model.Strategy {
	return model.Strategy{
		FocusSkills:    []string{"Deep Learning", "Regularization", "SQL & Data Engineering", "MLOps & Deployment"},
		Difficulty:     model.DifficultyMedium,
		InterviewStyle: "applied",
		ProbingEnabled: true,
		StyleReason:    "Startups want breadth.",
	}
}

func addTestAnswer(t *testing.T, s *Store, sessionID int64, skill string, overall float64) int64 {
	t.Helper()
	id, err := s.AddAnswer(context.Background(), model.AnswerRecord{
		SessionID:  sessionID,
		Question:   model.Question{Text: "Explain " + skill, Skill: skill, Difficulty: model.DifficultyMedium},
		AnswerText: "an answer about " + skill,
		Evaluation: model.Evaluation{
			Skill:           skill,
			OverallScore:    overall,
			ConceptScore:    overall,
			ClarityScore:    overall,
			ConfidenceScore: overall,
			Strengths:       "some",
			WeakSkills:      []string{skill},
			IdealAnswer:     "ideal",
			Reasoning:       "because",
		},
		AnsweredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("addTestAnswer: %v", err)
	}
	return id
}

func TestFindOrCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1, err := s.FindOrCreateUser(ctx, testProfile("ada@example.com"))
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if u1.ID == 0 || u1.Name != "Ada" || u1.CareerGoal != "Lead a platform team" {
		t.Errorf("unexpected user %+v", u1)
	}

	// Same email resolves to the same user and keeps the stored name.
	p := testProfile("ada@example.com")
	p.Name = "Someone Else"
	u2, err := s.FindOrCreateUser(ctx, p)
	if err != nil {
		t.Fatalf("FindOrCreateUser again: %v", err)
	}
	if u2.ID != u1.ID || u2.Name != "Ada" {
		t.Errorf("expected existing user %d named Ada, got %+v", u1.ID, u2)
	}

	u3, err := s.FindOrCreateUser(ctx, testProfile("grace@example.com"))
	if err != nil {
		t.Fatalf("FindOrCreateUser other: %v", err)
	}
	if u3.ID == u1.ID {
		t.Error("different email must create a different user")
	}

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 users, got %d", count)
	}

	if _, err := s.FindOrCreateUser(ctx, testProfile("")); err == nil {
		t.Error("expected error for empty email")
	}

	got, err := s.GetUser(ctx, u3.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "grace@example.com" {
		t.Errorf("expected grace@example.com, got %q", got.Email)
	}
	if _, err := s.GetUser(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.FindOrCreateUser(ctx, testProfile("ada@example.com"))
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.CreateSession(ctx, u.ID, testStrategy(), started)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.IsComplete || sess.FinalScore != nil || sess.CompletedAt != nil {
		t.Errorf("new session should be open, got %+v", sess)
	}
	if !sess.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, sess.StartedAt)
	}
	if len(sess.Strategy.FocusSkills) != 4 || sess.Strategy.Difficulty != model.DifficultyMedium || !sess.Strategy.ProbingEnabled {
		t.Errorf("strategy did not round-trip: %+v", sess.Strategy)
	}

	completed := started.Add(20 * time.Minute)
	if err := s.FinalizeSession(ctx, id, 6.45, model.LevelIntermediate, completed); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	sess, err = s.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession after finalize: %v", err)
	}
	if !sess.IsComplete {
		t.Error("session should be complete")
	}
	if sess.FinalScore == nil || *sess.FinalScore != 6.45 {
		t.Errorf("expected final score 6.45, got %v", sess.FinalScore)
	}
	if sess.ReadinessLevel != model.LevelIntermediate {
		t.Errorf("expected level %q, got %q", model.LevelIntermediate, sess.ReadinessLevel)
	}
	if sess.CompletedAt == nil || !sess.CompletedAt.Equal(completed) {
		t.Errorf("expected completed_at %v, got %v", completed, sess.CompletedAt)
	}

	if err := s.FinalizeSession(ctx, 9999, 1, model.LevelBeginner, completed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetSession(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.FindOrCreateUser(ctx, testProfile("ada@example.com"))
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}

	var ids []int64
	for range 3 {
		id, err := s.CreateSession(ctx, u.ID, testStrategy(), time.Now().UTC())
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		ids = append(ids, id)
	}
	if err := s.FinalizeSession(ctx, ids[1], 8, model.LevelReady, time.Now().UTC()); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}

	tests := []struct {
		name          string
		completedOnly bool
		want          []int64
	}{
		{"all", false, ids},
		{"completed only", true, []int64{ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListSessions(ctx, tt.completedOnly)
			if err != nil {
				t.Fatalf("ListSessions: %v", err)
			}
			if len(list) != len(tt.want) {
				t.Fatalf("expected %d sessions, got %d", len(tt.want), len(list))
			}
			for i, sess := range list {
				if sess.ID != tt.want[i] {
					t.Errorf("session %d: expected id %d, got %d", i, tt.want[i], sess.ID)
				}
			}
		})
	}
}

func TestAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.FindOrCreateUser(ctx, testProfile("ada@example.com"))
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	sid, err := s.CreateSession(ctx, u.ID, testStrategy(), time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	addTestAnswer(t, s, sid, "Deep Learning", 7.5)
	_, err = s.AddAnswer(ctx, model.AnswerRecord{
		SessionID:  sid,
		Question:   model.Question{Text: "Why?", Skill: "Deep Learning", Difficulty: model.DifficultyHard, IsFollowUp: true},
		AnswerText: model.SkippedAnswer,
		Evaluation: model.Evaluation{Reasoning: "Skipped, no evaluation performed.", FollowUp: ""},
		AnsweredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddAnswer skipped: %v", err)
	}

	list, err := s.ListAnswers(ctx, sid)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(list))
	}
	first := list[0]
	if first.Evaluation.OverallScore != 7.5 || first.Evaluation.Skill != "Deep Learning" {
		t.Errorf("unexpected evaluation %+v", first.Evaluation)
	}
	if len(first.Evaluation.WeakSkills) != 1 || first.Evaluation.WeakSkills[0] != "Deep Learning" {
		t.Errorf("weak skills did not round-trip: %v", first.Evaluation.WeakSkills)
	}
	second := list[1]
	if !second.Question.IsFollowUp || second.Question.Difficulty != model.DifficultyHard {
		t.Errorf("follow-up flag and difficulty did not round-trip: %+v", second.Question)
	}
	if second.AnswerText != model.SkippedAnswer {
		t.Errorf("expected skip sentinel, got %q", second.AnswerText)
	}
	if second.Evaluation.WeakSkills == nil {
		t.Error("nil weak skills should read back as an empty list")
	}

	empty, err := s.ListAnswers(ctx, 9999)
	if err != nil {
		t.Fatalf("ListAnswers unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no answers, got %d", len(empty))
	}
}

func TestRunInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info, err := s.GetRunInfo(ctx)
	if err != nil {
		t.Fatalf("GetRunInfo empty: %v", err)
	}
	if info != (model.RunInfo{}) {
		t.Errorf("expected zero run info, got %+v", info)
	}

	want := model.RunInfo{Provider: "gemini", EvalModel: "gemini-2.5-pro", StrategyModel: "gemini-1.5-pro", QuestionBank: "embedded", MaxQuestions: 8}
	if err := s.SetRunInfo(ctx, want); err != nil {
		t.Fatalf("SetRunInfo: %v", err)
	}
	want.Simulated = true
	if err := s.SetRunInfo(ctx, want); err != nil {
		t.Fatalf("SetRunInfo overwrite: %v", err)
	}
	got, err := s.GetRunInfo(ctx)
	if err != nil {
		t.Fatalf("GetRunInfo: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestExportReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.FindOrCreateUser(ctx, testProfile("ada@example.com"))
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}

	done, err := s.CreateSession(ctx, u.ID, testStrategy(), time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	addTestAnswer(t, s, done, "Deep Learning", 8)
	addTestAnswer(t, s, done, "Regularization", 2)
	completed := time.Date(2025, 5, 1, 11, 0, 0, 0, time.UTC)
	if err := s.FinalizeSession(ctx, done, 5, model.LevelIntermediate, completed); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}

	open, err := s.CreateSession(ctx, u.ID, testStrategy(), time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	addTestAnswer(t, s, open, "SQL & Data Engineering", 6)

	opts := analytics.Options{Weights: analytics.DefaultWeights(), WeakThreshold: analytics.DefaultWeakThreshold}
	out, err := s.ExportReports(ctx, opts)
	if err != nil {
		t.Fatalf("ExportReports: %v", err)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("expected only the completed session, got %d", len(out.Sessions))
	}
	se := out.Sessions[0]
	if se.SessionID != done || se.User.Email != "ada@example.com" {
		t.Errorf("unexpected session export header %+v", se)
	}
	if len(se.Answers) != 2 {
		t.Errorf("expected 2 answers, got %d", len(se.Answers))
	}
	r := se.Report
	if r.TotalQuestions != 2 || r.AvgOverall != 5 {
		t.Errorf("expected 2 questions averaging 5, got %d / %v", r.TotalQuestions, r.AvgOverall)
	}
	if len(r.WeakClusters) != 1 || r.WeakClusters[0] != "Regularization" {
		t.Errorf("expected Regularization weak cluster, got %v", r.WeakClusters)
	}
	if !r.GeneratedAt.Equal(completed) {
		t.Errorf("report should be stamped with completion time, got %v", r.GeneratedAt)
	}
	if r.Profile.Role != "ML Engineer" || r.Strategy.InterviewStyle != "applied" {
		t.Errorf("profile/strategy not reconstructed: %+v / %+v", r.Profile, r.Strategy)
	}

	one, err := s.SessionExport(ctx, open, opts)
	if err != nil {
		t.Fatalf("SessionExport open: %v", err)
	}
	if one.Report.TotalQuestions != 1 || one.CompletedAt != nil {
		t.Errorf("unexpected open session export %+v", one)
	}
	if _, err := s.SessionExport(ctx, 9999, opts); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
