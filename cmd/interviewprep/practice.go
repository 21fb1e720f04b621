package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/interviewprep/internal/i18n"
	"github.com/pavelanni/interviewprep/internal/model"
)

const skipCommand = "/skip"

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run one interview session in the terminal",
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.String("name", "", "Your name (required)")
	f.String("email", "", "Contact email (empty = anonymous)")
	f.String("role", "ML Engineer", "Target role")
	f.String("company-type", "Startup", "Target company type")
	f.String("experience", "0-1 Years", "Years of experience")
	f.String("career-goal", "", "Career goal")
	f.StringSlice("weak-skills", nil, "Skills you feel weak in (repeatable)")
	f.String("difficulty", "", "Override the planned difficulty (easy, medium, hard)")
	addBackendFlags(cmd)
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(v.GetString("lang")))

	b, err := buildBackend(ctx, v, true)
	if err != nil {
		return err
	}
	defer b.Close()

	p := model.Profile{
		Name:               v.GetString("name"),
		Email:              v.GetString("email"),
		Role:               v.GetString("role"),
		CompanyType:        v.GetString("company-type"),
		Experience:         v.GetString("experience"),
		CareerGoal:         v.GetString("career-goal"),
		WeakSkills:         v.GetStringSlice("weak-skills"),
		DifficultyOverride: model.Difficulty(strings.ToLower(v.GetString("difficulty"))),
	}

	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)

	sess, err := b.engine.SetupProfile(ctx, p)
	if err != nil {
		return err
	}
	printPlan(ctx, out, sess, b.run)

	followUp := ""
	for {
		q, err := b.engine.NextQuestion(sess, followUp)
		if err != nil {
			return err
		}
		if q == nil {
			break
		}
		printQuestion(ctx, out, sess, q)

		answer, skipped, ok := readAnswer(ctx, out, in)
		if !ok {
			break
		}
		fmt.Fprintln(out, appI18n.T(ctx, "Evaluating"))
		ev, err := b.engine.SubmitAnswer(ctx, sess, answer, skipped)
		if err != nil {
			return err
		}
		printEvaluation(ctx, out, ev)
		followUp = b.engine.FollowUpFor(sess, ev, skipped)
	}

	report, err := b.engine.Finalize(ctx, sess)
	if err != nil {
		return err
	}
	printReport(ctx, out, report)
	return nil
}

// readAnswer collects lines until an empty line. It reports false when the
// input ends before anything was typed.
func readAnswer(ctx context.Context, out io.Writer, in *bufio.Scanner) (string, bool, bool) {
	fmt.Fprintln(out, appI18n.T(ctx, "AnswerPrompt"))
	var lines []string
	for in.Scan() {
		line := in.Text()
		if len(lines) == 0 && strings.TrimSpace(line) == skipCommand {
			return "", true, true
		}
		if strings.TrimSpace(line) == "" {
			if len(lines) == 0 {
				continue
			}
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", false, false
	}
	return strings.Join(lines, "\n"), false, true
}

func printPlan(ctx context.Context, out io.Writer, sess *model.Session, run model.RunInfo) {
	if sess.Simulated {
		fmt.Fprintln(out, appI18n.T(ctx, "ModeSimulated"))
	} else {
		fmt.Fprintln(out, appI18n.Td(ctx, "ModeModel", map[string]any{"Model": run.EvalModel}))
	}
	st := sess.Strategy
	fmt.Fprintf(out, "\n== %s ==\n", appI18n.T(ctx, "PlanHeader"))
	fmt.Fprintln(out, appI18n.Td(ctx, "PlanFocus", map[string]any{"Skills": strings.Join(st.FocusSkills, ", ")}))
	fmt.Fprintln(out, appI18n.Td(ctx, "PlanDifficulty", map[string]any{"Difficulty": st.Difficulty, "Style": st.InterviewStyle}))
	fmt.Fprintln(out, appI18n.Td(ctx, "PlanReason", map[string]any{"Reason": st.StyleReason}))
}

func printQuestion(ctx context.Context, out io.Writer, sess *model.Session, q *model.Question) {
	data := map[string]any{"N": sess.QuestionCount, "Max": sess.MaxQuestions, "Skill": q.Skill, "Difficulty": q.Difficulty}
	header := "QuestionN"
	if q.IsFollowUp {
		header = "FollowUpN"
	}
	fmt.Fprintf(out, "\n-- %s --\n%s\n\n", appI18n.Td(ctx, header, data), q.Text)
}

func printEvaluation(ctx context.Context, out io.Writer, ev model.Evaluation) {
	fmt.Fprintln(out, appI18n.Td(ctx, "ScoreLine", map[string]any{
		"Overall":    score(ev.OverallScore),
		"Concept":    score(ev.ConceptScore),
		"Clarity":    score(ev.ClarityScore),
		"Confidence": score(ev.ConfidenceScore),
	}))
	section := func(id, body string) {
		if body != "" {
			fmt.Fprintf(out, "%s: %s\n", appI18n.T(ctx, id), body)
		}
	}
	section("Strengths", ev.Strengths)
	section("Weaknesses", ev.Weaknesses)
	section("Tips", ev.ImprovementTips)
	section("IdealAnswer", ev.IdealAnswer)
}

func printReport(ctx context.Context, out io.Writer, r model.Report) {
	fmt.Fprintf(out, "\n== %s ==\n", appI18n.T(ctx, "ReportHeader"))
	fmt.Fprintln(out, appI18n.Tp(ctx, "QuestionsAnswered", r.TotalQuestions))
	fmt.Fprintln(out, appI18n.Td(ctx, "ReadinessLine", map[string]any{"Score": score(r.Readiness.Score), "Level": r.Readiness.Level}))
	for _, skill := range sortedSkills(r.SkillBreakdown) {
		s := r.SkillBreakdown[skill]
		fmt.Fprintf(out, "  %-34s %4.1f  (n=%d)\n", skill, s.Overall, s.Count)
	}
	if len(r.WeakClusters) == 0 {
		fmt.Fprintln(out, appI18n.T(ctx, "NoWeakAreas"))
		return
	}
	fmt.Fprintln(out, appI18n.Td(ctx, "WeakAreas", map[string]any{"Skills": strings.Join(r.WeakClusters, ", ")}))
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func sortedSkills(m map[string]model.SkillStats) []string {
	skills := make([]string, 0, len(m))
	for k := range m {
		skills = append(skills, k)
	}
	slices.Sort(skills)
	return skills
}
