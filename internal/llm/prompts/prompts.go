package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/interviewprep/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	candidateAnswerRegex    = regexp.MustCompile(`(?i)</?\s*candidate-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

var (
	loadOnce  sync.Once
	loadErr   error
	templates *template.Template
)

// StrategyData holds template data for the strategy prompt.
type StrategyData struct {
	Profile model.Profile
	Skills  []string
}

// ExtractionData holds template data for the extraction pass.
type ExtractionData struct {
	Question string
	Skill    string
	Answer   string
}

// ComparisonData holds template data for the comparison pass.
type ComparisonData struct {
	Question   string
	Skill      string
	Difficulty model.Difficulty
	Ideal      string
	Extraction string
	Answer     string
}

// ScoringData holds template data for the scoring pass.
type ScoringData struct {
	Question        string
	Skill           string
	Difficulty      model.Difficulty
	Ideal           string
	Answer          string
	CorrectPoints   []string
	MissingConcepts []string
	WrongStatements []string
	Depth           string
	HasMath         bool
	HasRealExample  bool
	CoversTradeoffs bool
}

// IdealData holds template data for the ideal-answer prompt.
type IdealData struct {
	Question string
	Skill    string
}

// Load parses the embedded prompt templates.
// It uses sync.Once to ensure templates are parsed only once.
func Load() error {
	loadOnce.Do(func() {
		funcs := template.FuncMap{
			"join": func(items []string, sep string) string {
				if len(items) == 0 {
					return "none"
				}
				return strings.Join(items, sep)
			},
		}
		templates, loadErr = template.New("prompts").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse prompt templates: %w", loadErr)
		}
	})
	return loadErr
}

// Strategy builds the interview-plan prompt.
func Strategy(d StrategyData) (string, error) {
	p := d.Profile
	p.Role = sanitizeField(p.Role)
	p.CompanyType = sanitizeField(p.CompanyType)
	p.Experience = sanitizeField(p.Experience)
	p.CareerGoal = sanitizeField(p.CareerGoal)
	weak := make([]string, 0, len(p.WeakSkills))
	for _, w := range p.WeakSkills {
		weak = append(weak, sanitizeField(w))
	}
	p.WeakSkills = weak
	d.Profile = p
	return render("strategy.tmpl", d)
}

// Extraction builds the first evaluation pass prompt.
func Extraction(d ExtractionData) (string, error) {
	d.Answer = sanitizeAnswer(d.Answer)
	return render("extraction.tmpl", d)
}

// Comparison builds the second evaluation pass prompt.
func Comparison(d ComparisonData) (string, error) {
	d.Answer = sanitizeAnswer(d.Answer)
	return render("comparison.tmpl", d)
}

// Scoring builds the third evaluation pass prompt.
func Scoring(d ScoringData) (string, error) {
	d.Answer = sanitizeAnswer(d.Answer)
	if d.Depth == "" {
		d.Depth = "basic"
	}
	return render("scoring.tmpl", d)
}

// Ideal builds the ideal-answer prompt.
func Ideal(d IdealData) (string, error) {
	return render("ideal.tmpl", d)
}

func render(name string, data any) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func sanitizeField(s string) string {
	s = candidateAnswerRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func sanitizeAnswer(answer string) string {
	answer = sanitizeField(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
