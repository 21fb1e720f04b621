package engine

import (
	"fmt"

	"github.com/pavelanni/interviewprep/internal/corpus"
	"github.com/pavelanni/interviewprep/internal/model"
)

// skillRule yields candidate skills for a fresh question. Rules are tried in
// order and the first one with candidates wins.
type skillRule struct {
	name       string
	candidates func(c *corpus.Corpus, s *model.Session) []string
}

var skillRules = []skillRule{
	{"unused focus skill", func(_ *corpus.Corpus, s *model.Session) []string {
		return unused(s, s.Strategy.FocusSkills)
	}},
	{"unused catalogue skill", func(c *corpus.Corpus, s *model.Session) []string {
		return unused(s, c.Skills())
	}},
	{"focus skill repeat", func(_ *corpus.Corpus, s *model.Session) []string {
		return s.Strategy.FocusSkills
	}},
	{"catalogue repeat", func(c *corpus.Corpus, _ *model.Session) []string {
		return c.Skills()
	}},
}

func unused(s *model.Session, skills []string) []string {
	var out []string
	for _, sk := range skills {
		if !s.HasUsed(sk) {
			out = append(out, sk)
		}
	}
	return out
}

// pickSkill returns the first candidate of the first rule that has any.
func (e *Engine) pickSkill(s *model.Session) string {
	for _, r := range skillRules {
		if c := r.candidates(e.corpus, s); len(c) > 0 {
			e.logger.Debug("skill selected", "session_id", s.ID, "rule", r.name, "skill", c[0])
			return c[0]
		}
	}
	return ""
}

// pickQuestion draws uniformly from the skill's pool at d, falling back to
// the medium pool and then to a generic prompt naming the skill.
func (e *Engine) pickQuestion(skill string, d model.Difficulty) string {
	for _, tier := range []model.Difficulty{d, model.DifficultyMedium} {
		if pool := e.corpus.Pool(skill, tier); len(pool) > 0 {
			return pool[e.intn(len(pool))]
		}
	}
	return fmt.Sprintf(corpus.Placeholder, skill)
}
