// Package corpus holds the static interview question bank and the
// pre-authored ideal answers.
package corpus

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/interviewprep/internal/model"
)

// IdealKeyLen is the number of leading runes of a question used to look up
// its pre-authored ideal answer.
const IdealKeyLen = 80

// Placeholder is asked when a skill has no pool at all.
const Placeholder = "Explain a core concept in %s in depth, with an example."

//go:embed bank.yaml
var defaultBank []byte

type bankFile struct {
	Skills []struct {
		Name      string                         `yaml:"name"`
		Questions map[model.Difficulty][]string `yaml:"questions"`
	} `yaml:"skills"`
	IdealAnswers []struct {
		Question string `yaml:"question"`
		Answer   string `yaml:"answer"`
	} `yaml:"ideal_answers"`
}

// Corpus is an immutable skill → difficulty → prompts mapping.
type Corpus struct {
	skills []string
	pools  map[string]map[model.Difficulty][]string
	ideal  map[string]string
}

// Default returns the embedded question bank.
func Default() *Corpus {
	c, err := Parse(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("corpus: embedded bank: %v", err))
	}
	return c
}

// Load reads a question bank from a YAML file.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML question bank.
func Parse(data []byte) (*Corpus, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Skills) == 0 {
		return nil, fmt.Errorf("no skills defined")
	}

	c := &Corpus{
		pools: make(map[string]map[model.Difficulty][]string, len(f.Skills)),
		ideal: make(map[string]string, len(f.IdealAnswers)),
	}
	for _, s := range f.Skills {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("skill with empty name")
		}
		if _, dup := c.pools[name]; dup {
			return nil, fmt.Errorf("duplicate skill %q", name)
		}
		for d := range s.Questions {
			if !d.Valid() {
				return nil, fmt.Errorf("skill %q: unknown difficulty %q", name, d)
			}
		}
		c.skills = append(c.skills, name)
		c.pools[name] = s.Questions
	}
	for _, ia := range f.IdealAnswers {
		c.ideal[idealKey(ia.Question)] = strings.TrimSpace(ia.Answer)
	}
	return c, nil
}

// Skills returns the skill catalogue in declaration order.
func (c *Corpus) Skills() []string {
	out := make([]string, len(c.skills))
	copy(out, c.skills)
	return out
}

// Has reports whether skill is in the catalogue.
func (c *Corpus) Has(skill string) bool {
	_, ok := c.pools[skill]
	return ok
}

// Pool returns the prompts for skill at the given difficulty, or nil.
func (c *Corpus) Pool(skill string, d model.Difficulty) []string {
	return c.pools[skill][d]
}

// IdealAnswer returns the pre-authored ideal answer for a question.
func (c *Corpus) IdealAnswer(question string) (string, bool) {
	a, ok := c.ideal[idealKey(question)]
	return a, ok
}

func idealKey(question string) string {
	r := []rune(strings.TrimSpace(question))
	if len(r) > IdealKeyLen {
		r = r[:IdealKeyLen]
	}
	return string(r)
}
