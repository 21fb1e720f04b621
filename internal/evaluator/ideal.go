package evaluator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/interviewprep/internal/llm"
	"github.com/pavelanni/interviewprep/internal/llm/prompts"
)

// IdealAnswer returns the reference answer for a question. Pre-authored
// answers win; otherwise a generated answer is cached per question and skill.
func (s *Service) IdealAnswer(ctx context.Context, question, skill string) string {
	if a, ok := s.corpus.IdealAnswer(question); ok {
		return a
	}
	if s.Simulated() {
		return templateIdeal(skill)
	}

	key := idealCacheKey(question, skill)
	if a, ok := s.cachedIdeal(ctx, key); ok {
		return a
	}

	v, _, _ := s.ideals.Do(key, func() (any, error) {
		return s.generateIdeal(ctx, key, question, skill), nil
	})
	return v.(string)
}

// storedIdeal is IdealAnswer without generation. The hard gates use it so
// they never reach the model.
func (s *Service) storedIdeal(ctx context.Context, question, skill string) string {
	if a, ok := s.corpus.IdealAnswer(question); ok {
		return a
	}
	if !s.Simulated() {
		if a, ok := s.cachedIdeal(ctx, idealCacheKey(question, skill)); ok {
			return a
		}
	}
	return templateIdeal(skill)
}

func (s *Service) generateIdeal(ctx context.Context, key, question, skill string) string {
	ctx, span := tracer.Start(ctx, "evaluator.ideal_answer")
	defer span.End()

	prompt, err := prompts.Ideal(prompts.IdealData{Question: question, Skill: skill})
	if err != nil {
		s.logger.Error("build ideal prompt", "error", err)
		return failedIdeal(skill)
	}
	text, err := s.model.Generate(ctx, llm.Request{Prompt: prompt, Mode: llm.Creative})
	if errors.Is(err, llm.ErrEmptyResponse) {
		return emptyIdeal(skill)
	}
	if err != nil {
		s.logger.Warn("ideal answer generation failed", "skill", skill, "error", err)
		return failedIdeal(skill)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return emptyIdeal(skill)
	}
	if r := []rune(text); s.cfg.IdealMaxChars > 0 && len(r) > s.cfg.IdealMaxChars {
		text = string(r[:s.cfg.IdealMaxChars])
	}

	if err := s.cache.Set(ctx, key, text, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache ideal answer", "error", err)
	}
	return text
}

func (s *Service) cachedIdeal(ctx context.Context, key string) (string, bool) {
	a, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("read ideal answer cache", "error", err)
		return "", false
	}
	return a, ok
}

func idealCacheKey(question, skill string) string {
	h := sha256.Sum256([]byte(skill + "\x00" + strings.TrimSpace(question)))
	return hex.EncodeToString(h[:16])
}

func templateIdeal(skill string) string {
	return fmt.Sprintf("A complete answer defines the concept precisely, provides the key equation or derivation, "+
		"gives a production example, and discusses trade-offs and failure modes relevant to %s.", skill)
}

func emptyIdeal(skill string) string {
	return fmt.Sprintf("See %s fundamentals for a complete answer.", skill)
}

func failedIdeal(skill string) string {
	return fmt.Sprintf("A thorough understanding of %s concepts is required to answer this question well.", skill)
}
