package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/cache"
	"github.com/pavelanni/interviewprep/internal/corpus"
	"github.com/pavelanni/interviewprep/internal/engine"
	"github.com/pavelanni/interviewprep/internal/evaluator"
	"github.com/pavelanni/interviewprep/internal/llm"
	"github.com/pavelanni/interviewprep/internal/model"
	"github.com/pavelanni/interviewprep/internal/observability"
	"github.com/pavelanni/interviewprep/internal/store"
)

// addBackendFlags registers the model, scoring, storage and language flags
// shared by serve and practice.
func addBackendFlags(cmd *cobra.Command) {
	llmDefaults := llm.DefaultConfig()
	evalDefaults := evaluator.DefaultConfig()
	engDefaults := engine.DefaultConfig()
	w := analytics.DefaultWeights()

	f := cmd.Flags()
	f.String("llm-provider", "gemini", "Model provider (gemini, openai)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty = api.openai.com)")
	f.String("llm-key", "", "API key for the model provider (empty = simulated scoring)")
	f.String("eval-model", llmDefaults.EvalModel, "Model used for scoring and ideal answers")
	f.String("strategy-model", llmDefaults.StrategyModel, "Model used for interview planning")
	f.Bool("mock", false, "Force simulated scoring even when a key is set")
	f.Duration("llm-timeout", llm.DefaultRetryPolicy().Timeout, "Timeout for a single model call")
	f.Int("retry-attempts", llm.DefaultRetryPolicy().MaxAttempts, "Model call attempts before degrading")
	f.Duration("retry-backoff", llm.DefaultRetryPolicy().Backoff, "Pause between model call attempts")
	f.IntP("max-questions", "n", engDefaults.MaxQuestions, "Questions per session")
	f.Int("max-followups", engDefaults.MaxFollowUpsPerSkill, "Follow-up questions allowed per skill")
	f.Float64("weight-concept", w.Concept, "Readiness weight of concept scores")
	f.Float64("weight-clarity", w.Clarity, "Readiness weight of clarity scores")
	f.Float64("weight-confidence", w.Confidence, "Readiness weight of confidence scores")
	f.Float64("weight-consistency", w.Consistency, "Readiness weight of score consistency")
	f.Float64("weak-threshold", analytics.DefaultWeakThreshold, "Average score below which a skill is weak")
	f.Int("min-answer-length", evalDefaults.MinAnswerLength, "Characters below which an answer is too short")
	f.String("questions", "", "YAML question bank (empty = built-in bank)")
	f.String("redis-addr", "", "Redis address for the ideal-answer cache (empty = in-memory)")
	f.Duration("cache-ttl", evalDefaults.CacheTTL, "How long generated ideal answers are cached")
	f.String("db", "interviewprep.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Language for messages (en, ru)")
}

// backend is everything a session needs, built from configuration.
type backend struct {
	corpus     *corpus.Corpus
	store      *store.Store
	engine     *engine.Engine
	simulated  bool
	run        model.RunInfo
	reportOpts analytics.Options
	closers    []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("close backend resource", "error", err)
		}
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type closableModel interface {
	llm.Model
	Close() error
}

func weightsFrom(v *viper.Viper) analytics.Weights {
	return analytics.Weights{
		Concept:     v.GetFloat64("weight-concept"),
		Clarity:     v.GetFloat64("weight-clarity"),
		Confidence:  v.GetFloat64("weight-confidence"),
		Consistency: v.GetFloat64("weight-consistency"),
	}
}

func reportOptions(v *viper.Viper) (analytics.Options, error) {
	w := weightsFrom(v)
	if err := w.Validate(); err != nil {
		return analytics.Options{}, fmt.Errorf("readiness weights: %w", err)
	}
	return analytics.Options{Weights: w, WeakThreshold: v.GetFloat64("weak-threshold")}, nil
}

func loadCorpus(v *viper.Viper) (*corpus.Corpus, string, error) {
	path := v.GetString("questions")
	if path == "" {
		return corpus.Default(), "built-in", nil
	}
	c, err := corpus.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load questions: %w", err)
	}
	return c, path, nil
}

// newModel builds the configured model client, or returns nil for simulated
// scoring. With ping set, an unreachable model also means simulated scoring.
func newModel(ctx context.Context, v *viper.Viper, ping bool) (closableModel, model.RunInfo, error) {
	provider := strings.ToLower(v.GetString("llm-provider"))
	run := model.RunInfo{Provider: provider, Simulated: true}
	key := v.GetString("llm-key")
	if key == "" || v.GetBool("mock") {
		slog.Info("no model configured, using simulated scoring", "mock", v.GetBool("mock"))
		run.Provider = "simulated"
		return nil, run, nil
	}

	cfg := llm.DefaultConfig()
	cfg.EvalModel = v.GetString("eval-model")
	cfg.StrategyModel = v.GetString("strategy-model")

	var m closableModel
	switch provider {
	case "gemini":
		g, err := llm.NewGemini(ctx, key, cfg)
		if err != nil {
			return nil, run, err
		}
		m = g
	case "openai":
		m = llm.NewOpenAI(v.GetString("llm-url"), key, cfg)
	default:
		return nil, run, fmt.Errorf("unknown llm-provider %q (want gemini or openai)", provider)
	}

	if p, ok := m.(pinger); ok && ping {
		pctx, cancel := context.WithTimeout(ctx, v.GetDuration("llm-timeout"))
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			slog.Warn("model health check failed, falling back to simulated scoring",
				"provider", provider, "model", cfg.EvalModel, "error", err)
			_ = m.Close()
			run.Provider = "simulated"
			return nil, run, nil
		}
		slog.Info("model endpoint OK", "provider", provider, "model", cfg.EvalModel)
	}

	run.EvalModel = cfg.EvalModel
	run.StrategyModel = cfg.StrategyModel
	run.Simulated = false
	return m, run, nil
}

func newCache(ctx context.Context, v *viper.Viper) cache.Cache {
	addr := v.GetString("redis-addr")
	if addr == "" {
		return cache.NewMemory()
	}
	r, err := cache.NewRedis(ctx, addr)
	if err != nil {
		slog.Warn("redis unavailable, caching ideal answers in memory", "addr", addr, "error", err)
		return cache.NewMemory()
	}
	slog.Info("caching ideal answers in redis", "addr", addr)
	return r
}

func buildBackend(ctx context.Context, v *viper.Viper, ping bool) (*backend, error) {
	reportOpts, err := reportOptions(v)
	if err != nil {
		return nil, err
	}
	c, bankName, err := loadCorpus(v)
	if err != nil {
		return nil, err
	}

	b := &backend{corpus: c, reportOpts: reportOpts}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	m, run, err := newModel(ctx, v, ping)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	kv := newCache(ctx, v)
	b.closers = append(b.closers, kv.Close)

	evalCfg := evaluator.DefaultConfig()
	evalCfg.MinAnswerLength = v.GetInt("min-answer-length")
	evalCfg.CacheTTL = v.GetDuration("cache-ttl")
	opts := []evaluator.Option{evaluator.WithConfig(evalCfg), evaluator.WithCache(kv)}
	if m != nil {
		b.closers = append(b.closers, m.Close)
		opts = append(opts, evaluator.WithModel(llm.WithRetry(m, llm.RetryPolicy{
			MaxAttempts: v.GetInt("retry-attempts"),
			Backoff:     v.GetDuration("retry-backoff"),
			Timeout:     v.GetDuration("llm-timeout"),
		})))
	}
	ev, err := evaluator.New(c, opts...)
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	b.store = db
	b.closers = append(b.closers, db.Close)

	engCfg := engine.Config{
		MaxQuestions:         v.GetInt("max-questions"),
		MaxFollowUpsPerSkill: v.GetInt("max-followups"),
		Weights:              reportOpts.Weights,
		WeakThreshold:        reportOpts.WeakThreshold,
	}
	b.engine, err = engine.New(ev, db, c, engCfg)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	run.QuestionBank = bankName
	run.MaxQuestions = engCfg.MaxQuestions
	if err := db.SetRunInfo(ctx, run); err != nil {
		return nil, fmt.Errorf("record run info: %w", err)
	}
	b.run = run
	b.simulated = ev.Simulated()
	ok = true
	return b, nil
}

func initTracing(ctx context.Context, v *viper.Viper) (func(context.Context) error, error) {
	return observability.Init(ctx, observability.Config{
		Enabled:     v.GetBool("otel-enabled"),
		ServiceName: "interviewprep",
		Version:     version,
		Endpoint:    v.GetString("otel-endpoint"),
		Insecure:    true,
		SampleRatio: 1,
	})
}
