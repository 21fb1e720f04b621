package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewprep/internal/handler"
	appI18n "github.com/pavelanni/interviewprep/internal/i18n"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "interviewprep",
		Short:   "Adaptive mock ML interviews with model-backed scoring",
		Version: version,
	}

	serve := serveCmd()
	root.AddCommand(serve, practiceCmd(), exportCmd(), skillsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `interviewprep --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP interview API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.Bool("otel-enabled", false, "Export OpenTelemetry traces")
	f.String("otel-endpoint", "", "OTLP/HTTP collector host:port (empty = print spans to stdout)")
	f.String("admin-password", "", "Admin password for /api/admin (or set INTERVIEWPREP_ADMIN_PASSWORD)")
	f.String("admin-password-hash", "", "bcrypt hash of the admin password, preferred over admin-password")
	f.Duration("session-idle-ttl", handler.DefaultIdleTTL, "Drop in-progress sessions idle for this long")
	addBackendFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewprep")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewprep")
	v.AddConfigPath("/etc/interviewprep")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := initTracing(ctx, v)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracer shutdown", "error", err)
		}
	}()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	b, err := buildBackend(ctx, v, true)
	if err != nil {
		return err
	}
	defer b.Close()

	adminHash, err := adminPasswordHash(v)
	if err != nil {
		return err
	}
	if adminHash == nil {
		slog.Warn("no admin password configured, admin endpoints are disabled")
	}

	h := handler.New(b.engine, b.store, handler.Config{
		Skills:            b.corpus.Skills(),
		Simulated:         b.simulated,
		Report:            b.reportOpts,
		AdminPasswordHash: adminHash,
		IdleTTL:           v.GetDuration("session-idle-ttl"),
	})

	users, err := b.store.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(r, "interviewprep"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"provider", b.run.Provider,
		"eval_model", b.run.EvalModel,
		"simulated", b.simulated,
		"lang", lang,
		"languages", appI18n.Languages(),
		"users", users,
		"max_questions", b.run.MaxQuestions,
		"question_bank", b.run.QuestionBank,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// adminPasswordHash returns the configured bcrypt hash, hashing a plain
// password when only that is given. Nil means admin access is off.
func adminPasswordHash(v *viper.Viper) ([]byte, error) {
	if hash := v.GetString("admin-password-hash"); hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid admin-password-hash: %w", err)
		}
		return []byte(hash), nil
	}
	password := v.GetString("admin-password")
	if password == "" {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return hash, nil
}
