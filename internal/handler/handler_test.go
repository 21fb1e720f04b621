package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/corpus"
	"github.com/pavelanni/interviewprep/internal/engine"
	"github.com/pavelanni/interviewprep/internal/evaluator"
	"github.com/pavelanni/interviewprep/internal/i18n"
	"github.com/pavelanni/interviewprep/internal/model"
	"github.com/pavelanni/interviewprep/internal/store"
)

const testAdminPassword = "s3cret-admin"

type testEnv struct {
	store  *store.Store
	engine *engine.Engine
	config Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, i18n.Init("en"))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := corpus.Default()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	ev, err := evaluator.New(c, evaluator.WithRand(rand.New(rand.NewPCG(1, 1))), evaluator.WithLogger(quiet))
	require.NoError(t, err)
	eng, err := engine.New(ev, st, c, engine.DefaultConfig(), engine.WithLogger(quiet))
	require.NoError(t, err)

	return &testEnv{
		store:  st,
		engine: eng,
		config: Config{
			Skills:            c.Skills(),
			Simulated:         true,
			Report:            analytics.Options{Weights: analytics.DefaultWeights(), WeakThreshold: analytics.DefaultWeakThreshold},
			AdminPasswordHash: hash,
		},
	}
}

// server builds a fresh handler, as a restarted process would.
func (e *testEnv) server(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(i18n.Middleware())
	New(e.engine, e.store, e.config).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if s, ok := body.(string); ok {
		rd = strings.NewReader(s)
	} else if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func testProfile() model.Profile {
	return model.Profile{
		Name:         "Ada",
		Email:        "ada@example.com",
		Role:         "Data Scientist",
		CompanyType:  "FAANG",
		Experience:   "3-5 Years",
		WeakSkills:   []string{"Statistics & Probability"},
		MaxQuestions: 2,
	}
}

func TestHealthAndSkills(t *testing.T) {
	srv := newTestEnv(t).server(t)

	var health map[string]any
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, &health))
	assert.Equal(t, map[string]any{"status": "ok", "simulated": true, "users": 0.0, "live_sessions": 0.0}, health)

	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), nil))
	health = nil
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, &health))
	assert.Equal(t, 1.0, health["users"])
	assert.Equal(t, 1.0, health["live_sessions"])

	var skills struct {
		Skills    []string
		Languages []string
	}
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/skills", nil, &skills))
	assert.Len(t, skills.Skills, 10)
	assert.ElementsMatch(t, []string{"en", "ru"}, skills.Languages)
}

func TestStartSessionValidation(t *testing.T) {
	srv := newTestEnv(t).server(t)

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "{not json", &e))
	assert.Equal(t, "The request body is not valid JSON.", e.Error)

	e = errorResponse{}
	bad := testProfile()
	bad.Role = ""
	bad.MaxQuestions = 50
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", bad, &e))
	assert.Equal(t, "The profile is incomplete or invalid.", e.Error)
	assert.Equal(t, map[string]string{"Role": "required", "MaxQuestions": "max"}, e.Fields)
}

func TestInterviewFlow(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	base := srv.URL + "/api/sessions"

	var start startResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base, testProfile(), &start))
	require.NotNil(t, start.Session)
	require.NotNil(t, start.Question)
	assert.Equal(t, model.StateAwaitingAnswer, start.Session.State)
	assert.True(t, start.Session.Simulated)
	assert.Equal(t, "simulated", start.Mode)
	id := start.Session.ID
	url := base + "/" + itoa(id)

	var e errorResponse
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodGet, url+"/report", nil, &e))
	assert.Equal(t, "The session is not finished yet.", e.Error)

	var a1 answerResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/answer",
		answerRequest{Answer: "Variance measures spread around the mean; I used it to monitor drift."}, &a1))
	assert.False(t, a1.Done)
	require.NotNil(t, a1.NextQuestion)
	assert.GreaterOrEqual(t, a1.Evaluation.OverallScore, 1.0)

	var a2 answerResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/answer", answerRequest{Skipped: true}, &a2))
	assert.True(t, a2.Done)
	assert.Nil(t, a2.NextQuestion)
	assert.Zero(t, a2.Evaluation.OverallScore)

	e = errorResponse{}
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, url+"/answer", answerRequest{Answer: "extra"}, &e))
	assert.Equal(t, "There is no open question to answer.", e.Error)

	var report model.Report
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/finalize", nil, &report))
	assert.Equal(t, 2, report.TotalQuestions)
	assert.Equal(t, "Ada", report.Profile.Name)

	// A finalized session leaves memory; later calls are served from storage.
	var again model.Report
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/finalize", nil, &again))
	assert.Equal(t, report.Readiness, again.Readiness)
	assert.True(t, report.GeneratedAt.Equal(again.GeneratedAt))

	var afterFinalize model.Report
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, url+"/report", nil, &afterFinalize))
	assert.Equal(t, report.Readiness, afterFinalize.Readiness)
	assert.Equal(t, report.TotalQuestions, afterFinalize.TotalQuestions)

	e = errorResponse{}
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, url+"/answer", answerRequest{Answer: "late"}, &e))
	assert.Equal(t, "Session not found.", e.Error)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, url, nil, nil))

	// A restarted server rebuilds the report from storage.
	restarted := env.server(t)
	var stored model.Report
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, restarted.URL+"/api/sessions/"+itoa(id)+"/report", nil, &stored))
	assert.Equal(t, report.Readiness, stored.Readiness)
	assert.Equal(t, report.SkillBreakdown, stored.SkillBreakdown)
	assert.Equal(t, report.WeakClusters, stored.WeakClusters)
	assert.True(t, report.GeneratedAt.Equal(stored.GeneratedAt))

	e = errorResponse{}
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, restarted.URL+"/api/sessions/"+itoa(id), nil, &e))
}

func TestUnknownSession(t *testing.T) {
	srv := newTestEnv(t).server(t)

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/42", nil, &e))
	assert.Equal(t, "Session not found.", e.Error)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/42/report", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/42/finalize", nil, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/abc", nil, nil))
}

func TestLocalizedErrors(t *testing.T) {
	srv := newTestEnv(t).server(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions/7", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "ru")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var e errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Сессия не найдена.", e.Error)
}

func adminGet(t *testing.T, url, user, password string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if user != "" || password != "" {
		req.SetBasicAuth(user, password)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	var start startResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), &start))
	url := srv.URL + "/api/sessions/" + itoa(start.Session.ID)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/answer", answerRequest{Skipped: true}, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/finalize", nil, nil))
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), nil))

	var all struct{ Sessions []model.SessionSummary }
	resp := adminGet(t, srv.URL+"/api/admin/sessions", AdminUser, testAdminPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all.Sessions, 2)

	var done struct{ Sessions []model.SessionSummary }
	resp = adminGet(t, srv.URL+"/api/admin/sessions?completed=true", AdminUser, testAdminPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&done))
	require.Len(t, done.Sessions, 1)
	assert.Equal(t, start.Session.ID, done.Sessions[0].ID)

	resp = adminGet(t, srv.URL+"/api/admin/export", AdminUser, testAdminPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment; filename=\"interview-reports-")
	var out model.ReportExport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, model.SkippedAnswer, out.Sessions[0].Answers[0].AnswerText)
}

func TestAdminRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)

	var start startResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), &start))
	url := srv.URL + "/api/sessions/" + itoa(start.Session.ID)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/answer", answerRequest{Skipped: true}, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url+"/finalize", nil, nil))

	tests := []struct {
		name     string
		user     string
		password string
		want     int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong password", AdminUser, "guess", http.StatusUnauthorized},
		{"wrong user", "root", testAdminPassword, http.StatusUnauthorized},
		{"valid", AdminUser, testAdminPassword, http.StatusOK},
	}
	for _, path := range []string{"/api/admin/export", "/api/admin/sessions"} {
		for _, tt := range tests {
			t.Run(path+" "+tt.name, func(t *testing.T) {
				resp := adminGet(t, srv.URL+path, tt.user, tt.password)
				assert.Equal(t, tt.want, resp.StatusCode)
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				if tt.want == http.StatusUnauthorized {
					assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
					assert.NotContains(t, string(body), "ada@example.com")
					assert.Contains(t, string(body), "Admin credentials are missing or wrong.")
				}
			})
		}
	}
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	env := newTestEnv(t)
	env.config.AdminPasswordHash = nil
	srv := env.server(t)

	resp := adminGet(t, srv.URL+"/api/admin/export", AdminUser, testAdminPassword)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIdleSessionsEvicted(t *testing.T) {
	env := newTestEnv(t)
	env.config.IdleTTL = time.Hour
	h := New(env.engine, env.store, env.config)
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }

	r := chi.NewRouter()
	r.Use(i18n.Middleware())
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	var first startResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), &first))

	clock = clock.Add(30 * time.Minute)
	var second startResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), &second))

	// Touching the first session keeps it alive; the second goes idle.
	clock = clock.Add(45 * time.Minute)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+itoa(first.Session.ID), nil, nil))

	clock = clock.Add(50 * time.Minute)
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", testProfile(), nil))

	h.mu.Lock()
	_, firstLive := h.live[first.Session.ID]
	_, secondLive := h.live[second.Session.ID]
	n := len(h.live)
	h.mu.Unlock()
	assert.True(t, firstLive)
	assert.False(t, secondLive)
	assert.Equal(t, 2, n)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
