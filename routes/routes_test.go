package routes

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/metrics"
	"github.com/mbolis/quick-forms/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	app     app.App
}

func newTestServer(t *testing.T, tweak ...func(*config.Config)) *testServer {
	t.Helper()

	db, err := database.Open("sqlite://" + filepath.Join(t.TempDir(), "api.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	m := metrics.New()
	store, err := database.NewStore(db, database.WithObserver(m))
	require.NoError(t, err)

	cfg := config.Config{
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
		CORSOrigins: []string{"*"},
		SubmitRate:  1000,
		SubmitBurst: 1000,
	}
	for _, f := range tweak {
		f(&cfg)
	}

	a := app.New(cfg, store, m)
	return &testServer{t: t, handler: Wire(a), app: a}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// signUp registers an account and returns a fresh access token for it.
func (s *testServer) signUp(name, email string) string {
	s.t.Helper()

	w := s.do("POST", "/api/auth/register", "", map[string]any{
		"name": name, "email": email, "password": "secret1",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("POST", "/api/auth/login", "", map[string]any{"email": email, "password": "secret1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[session](s.t, w).Token
}

var feedbackForm = map[string]any{
	"name":        "Feedback",
	"description": "Tell us",
	"questions": []map[string]any{
		{"id": "q1", "label": "Continue?", "type": "select", "options": []string{"Yes", "No"}},
		{"id": "q2", "label": "Why?", "type": "text", "required": true,
			"visibilityRule": map[string]any{"dependsOn": "q1", "operator": "equals", "comparand": "Yes"}},
	},
}

func (s *testServer) createForm(token string) model.Form {
	s.t.Helper()

	w := s.do("POST", "/api/forms", token, feedbackForm)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Form](s.t, w)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do("POST", "/api/auth/register", "", map[string]any{
		"name": "Ann", "email": "Ann@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[model.User](t, w)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotContains(t, w.Body.String(), "secret1")

	w = s.do("POST", "/api/auth/register", "", map[string]any{
		"name": "Ann again", "email": "ann@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do("POST", "/api/auth/register", "", map[string]any{"name": "", "email": "nope", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode[map[string]any](t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	w = s.do("POST", "/api/auth/login", "", map[string]any{"email": "ann@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do("POST", "/api/auth/login", "", map[string]any{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess := decode[session](t, w)
	require.NotEmpty(t, sess.Token)
	require.NotEmpty(t, sess.RefreshToken)
	require.NotNil(t, sess.User)
	assert.Equal(t, user.ID, sess.User.ID)

	w = s.do("GET", "/api/auth/profile", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ann", decode[model.User](t, w).Name)

	w = s.do("PUT", "/api/auth/profile", sess.Token, map[string]any{"name": "Annie"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Annie", decode[model.User](t, w).Name)

	r := httptest.NewRequest("POST", "/api/auth/refresh", nil)
	r.Header.Set("Authorization", "Refresh "+sess.RefreshToken)
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, r)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	assert.NotEmpty(t, decode[session](t, rw).Token)

	// a refresh token is good for one exchange
	rw = httptest.NewRecorder()
	s.handler.ServeHTTP(rw, r)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestForms_RequireToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do("POST", "/api/forms", "", feedbackForm).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do("GET", "/api/forms", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do("GET", "/api/forms", "garbage", nil).Code)
}

func TestForms_CRUD(t *testing.T) {
	s := newTestServer(t)
	ann := s.signUp("Ann", "ann@example.com")

	form := s.createForm(ann)
	assert.Equal(t, "Feedback", form.Name)
	assert.Equal(t, 1, form.Version)
	require.Len(t, form.Questions, 2)
	require.NotNil(t, form.Questions[1].VisibilityRule)
	assert.Equal(t, "q1", form.Questions[1].VisibilityRule.DependsOn)

	w := s.do("GET", "/api/forms/"+form.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, form.ID, decode[model.Form](t, w).ID)

	w = s.do("GET", "/api/forms", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]model.Form](t, w)["forms"], 1)

	w = s.do("GET", "/api/forms/count", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = s.do("PUT", "/api/forms/"+form.ID, ann, map[string]any{"name": "Feedback 2024", "version": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[model.Form](t, w)
	assert.Equal(t, "Feedback 2024", updated.Name)
	assert.Equal(t, 2, updated.Version)
	assert.Len(t, updated.Questions, 2, "questions are kept when left out")

	w = s.do("PUT", "/api/forms/"+form.ID, ann, map[string]any{"name": "Stale", "version": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do("POST", "/api/forms/"+form.ID+"/questions", ann, map[string]any{
		"label": "Email", "type": "email",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	withEmail := decode[model.Form](t, w)
	require.Len(t, withEmail.Questions, 3)
	assert.NotEmpty(t, withEmail.Questions[2].ID)
	assert.Equal(t, 3, withEmail.Version)

	w = s.do("DELETE", "/api/forms/"+form.ID, ann, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/api/forms/"+form.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do("DELETE", "/api/forms/"+form.ID, ann, nil).Code)
}

func TestForms_InvalidUpdateChangesNothing(t *testing.T) {
	s := newTestServer(t)
	ann := s.signUp("Ann", "ann@example.com")
	form := s.createForm(ann)

	w := s.do("PUT", "/api/forms/"+form.ID, ann, map[string]any{
		"name": "Renamed",
		"questions": []map[string]any{
			{"id": "q1", "label": "Continue?", "type": "select", "options": []string{"Yes", "No"}},
			{"id": "q2", "label": "Why?", "type": "text",
				"visibilityRule": map[string]any{"dependsOn": "gone", "operator": "equals", "comparand": "Yes"}},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `unknown question \"gone\"`)

	w = s.do("GET", "/api/forms/"+form.ID, "", nil)
	current := decode[model.Form](t, w)
	assert.Equal(t, "Feedback", current.Name)
	assert.Equal(t, 1, current.Version)
	assert.Equal(t, form.Questions, current.Questions)
}

func TestForms_OwnerOnly(t *testing.T) {
	s := newTestServer(t)
	ann := s.signUp("Ann", "ann@example.com")
	bob := s.signUp("Bob", "bob@example.com")
	form := s.createForm(ann)

	assert.Equal(t, http.StatusForbidden, s.do("PUT", "/api/forms/"+form.ID, bob, map[string]any{"name": "Mine"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do("DELETE", "/api/forms/"+form.ID, bob, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do("POST", "/api/forms/"+form.ID+"/questions", bob, map[string]any{
		"label": "Sneaky", "type": "text",
	}).Code)
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/api/submissions/"+form.ID, bob, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do("GET", "/api/submissions/"+form.ID+"/export/csv", bob, nil).Code)

	w := s.do("GET", "/api/forms", bob, nil)
	assert.Empty(t, decode[map[string][]model.Form](t, w)["forms"])

	assert.Equal(t, http.StatusNotFound, s.do("PUT", "/api/forms/missing", bob, map[string]any{"name": "x"}).Code)
}

func TestEvaluateVisibility(t *testing.T) {
	s := newTestServer(t)
	form := s.createForm(s.signUp("Ann", "ann@example.com"))

	w := s.do("POST", "/api/forms/"+form.ID+"/visibility", "", map[string]any{"answers": map[string]any{}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visible":["q1"]}`, w.Body.String())

	w = s.do("POST", "/api/forms/"+form.ID+"/visibility", "", map[string]any{"answers": map[string]any{"q1": "Yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visible":["q1","q2"]}`, w.Body.String())
}

func TestSubmissions(t *testing.T) {
	s := newTestServer(t)
	ann := s.signUp("Ann", "ann@example.com")
	form := s.createForm(ann)
	submit := "/api/submissions/" + form.ID

	w := s.do("POST", submit, "", map[string]any{"answers": map[string]any{"q1": "No"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[model.Submission](t, w)
	assert.Equal(t, model.Answers{"q1": "No"}, first.Answers)

	w = s.do("POST", submit, "", map[string]any{"answers": map[string]any{"q1": "Yes"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"missing required answers: \"Why?\"","fields":{"q2":"required"}}`, w.Body.String())

	w = s.do("POST", submit, "", map[string]any{"answers": map[string]any{"q1": "Yes", "q2": "Because"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// hidden and unknown answers are dropped
	w = s.do("POST", submit, "", map[string]any{"answers": map[string]any{"q1": "No", "q2": "ignored", "q9": "x"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, model.Answers{"q1": "No"}, decode[model.Submission](t, w).Answers)

	assert.Equal(t, http.StatusNotFound, s.do("POST", "/api/submissions/missing", "", map[string]any{"answers": map[string]any{}}).Code)

	w = s.do("GET", "/api/submissions/"+form.ID, ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	subs := decode[map[string][]model.Submission](t, w)["submissions"]
	require.Len(t, subs, 3)
	assert.Equal(t, first.ID, subs[0].ID)

	w = s.do("GET", "/api/forms/"+form.ID, "", nil)
	assert.Equal(t, 3, decode[model.Form](t, w).SubmissionCount)

	assert.Equal(t, 3.0, testutil.ToFloat64(s.app.Metrics.Submissions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.app.Metrics.Submissions.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.app.Metrics.Submissions.WithLabelValues("not_found")))
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	ann := s.signUp("Ann", "ann@example.com")
	form := s.createForm(ann)

	for _, answers := range []map[string]any{
		{"q1": "No"},
		{"q1": "Yes", "q2": "Because, obviously"},
		{"q1": "No"},
	} {
		w := s.do("POST", "/api/submissions/"+form.ID, "", map[string]any{"answers": answers})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do("GET", "/api/submissions/"+form.ID+"/export/csv", ann, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Feedback_submissions.csv"`, w.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Submission Date", "Continue?", "Why?"}, rows[0])

	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, []string{today, "No", ""}, rows[1])
	assert.Equal(t, []string{today, "Yes", "Because, obviously"}, rows[2])
	assert.Equal(t, []string{today, "No", ""}, rows[3])
}

func TestSubmissions_Throttled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.SubmitRate = 0.01
		cfg.SubmitBurst = 2
	})
	form := s.createForm(s.signUp("Ann", "ann@example.com"))

	var codes []int
	for range 3 {
		codes = append(codes, s.do("POST", "/api/submissions/"+form.ID, "", map[string]any{
			"answers": map[string]any{"q1": "No"},
		}).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.app.Metrics.Submissions.WithLabelValues("throttled")))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	s.do("GET", "/api/forms/missing", "", nil)
	w = s.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `quickforms_http_requests_total{method="GET"`)
	assert.Contains(t, w.Body.String(), `status="404"`)

	assert.Equal(t, http.StatusNotFound, s.do("GET", "/api/nowhere", "", nil).Code)
}

func TestSubmissions_ThrottleKeysOnProxiedIP(t *testing.T) {
	for _, trust := range []bool{false, true} {
		t.Run(fmt.Sprintf("trust proxy %t", trust), func(t *testing.T) {
			s := newTestServer(t, func(cfg *config.Config) {
				cfg.SubmitRate = 0.01
				cfg.SubmitBurst = 1
				cfg.TrustProxy = trust
			})
			form := s.createForm(s.signUp("Ann", "ann@example.com"))

			var codes []int
			for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
				body, err := json.Marshal(map[string]any{"answers": map[string]any{"q1": "No"}})
				require.NoError(t, err)
				r := httptest.NewRequest("POST", "/api/submissions/"+form.ID, bytes.NewReader(body))
				r.Header.Set("Content-Type", "application/json")
				r.Header.Set("X-Forwarded-For", client)
				w := httptest.NewRecorder()
				s.handler.ServeHTTP(w, r)
				codes = append(codes, w.Code)
			}

			if trust {
				assert.Equal(t, []int{http.StatusCreated, http.StatusCreated}, codes)
			} else {
				assert.Equal(t, []int{http.StatusCreated, http.StatusTooManyRequests}, codes)
			}
		})
	}
}
