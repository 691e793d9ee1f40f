package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"bizdash/internal/core"
	"bizdash/internal/dashboard"
	"bizdash/internal/records"
	"bizdash/internal/records/memory"
	"bizdash/internal/services"
	"bizdash/internal/session"
)

type testEnv struct {
	srv    *Server
	store  *memory.Store
	cookie *http.Cookie
}

func seed() map[string][]core.Row {
	return map[string][]core.Row{
		records.TableUsers: {
			{"username": "ann", "full_name": "Ann Lee", "password": "secret", "active": true, "role": "admin"},
			{"username": "bob", "full_name": "Bob Roe", "password": "secret", "active": false},
		},
		records.TableExpenses: {
			{"date": "2024-01-05", "description": "Team lunch", "category": "Food", "project": "Bridge", "paid_by": "Ann", "amount": 120.5},
			{"date": "2024-02-10", "description": "Train tickets", "category": "Travel", "project": "Bridge", "paid_by": "Bob", "amount": 80},
		},
		records.TableProjects: {
			{"code": "P-1", "name": "Bridge", "customer": "City", "region": "North", "status": "Active", "budget": 2e8, "start_date": "2024-02-01"},
		},
		records.TableIncome: {
			{"date": "2024-01-20", "customer": "City", "project": "Bridge", "contract_value": 5000},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New(seed())
	ds := dashboard.NewDatasets(store, nil)
	deps := Deps{
		Pages:    dashboard.NewRegistry(ds, language.English, nil),
		Overview: ds.Overview(),
		Records:  services.NewRecordService(store, ds, nil),
		Projects: ds.Projects,
		Sessions: session.NewManager(session.NewMemoryStore(), time.Hour, nil),
		Auth:     session.NewAuthenticator(store),
	}
	srv, err := NewServer(":0", deps, Options{LoginRateLimit: 1000, CleanupInterval: time.Hour}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		r.AddCookie(e.cookie)
	}
	w := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (e *testEnv) post(target string, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(r)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	w := e.post("/login", url.Values{"username": {"ann"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			e.cookie = c
		}
	}
	require.NotNil(t, e.cookie, "session cookie not set")
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	assert.Equal(t, http.StatusOK, env.get("/readyz").Code)
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/expenses?year=2024")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/expenses?year=2024"), w.Header().Get("Location"))

	r := httptest.NewRequest(http.MethodGet, "/expenses/table", nil)
	r.Header.Set("HX-Request", "true")
	w = env.do(r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("HX-Redirect"), "/login"))

	w = env.get("/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="password"`)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("wrong password", func(t *testing.T) {
		w := env.post("/login", url.Values{"username": {"ann"}, "password": {"nope"}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Wrong username or password.")
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("inactive user", func(t *testing.T) {
		w := env.post("/login", url.Values{"username": {"bob"}, "password": {"secret"}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "This account is disabled.")
	})

	t.Run("success honours a local next", func(t *testing.T) {
		w := env.post("/login", url.Values{"username": {"ann"}, "password": {"secret"}, "next": {"/projects"}})
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/projects", w.Header().Get("Location"))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookie, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	})

	t.Run("foreign next is ignored", func(t *testing.T) {
		w := env.post("/login", url.Values{"username": {"ann"}, "password": {"secret"}, "next": {"//evil.example"}})
		assert.Equal(t, "/", w.Header().Get("Location"))
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	require.Equal(t, http.StatusOK, env.get("/").Code)

	w := env.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	assert.Equal(t, http.StatusSeeOther, env.get("/").Code)
}

func TestOverviewPage(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.get("/?year=2024")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<h1>Overview</h1>")
	assert.Contains(t, body, "Ann Lee")
	assert.Contains(t, body, `value="2024" checked`)
}

func TestDashboardPage(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.get("/expenses")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Team lunch")
	assert.Contains(t, body, "Train tickets")
	assert.Contains(t, body, `name="sel.category"`)

	assert.Equal(t, http.StatusNotFound, env.get("/nope").Code)
}

func TestTablePartialFiltersAndPushesURL(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.get("/expenses/table?q=lunch")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Team lunch")
	assert.NotContains(t, w.Body.String(), "Train tickets")
	assert.NotContains(t, w.Body.String(), "<html")

	push := w.Header().Get("HX-Push-Url")
	assert.True(t, strings.HasPrefix(push, "/expenses?"), push)
	assert.Contains(t, push, "q=lunch")
}

func TestChartJSON(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.get("/expenses/chart?group=category")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var payload struct {
		Group string `json:"group"`
		Data  struct {
			Labels []string  `json:"labels"`
			Counts []int     `json:"counts"`
			Totals []float64 `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "category", payload.Group)
	assert.ElementsMatch(t, []string{"Food", "Travel"}, payload.Data.Labels)
	assert.Len(t, payload.Data.Totals, 2)
}

func TestCreateRecord(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	before := env.store.Len(records.TableExpenses)

	t.Run("invalid input never reaches the store", func(t *testing.T) {
		w := env.post("/expenses/records", url.Values{
			"date":        {"2024-03-01"},
			"description": {"Taxi"},
			"category":    {"Travel"},
			"amount":      {"abc"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid amount")
		assert.Equal(t, before, env.store.Len(records.TableExpenses))
	})

	t.Run("missing category fails validation", func(t *testing.T) {
		w := env.post("/expenses/records", url.Values{
			"date":        {"2024-03-01"},
			"description": {"Taxi"},
			"amount":      {"12"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, before, env.store.Len(records.TableExpenses))
	})

	t.Run("valid", func(t *testing.T) {
		w := env.post("/expenses/records", url.Values{
			"date":        {"2024-03-01"},
			"description": {"Taxi"},
			"category":    {"Travel"},
			"amount":      {"12,50"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("HX-Trigger"), EventRecordsChanged)
		assert.Contains(t, w.Header().Get("HX-Trigger"), EventFormReset)
		assert.Equal(t, before+1, env.store.Len(records.TableExpenses))

		// The write invalidates the dataset so the next render sees the row.
		assert.Contains(t, env.get("/expenses/table?q=taxi").Body.String(), "Taxi")
	})

	t.Run("read-only page", func(t *testing.T) {
		w := env.post("/users/records", url.Values{"username": {"x"}})
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestEditProject(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.get("/projects/records/1/edit")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="Bridge"`)
	assert.Contains(t, w.Body.String(), `value="2024-02-01"`)

	assert.Equal(t, http.StatusNotFound, env.get("/projects/records/99/edit").Code)
	assert.Equal(t, http.StatusNotFound, env.get("/expenses/records/1/edit").Code)

	w = env.post("/projects/records/1", url.Values{
		"code":       {"P-1"},
		"name":       {"Bridge II"},
		"customer":   {"City"},
		"status":     {"Completed"},
		"budget":     {"250000000"},
		"start_date": {"2024-02-01"},
		"end_date":   {"2024-01-01"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "end before start")

	w = env.post("/projects/records/1", url.Values{
		"code":     {"P-1"},
		"name":     {"Bridge II"},
		"customer": {"City"},
		"status":   {"Completed"},
		"budget":   {"250000000"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	rows, err := env.store.Find(context.Background(), records.TableProjects, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bridge II", core.NormalizeProject(rows[0]).Name)
}

func TestExportZip(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.get("/expenses/export.zip?group=category")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="expenses-`)

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	assert.NotEmpty(t, zr.File)
}

func TestQueueExportDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	w := env.post("/expenses/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Header().Get("HX-Trigger"), "not configured")

	w = env.get("/expenses/exports")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No exports yet.")
}

func TestSuspiciousRequestRejected(t *testing.T) {
	env := newTestEnv(t)
	r := httptest.NewRequest(http.MethodGet, "/login", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	assert.Equal(t, http.StatusBadRequest, env.do(r).Code)
}
