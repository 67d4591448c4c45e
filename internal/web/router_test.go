package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/i18n"
	"github.com/fossabot/failmap/internal/service"
	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/staticfiles"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCSRF    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testSession = "session-token"
)

type fixture struct {
	router     http.Handler
	reports    *mockReportService
	admin      *mockAdminService
	sessions   *auth.MockSessionService
	translator *i18n.Translator
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()

	translator, err := i18n.New("nl")
	require.NoError(t, err)
	static, err := staticfiles.FS("")
	require.NoError(t, err)

	admin := &domain.User{ID: 1, Username: "admin", IsStaff: true, IsActive: true}
	f := &fixture{
		reports: &mockReportService{},
		admin:   &mockAdminService{organizations: testOrganizations()},
		sessions: &auth.MockSessionService{
			AuthenticateFunc: func(_ context.Context, token string) (*domain.User, *domain.Session, error) {
				if token != testSession {
					return nil, nil, auth.ErrInvalidToken
				}
				return admin, &domain.Session{}, nil
			},
			LoginFunc: func(_ context.Context, username, password string) (string, *domain.User, error) {
				if username == "admin" && password == "faalkaart" {
					return testSession, admin, nil
				}
				return "", nil, auth.ErrInvalidCredentials
			},
		},
		translator: translator,
	}

	deps := Deps{
		Reports:         f.reports,
		Admin:           f.admin,
		Sessions:        f.sessions,
		Translator:      translator,
		Static:          static,
		Server:          config.ServerConfig{AllowedHosts: []string{"*"}},
		Logger:          testLogger(),
		SessionLifetime: time.Hour,
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.router, err = NewRouter(deps)
	require.NoError(t, err)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func postForm(target string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func csrfCookie() *http.Cookie {
	return &http.Cookie{Name: auth.CSRFCookieName, Value: testCSRF}
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: SessionCookieName, Value: testSession}
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewRouter_MissingDependency(t *testing.T) {
	t.Parallel()

	_, err := NewRouter(Deps{})
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "MSPAINT.EXE")
	assert.Contains(t, body, `<script type="text/javascript" src="/static/CACHE/js/`)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestIndex_Language(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rr := f.do(req)

	assert.Contains(t, rr.Body.String(), "<title>Failmap</title>")
	assert.Contains(t, rr.Body.String(), `lang="en"`)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rr.Body.String(), "<title>Faalkaart</title>")
}

func TestStaticFiles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/static/images/red-dot.png", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	rr = f.do(httptest.NewRequest(http.MethodGet, "/static/"+staticfiles.ManifestPath, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &manifest))
	require.Len(t, manifest, 1)
	for _, tag := range manifest {
		start := strings.Index(tag, `src="`) + len(`src="`)
		end := strings.Index(tag[start:], `"`)
		src := tag[start : start+end]
		assert.True(t, strings.HasPrefix(src, "/static/CACHE/js/"), src)

		rr = f.do(httptest.NewRequest(http.MethodGet, src, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "var failmap")
	}

	rr = f.do(httptest.NewRequest(http.MethodGet, "/static/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/static/images/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebManifestAndRobots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/manifest.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var m webAppManifest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, "Faalkaart", m.Name)
	assert.Equal(t, "standalone", m.Display)
	assert.NotEmpty(t, m.Icons)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Disallow: /admin/")
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))

	rr = f.do(httptest.NewRequest(http.MethodGet, "/security.txt", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Contact: https://gitlab.com/failmap/"))
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		health func(context.Context) error
		status int
	}{
		{name: "no check", health: nil, status: http.StatusOK},
		{name: "healthy", health: func(context.Context) error { return nil }, status: http.StatusOK},
		{
			name:   "store down",
			health: func(context.Context) error { return errors.New("dial tcp: connection refused") },
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, func(d *Deps) { d.Health = tt.health })

			rr := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.status, rr.Code)
			assert.NotContains(t, rr.Body.String(), "connection refused")
		})
	}
}

func TestAllowedHostsRouting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(d *Deps) {
		d.Server.AllowedHosts = []string{"faalkaart.nl", ".failmap.org", "[::1]"}
	})

	tests := []struct {
		host   string
		status int
	}{
		{host: "faalkaart.nl", status: http.StatusOK},
		{host: "faalkaart.nl:8000", status: http.StatusOK},
		{host: "failmap.org", status: http.StatusOK},
		{host: "admin.failmap.org", status: http.StatusOK},
		{host: "[::1]:8000", status: http.StatusOK},
		{host: "evil.example", status: http.StatusBadRequest},
		{host: "notfailmap.org", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/robots.txt", nil)
		req.Host = tt.host
		rr := f.do(req)
		assert.Equal(t, tt.status, rr.Code, tt.host)
	}
}

func TestDataEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("report", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.report = &service.OrganizationReport{Name: "Gemeente Testdorp", ID: 1, Rating: 110, High: 1}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/report/1/2", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var got service.OrganizationReport
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "Gemeente Testdorp", got.Name)
		assert.Equal(t, 110, got.Rating)
		assert.Equal(t, []int{2}, f.reports.weeksSeen)
	})

	t.Run("report without rating is empty object", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.err = service.ErrNoReport

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/report/99/0", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{}`, rr.Body.String())
	})

	t.Run("stats", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.stats = map[string]*service.Measurement{"now": {Red: 1, TotalOrganizations: 3}}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/stats/0", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var got map[string]map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.EqualValues(t, 1, got["now"]["red"])
	})

	t.Run("topfail", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.topfail = &service.TopList{
			Metadata: service.ListMetadata{Type: "FullMap"},
			Ranking:  []service.Ranking{{Rank: 1, OrganizationName: "Gemeente Testdorp", High: 2}},
		}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/topfail/1", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"organization_name":"Gemeente Testdorp"`)
	})

	t.Run("topwin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.topwin = &service.TopList{
			Metadata: service.ListMetadata{Type: "toplist"},
			Ranking:  []service.Ranking{{Rank: 1, OrganizationName: "Gemeente Eemsmond"}},
		}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/topwin/3", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"organization_name":"Gemeente Eemsmond"`)
		assert.Equal(t, []int{3}, f.reports.weeksSeen)
	})

	t.Run("terrible urls", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.urls = &service.URLList{
			Metadata: service.ListMetadata{Type: "urllist"},
			URLs:     []service.URLRanking{{Rank: 1, URL: "delfzijl.nl", High: 2}},
		}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/terrible_urls/0", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var got service.URLList
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.URLs, 1)
		assert.Equal(t, "delfzijl.nl", got.URLs[0].URL)
		assert.Equal(t, "urllist", got.Metadata.Type)
	})

	t.Run("vulnstats", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.vulnstats = map[string][]service.VulnMeasurement{
			"X-Frame-Options": {{Date: "2024-02-28", Medium: 4}},
		}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/vulnstats/12", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"X-Frame-Options":[{"date":"2024-02-28","high":0,"medium":4,"low":0}]}`, rr.Body.String())
		assert.Equal(t, []int{12}, f.reports.weeksSeen)
	})

	t.Run("weeks back is limited to two digits", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/vulnstats/123", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Empty(t, f.reports.weeksSeen)
	})

	t.Run("latest scans", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.scans = &service.ScanList{Scans: []service.ScanEntry{{URL: "delfzijl.nl", Type: "Strict-Transport-Security", High: 1}}}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/latest_scans/Strict-Transport-Security", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"url":"delfzijl.nl"`)
		assert.Equal(t, []string{"Strict-Transport-Security"}, f.reports.scanTypes)
	})

	t.Run("latest scans of unpublished type is empty object", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.err = service.ErrNoReport

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/latest_scans/Dummy", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{}`, rr.Body.String())
	})

	t.Run("updates on organization", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.scans = &service.ScanList{Scans: []service.ScanEntry{{URL: "delfzijl.nl", Type: "X-Frame-Options"}}}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/updates_on_organization/7", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"type":"X-Frame-Options"`)
		assert.Equal(t, []int64{7}, f.reports.orgsSeen)
	})

	t.Run("wanted urls", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.wanted = &service.WantedList{
			Organizations: []service.WantedOrganization{{Name: "Gemeente Loppersum", URLs: []string{}}},
		}

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/wanted_urls", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"name":"Gemeente Loppersum"`)
	})

	t.Run("service failure hides details", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.reports.err = errors.New("database password=hunter2 unreachable")

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/stats/0", nil))
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		var got ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "An unexpected error occurred", got.Error)
		assert.Len(t, got.TraceID, TraceIDLength*2)
		assert.NotContains(t, rr.Body.String(), "hunter2")
		assert.Empty(t, got.Detail)
	})

	t.Run("debug mode adds redacted detail", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(d *Deps) { d.Server.Debug = true })
		f.reports.err = errors.New("database password=hunter2 unreachable")

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/stats/0", nil))
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		var got ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "An unexpected error occurred", got.Error)
		assert.Contains(t, got.Detail, "unreachable")
		assert.NotContains(t, rr.Body.String(), "hunter2")
	})

	t.Run("debug mode keeps client errors terse", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(d *Deps) { d.Server.Debug = true })
		f.reports.err = store.ErrOrganizationNotFound

		rr := f.do(httptest.NewRequest(http.MethodGet, "/data/report/5/0", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
		var got ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Empty(t, got.Detail)
	})

	t.Run("non numeric arguments do not route", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		for _, path := range []string{"/data/stats/abc", "/data/topfail/100", "/data/report/x/1"} {
			rr := f.do(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusNotFound, rr.Code, path)
		}
	})
}

func TestLoginForm_SetsCSRFCookie(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/admin/login/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	cookie := findCookie(rr, auth.CSRFCookieName)
	require.NotNil(t, cookie)
	assert.Len(t, cookie.Value, 64)
	assert.Contains(t, rr.Body.String(), `name="csrfmiddlewaretoken" value="`+cookie.Value+`"`)
	assert.Contains(t, rr.Body.String(), `name="next" value="/admin/"`)

	// An existing valid cookie is reused.
	req := httptest.NewRequest(http.MethodGet, "/admin/login/", nil)
	req.AddCookie(csrfCookie())
	rr = f.do(req)
	assert.Nil(t, findCookie(rr, auth.CSRFCookieName))
	assert.Contains(t, rr.Body.String(), testCSRF)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	valid := url.Values{
		"csrfmiddlewaretoken": {testCSRF},
		"username":            {"admin"},
		"password":            {"faalkaart"},
	}

	t.Run("success redirects with session cookie", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rr := f.do(postForm("/admin/login/", valid, csrfCookie()))

		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/admin/", rr.Header().Get("Location"))
		session := findCookie(rr, SessionCookieName)
		require.NotNil(t, session)
		assert.Equal(t, testSession, session.Value)
		assert.True(t, session.HttpOnly)
		assert.Equal(t, 3600, session.MaxAge)
	})

	t.Run("local next is followed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		form := url.Values{}
		for k, v := range valid {
			form[k] = v
		}
		form.Set("next", "/admin/tasks/abc")

		rr := f.do(postForm("/admin/login/", form, csrfCookie()))
		assert.Equal(t, "/admin/tasks/abc", rr.Header().Get("Location"))

		form.Set("next", "//evil.example/")
		rr = f.do(postForm("/admin/login/", form, csrfCookie()))
		assert.Equal(t, "/admin/", rr.Header().Get("Location"))
	})

	t.Run("csrf header is accepted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		form := url.Values{"username": {"admin"}, "password": {"faalkaart"}}
		req := postForm("/admin/login/", form, csrfCookie())
		req.Header.Set(auth.CSRFHeaderName, testCSRF)

		rr := f.do(req)
		assert.Equal(t, http.StatusFound, rr.Code)
	})

	t.Run("missing csrf cookie is forbidden", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rr := f.do(postForm("/admin/login/", valid))
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Nil(t, findCookie(rr, SessionCookieName))
	})

	t.Run("mismatched csrf token is forbidden", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		form := url.Values{"csrfmiddlewaretoken": {strings.Repeat("f", 64)}, "username": {"admin"}, "password": {"faalkaart"}}

		rr := f.do(postForm("/admin/login/", form, csrfCookie()))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("bad credentials re-render the form", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		form := url.Values{"csrfmiddlewaretoken": {testCSRF}, "username": {"admin"}, "password": {"wrong"}}

		rr := f.do(postForm("/admin/login/", form, csrfCookie()))

		require.Equal(t, http.StatusOK, rr.Code)
		failed := f.translator.Localizer("").T("admin.login.failed")
		assert.Contains(t, rr.Body.String(), failed)
		assert.Contains(t, rr.Body.String(), `value="admin"`)
		assert.Contains(t, rr.Body.String(), `name="csrfmiddlewaretoken" value="`+testCSRF+`"`)
		assert.Nil(t, findCookie(rr, SessionCookieName))
	})

	t.Run("empty form re-renders the form", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		form := url.Values{"csrfmiddlewaretoken": {testCSRF}}

		rr := f.do(postForm("/admin/login/", form, csrfCookie()))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var loggedOut string
	f.sessions.LogoutFunc = func(_ context.Context, token string) error {
		loggedOut = token
		return nil
	}

	rr := f.do(postForm("/admin/logout/", url.Values{"csrfmiddlewaretoken": {testCSRF}}, csrfCookie(), sessionCookie()))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/admin/login/", rr.Header().Get("Location"))
	assert.Equal(t, testSession, loggedOut)
	cleared := findCookie(rr, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestAdmin_RequiresSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name     string
		req      *http.Request
		location string
	}{
		{
			name:     "no cookie",
			req:      httptest.NewRequest(http.MethodGet, "/admin/", nil),
			location: "/admin/login/?next=/admin/",
		},
		{
			name: "invalid session",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/admin/", nil)
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
				return r
			}(),
			location: "/admin/login/?next=/admin/",
		},
		{
			name:     "post redirects to the admin index",
			req:      postForm("/admin/actions/", url.Values{"csrfmiddlewaretoken": {testCSRF}}, csrfCookie()),
			location: "/admin/login/?next=/admin/",
		},
	}

	for _, tt := range tests {
		rr := f.do(tt.req)
		assert.Equal(t, http.StatusFound, rr.Code, tt.name)
		assert.Equal(t, tt.location, rr.Header().Get("Location"), tt.name)
	}
}

func TestAdminIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/?queued=2&action=scan_dummy", nil)
	req.AddCookie(sessionCookie())
	req.AddCookie(csrfCookie())
	rr := f.do(req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Gemeente Testdorp")
	assert.Contains(t, body, "Gemeente Haren")
	assert.Contains(t, body, `value="scan_dummy"`)
	assert.Contains(t, body, testCSRF)
	assert.Contains(t, body, "admin")
	assert.Contains(t, body, f.translator.Localizer("").Plural("admin.action.queued", 2))
}

func TestRunAction(t *testing.T) {
	t.Parallel()

	form := func(action string, ids ...string) url.Values {
		return url.Values{
			"csrfmiddlewaretoken": {testCSRF},
			"action":              {action},
			"organization_ids":    ids,
		}
	}

	t.Run("queues tasks and redirects", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.admin.result = &service.ActionResult{
			Action:   service.ActionScanDummy,
			TaskIDs:  []uuid.UUID{uuid.New(), uuid.New()},
			Affected: 2,
		}

		rr := f.do(postForm("/admin/actions/", form("scan_dummy", "1", "3"), csrfCookie(), sessionCookie()))

		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/admin/?action=scan_dummy&queued=2", rr.Header().Get("Location"))
		require.Len(t, f.admin.runs, 1)
		assert.Equal(t, runCall{action: "scan_dummy", ids: []int64{1, 3}}, f.admin.runs[0])
	})

	t.Run("immediate action reports applied count", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.admin.result = &service.ActionResult{Action: service.ActionDeclareDead, Affected: 1}

		rr := f.do(postForm("/admin/actions/", form("declare_dead", "1"), csrfCookie(), sessionCookie()))

		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/admin/?action=declare_dead&applied=1", rr.Header().Get("Location"))
	})

	tests := []struct {
		name   string
		form   url.Values
		runErr error
		status int
		runs   int
	}{
		{name: "no organizations", form: form("scan_dummy"), status: http.StatusBadRequest},
		{name: "non numeric id", form: form("scan_dummy", "abc"), status: http.StatusBadRequest},
		{name: "no action", form: form("", "1"), status: http.StatusBadRequest},
		{
			name:   "unknown action",
			form:   form("format_c", "1"),
			runErr: service.ErrUnknownAction,
			status: http.StatusBadRequest,
			runs:   1,
		},
		{
			name:   "nothing resolvable",
			form:   form("scan_dummy", "42"),
			runErr: service.ErrNoOrganizations,
			status: http.StatusBadRequest,
			runs:   1,
		},
		{
			name:   "broker failure",
			form:   form("scan_dummy", "1"),
			runErr: errors.New("broker down"),
			status: http.StatusInternalServerError,
			runs:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.admin.runErr = tt.runErr

			rr := f.do(postForm("/admin/actions/", tt.form, csrfCookie(), sessionCookie()))

			assert.Equal(t, tt.status, rr.Code)
			assert.Len(t, f.admin.runs, tt.runs)
		})
	}

	t.Run("csrf is required", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		bad := form("scan_dummy", "1")
		bad.Del("csrfmiddlewaretoken")

		rr := f.do(postForm("/admin/actions/", bad, csrfCookie(), sessionCookie()))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Empty(t, f.admin.runs)
	})
}

func TestTaskStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	known := task.NewTask("scan_dummy", json.RawMessage(`{"organization_ids":[1]}`))
	f.admin.tasks = map[uuid.UUID]*task.Task{known.ID: known}

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/tasks/"+id, nil)
		req.AddCookie(sessionCookie())
		return f.do(req)
	}

	rr := get(known.ID.String())
	require.Equal(t, http.StatusOK, rr.Code)
	var got task.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, known.ID, got.ID)
	assert.Equal(t, task.TaskStatusPending, got.Status)

	assert.Equal(t, http.StatusNotFound, get(uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("not-a-uuid").Code)
}
