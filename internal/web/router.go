package web

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/i18n"
	"github.com/fossabot/failmap/internal/service"
	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/staticfiles"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
)

const (
	loginPath   = "/admin/login/"
	adminPath   = "/admin/"
	actionsPath = "/admin/actions/"
)

// Deps are the collaborators of the front-end.
type Deps struct {
	Reports    service.ReportService
	Admin      service.AdminService
	Sessions   auth.SessionService
	Translator *i18n.Translator
	Server     config.ServerConfig
	Logger     *slog.Logger

	// Static serves /static/; see staticfiles.FS.
	Static fs.FS

	// Health reports whether the store and broker are reachable.
	Health func(ctx context.Context) error

	// SessionLifetime bounds the session cookie; zero makes it a browser
	// session cookie.
	SessionLifetime time.Duration
}

type handler struct {
	reports    service.ReportService
	admin      service.AdminService
	sessions   auth.SessionService
	translator *i18n.Translator
	templates  *template.Template
	scriptTag  template.HTML
	health     func(ctx context.Context) error
	cookieAge  int
	logger     *slog.Logger
}

// NewRouter builds the front-end handler.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Reports == nil || d.Admin == nil || d.Sessions == nil || d.Translator == nil || d.Static == nil {
		return nil, errors.New("web: missing dependency")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	tag, err := staticfiles.ScriptTag(d.Static)
	if err != nil {
		return nil, err
	}

	h := &handler{
		reports:    d.Reports,
		admin:      d.Admin,
		sessions:   d.Sessions,
		translator: d.Translator,
		templates:  tmpl,
		scriptTag:  template.HTML(tag), //nolint:gosec // generated by staticfiles.Build
		health:     d.Health,
		cookieAge:  int(d.SessionLifetime / time.Second),
		logger:     d.Logger.With("component", "web"),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Server.Debug {
		r.Use(Debug)
	}
	r.Use(NewTraceMiddleware(h.logger))
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(AllowedHosts(d.Server.AllowedHosts))
	if timeout := d.Server.RequestTimeout(); timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/", h.index)
	r.Get("/manifest.json", h.webManifest)
	r.Get("/robots.txt", h.robots)
	r.Get("/security.txt", h.securityTxt)
	r.Get("/health", h.healthCheck)

	r.Handle("/static/*", http.StripPrefix(staticfiles.URLPrefix, gzhttp.GzipHandler(staticHandler(d.Static))))

	r.Route("/data", func(r chi.Router) {
		r.Get("/report/{organization_id:[0-9]+}/{weeks_back:[0-9]{1,2}}", h.report)
		r.Get("/stats/{weeks_back:[0-9]{1,2}}", h.stats)
		r.Get("/topfail/{weeks_back:[0-9]{1,2}}", h.topfail)
		r.Get("/topwin/{weeks_back:[0-9]{1,2}}", h.topwin)
		r.Get("/terrible_urls/{weeks_back:[0-9]{1,2}}", h.terribleURLs)
		r.Get("/vulnstats/{weeks_back:[0-9]{1,2}}", h.vulnstats)
		r.Get("/latest_scans/{scan_type}", h.latestScans)
		r.Get("/updates_on_organization/{organization_id:[0-9]+}", h.organizationUpdates)
		r.Get("/wanted_urls", h.wantedURLs)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login/", h.loginForm)
		r.Post("/login/", h.login)
		r.Post("/logout/", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.sessions))
			r.Get("/", h.adminIndex)
			r.Post("/actions/", h.runAction)
			r.Get("/tasks/{id}", h.taskStatus)
		})
	})

	return r, nil
}

// staticHandler serves files from fsys without directory listings.
func staticHandler(fsys fs.FS) http.Handler {
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
