package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/fossabot/failmap/internal/platform/logger"
)

const oneDay = 24 * 60 * 60

type indexPage struct {
	page
	ScriptTag template.HTML
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", indexPage{
		page:      h.newPage(r, "index.title"),
		ScriptTag: h.scriptTag,
	})
}

type manifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

type webAppManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	ManifestVersion int            `json:"manifest_version"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	Orientation     string         `json:"orientation"`
	Icons           []manifestIcon `json:"icons"`
}

func (h *handler) webManifest(w http.ResponseWriter, r *http.Request) {
	loc := h.translator.Localizer(r.Header.Get("Accept-Language"))
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(oneDay))
	RespondWithJSON(w, r, http.StatusOK, webAppManifest{
		Name:            loc.T("index.title"),
		ShortName:       loc.T("index.title"),
		Description:     loc.T("index.subtitle"),
		ManifestVersion: 3,
		StartURL:        ".",
		Display:         "standalone",
		BackgroundColor: "#fff",
		Orientation:     "any",
		Icons: []manifestIcon{
			{Src: "static/images/red-dot.png", Sizes: "16x16", Type: "image/png"},
		},
	})
}

const robotsTxt = "User-agent: *\nDisallow: /admin/\nDisallow: /data/\n"

func (h *handler) robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(oneDay))
	if _, err := w.Write([]byte(robotsTxt)); err != nil {
		logger.FromContext(r.Context()).Debug("failed to write robots.txt", "error", err)
	}
}

const securityText = "Contact: https://gitlab.com/failmap/\nPreferred-Languages: nl, en\n"

func (h *handler) securityTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(oneDay))
	if _, err := w.Write([]byte(securityText)); err != nil {
		logger.FromContext(r.Context()).Debug("failed to write security.txt", "error", err)
	}
}

func (h *handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Service unavailable", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logger.FromContext(r.Context()).Error("failed to write health check response", "error", err)
	}
}
