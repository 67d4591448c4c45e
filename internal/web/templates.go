package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/fossabot/failmap/internal/i18n"
	"github.com/fossabot/failmap/internal/platform/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// page is the data shared by every template.
type page struct {
	L         *i18n.Localizer
	Lang      string
	Title     string
	CSRFToken string
}

// render executes a template into a buffer so that template errors become a
// clean 500 instead of a half written page.
func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.FromContext(r.Context()).Error("failed to render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context()).Debug("failed to write page", "template", name, "error", err)
	}
}

func (h *handler) newPage(r *http.Request, titleID string) page {
	loc := h.translator.Localizer(r.Header.Get("Accept-Language"))
	return page{
		L:     loc,
		Lang:  loc.Language(titleID),
		Title: loc.T(titleID),
	}
}
