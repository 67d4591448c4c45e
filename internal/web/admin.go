package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/service"
	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxFormBytes  = 1 << 20
	csrfCookieAge = 365 * oneDay
)

// csrfToken returns the request's CSRF cookie value, issuing a new cookie
// when there is none.
func (h *handler) csrfToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(auth.CSRFCookieName); err == nil && auth.CheckCSRF(c.Value, c.Value) == nil {
		return c.Value, nil
	}
	token, err := auth.NewCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieAge,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// parseForm limits and parses the body, then checks the double-submit CSRF
// token from the form field or header against the cookie.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return err
	}
	cookie, err := r.Cookie(auth.CSRFCookieName)
	if err != nil {
		return auth.ErrCSRFMismatch
	}
	submitted := r.PostFormValue(auth.CSRFFieldName)
	if submitted == "" {
		submitted = r.Header.Get(auth.CSRFHeaderName)
	}
	return auth.CheckCSRF(cookie.Value, submitted)
}

func respondFormError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrCSRFMismatch) {
		RespondWithErrorAndLog(w, r, http.StatusForbidden, GetSafeErrorMessage(err), err)
		return
	}
	RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid form", err)
}

type loginPage struct {
	page
	Next     string
	Username string
	Error    string
}

func (h *handler) loginForm(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfToken(w, r)
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, GetSafeErrorMessage(err), err)
		return
	}
	p := loginPage{
		page: h.newPage(r, "admin.title"),
		Next: safeNext(r.URL.Query().Get("next"), adminPath),
	}
	p.CSRFToken = token
	h.render(w, r, http.StatusOK, "admin_login.html", p)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		respondFormError(w, r, err)
		return
	}
	form := decodeLoginForm(r)
	log := logger.FromContext(r.Context())

	csrf, err := h.csrfToken(w, r)
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, GetSafeErrorMessage(err), err)
		return
	}
	p := loginPage{
		page:     h.newPage(r, "admin.title"),
		Next:     safeNext(form.Next, adminPath),
		Username: form.Username,
	}
	p.CSRFToken = csrf

	if err := ValidateRequest(&form); err != nil {
		log.Debug("login form rejected", "error", SanitizeValidationError(err))
		p.Error = p.L.T("admin.login.failed")
		h.render(w, r, http.StatusOK, "admin_login.html", p)
		return
	}

	token, user, err := h.sessions.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrAccessDenied) {
			log.Info("admin login failed", "username", form.Username, "error", err)
			p.Error = p.L.T("admin.login.failed")
			h.render(w, r, http.StatusOK, "admin_login.html", p)
			return
		}
		RespondWithMappedError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookieAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info("admin logged in", "username", user.Username)
	http.Redirect(w, r, p.Next, http.StatusFound)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		respondFormError(w, r, err)
		return
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		if err := h.sessions.Logout(r.Context(), c.Value); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.FromContext(r.Context()).Warn("failed to end session", "error", err)
		}
	}
	clearCookie(w, SessionCookieName)
	http.Redirect(w, r, loginPath, http.StatusFound)
}

type adminPage struct {
	page
	Welcome       string
	Message       string
	Actions       []service.Action
	Organizations []*domain.Organization
}

func (h *handler) adminIndex(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	token, err := h.csrfToken(w, r)
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, GetSafeErrorMessage(err), err)
		return
	}
	orgs, err := h.admin.Organizations(r.Context())
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	p := adminPage{
		page:          h.newPage(r, "admin.title"),
		Actions:       h.admin.Actions(),
		Organizations: orgs,
	}
	p.CSRFToken = token
	p.Welcome = p.L.Tf("admin.welcome", map[string]any{"Username": user.Username})

	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("queued")); err == nil {
		p.Message = p.L.Plural("admin.action.queued", n)
	} else if n, err := strconv.Atoi(q.Get("applied")); err == nil {
		p.Message = p.L.Tf("admin.action.applied", map[string]any{"Count": n})
	}

	h.render(w, r, http.StatusOK, "admin_index.html", p)
}

func (h *handler) runAction(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		respondFormError(w, r, err)
		return
	}
	form := decodeActionForm(r)
	if err := ValidateRequest(&form); err != nil {
		RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	start := time.Now()
	result, err := h.admin.Run(r.Context(), form.Action, form.OrganizationIDs)
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("admin action run",
		"action", result.Action,
		"organizations", result.Affected,
		"tasks", len(result.TaskIDs),
		"duration", time.Since(start))

	q := url.Values{"action": {result.Action}}
	if len(result.TaskIDs) > 0 {
		q.Set("queued", strconv.Itoa(len(result.TaskIDs)))
	} else {
		q.Set("applied", strconv.Itoa(result.Affected))
	}
	http.Redirect(w, r, adminPath+"?"+q.Encode(), http.StatusSeeOther)
}

func (h *handler) taskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}
	t, err := h.admin.TaskStatus(r.Context(), id)
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, t)
}
