package web

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionCookieName is the admin session cookie.
const SessionCookieName = "sessionid"

// NewTraceMiddleware adds a trace ID to the request context and stores a
// request scoped logger carrying it.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := SetTraceID(r.Context())
			log := base.With(
				slog.String("trace_id", GetTraceID(ctx)),
				slog.String("request_id", middleware.GetReqID(ctx)),
			)
			ctx = logger.WithContext(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs one record per request once the response is written.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.FromContext(r.Context()).Log(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr))
		}()
		next.ServeHTTP(ww, r)
	})
}

// AllowedHosts rejects requests whose Host header is not in hosts with 400.
// "*" allows every host and a leading dot matches the domain and all of its
// subdomains.
func AllowedHosts(hosts []string) func(http.Handler) http.Handler {
	allowAll := false
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "*" {
			allowAll = true
		}
		if h != "" {
			patterns = append(patterns, strings.Trim(h, "[]"))
		}
	}

	return func(next http.Handler) http.Handler {
		if allowAll {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := requestHost(r.Host)
			if !hostAllowed(host, patterns) {
				logger.FromContext(r.Context()).Warn("disallowed host", "host", r.Host)
				http.Error(w, "Bad Request (400)", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestHost(hostport string) string {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

func hostAllowed(host string, patterns []string) bool {
	if host == "" {
		return false
	}
	for _, p := range patterns {
		if strings.HasPrefix(p, ".") {
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}

// RequireSession resolves the session cookie into a user. Anonymous requests
// are redirected to the login page with the current path as next.
func RequireSession(sessions auth.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}
			user, _, err := sessions.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				logger.FromContext(r.Context()).Debug("session rejected", "error", err)
				clearCookie(w, SessionCookieName)
				redirectToLogin(w, r)
				return
			}
			ctx := WithUser(r.Context(), user)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user", user.Username))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Path
	if r.Method != http.MethodGet {
		next = adminPath
	}
	http.Redirect(w, r, loginPath+"?next="+escapeNext(next), http.StatusFound)
}

// escapeNext query-escapes a local path but keeps its slashes readable.
func escapeNext(p string) string {
	return strings.ReplaceAll(url.QueryEscape(p), "%2F", "/")
}

// safeNext returns next when it is a local absolute path, else fallback.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") ||
		strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Debug marks every request context with WithDebug.
func Debug(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithDebug(r.Context())))
	})
}
