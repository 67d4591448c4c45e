package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestSafeNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		next string
		want string
	}{
		{next: "", want: "/admin/"},
		{next: "/admin/tasks/1", want: "/admin/tasks/1"},
		{next: "/admin/?queued=1", want: "/admin/?queued=1"},
		{next: "https://evil.example/", want: "/admin/"},
		{next: "//evil.example/", want: "/admin/"},
		{next: "/\\evil.example", want: "/admin/"},
		{next: "admin/", want: "/admin/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeNext(tt.next, "/admin/"), tt.next)
	}
}

func TestEscapeNext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/admin/", escapeNext("/admin/"))
	assert.Equal(t, "/admin/tasks/a%26b", escapeNext("/admin/tasks/a&b"))
}

func TestAllowedHosts_Wildcard(t *testing.T) {
	t.Parallel()

	called := false
	h := AllowedHosts([]string{"faalkaart.nl", "*"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "anything.example"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestAllowedHosts_EmptyHost(t *testing.T) {
	t.Parallel()

	h := AllowedHosts([]string{"localhost"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = ""
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	var traceID string
	var hasLogger bool
	h := NewTraceMiddleware(testLogger())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r.Context())
		hasLogger = logger.FromContext(r.Context()) != nil
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, traceID, TraceIDLength*2)
	assert.True(t, hasLogger)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	t.Parallel()

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
