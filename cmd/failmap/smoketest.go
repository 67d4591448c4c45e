package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/staticfiles"
	"github.com/spf13/cobra"
)

const maxSmokeBody = 1 << 20

var scriptSrc = regexp.MustCompile(`src="([^"]+\.js)"`)

func newSmokeTestCmd(_ *cli) *cobra.Command {
	var (
		username string
		password string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "smoketest <base-url>",
		Short: "Check a running front-end end to end",
		Long: "Check a running front-end: the index page, static files, the compiled\n" +
			"bundle and an admin login with the development fixture account.",
		Example: "  failmap smoketest http://localhost:8000",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newSmokeClient(timeout)
			if err != nil {
				return err
			}
			s := &smokeTest{client: client, username: username, password: password}
			return s.run(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&password, "password", "faalkaart", "admin password")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout per request")
	return cmd
}

// newSmokeClient keeps cookies between requests and does not follow
// redirects so that they can be asserted.
func newSmokeClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

type smokeTest struct {
	client   *http.Client
	base     *url.URL
	username string
	password string
}

type smokeCheck struct {
	name string
	run  func(ctx context.Context) error
}

// run executes the checks in order and stops at the first failure.
func (s *smokeTest) run(ctx context.Context, baseURL string, out io.Writer) error {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("invalid base url %q", baseURL)
	}
	s.base = base

	checks := []smokeCheck{
		{name: "index page contains MSPAINT.EXE", run: s.checkIndex},
		{name: "static image is served", run: s.checkStaticImage},
		{name: "compiled bundle from the manifest is served", run: s.checkBundle},
		{name: "login page sets a CSRF cookie", run: s.checkLoginForm},
		{name: "admin login redirects", run: s.checkLogin},
	}
	for _, c := range checks {
		if err := c.run(ctx); err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", c.name, err)
			return fmt.Errorf("smoke test failed: %s: %w", c.name, err)
		}
		fmt.Fprintf(out, "ok   %s\n", c.name)
	}
	fmt.Fprintln(out, "smoke test passed")
	return nil
}

func (s *smokeTest) url(path string) string {
	return s.base.String() + path
}

// get fetches path and fails unless the status is want.
func (s *smokeTest) get(ctx context.Context, path string, want int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSmokeBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != want {
		return nil, fmt.Errorf("GET %s: status %d, want %d", path, resp.StatusCode, want)
	}
	return body, nil
}

func (s *smokeTest) checkIndex(ctx context.Context) error {
	body, err := s.get(ctx, "/", http.StatusOK)
	if err != nil {
		return err
	}
	if !strings.Contains(string(body), "MSPAINT.EXE") {
		return errors.New("marker MSPAINT.EXE not found")
	}
	return nil
}

func (s *smokeTest) checkStaticImage(ctx context.Context) error {
	_, err := s.get(ctx, staticfiles.URLPrefix+"images/red-dot.png", http.StatusOK)
	return err
}

func (s *smokeTest) checkBundle(ctx context.Context) error {
	body, err := s.get(ctx, staticfiles.URLPrefix+staticfiles.ManifestPath, http.StatusOK)
	if err != nil {
		return err
	}
	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if len(manifest) == 0 {
		return errors.New("manifest is empty")
	}
	for _, tag := range manifest {
		m := scriptSrc.FindStringSubmatch(tag)
		if m == nil || !strings.Contains(m[1], "CACHE/js/") {
			return fmt.Errorf("manifest entry %q references no compiled script", tag)
		}
		if _, err := s.get(ctx, m[1], http.StatusOK); err != nil {
			return err
		}
	}
	return nil
}

func (s *smokeTest) csrfCookie() string {
	for _, c := range s.client.Jar.Cookies(s.base) {
		if c.Name == auth.CSRFCookieName {
			return c.Value
		}
	}
	return ""
}

func (s *smokeTest) checkLoginForm(ctx context.Context) error {
	if _, err := s.get(ctx, "/admin/login/", http.StatusOK); err != nil {
		return err
	}
	if s.csrfCookie() == "" {
		return fmt.Errorf("no %s cookie set", auth.CSRFCookieName)
	}
	return nil
}

func (s *smokeTest) checkLogin(ctx context.Context) error {
	token := s.csrfCookie()
	if token == "" {
		return fmt.Errorf("no %s cookie set", auth.CSRFCookieName)
	}
	form := url.Values{
		auth.CSRFFieldName: {token},
		"username":         {s.username},
		"password":         {s.password},
		"next":             {"/admin/"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url("/admin/login/"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", s.url("/admin/login/"))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSmokeBody))

	if resp.StatusCode != http.StatusFound {
		return fmt.Errorf("POST /admin/login/: status %d, want %d", resp.StatusCode, http.StatusFound)
	}
	return nil
}
