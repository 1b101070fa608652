package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/shared"
	tu "github.com/desertthunder/vtx/internal/testing"
)

// fakeVideoTube serves the endpoints the CLI needs. Only validToken is accepted as a bearer token.
type fakeVideoTube struct {
	mu         sync.Mutex
	validToken string
	nextToken  string
	refreshes  int
	requests   []string
}

func (f *fakeVideoTube) token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validToken
}

func (f *fakeVideoTube) setToken(valid, next string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validToken = valid
	f.nextToken = next
}

func (f *fakeVideoTube) seen(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.requests {
		if p == path {
			return true
		}
	}
	return false
}

func (f *fakeVideoTube) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") == "Bearer "+f.token() && f.token() != "" {
		return true
	}
	tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized request")
	return false
}

var alice = map[string]any{"_id": "u1", "username": "alice", "fullname": "Alice", "email": "alice@example.com"}

func (f *fakeVideoTube) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		var body services.LoginInput
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "Invalid user credentials")
			return
		}
		f.setToken("a1", "a2")
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true})
		tu.WriteEnvelope(w, http.StatusOK, map[string]any{"user": alice, "accessToken": "a1"}, "User logged in successfully")
	})

	mux.HandleFunc("POST /api/v1/users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refreshes++
		next := f.nextToken
		f.mu.Unlock()

		c, err := r.Cookie("refreshToken")
		if err != nil || c.Value != "r1" || next == "" {
			tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "Invalid refresh token")
			return
		}
		f.setToken(next, "")
		tu.WriteEnvelope(w, http.StatusOK, map[string]any{"accessToken": next}, "Access token refreshed")
	})

	mux.HandleFunc("POST /api/v1/users/logout", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		f.setToken("", "")
		tu.WriteEnvelope(w, http.StatusOK, map[string]any{}, "User logged out")
	})

	mux.HandleFunc("GET /api/v1/users/current-user", func(w http.ResponseWriter, r *http.Request) {
		if f.authorized(w, r) {
			tu.WriteEnvelope(w, http.StatusOK, alice, "Current user fetched")
		}
	})

	mux.HandleFunc("GET /api/v1/users/watch-history", func(w http.ResponseWriter, r *http.Request) {
		if f.authorized(w, r) {
			tu.WriteEnvelope(w, http.StatusOK, []any{map[string]any{"_id": "v1", "title": "Intro", "duration": 75, "views": 3}}, "")
		}
	})

	mux.HandleFunc("GET /api/v1/videos", func(w http.ResponseWriter, r *http.Request) {
		tu.WriteEnvelope(w, http.StatusOK, map[string]any{
			"docs": []any{
				map[string]any{"_id": "v1", "title": "Intro", "duration": 75, "views": 3, "owner": map[string]any{"_id": "u1", "username": "alice"}},
				map[string]any{"_id": "v2", "title": "Go " + r.URL.Query().Get("query"), "duration": 30},
			},
			"totalDocs": 2, "page": 1, "totalPages": 1,
		}, "")
	})

	mux.HandleFunc("GET /api/v1/playlist/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		if r.PathValue("id") != "p1" {
			tu.WriteEnvelope(w, http.StatusNotFound, nil, "Playlist not found")
			return
		}
		tu.WriteEnvelope(w, http.StatusOK, map[string]any{
			"_id": "p1", "name": "Favorites", "description": "best",
			"videos": []any{map[string]any{"_id": "v1", "title": "Intro", "duration": 75}},
		}, "")
	})

	mux.HandleFunc("GET /api/v1/dashboard/{kind}", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		if r.PathValue("kind") == "stats" {
			tu.WriteEnvelope(w, http.StatusOK, map[string]any{"totalVideos": 1, "totalViews": 3}, "")
			return
		}
		tu.WriteEnvelope(w, http.StatusInternalServerError, nil, "boom")
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

type harness struct {
	t    *testing.T
	api  *fakeVideoTube
	srv  *httptest.Server
	dir  string
	logs *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(shared.EnvAPIURL, "")

	api := &fakeVideoTube{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	return &harness{t: t, api: api, srv: srv, dir: t.TempDir(), logs: &bytes.Buffer{}}
}

func (h *harness) tokenPath() string { return filepath.Join(h.dir, "token") }

func (h *harness) config() *shared.Config {
	config := shared.DefaultConfig()
	config.API.BaseURL = h.srv.URL + "/api/v1"
	config.Session.Store = shared.SessionStoreFile
	config.Session.TokenPath = h.tokenPath()
	config.Database.Path = filepath.Join(h.dir, "vtx.db")
	return config
}

// run executes one CLI invocation with a fresh Runner, like a separate process would.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: h.config(),
		Logger: shared.NewLogger(h.logs),
		Output: output,
	})

	argv := append([]string{"vtx", "--config", filepath.Join(h.dir, "missing.toml")}, args...)
	err := newApp(runner).Run(context.Background(), argv)
	return output.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	if _, err := h.run("auth", "login", "-u", "alice", "-p", "pw"); err != nil {
		h.t.Fatalf("login failed: %v", err)
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := services.NewAPIService(services.APIServiceOpts{Logger: logger})

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.session != api.Session() {
				t.Error("expected session to come from the api service")
			}
			if runner.videotube == nil || runner.engine == nil {
				t.Error("expected services to be wired")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("without api defers wiring to bootstrap", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.api != nil || runner.videotube != nil || runner.httpClient != nil {
				t.Error("expected dependencies to be built lazily")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if names[cmd.Name] {
				t.Errorf("command %q registered twice", cmd.Name)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"auth", "videos", "playlists", "tui", "backup"} {
			if !names[want] {
				t.Errorf("expected %q command", want)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("Login Persists Session", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.run("auth", "login", "-u", "alice", "-p", "pw")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(out, "Logged in as @alice") {
			t.Errorf("unexpected output %q", out)
		}
		if got := strings.TrimSpace(tu.MustReadFile(t, h.tokenPath())); got != "a1" {
			t.Errorf("expected persisted token a1, got %q", got)
		}

		out, err = h.run("auth", "whoami")
		if err != nil {
			t.Fatalf("whoami failed: %v", err)
		}
		if !strings.Contains(out, "@alice") || !strings.Contains(out, "alice@example.com") {
			t.Errorf("unexpected whoami output %q", out)
		}
	})

	t.Run("Bad Credentials", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.run("auth", "login", "-u", "alice", "-p", "nope")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if _, statErr := os.Stat(h.tokenPath()); !os.IsNotExist(statErr) {
			t.Error("expected no token to be persisted")
		}
		if strings.Contains(h.logs.String(), "session expired") {
			t.Error("expected no expiry warning without a prior session")
		}
	})

	t.Run("Login Requires Identifier", func(t *testing.T) {
		h := newHarness(t)

		if _, err := h.run("auth", "login", "-p", "pw"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Refreshes With Persisted Cookie", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		// a1 is no longer accepted, the refresh cookie yields a2.
		h.api.setToken("a2-pending", "a2")

		out, err := h.run("auth", "whoami")
		if err != nil {
			t.Fatalf("whoami failed: %v", err)
		}
		if !strings.Contains(out, "@alice") {
			t.Errorf("unexpected output %q", out)
		}
		if h.api.refreshes != 1 {
			t.Errorf("expected 1 refresh, got %d", h.api.refreshes)
		}
		if got := strings.TrimSpace(tu.MustReadFile(t, h.tokenPath())); got != "a2" {
			t.Errorf("expected refreshed token a2 to be persisted, got %q", got)
		}
	})

	t.Run("Failed Refresh Expires Session", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		h.api.setToken("other", "")

		_, err := h.run("auth", "whoami")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if _, statErr := os.Stat(h.tokenPath()); !os.IsNotExist(statErr) {
			t.Error("expected token file to be erased")
		}
		if !strings.Contains(h.logs.String(), "session expired") {
			t.Errorf("expected expiry warning, got logs %q", h.logs.String())
		}
	})

	t.Run("Protected Command Without Session", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.run("history")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if h.api.seen("GET /api/v1/users/watch-history") {
			t.Error("expected no request for a protected endpoint")
		}
	})

	t.Run("Logout", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		out, err := h.run("auth", "logout")
		if err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if !strings.Contains(out, "Logged out") {
			t.Errorf("unexpected output %q", out)
		}
		if _, statErr := os.Stat(h.tokenPath()); !os.IsNotExist(statErr) {
			t.Error("expected token file to be erased")
		}

		out, err = h.run("auth", "status")
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(out, "not logged in") {
			t.Errorf("unexpected status output %q", out)
		}
	})

	t.Run("Ephemeral Does Not Persist", func(t *testing.T) {
		h := newHarness(t)

		if _, err := h.run("--ephemeral", "auth", "login", "-u", "alice", "-p", "pw"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if _, statErr := os.Stat(h.tokenPath()); !os.IsNotExist(statErr) {
			t.Error("expected no token file for an ephemeral session")
		}
	})

	t.Run("History", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		out, err := h.run("history")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(out, "Intro") || !strings.Contains(out, "1:15") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("Videos List JSON", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.run("videos", "list", "--query", "tips", "--json")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}

		var page struct {
			Docs []struct {
				Title string `json:"title"`
			} `json:"docs"`
		}
		if err := json.Unmarshal([]byte(out), &page); err != nil {
			t.Fatalf("invalid JSON output %q: %v", out, err)
		}
		if len(page.Docs) != 2 || page.Docs[1].Title != "Go tips" {
			t.Errorf("unexpected page %+v", page)
		}
	})

	t.Run("API Get", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.run("api", "get", "/videos")
		if err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if !strings.Contains(out, `"totalDocs": 2`) {
			t.Errorf("expected pretty JSON, got %q", out)
		}
	})

	t.Run("API Get Surfaces Status", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.run("api", "get", "/missing")
		var apiErr *services.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 APIError, got %v", err)
		}
	})

	t.Run("Backup To File", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		output := filepath.Join(h.dir, "backup.json")
		out, err := h.run("backup", "-o", output)
		if err != nil {
			t.Fatalf("backup failed: %v", err)
		}
		if !strings.Contains(out, "Backup saved") {
			t.Errorf("unexpected output %q", out)
		}

		var data struct {
			User   map[string]any `json:"user"`
			Errors []string       `json:"errors"`
		}
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, output)), &data); err != nil {
			t.Fatalf("invalid backup: %v", err)
		}
		if data.User["username"] != "alice" {
			t.Errorf("unexpected user %v", data.User)
		}
		if len(data.Errors) != 1 || !strings.HasPrefix(data.Errors[0], "/dashboard/videos") {
			t.Errorf("expected dashboard videos failure, got %v", data.Errors)
		}
	})

	t.Run("Playlists Export", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		dir := filepath.Join(h.dir, "export")
		out, err := h.run("playlists", "export", "--id", "p1", "--id", "missing", "--format", "txt", "-o", dir)
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !strings.Contains(out, "Exported: 1/2") {
			t.Errorf("unexpected output %q", out)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "p1_videos.txt"))
		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
	})

	t.Run("Playlists Export Rejects Format", func(t *testing.T) {
		h := newHarness(t)
		h.login()

		if _, err := h.run("playlists", "export", "--id", "p1", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Import Cookies From cURL", func(t *testing.T) {
		h := newHarness(t)

		curl := "curl '" + h.srv.URL + "/api/v1/users/current-user' -H 'Authorization: Bearer a1' -b 'refreshToken=r1'"
		h.api.setToken("a1", "a2")

		out, err := h.run("setup", "cookies", "--curl", curl)
		if err != nil {
			t.Fatalf("setup cookies failed: %v", err)
		}
		if !strings.Contains(out, "Imported 1 cookies") || !strings.Contains(out, "Signed in as @alice") {
			t.Errorf("unexpected output %q", out)
		}

		out, err = h.run("cookies", "list")
		if err != nil {
			t.Fatalf("cookies list failed: %v", err)
		}
		if !strings.Contains(out, "refreshToken") {
			t.Errorf("expected stored refresh cookie, got %q", out)
		}

		if _, err := h.run("cookies", "clear"); err != nil {
			t.Fatalf("cookies clear failed: %v", err)
		}
		out, _ = h.run("cookies", "list")
		if !strings.Contains(out, "No cookies stored") {
			t.Errorf("expected empty jar, got %q", out)
		}
	})
}
