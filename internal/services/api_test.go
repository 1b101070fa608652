package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/vtx/internal/session"
	"github.com/desertthunder/vtx/internal/shared"
	tu "github.com/desertthunder/vtx/internal/testing"
)

func newTestStore(t *testing.T, token string) *session.Store {
	t.Helper()
	store, err := session.NewStore(session.NewMemoryCredentialStore(token))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newTestAPI(t *testing.T, baseURL, token string) (*APIService, *session.Store) {
	t.Helper()
	store := newTestStore(t, token)
	return NewAPIService(APIServiceOpts{BaseURL: baseURL, Session: store}), store
}

func writeRefresh(w http.ResponseWriter, token string) {
	tu.WriteEnvelope(w, http.StatusOK, map[string]string{"accessToken": token, "refreshToken": "r2"}, "Access token refreshed")
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService(APIServiceOpts{BaseURL: "http://example.com/api/v1/", HTTPClient: customClient})

			if srv.baseURL != "http://example.com/api/v1" {
				t.Errorf("expected trimmed baseURL, got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty Options", func(t *testing.T) {
			srv := NewAPIService(APIServiceOpts{})

			if srv.BaseURL() != DefaultBaseURL {
				t.Errorf("expected default baseURL %s, got %s", DefaultBaseURL, srv.BaseURL())
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
			if srv.Session() == nil {
				t.Fatal("expected a session store")
			}
			if srv.Session().AccessToken() != "" {
				t.Error("expected empty token")
			}
		})
	})

	t.Run("Authorization Header", func(t *testing.T) {
		t.Run("Attached When Token Present", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer abc123" {
					t.Errorf("expected 'Bearer abc123', got %q", got)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "abc123")
			if _, err := srv.Get(context.Background(), "/videos"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Omitted Without Token", func(t *testing.T) {
			var called bool
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if got := r.Header.Get("Authorization"); got != "" {
					t.Errorf("expected no Authorization header, got %q", got)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			if _, err := srv.Get(context.Background(), "/videos"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !called {
				t.Error("expected request to dispatch")
			}
		})

		t.Run("Reads Token On Every Request", func(t *testing.T) {
			var seen []string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = append(seen, r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv, store := newTestAPI(t, server.URL, "")
			srv.Get(context.Background(), "/a")
			store.SetAccessToken("tok1")
			srv.Get(context.Background(), "/b")

			if len(seen) != 2 || seen[0] != "" || seen[1] != "Bearer tok1" {
				t.Errorf("unexpected headers: %v", seen)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/api/v1/test" {
					t.Errorf("expected path '/api/v1/test', got %s", r.URL.Path)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL+"/api/v1", "")
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
			if resp.JSONData == nil {
				t.Error("expected JSONData to be populated")
			}
		})

		t.Run("Successful Request With Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if resp.JSONData != nil {
				t.Error("expected JSONData to be nil")
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("expected body 'plain text response', got %s", string(resp.Body))
			}
		})

		t.Run("Query Parameters", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("query"); got != "go tutorials" {
					t.Errorf("expected query 'go tutorials', got %q", got)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			_, err := srv.Send(context.Background(), &Request{Path: "/videos", Query: url.Values{"query": {"go tutorials"}}})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Invalid Path", func(t *testing.T) {
			srv, _ := newTestAPI(t, "http://example.com", "")
			_, err := srv.Get(context.Background(), "/test\x00invalid")

			if err == nil {
				t.Fatal("expected error for invalid URL")
			}
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("Nil Request", func(t *testing.T) {
			srv, _ := newTestAPI(t, "http://example.com", "")
			resp, err := srv.Send(context.Background(), nil)

			if resp != nil || !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument and no response, got %v, %v", resp, err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			srv := NewAPIService(APIServiceOpts{BaseURL: "http://example.com", HTTPClient: client})
			_, err := srv.Get(context.Background(), "/test")

			if err == nil {
				t.Fatal("expected error for failed request")
			}
			if !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			srv := NewAPIService(APIServiceOpts{BaseURL: "http://example.com", HTTPClient: client})
			_, err := srv.Get(context.Background(), "/test")

			if err == nil {
				t.Fatal("expected error for failed body read")
			}
			if !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			srv, _ := newTestAPI(t, server.URL, "")
			_, err := srv.Get(ctx, "/test")

			if err == nil {
				t.Error("expected error for canceled context")
			}
		})

		t.Run("Response Headers Are Preserved", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Custom-Header", "test-value")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.Headers.Get("X-Custom-Header") != "test-value" {
				t.Errorf("expected custom header 'test-value', got %s", resp.Headers.Get("X-Custom-Header"))
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
				}

				body, _ := io.ReadAll(r.Body)
				var data map[string]string
				if err := json.Unmarshal(body, &data); err != nil {
					t.Errorf("failed to unmarshal request body: %v", err)
				}
				if data["test"] != "data" {
					t.Errorf("expected request data 'test:data', got %v", data)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]string{"id": "123"})
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			requestData, _ := json.Marshal(map[string]string{"test": "data"})
			resp, err := srv.Post(context.Background(), "/test", requestData)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("expected status 201, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
		})

		t.Run("Empty Request Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if len(body) != 0 {
					t.Errorf("expected empty body, got %d bytes", len(body))
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			_, err := srv.Post(context.Background(), "/test", nil)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	})

	t.Run("PatchJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch {
				t.Errorf("expected PATCH method, got %s", r.Method)
			}
			var data map[string]string
			json.NewDecoder(r.Body).Decode(&data)
			if data["fullname"] != "Alice A" {
				t.Errorf("unexpected body %v", data)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		srv, _ := newTestAPI(t, server.URL, "tok")
		if _, err := srv.PatchJSON(context.Background(), "/users/update-account", map[string]string{"fullname": "Alice A"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("UploadJSON", func(t *testing.T) {
		t.Run("Calls Post Method", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
				}

				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"uploaded": true}`))
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			jsonData, _ := json.Marshal(map[string]any{"key": "value"})
			resp, err := srv.UploadJSON(context.Background(), "/upload", jsonData)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
		})

		t.Run("Rejects Invalid JSON", func(t *testing.T) {
			srv, _ := newTestAPI(t, "http://example.com", "")
			_, err := srv.UploadJSON(context.Background(), "/upload", []byte("{not json"))
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("APIError", func(t *testing.T) {
		t.Run("Error Status Returns Response And Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tu.WriteEnvelope(w, http.StatusNotFound, nil, "Video not found")
			}))
			defer server.Close()

			srv, _ := newTestAPI(t, server.URL, "")
			resp, err := srv.Get(context.Background(), "/videos/missing")

			if resp == nil || resp.StatusCode != http.StatusNotFound {
				t.Fatalf("expected 404 response, got %+v", resp)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if errors.Is(err, shared.ErrUnauthorized) {
				t.Error("404 should not match ErrUnauthorized")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.Message != "Video not found" {
				t.Errorf("expected message 'Video not found', got %q", apiErr.Message)
			}
			if !strings.Contains(apiErr.Error(), "404") {
				t.Errorf("expected status in error string, got %s", apiErr.Error())
			}
		})

		t.Run("Without Message", func(t *testing.T) {
			err := &APIError{StatusCode: http.StatusBadGateway}
			if err.Error() != "API error: status 502" {
				t.Errorf("unexpected error string %q", err.Error())
			}
		})

		t.Run("Decode Empty Body", func(t *testing.T) {
			resp := &APIResponse{StatusCode: http.StatusOK}
			var v map[string]any
			if err := resp.Decode(&v); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})
}

func TestAPIServiceRefresh(t *testing.T) {
	t.Run("401 Refreshes And Retries Once", func(t *testing.T) {
		var refreshes, protected int32
		var refreshAuth string

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshes, 1)
			refreshAuth = r.Header.Get("Authorization")
			if c, err := r.Cookie("refreshToken"); err != nil || c.Value != "r1" {
				t.Errorf("expected refresh cookie r1, got %v %v", c, err)
			}
			writeRefresh(w, "fresh")
		})
		mux.HandleFunc("GET /users/current-user", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&protected, 1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "jwt expired")
				return
			}
			tu.WriteEnvelope(w, http.StatusOK, map[string]string{"_id": "u1", "username": "alice"}, "ok")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		jar, _ := cookiejar.New(nil)
		u, _ := url.Parse(server.URL)
		jar.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: "r1", Path: "/"}})

		store := newTestStore(t, "stale")
		srv := NewAPIService(APIServiceOpts{BaseURL: server.URL, HTTPClient: &http.Client{Jar: jar}, Session: store})

		resp, err := srv.Get(context.Background(), "/users/current-user")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
		if refreshes != 1 {
			t.Errorf("expected 1 refresh, got %d", refreshes)
		}
		if protected != 2 {
			t.Errorf("expected original + 1 retry, got %d", protected)
		}
		if refreshAuth != "" {
			t.Errorf("refresh call must not carry Authorization, got %q", refreshAuth)
		}
		if store.AccessToken() != "fresh" {
			t.Errorf("expected stored token 'fresh', got %q", store.AccessToken())
		}
	})

	t.Run("Refresh Failure Expires Session And Returns Original 401", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "Invalid refresh token")
		})
		mux.HandleFunc("GET /users/watch-history", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "original")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		creds := session.NewMemoryCredentialStore("stale")
		store, _ := session.NewStore(creds)
		var events []session.Event
		store.Subscribe(func(e session.Event) { events = append(events, e) })

		srv := NewAPIService(APIServiceOpts{BaseURL: server.URL, Session: store})
		resp, err := srv.Get(context.Background(), "/users/watch-history")

		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected original 401 response, got %+v", resp)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "original" {
			t.Errorf("expected original 401 error, got %v", err)
		}
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if errors.Is(err, shared.ErrRefreshFailed) {
			t.Error("returned error must be the original failure, not the refresh failure")
		}

		if store.AccessToken() != "" {
			t.Errorf("expected token cleared, got %q", store.AccessToken())
		}
		if persisted, _ := creds.Load(); persisted != "" {
			t.Errorf("expected persisted token erased, got %q", persisted)
		}

		if len(events) != 1 || events[0].Kind != session.EventExpired {
			t.Fatalf("expected one EventExpired, got %+v", events)
		}
		if !errors.Is(events[0].Cause, shared.ErrRefreshFailed) {
			t.Errorf("expected cause ErrRefreshFailed, got %v", events[0].Cause)
		}
		if !errors.Is(events[0].Cause, shared.ErrSessionExpired) {
			t.Errorf("expected cause ErrSessionExpired, got %v", events[0].Cause)
		}
	})

	t.Run("Canceled Refresh Keeps Session", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			cancel()
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		mux.HandleFunc("GET /users/watch-history", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "original")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		creds := session.NewMemoryCredentialStore("stale")
		store, _ := session.NewStore(creds)
		var events []session.Event
		store.Subscribe(func(e session.Event) { events = append(events, e) })

		srv := NewAPIService(APIServiceOpts{BaseURL: server.URL, Session: store})
		resp, err := srv.Get(ctx, "/users/watch-history")

		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected original 401 response, got %+v", resp)
		}
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if store.AccessToken() != "stale" {
			t.Errorf("expected token kept, got %q", store.AccessToken())
		}
		if persisted, _ := creds.Load(); persisted != "stale" {
			t.Errorf("expected persisted token kept, got %q", persisted)
		}
		if len(events) != 0 {
			t.Errorf("expected no session events, got %+v", events)
		}
	})

	t.Run("Malformed Refresh Response Counts As Failure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteEnvelope(w, http.StatusOK, map[string]string{}, "ok")
		})
		mux.HandleFunc("GET /dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, store := newTestAPI(t, server.URL, "stale")
		resp, _ := srv.Get(context.Background(), "/dashboard/stats")

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if store.AccessToken() != "" {
			t.Error("expected session cleared")
		}
	})

	t.Run("Refresh Transport Error Counts As Failure", func(t *testing.T) {
		var calls int32
		client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			if strings.HasSuffix(r.URL.Path, RefreshPath) {
				return nil, errors.New("connection reset")
			}
			return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
		})}

		store := newTestStore(t, "stale")
		srv := NewAPIService(APIServiceOpts{BaseURL: "http://example.com", HTTPClient: client, Session: store})
		resp, err := srv.Get(context.Background(), "/videos")

		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected original 401, got %+v", resp)
		}
		if strings.Contains(err.Error(), "connection reset") {
			t.Errorf("refresh error leaked to caller: %v", err)
		}
		if calls != 2 {
			t.Errorf("expected original + refresh, got %d calls", calls)
		}
		if store.AccessToken() != "" {
			t.Error("expected session cleared")
		}
	})

	t.Run("Retry 401 Is Not Refreshed Again", func(t *testing.T) {
		var refreshes, protected int32

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshes, 1)
			writeRefresh(w, "fresh")
		})
		mux.HandleFunc("GET /dashboard/videos", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&protected, 1)
			tu.WriteEnvelope(w, http.StatusUnauthorized, nil, "still unauthorized")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, store := newTestAPI(t, server.URL, "stale")
		var expired bool
		store.Subscribe(func(e session.Event) {
			if e.Kind == session.EventExpired {
				expired = true
			}
		})

		resp, err := srv.Get(context.Background(), "/dashboard/videos")

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if !IsUnauthorized(err) {
			t.Errorf("expected unauthorized error, got %v", err)
		}
		if refreshes != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", refreshes)
		}
		if protected != 2 {
			t.Errorf("expected exactly 2 attempts, got %d", protected)
		}
		if expired {
			t.Error("a 401 on the retry should not expire the session")
		}
		if store.AccessToken() != "fresh" {
			t.Errorf("expected refreshed token kept, got %q", store.AccessToken())
		}
	})

	t.Run("Non-401 Errors Pass Through", func(t *testing.T) {
		var refreshes int32
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshes, 1)
		})
		mux.HandleFunc("GET /videos/v1", func(w http.ResponseWriter, r *http.Request) {
			tu.WriteEnvelope(w, http.StatusForbidden, nil, "forbidden")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, store := newTestAPI(t, server.URL, "tok")
		resp, err := srv.Get(context.Background(), "/videos/v1")

		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if refreshes != 0 {
			t.Errorf("expected no refresh, got %d", refreshes)
		}
		if store.AccessToken() != "tok" {
			t.Error("token should be untouched")
		}
	})

	t.Run("Network Errors Pass Through Without Refresh", func(t *testing.T) {
		mock := tu.NewMockRoundTripper(nil, errors.New("dial tcp: connection refused"))
		srv := NewAPIService(APIServiceOpts{
			BaseURL:    "http://example.com",
			HTTPClient: &http.Client{Transport: mock},
			Session:    newTestStore(t, "tok"),
		})

		_, err := srv.Get(context.Background(), "/videos")
		if err == nil || !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("expected transport error, got %v", err)
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 transport call, got %d", mock.Calls())
		}
		if srv.Session().AccessToken() != "tok" {
			t.Error("token should be untouched")
		}
	})

	t.Run("JSON Body Is Replayed On Retry", func(t *testing.T) {
		var bodies []string
		var mu sync.Mutex

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			writeRefresh(w, "fresh")
		})
		mux.HandleFunc("POST /comment/v1", func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			mu.Unlock()
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			tu.WriteEnvelope(w, http.StatusCreated, map[string]string{"_id": "c1"}, "ok")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, _ := newTestAPI(t, server.URL, "stale")
		resp, err := srv.PostJSON(context.Background(), "/comment/v1", map[string]string{"content": "hi"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("expected 201, got %d", resp.StatusCode)
		}
		if len(bodies) != 2 {
			t.Fatalf("expected 2 attempts, got %d", len(bodies))
		}
		if bodies[0] != bodies[1] || !strings.Contains(bodies[0], `"content":"hi"`) {
			t.Errorf("bodies differ or are wrong: %q vs %q", bodies[0], bodies[1])
		}
	})

	t.Run("Multipart Body Is Replayed On Retry", func(t *testing.T) {
		dir := t.TempDir()
		file := tu.MustWriteFile(t, dir, "clip.mp4", "fake video bytes")

		var bodies [][]byte
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			writeRefresh(w, "fresh")
		})
		mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			bodies = append(bodies, b)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, _ := newTestAPI(t, server.URL, "stale")
		form := NewMultipartForm().AddField("title", "clip").AddFile("videoFile", file)
		if _, err := srv.Send(context.Background(), form.Request(http.MethodPost, "/upload")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(bodies) != 2 {
			t.Fatalf("expected 2 attempts, got %d", len(bodies))
		}
		if !bytes.Equal(bodies[0], bodies[1]) {
			t.Error("expected identical multipart bodies on retry")
		}
		if !bytes.Contains(bodies[1], []byte("fake video bytes")) {
			t.Error("expected file content in body")
		}
	})

	t.Run("Concurrent 401s Refresh Independently By Default", func(t *testing.T) {
		const n = 4
		var refreshes int32
		var arrived sync.WaitGroup
		arrived.Add(n)

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshes, 1)
			writeRefresh(w, "fresh")
		})
		mux.HandleFunc("GET /videos", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "Bearer stale" {
				arrived.Done()
				arrived.Wait()
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv, store := newTestAPI(t, server.URL, "stale")
		runConcurrently(t, n, func() error {
			_, err := srv.Get(context.Background(), "/videos")
			return err
		})

		if refreshes != n {
			t.Errorf("expected %d refreshes, got %d", n, refreshes)
		}
		if store.AccessToken() != "fresh" {
			t.Errorf("expected token 'fresh', got %q", store.AccessToken())
		}
	})

	t.Run("Collapsed Refresh Issues One Call", func(t *testing.T) {
		const n = 5
		var refreshes int32
		var arrived sync.WaitGroup
		arrived.Add(n)

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshes, 1)
			time.Sleep(150 * time.Millisecond)
			writeRefresh(w, "fresh")
		})
		mux.HandleFunc("GET /videos", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "Bearer stale" {
				arrived.Done()
				arrived.Wait()
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := newTestStore(t, "stale")
		srv := NewAPIService(APIServiceOpts{BaseURL: server.URL, Session: store, CollapseRefresh: true})
		runConcurrently(t, n, func() error {
			_, err := srv.Get(context.Background(), "/videos")
			return err
		})

		if refreshes != 1 {
			t.Errorf("expected 1 refresh, got %d", refreshes)
		}
	})

	t.Run("Collapsed Refresh Canceled By First Caller Keeps Session", func(t *testing.T) {
		refreshStarted := make(chan struct{})
		var once sync.Once

		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			once.Do(func() { close(refreshStarted) })
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		mux.HandleFunc("GET /videos", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("caller") == "second" {
				<-refreshStarted
			}
			w.WriteHeader(http.StatusUnauthorized)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		creds := session.NewMemoryCredentialStore("stale")
		store, _ := session.NewStore(creds)
		var expired atomic.Int32
		store.Subscribe(func(e session.Event) {
			if e.Kind == session.EventExpired {
				expired.Add(1)
			}
		})
		srv := NewAPIService(APIServiceOpts{BaseURL: server.URL, Session: store, CollapseRefresh: true})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errs := make(chan error, 2)
		go func() {
			_, err := srv.Get(ctx, "/videos?caller=first")
			errs <- err
		}()
		go func() {
			_, err := srv.Get(context.Background(), "/videos?caller=second")
			errs <- err
		}()

		<-refreshStarted
		time.Sleep(100 * time.Millisecond)
		cancel()

		for range 2 {
			if err := <-errs; !errors.Is(err, shared.ErrUnauthorized) {
				t.Errorf("expected original 401, got %v", err)
			}
		}
		if n := expired.Load(); n != 0 {
			t.Errorf("expected no expiry, got %d", n)
		}
		if persisted, _ := creds.Load(); persisted != "stale" {
			t.Errorf("expected persisted token kept, got %q", persisted)
		}
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func runConcurrently(t *testing.T, n int, fn func() error) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- fn()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
}
