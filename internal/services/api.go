// API service for authenticated requests to the VideoTube REST API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vtx/internal/session"
	"github.com/desertthunder/vtx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the API root used when none is configured.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	// RefreshPath is the endpoint exchanging the refresh cookie for a new access token.
	RefreshPath = "/users/refresh-token"
)

// BodyFunc opens a fresh request body. It is called once per attempt so a body can be replayed after a refresh.
type BodyFunc func() (io.ReadCloser, error)

// BytesBody replays b on every attempt.
func BytesBody(b []byte) BodyFunc {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
}

// JSONBody encodes v once and replays the encoded bytes.
func JSONBody(v any) (BodyFunc, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return BytesBody(data), nil
}

// Request describes a call relative to the service base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        BodyFunc
	ContentType string
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty response body", shared.ErrAPIRequest)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Message returns the "message" field of a JSON body, if present.
func (r *APIResponse) Message() string {
	if m, ok := r.JSONData.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return ""
}

// err converts a non-2xx response into an [*APIError].
func (r *APIResponse) err() error {
	if r.StatusCode >= 200 && r.StatusCode < 400 {
		return nil
	}
	return &APIError{StatusCode: r.StatusCode, Message: r.Message(), Body: r.Body}
}

// APIError is returned alongside the response for any status >= 400.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// Is matches [shared.ErrUnauthorized] for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == shared.ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized)
}

// APIServiceOpts configures [NewAPIService]. Zero values select defaults.
type APIServiceOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Session    *session.Store
	Logger     *log.Logger

	// CollapseRefresh shares one in-flight refresh between concurrent 401s.
	CollapseRefresh bool
}

// APIService sends requests with the session's bearer token and performs one refresh-and-retry on 401.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
	logger     *log.Logger

	collapse bool
	inflight singleflight.Group
}

// NewAPIService creates a new API service instance for the VideoTube API.
func NewAPIService(opts APIServiceOpts) *APIService {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	store := opts.Session
	if store == nil {
		// A memory-backed store cannot fail to load.
		store, _ = session.NewStore(nil, session.WithLogger(logger))
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
		session:    store,
		logger:     logger,
		collapse:   opts.CollapseRefresh,
	}
}

// BaseURL returns the API root.
func (a *APIService) BaseURL() string { return a.baseURL }

// Session returns the store the service reads tokens from.
func (a *APIService) Session() *session.Store { return a.session }

// Send dispatches r with the current token.
//
// A 401 triggers a single refresh. If the refresh succeeds r is replayed once with the new token and that result is final.
// If it fails the session is expired and the original 401 is returned.
//
// Any status >= 400 yields both the response and an [*APIError].
func (a *APIService) Send(ctx context.Context, r *Request) (*APIResponse, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: request is required", shared.ErrInvalidArgument)
	}
	return a.send(ctx, r, a.session.AccessToken(), false)
}

func (a *APIService) send(ctx context.Context, r *Request, token string, retried bool) (*APIResponse, error) {
	resp, err := a.dispatch(ctx, r, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || retried {
		return resp, resp.err()
	}

	fresh, err := a.refreshToken(ctx)
	// A canceled refresh, including one shared with a canceled caller, never reached a verdict on the refresh credential.
	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		a.logger.Debug("token refresh canceled", "path", r.Path, "error", err)
		return resp, resp.err()
	}
	if err != nil {
		a.logger.Warn("token refresh failed", "path", r.Path, "error", err)
		a.session.Expire(fmt.Errorf("%w: %w", shared.ErrSessionExpired, err))
		return resp, resp.err()
	}

	a.logger.Info("access token refreshed, retrying", "method", r.Method, "path", r.Path)
	return a.send(ctx, r, fresh, true)
}

// dispatch performs a single attempt. An empty token sends no Authorization header.
func (a *APIService) dispatch(ctx context.Context, r *Request, token string) (*APIResponse, error) {
	fullURL, err := a.resolve(r.Path, r.Query)
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.ReadCloser
	if r.Body != nil {
		if body, err = r.Body(); err != nil {
			return nil, fmt.Errorf("failed to open request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	req.Header.Set("Accept", "application/json")

	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	a.logger.Debug("sending request", "method", method, "url", fullURL, "authenticated", token != "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return readResponse(resp)
}

func readResponse(resp *http.Response) (*APIResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

func (a *APIService) resolve(path string, query url.Values) (string, error) {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(a.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("%w: bad request path %q: %v", shared.ErrInvalidArgument, path, err)
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// refreshToken obtains and stores a new access token. With CollapseRefresh, concurrent callers share one refresh call.
func (a *APIService) refreshToken(ctx context.Context) (string, error) {
	if !a.collapse {
		return a.refresh(ctx)
	}

	v, err, _ := a.inflight.Do(RefreshPath, func() (any, error) {
		return a.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh calls the refresh endpoint without a bearer token; the cookie jar supplies the refresh credential.
func (a *APIService) refresh(ctx context.Context) (string, error) {
	resp, err := a.dispatch(ctx, &Request{Method: http.MethodPost, Path: RefreshPath}, "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, resp.err())
	}

	var payload struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", shared.ErrRefreshFailed, err)
	}
	if payload.Data.AccessToken == "" {
		return "", fmt.Errorf("%w: response carried no access token", shared.ErrRefreshFailed)
	}

	if err := a.session.SetAccessToken(payload.Data.AccessToken); err != nil {
		a.logger.Warn("refreshed token not persisted", "error", err)
	}

	return payload.Data.AccessToken, nil
}

// Get performs a GET request to path.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Send(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Delete performs a DELETE request to path.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.Send(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Post performs a POST request with the given JSON bytes.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.Send(ctx, rawJSONRequest(http.MethodPost, path, data))
}

// Patch performs a PATCH request with the given JSON bytes.
func (a *APIService) Patch(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.Send(ctx, rawJSONRequest(http.MethodPatch, path, data))
}

// PostJSON encodes v and POSTs it.
func (a *APIService) PostJSON(ctx context.Context, path string, v any) (*APIResponse, error) {
	body, err := JSONBody(v)
	if err != nil {
		return nil, err
	}
	return a.Send(ctx, &Request{Method: http.MethodPost, Path: path, Body: body, ContentType: "application/json"})
}

// PatchJSON encodes v and PATCHes it.
func (a *APIService) PatchJSON(ctx context.Context, path string, v any) (*APIResponse, error) {
	body, err := JSONBody(v)
	if err != nil {
		return nil, err
	}
	return a.Send(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body, ContentType: "application/json"})
}

// UploadJSON validates jsonData and POSTs it to path.
func (a *APIService) UploadJSON(ctx context.Context, path string, jsonData []byte) (*APIResponse, error) {
	if err := shared.ValidateJSON(jsonData); err != nil {
		return nil, err
	}
	return a.Post(ctx, path, jsonData)
}

func rawJSONRequest(method, path string, data []byte) *Request {
	r := &Request{Method: method, Path: path}
	if data != nil {
		r.Body = BytesBody(data)
		r.ContentType = "application/json"
	}
	return r
}
