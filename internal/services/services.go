// package services implements the VideoTube API client on top of [APIService]
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/session"
	"github.com/desertthunder/vtx/internal/shared"
)

// Sender is the request pipeline the VideoTube endpoints are built on.
type Sender interface {
	Send(ctx context.Context, r *Request) (*APIResponse, error)
}

// VideoTubeService maps VideoTube endpoints to typed calls and keeps the session store in step with login, logout and profile changes.
type VideoTubeService struct {
	api    Sender
	store  *session.Store
	logger *log.Logger
}

// NewVideoTubeService creates a service sending through api and updating the store api reads tokens from.
func NewVideoTubeService(api *APIService, logger *log.Logger) *VideoTubeService {
	return NewVideoTubeServiceWithSender(api, api.Session(), logger)
}

// NewVideoTubeServiceWithSender creates a service over any [Sender].
func NewVideoTubeServiceWithSender(api Sender, store *session.Store, logger *log.Logger) *VideoTubeService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &VideoTubeService{api: api, store: store, logger: logger}
}

// Name returns the service name.
func (v *VideoTubeService) Name() string {
	return "VideoTube"
}

// Session returns the store backing this service.
func (v *VideoTubeService) Session() *session.Store { return v.store }

// call sends r and decodes the envelope's data field into T.
func call[T any](ctx context.Context, v *VideoTubeService, r *Request) (T, error) {
	var zero T

	resp, err := v.api.Send(ctx, r)
	if err != nil {
		return zero, err
	}

	var env models.Envelope[T]
	if err := resp.Decode(&env); err != nil {
		return zero, err
	}
	return env.Data, nil
}

// exec sends r and discards the payload.
func (v *VideoTubeService) exec(ctx context.Context, r *Request) error {
	_, err := v.api.Send(ctx, r)
	return err
}

func jsonRequest(method, path string, payload any) (*Request, error) {
	body, err := JSONBody(payload)
	if err != nil {
		return nil, err
	}
	return &Request{Method: method, Path: path, Body: body, ContentType: "application/json"}, nil
}

// endpoint joins escaped path segments onto prefix. An empty segment fails with [shared.ErrMissingArgument].
func endpoint(prefix string, segments ...namedSegment) (string, error) {
	var b strings.Builder
	b.WriteString(prefix)
	for _, s := range segments {
		value := strings.TrimSpace(s.value)
		if value == "" {
			return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, s.name)
		}
		b.WriteString("/")
		b.WriteString(url.PathEscape(value))
	}
	return b.String(), nil
}

type namedSegment struct {
	name  string
	value string
}

func seg(name, value string) namedSegment {
	return namedSegment{name: name, value: value}
}
