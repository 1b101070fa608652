package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
)

// RegisterInput is the sign-up form. Avatar is required by the API; CoverImage is optional.
type RegisterInput struct {
	FullName   string
	Username   string
	Email      string
	Password   string
	Avatar     string
	CoverImage string
}

func (in RegisterInput) validate() error {
	required := []struct{ name, value string }{
		{"fullname", in.FullName},
		{"username", in.Username},
		{"email", in.Email},
		{"password", in.Password},
		{"avatar", in.Avatar},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.Join(missing, ", "))
	}
	return nil
}

// LoginInput holds credentials. Either Email or Username identifies the account.
type LoginInput struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Register creates an account. It does not log in.
func (v *VideoTubeService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	form := NewMultipartForm().
		AddField("fullname", in.FullName).
		AddField("username", strings.ToLower(in.Username)).
		AddField("email", in.Email).
		AddField("password", in.Password).
		AddFile("avatar", in.Avatar).
		AddFile("coverImage", in.CoverImage)

	if err := form.Validate(); err != nil {
		return nil, err
	}

	user, err := call[models.User](ctx, v, form.Request(http.MethodPost, "/users/register"))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and records the user and access token in the session store.
//
// The refresh token arrives as a cookie and is kept by the HTTP client's jar.
func (v *VideoTubeService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	if in.Email == "" && in.Username == "" {
		return nil, fmt.Errorf("%w: email or username", shared.ErrMissingArgument)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password", shared.ErrMissingArgument)
	}

	req, err := jsonRequest(http.MethodPost, "/users/login", in)
	if err != nil {
		return nil, err
	}

	result, err := call[models.LoginResult](ctx, v, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if err := v.store.Login(&result.User, result.AccessToken); err != nil {
		return nil, err
	}

	v.logger.Info("logged in", "username", result.User.Username)
	return &result.User, nil
}

// Logout notifies the API and clears the local session whether or not the call succeeded.
// The API error, if any, is returned after the session is cleared.
func (v *VideoTubeService) Logout(ctx context.Context) error {
	apiErr := v.exec(ctx, &Request{Method: http.MethodPost, Path: "/users/logout"})
	if apiErr != nil {
		v.logger.Warn("logout request failed; clearing local session", "error", apiErr)
	}

	if err := v.store.Logout(); err != nil {
		return err
	}
	return apiErr
}

// CurrentUser fetches the profile for the current token.
func (v *VideoTubeService) CurrentUser(ctx context.Context) (*models.User, error) {
	user, err := call[models.User](ctx, v, &Request{Method: http.MethodGet, Path: "/users/current-user"})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RestoreSession confirms a persisted token at startup.
//
// With no token nothing is sent. Otherwise the current user is fetched and recorded with SetUser; any failure logs the session out.
func (v *VideoTubeService) RestoreSession(ctx context.Context) (*models.User, error) {
	if v.store.AccessToken() == "" {
		return nil, nil
	}

	user, err := v.CurrentUser(ctx)
	if err != nil {
		v.logger.Debug("restoring session failed", "error", err)
		if lerr := v.store.Logout(); lerr != nil {
			v.logger.Warn("failed to clear session", "error", lerr)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	if err := v.store.SetUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateAccount changes the full name (and email when set) and refreshes the stored user.
func (v *VideoTubeService) UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error) {
	if fullName == "" && email == "" {
		return nil, fmt.Errorf("%w: fullname or email", shared.ErrMissingArgument)
	}

	payload := map[string]string{}
	if fullName != "" {
		payload["fullname"] = fullName
	}
	if email != "" {
		payload["email"] = email
	}

	req, err := jsonRequest(http.MethodPatch, "/users/update-account", payload)
	if err != nil {
		return nil, err
	}
	return v.updateUser(ctx, req)
}

// UpdateAvatar uploads a new avatar image.
func (v *VideoTubeService) UpdateAvatar(ctx context.Context, path string) (*models.User, error) {
	return v.uploadImage(ctx, "/users/avatar", "avatar", path)
}

// UpdateCoverImage uploads a new cover image.
func (v *VideoTubeService) UpdateCoverImage(ctx context.Context, path string) (*models.User, error) {
	return v.uploadImage(ctx, "/users/cover-image", "coverImage", path)
}

func (v *VideoTubeService) uploadImage(ctx context.Context, path, field, file string) (*models.User, error) {
	if file == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingArgument, field)
	}

	form := NewMultipartForm().AddFile(field, file)
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return v.updateUser(ctx, form.Request(http.MethodPatch, path))
}

func (v *VideoTubeService) updateUser(ctx context.Context, req *Request) (*models.User, error) {
	user, err := call[models.User](ctx, v, req)
	if err != nil {
		return nil, err
	}
	if err := v.store.SetUser(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the account password.
func (v *VideoTubeService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new password", shared.ErrMissingArgument)
	}
	if oldPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the old one", shared.ErrInvalidArgument)
	}

	req, err := jsonRequest(http.MethodPost, "/users/change-password", map[string]string{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	})
	if err != nil {
		return err
	}
	return v.exec(ctx, req)
}

// Channel fetches a public channel profile by username.
func (v *VideoTubeService) Channel(ctx context.Context, username string) (*models.Channel, error) {
	path, err := endpoint("/users/channel", seg("username", strings.TrimPrefix(username, "@")))
	if err != nil {
		return nil, err
	}

	channel, err := call[models.Channel](ctx, v, &Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// SearchUsers finds channels matching query.
func (v *VideoTubeService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}
	return call[[]models.User](ctx, v, &Request{
		Method: http.MethodGet,
		Path:   "/users/search",
		Query:  url.Values{"query": {query}},
	})
}

// WatchHistory lists videos the current user has watched.
func (v *VideoTubeService) WatchHistory(ctx context.Context) ([]models.Video, error) {
	return call[[]models.Video](ctx, v, &Request{Method: http.MethodGet, Path: "/users/watch-history"})
}
