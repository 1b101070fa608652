package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/session"
	"github.com/desertthunder/vtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin signs in with email or username and persists the access token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	in := services.LoginInput{
		Email:    cmd.String("email"),
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	}

	if in.Email == "" && in.Username == "" {
		return fmt.Errorf("%w: --email or --username is required", shared.ErrMissingArgument)
	}

	user, err := r.videotube.Login(ctx, in)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthorized) {
			return fmt.Errorf("%w: invalid credentials", shared.ErrAuthFailed)
		}
		return err
	}

	r.logger.Info("login successful", "username", user.Username)
	return r.writePlain("✓ Logged in as @%s\n", user.Username)
}

// AuthLogout signs out. The local session is cleared even when the API call fails.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.session.AccessToken() == "" {
		return r.writePlain("Not logged in\n")
	}

	if err := r.videotube.Logout(ctx); err != nil {
		r.logger.Warn("server logout failed", "error", err)
	}
	return r.writePlain("✓ Logged out\n")
}

type authStatus struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
	Store         string       `json:"store"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	API           string       `json:"api"`
}

// AuthStatus reports the session state without failing when signed out.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	snap := r.session.Snapshot()
	status := authStatus{
		Authenticated: snap.IsAuthenticated,
		User:          snap.User,
		Store:         r.config.Session.Store,
		API:           r.api.BaseURL(),
	}
	if exp, ok := session.TokenExpiry(snap.AccessToken); ok {
		status.ExpiresAt = &exp
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Session")
	r.writePlain("API: %s\n", status.API)
	r.writePlain("Store: %s\n", status.Store)
	if !status.Authenticated {
		return r.writePlain("Status: ✗ not logged in\n")
	}

	r.writePlain("Status: ✓ logged in as @%s\n", status.User.Username)
	if status.ExpiresAt != nil {
		remaining := time.Until(*status.ExpiresAt).Round(time.Second)
		if remaining > 0 {
			r.writePlain("Token expires: %s (in %s)\n", status.ExpiresAt.Local().Format(time.RFC1123), remaining)
		} else {
			r.writePlain("Token expired: %s (will refresh on next request)\n", status.ExpiresAt.Local().Format(time.RFC1123))
		}
	}
	return nil
}

// AuthWhoami prints the signed-in user.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	user := r.session.User()
	if cmd.Bool("json") {
		return r.writeJSON(user, cmd.Bool("pretty"))
	}

	r.writePlain("@%s\n", user.Username)
	if user.FullName != "" {
		r.writePlain("Name: %s\n", user.FullName)
	}
	if user.Email != "" {
		r.writePlain("Email: %s\n", user.Email)
	}
	r.writePlain("ID: %s\n", user.ID)
	return nil
}

// AuthRegister creates an account. It does not log in.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	user, err := r.videotube.Register(ctx, services.RegisterInput{
		FullName:   cmd.String("fullname"),
		Username:   cmd.String("username"),
		Email:      cmd.String("email"),
		Password:   cmd.String("password"),
		Avatar:     cmd.String("avatar"),
		CoverImage: cmd.String("cover"),
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Registered @%s\n", user.Username)
	return r.writePlain("Run `vtx auth login -u %s` to sign in\n", user.Username)
}
