package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/desertthunder/vtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes config.toml when missing and makes sure the database schema is current.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("using existing config", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.logger.Info("config file created", "path", configPath)
	}

	if r.db == nil {
		return fmt.Errorf("%w: database not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Info("running database migrations", "path", r.config.Database.Path)
	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config: %s\n", configPath)
	r.writePlain("Database: %s\n", r.config.Database.Path)
	r.writePlain("API: %s\n", r.config.API.BaseURL)
	r.writePlainln("Next steps:")
	r.writePlain("1. Edit %s if the API is not at %s\n", configPath, r.config.API.BaseURL)
	return r.writePlain("2. Run `vtx auth login -u <username>` to sign in\n")
}

// SetupCookies imports cookies (and a bearer token, if present) from a browser "Copy as cURL" command.
//
// The refresh-token cookie lets the client renew an access token the browser obtained.
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var curlHeaders *shared.CurlHeaders
	var err error

	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	if r.jar == nil {
		return fmt.Errorf("%w: cookie jar not initialized", shared.ErrServiceUnavailable)
	}

	origin, err := curlHeaders.Origin()
	if err != nil {
		return err
	}
	if base, err := url.Parse(r.api.BaseURL()); err == nil && base.Host != origin.Host {
		r.logger.Warn("cURL host differs from api.base_url; cookies will not be sent", "curl", origin.Host, "api", base.Host)
	}

	cookies := curlHeaders.Cookies()
	r.jar.SetCookies(origin, cookies)
	r.writePlain("✓ Imported %d cookies for %s\n", len(cookies), origin.Host)

	token := curlHeaders.BearerToken()
	if token == "" {
		return nil
	}

	if err := r.session.SetAccessToken(token); err != nil {
		return err
	}
	user, err := r.videotube.RestoreSession(ctx)
	if err != nil {
		return fmt.Errorf("imported token was rejected: %w", err)
	}
	return r.writePlain("✓ Signed in as @%s\n", user.Username)
}

// CookiesList prints the persisted cookies. Values are elided.
func (r *Runner) CookiesList(ctx context.Context, cmd *cli.Command) error {
	if r.jar == nil {
		return fmt.Errorf("%w: cookie jar not initialized", shared.ErrServiceUnavailable)
	}

	stored, err := r.jar.Stored()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type cookieRow struct {
			URL       string `json:"url"`
			Name      string `json:"name"`
			Path      string `json:"path"`
			ExpiresAt string `json:"expires_at,omitempty"`
			HTTPOnly  bool   `json:"http_only"`
		}
		rows := make([]cookieRow, 0, len(stored))
		for _, c := range stored {
			row := cookieRow{URL: c.URL, Name: c.Name, Path: c.Path, HTTPOnly: c.HTTPOnly}
			if c.ExpiresAt != nil {
				row.ExpiresAt = c.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
			}
			rows = append(rows, row)
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Cookies")
	if len(stored) == 0 {
		return r.writePlain("No cookies stored\n")
	}
	for _, c := range stored {
		expires := "session"
		if c.ExpiresAt != nil {
			expires = c.ExpiresAt.Local().Format("2006-01-02 15:04")
		}
		r.writePlain("  %s  %s%s  (expires %s)\n", c.URL, c.Name, c.Path, expires)
	}
	return nil
}

// CookiesClear deletes every stored cookie.
func (r *Runner) CookiesClear(ctx context.Context, cmd *cli.Command) error {
	if r.jar == nil {
		return fmt.Errorf("%w: cookie jar not initialized", shared.ErrServiceUnavailable)
	}
	if err := r.jar.Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Cookies cleared\n")
}
