package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vtx/internal/repositories"
	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/session"
	"github.com/desertthunder/vtx/internal/shared"
	"github.com/desertthunder/vtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	session    *session.Store
	jar        *repositories.CookieJar
	api        *services.APIService
	videotube  *services.VideoTubeService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.VideoEngine

	// hadSession is set once a persisted token has been seen, so expiry warnings are only shown to users who were signed in.
	hadSession  atomic.Bool
	unsubscribe func()
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Zero-valued dependencies are built from Config by [Runner.Bootstrap].
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB
	Session    *session.Store
	Jar        *repositories.CookieJar
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		session:    opts.Session,
		jar:        opts.Jar,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if r.api != nil {
		r.wire()
	}
	return r
}

// Bootstrap builds whatever the Runner was not given: database, cookie jar, credential store, session store and API client.
//
// It is the root command's Before hook, so flags like --config and --ephemeral are already parsed.
func (r *Runner) Bootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		}
	}
	r.config.ApplyEnv()

	if cmd.Bool("ephemeral") {
		r.config.Session.Store = shared.SessionStoreMemory
	}

	if r.api != nil {
		return ctx, nil
	}

	if r.db == nil {
		dbConfig := r.config.Database
		if r.config.Session.Store == shared.SessionStoreMemory {
			dbConfig.Path = ":memory:"
		}
		db, err := repositories.Open(dbConfig)
		if err != nil {
			return ctx, fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	}

	if r.jar == nil {
		jar, err := repositories.NewCookieJar(repositories.NewCookieRepository(r.db), r.logger)
		if err != nil {
			return ctx, err
		}
		r.jar = jar
	}

	if r.httpClient == nil {
		r.httpClient = &http.Client{Jar: r.jar, Timeout: r.config.API.Timeout()}
	}

	if r.session == nil {
		creds, err := r.credentialStore()
		if err != nil {
			return ctx, err
		}
		store, err := session.NewStore(creds, session.WithLogger(r.logger))
		if err != nil {
			return ctx, err
		}
		r.session = store
	}

	r.api = services.NewAPIService(services.APIServiceOpts{
		BaseURL:         r.config.API.BaseURL,
		HTTPClient:      r.httpClient,
		Session:         r.session,
		Logger:          r.logger,
		CollapseRefresh: r.config.API.CollapseRefresh,
	})
	r.wire()

	r.logger.Debug("bootstrapped", "api", r.api.BaseURL(), "session_store", r.config.Session.Store)
	return ctx, nil
}

// wire builds the service layer on top of r.api and subscribes to session events.
func (r *Runner) wire() {
	if r.session == nil {
		r.session = r.api.Session()
	}
	if r.httpClient == nil {
		r.httpClient = http.DefaultClient
	}
	r.videotube = services.NewVideoTubeService(r.api, r.logger)
	r.engine = tasks.NewVideoEngine(r.videotube, r.api)

	if r.session.AccessToken() != "" {
		r.hadSession.Store(true)
	}
	r.unsubscribe = r.session.Subscribe(r.onSessionEvent)
}

func (r *Runner) credentialStore() (session.CredentialStore, error) {
	switch r.config.Session.Store {
	case shared.SessionStoreMemory:
		return session.NewMemoryCredentialStore(""), nil
	case shared.SessionStoreSQLite:
		return repositories.NewCredentialRepository(r.db), nil
	case shared.SessionStoreFile, "":
		return session.NewFileCredentialStore(r.config.Session.TokenPath), nil
	default:
		return nil, fmt.Errorf("%w: unknown session.store %q", shared.ErrInvalidConfig, r.config.Session.Store)
	}
}

func (r *Runner) onSessionEvent(e session.Event) {
	switch e.Kind {
	case session.EventLogin:
		r.hadSession.Store(true)
	case session.EventExpired:
		if r.hadSession.Load() {
			r.logger.Warn("session expired, run `vtx auth login` to sign in again", "cause", e.Cause)
		}
	}
}

// Close releases the database. It is the root command's After hook.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

// restore rebuilds the signed-in user from a persisted token. Without a token it is a no-op.
//
// A failed restore leaves the session signed out; callers decide whether that is an error.
func (r *Runner) restore(ctx context.Context) {
	if r.session.IsAuthenticated() {
		return
	}
	user, err := r.videotube.RestoreSession(ctx)
	if err != nil {
		r.logger.Debug("session restore failed", "error", err)
		return
	}
	if user != nil {
		r.logger.Debug("session restored", "user", user.Username)
	}
}

// requireAuth wraps a protected action: the session is restored first and the action only runs when it is authenticated.
func (r *Runner) requireAuth(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		r.restore(ctx)
		if !r.session.IsAuthenticated() {
			return fmt.Errorf("%w: run `vtx auth login` first", shared.ErrNotAuthenticated)
		}
		return action(ctx, cmd)
	}
}

// optionalAuth restores the session when possible but runs the action either way.
func (r *Runner) optionalAuth(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		r.restore(ctx)
		return action(ctx, cmd)
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, videosCommand, commentsCommand, likeCommand, subscribeCommand,
		channelCommand, usersCommand, playlistsCommand, historyCommand, dashboardCommand, profileCommand,
		backupCommand, cookiesCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// isExpired reports whether err means the server rejected our credentials.
func isExpired(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrNotAuthenticated)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
