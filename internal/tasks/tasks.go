// package tasks implements long-running VideoTube operations that report progress.
//
// The core abstraction is Engine, which orchestrates bulk playlist exports, video uploads, and account backups.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/vtx/internal/formatter"
	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/shared"
)

// EndpointResult represents the result of fetching data from a single API endpoint.
type EndpointResult struct {
	Endpoint string
	Data     any
	Error    error
}

// BackupResult contains the account data fetched by [Engine.Backup].
type BackupResult struct {
	User           any              // Current user profile
	WatchHistory   any              // Watch history
	DashboardStats any              // Channel totals
	Videos         any              // Channel uploads
	Errors         []EndpointResult // Failed endpoint fetches
}

// BackupData is the on-disk shape of a [BackupResult].
type BackupData struct {
	User           any      `json:"user"`
	WatchHistory   any      `json:"watch_history,omitempty"`
	DashboardStats any      `json:"dashboard_stats,omitempty"`
	Videos         any      `json:"videos,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Data converts the result into its serializable form.
func (r *BackupResult) Data() BackupData {
	d := BackupData{
		User:           r.User,
		WatchHistory:   r.WatchHistory,
		DashboardStats: r.DashboardStats,
		Videos:         r.Videos,
	}
	for _, e := range r.Errors {
		d.Errors = append(d.Errors, fmt.Sprintf("%s: %v", e.Endpoint, e.Error))
	}
	return d
}

type backupOperation struct {
	path    string
	target  *any
	phase   Phase
	message string
}

// Engine defines the long-running operations available to the CLI and TUI.
type Engine interface {
	// BulkExport fetches each playlist and writes it to disk in the requested format, along with a manifest.
	BulkExport(ctx context.Context, progress chan<- ProgressUpdate, playlistIDs []string, opts BulkExportOpts) (*formatter.BulkExportResult, error)

	// Upload publishes a video, reporting byte-level upload progress.
	Upload(ctx context.Context, progress chan<- ProgressUpdate, in services.PublishInput) (*models.Video, error)

	// Backup fetches the signed-in user's profile, history and channel data.
	Backup(ctx context.Context, progress chan<- ProgressUpdate) (*BackupResult, error)
}

// Library is the subset of [services.VideoTubeService] the engine depends on.
type Library interface {
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)
	PublishVideo(ctx context.Context, in services.PublishInput) (*models.Video, error)
}

// APIClient defines the interface for making raw authenticated API requests.
type APIClient interface {
	Get(ctx context.Context, path string) (*services.APIResponse, error)
}

var _ Engine = (*VideoEngine)(nil)

// VideoEngine implements Engine.
type VideoEngine struct {
	library Library
	api     APIClient
}

// NewVideoEngine creates a new VideoEngine. Either dependency may be nil; operations needing it fail with [shared.ErrServiceUnavailable].
func NewVideoEngine(library Library, api APIClient) *VideoEngine {
	return &VideoEngine{library: library, api: api}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *VideoEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Upload publishes a video through the library, forwarding upload progress at whole-percent granularity.
func (e *VideoEngine) Upload(ctx context.Context, progress chan<- ProgressUpdate, in services.PublishInput) (*models.Video, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: video service not initialized", shared.ErrServiceUnavailable)
	}

	// The form writer may still be running after PublishVideo returns, so sends stop once it does.
	var mu sync.Mutex
	var finished bool
	lastPct := int64(-1)
	caller := in.Progress
	in.Progress = func(written, total int64) {
		if caller != nil {
			caller(written, total)
		}
		pct := int64(100)
		if total > 0 {
			pct = written * 100 / total
		}

		mu.Lock()
		defer mu.Unlock()
		if finished || pct == lastPct {
			return
		}
		lastPct = pct
		e.sendProgress(progress, uploadProgressUpdate(written, total))
	}

	video, err := e.library.PublishVideo(ctx, in)
	mu.Lock()
	finished = true
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, publishedUpdate(video))
	return video, nil
}

// Backup fetches account data endpoint by endpoint. Failed endpoints are recorded in [BackupResult.Errors] instead of aborting.
func (e *VideoEngine) Backup(ctx context.Context, progress chan<- ProgressUpdate) (*BackupResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: API client not initialized", shared.ErrServiceUnavailable)
	}

	result := &BackupResult{Errors: []EndpointResult{}}

	ops := []backupOperation{
		{path: "/users/current-user", target: &result.User, phase: FetchAccount, message: "Fetching profile..."},
		{path: "/users/watch-history", target: &result.WatchHistory, phase: FetchHistory, message: "Fetching watch history..."},
		{path: "/dashboard/stats", target: &result.DashboardStats, phase: FetchDashboard, message: "Fetching channel stats..."},
		{path: "/dashboard/videos", target: &result.Videos, phase: FetchDashboard, message: "Fetching channel videos..."},
	}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e.sendProgress(progress, operationUpdate(op, i+1, len(ops)))

		resp, err := e.api.Get(ctx, op.path)
		if err != nil {
			result.Errors = append(result.Errors, EndpointResult{Endpoint: op.path, Error: err})
			continue
		}

		var env models.Envelope[any]
		if err := resp.Decode(&env); err != nil {
			result.Errors = append(result.Errors, EndpointResult{Endpoint: op.path, Error: err})
			continue
		}
		*op.target = env.Data
	}

	return result, nil
}
