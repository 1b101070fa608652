package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/vtx/internal/formatter"
	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
	"golang.org/x/time/rate"
)

// Export formats accepted by [BulkExportOpts.Format].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// ManifestFile is written into the output directory after every bulk export.
const ManifestFile = "export_manifest.json"

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format      string  // Export format: json, csv, markdown, txt
	OutputDir   string  // Base output directory (default: vtx_export_{epoch})
	NumWorkers  int     // Concurrent workers (default: 4, max: 10)
	RateLimit   float64 // Playlist fetches per second (default: 5)
	CoverImages bool    // Download the first thumbnail as cover.jpg for markdown exports
}

type exportJob struct {
	index    int
	playlist *models.Playlist
}

type indexedItem struct {
	index int
	item  formatter.ExportItem
}

// ValidFormat reports whether format names a supported export format.
func ValidFormat(format string) bool {
	switch format {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatText:
		return true
	}
	return false
}

// BulkExport exports multiple playlists concurrently with rate limiting and progress tracking.
//
// Playlist fetches are paced by a [rate.Limiter]; file writing happens in a worker pool.
// A failed playlist is recorded in the result and does not stop the run.
// Results keep the order of playlistIDs.
func (e *VideoEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	playlistIDs []string,
	opts BulkExportOpts,
) (*formatter.BulkExportResult, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: video service not initialized", shared.ErrServiceUnavailable)
	}
	if len(playlistIDs) == 0 {
		return nil, fmt.Errorf("%w: no playlists to export", shared.ErrMissingArgument)
	}

	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if !ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("vtx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(playlistIDs)
	result := &formatter.BulkExportResult{
		TotalPlaylists:  total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.ExportItem, 0, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, total)
	results := make(chan indexedItem, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		e.sendProgress(prog, fetchingPlaylistsUpdate(total))
		for i, id := range playlistIDs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			playlist, err := e.library.GetPlaylist(ctx, id)
			if err != nil {
				results <- indexedItem{index: i, item: formatter.ExportItem{
					PlaylistID:   id,
					PlaylistName: fmt.Sprintf("Unknown (%s)", id),
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
				}}
				continue
			}

			e.sendProgress(prog, exportingPlaylistUpdate(i+1, total, playlist.Name))
			jobs <- exportJob{index: i, playlist: playlist}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]indexedItem, 0, total)
	for res := range results {
		collected = append(collected, res)
		completed := len(collected)

		if res.item.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, total, res.item.PlaylistName, len(res.item.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, total, res.item.PlaylistName, res.item.Error))
		}
	}

	slices.SortStableFunc(collected, func(a, b indexedItem) int { return a.index - b.index })
	for _, c := range collected {
		result.Results = append(result.Results, c.item)
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	if err := formatter.WriteBulkExportManifest(*result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportWorker is a worker goroutine that exports playlists from the jobs channel.
func (e *VideoEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- indexedItem,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- indexedItem{index: job.index, item: exportPlaylist(job.playlist, opts)}
	}
}

// exportPlaylist writes a single playlist in the configured format.
func exportPlaylist(p *models.Playlist, opts BulkExportOpts) formatter.ExportItem {
	item := formatter.ExportItem{
		PlaylistID:   p.ID,
		PlaylistName: p.Name,
		Files:        []string{},
	}

	switch opts.Format {
	case FormatCSV:
		res, err := formatter.WriteCSVExport(p, filepath.Join(opts.OutputDir, p.ID))
		if err != nil {
			item.Error = fmt.Errorf("CSV export failed: %w", err)
			return item
		}
		item.Files = []string{res.VideosFile, res.MetadataFile}

	case FormatMarkdown:
		var imageURL string
		if opts.CoverImages {
			imageURL = formatter.CoverImageURL(p)
		}
		res, err := formatter.WriteMarkdownExport(p, filepath.Join(opts.OutputDir, p.ID), imageURL)
		if err != nil {
			item.Error = fmt.Errorf("markdown export failed: %w", err)
			return item
		}
		item.Files = res.Files

	case FormatText:
		path, err := formatter.WriteTextExport(p, filepath.Join(opts.OutputDir, p.ID+"_videos.txt"))
		if err != nil {
			item.Error = fmt.Errorf("text export failed: %w", err)
			return item
		}
		item.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(p, filepath.Join(opts.OutputDir, p.ID+".json"))
		if err != nil {
			item.Error = fmt.Errorf("JSON export failed: %w", err)
			return item
		}
		item.Files = []string{path}
	}

	item.Success = true
	return item
}
