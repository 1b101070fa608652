package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
	"github.com/desertthunder/vtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists the signed-in user's playlists, or another user's with --user.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	var playlists []models.Playlist
	var err error

	if userID := cmd.String("user"); userID != "" {
		playlists, err = r.videotube.UserPlaylists(ctx, userID)
	} else {
		playlists, err = r.videotube.MyPlaylists(ctx)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Playlists")
	if len(playlists) == 0 {
		return r.writePlain("No playlists\n")
	}
	for _, p := range playlists {
		r.writePlain("  %s  %s (%d videos)\n", p.ID, p.Name, p.VideoCount())
	}
	return nil
}

// PlaylistsShow prints a playlist with its videos.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	playlist, err := r.videotube.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlainHeader(playlist.Name)
	if playlist.Description != "" {
		r.writePlain("%s\n\n", playlist.Description)
	}
	r.writePlain("%d videos • %d views\n\n", playlist.VideoCount(), playlist.TotalViews)
	for i, v := range playlist.Videos {
		r.writePlain("%3d. ", i+1)
		r.writeVideoLine(v)
	}
	return nil
}

// PlaylistsCreate creates a playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	playlist, err := r.videotube.CreatePlaylist(ctx, name, cmd.String("description"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created playlist %q (ID: %s)\n", playlist.Name, playlist.ID)
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	if err := r.videotube.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// PlaylistsAdd adds a video to a playlist.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	playlistID, videoID, err := playlistVideoArgs(cmd)
	if err != nil {
		return err
	}

	playlist, err := r.videotube.AddToPlaylist(ctx, videoID, playlistID)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added %s to %q (%d videos)\n", videoID, playlist.Name, playlist.VideoCount())
}

// PlaylistsRemove removes a video from a playlist.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	playlistID, videoID, err := playlistVideoArgs(cmd)
	if err != nil {
		return err
	}

	playlist, err := r.videotube.RemoveFromPlaylist(ctx, videoID, playlistID)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s from %q (%d videos)\n", videoID, playlist.Name, playlist.VideoCount())
}

func playlistVideoArgs(cmd *cli.Command) (string, string, error) {
	playlistID, err := requireArg(cmd, "playlist")
	if err != nil {
		return "", "", err
	}
	videoID, err := requireArg(cmd, "video")
	if err != nil {
		return "", "", err
	}
	return playlistID, videoID, nil
}

// PlaylistsExport exports playlists concurrently. Without --id every playlist of the signed-in user is exported.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if !tasks.ValidFormat(format) {
		return fmt.Errorf("%w: unsupported format %q (use json, csv, markdown or txt)", shared.ErrInvalidArgument, format)
	}

	ids := cmd.StringSlice("id")
	if len(ids) == 0 {
		playlists, err := r.videotube.MyPlaylists(ctx)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return r.writePlain("No playlists to export\n")
	}

	workers := int(cmd.Int("workers"))
	if workers < 0 || workers > 10 {
		return fmt.Errorf("%w: --workers must be between 1 and 10", shared.ErrInvalidFlag)
	}
	if workers == 0 {
		workers = r.config.Export.Workers
	}

	opts := tasks.BulkExportOpts{
		Format:      format,
		OutputDir:   cmd.String("output"),
		NumWorkers:  workers,
		RateLimit:   r.config.Export.RateLimit,
		CoverImages: cmd.Bool("covers"),
	}

	r.logger.Info("starting export", "playlists", len(ids), "format", format, "workers", workers)
	r.writePlain("Exporting %d playlists as %s...\n\n", len(ids), format)

	progressCh := make(chan tasks.ProgressUpdate, 2*len(ids)+1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchPlaylist:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ExportPlaylist:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := r.engine.BulkExport(ctx, progressCh, ids, opts)
	close(progressCh)
	<-done

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed to export %d playlists:\n", result.FailedExports)
		for _, item := range result.Results {
			if !item.Success {
				r.writePlain("  - %s: %v\n", item.PlaylistID, item.Error)
			}
		}
	}
	return err
}
