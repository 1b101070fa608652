package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/shared"
	"github.com/desertthunder/vtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}

func pageQuery(cmd *cli.Command) services.VideoQuery {
	return services.VideoQuery{Page: int(cmd.Int("page")), Limit: int(cmd.Int("limit"))}
}

func (r *Runner) writeVideoLine(v models.Video) {
	owner := ""
	if name := v.OwnerName(); name != "" {
		owner = " @" + name
	}
	r.writePlain("  %s  %s%s • %s • %d views\n", v.ID, v.Title, owner, shared.FormatDuration(v.Duration), v.Views)
}

func (r *Runner) writeVideoPage(title string, page *models.Page[models.Video]) {
	r.writePlainHeader(title)
	if len(page.Docs) == 0 {
		r.writePlain("No videos\n")
		return
	}
	for _, v := range page.Docs {
		r.writeVideoLine(v)
	}
	r.writePlain("\nPage %d/%d (%d videos)\n", page.Page, page.TotalPages, page.TotalDocs)
}

// VideosList lists published videos, optionally filtered and sorted.
func (r *Runner) VideosList(ctx context.Context, cmd *cli.Command) error {
	q := pageQuery(cmd)
	q.Query = cmd.String("query")
	q.UserID = cmd.String("user")
	q.SortBy = cmd.String("sort-by")
	q.SortType = cmd.String("sort-type")

	page, err := r.videotube.ListVideos(ctx, q)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}

	title := "Videos"
	if q.Query != "" {
		title = fmt.Sprintf("Videos matching %q", q.Query)
	}
	r.writeVideoPage(title, page)
	return nil
}

// VideosGet shows a single video and optionally opens its file.
func (r *Runner) VideosGet(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	video, err := r.videotube.GetVideo(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(video, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.writePlainHeader(video.Title)
		if name := video.OwnerName(); name != "" {
			r.writePlain("Channel: @%s\n", name)
		}
		r.writePlain("Duration: %s\n", shared.FormatDuration(video.Duration))
		r.writePlain("Views: %d • Likes: %d\n", video.Views, video.LikesCount)
		r.writePlain("Status: %s\n", shared.VisibilityString(video.IsPublished))
		if video.Description != "" {
			r.writePlainln("%s", video.Description)
		}
		r.writePlain("\nWatch: %s\n", video.VideoFile)
	}

	if cmd.Bool("open") {
		r.logger.Info("opening video", "url", video.VideoFile)
		return shared.OpenBrowser(video.VideoFile)
	}
	return nil
}

// VideosUpload publishes a video through the engine, printing upload progress as it goes.
func (r *Runner) VideosUpload(ctx context.Context, cmd *cli.Command) error {
	in := services.PublishInput{
		Title:       cmd.String("title"),
		Description: cmd.String("description"),
		VideoFile:   cmd.String("file"),
		Thumbnail:   cmd.String("thumbnail"),
	}

	r.logger.Info("uploading video", "title", in.Title, "file", in.VideoFile)

	progressCh := make(chan tasks.ProgressUpdate, 110)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.UploadVideo:
				r.writePlain("\r⬆ %s", update.Message)
			case tasks.PublishVideo:
				r.writePlain("\n✓ %s\n", update.Message)
			}
		}
	}()

	video, err := r.engine.Upload(ctx, progressCh, in)
	close(progressCh)
	<-done

	if err != nil {
		r.writePlain("\n")
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(video, cmd.Bool("pretty"))
	}
	r.writePlain("ID: %s\n", video.ID)
	return r.writePlain("Watch: %s\n", video.VideoFile)
}

// VideosTogglePublish flips a video between published and private.
func (r *Runner) VideosTogglePublish(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	video, err := r.videotube.TogglePublish(ctx, id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s is now %s\n", id, shared.VisibilityString(video.IsPublished))
}

// VideosDelete deletes a video.
func (r *Runner) VideosDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	if err := r.videotube.DeleteVideo(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted video %s\n", id)
}

// ChannelShow prints a channel profile followed by a page of its videos.
func (r *Runner) ChannelShow(ctx context.Context, cmd *cli.Command) error {
	username, err := requireArg(cmd, "username")
	if err != nil {
		return err
	}

	channel, page, err := r.videotube.ChannelVideos(ctx, username, pageQuery(cmd))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"channel": channel, "videos": page}, cmd.Bool("pretty"))
	}

	subscribed := ""
	if channel.IsSubscribed {
		subscribed = " (subscribed)"
	}
	r.writePlain("@%s • %s\n", channel.Username, channel.FullName)
	r.writePlain("%d subscribers • %d subscriptions%s\n\n", channel.SubscribersCount, channel.ChannelsSubscribedToCount, subscribed)
	r.writeVideoPage("Uploads", page)
	return nil
}

// ChannelSearch searches users.
func (r *Runner) ChannelSearch(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}

	users, err := r.videotube.SearchUsers(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Users matching %q", query))
	if len(users) == 0 {
		return r.writePlain("No users\n")
	}
	for _, u := range users {
		r.writePlain("  @%s  %s\n", u.Username, u.FullName)
	}
	return nil
}

// History prints the signed-in user's watch history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	videos, err := r.videotube.WatchHistory(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(videos, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Watch History")
	if len(videos) == 0 {
		return r.writePlain("Nothing watched yet\n")
	}
	for _, v := range videos {
		r.writeVideoLine(v)
	}
	return nil
}

// Dashboard prints channel totals and, with --videos, every upload.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.videotube.DashboardStats(ctx)
	if err != nil {
		return err
	}

	var videos []models.Video
	if cmd.Bool("videos") {
		if videos, err = r.videotube.DashboardVideos(ctx); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"stats": stats, "videos": videos}, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Dashboard")
	r.writePlain("Videos: %d\n", stats.TotalVideos)
	r.writePlain("Views: %d\n", stats.TotalViews)
	r.writePlain("Subscribers: %d\n", stats.TotalSubscribers)
	r.writePlain("Likes: %d\n", stats.TotalLikes)

	if len(videos) > 0 {
		r.writePlainln("Uploads:")
		for _, v := range videos {
			r.writePlain("  %s  %s (%s) • %d views\n", v.ID, v.Title, shared.VisibilityString(v.IsPublished), v.Views)
		}
	}
	return nil
}
