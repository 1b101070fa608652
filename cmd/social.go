package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CommentsList prints a page of comments on a video.
func (r *Runner) CommentsList(ctx context.Context, cmd *cli.Command) error {
	videoID, err := requireArg(cmd, "video")
	if err != nil {
		return err
	}

	page, err := r.videotube.Comments(ctx, videoID, int(cmd.Int("page")), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Comments")
	if len(page.Docs) == 0 {
		return r.writePlain("No comments\n")
	}
	for _, c := range page.Docs {
		author := "unknown"
		if c.Owner != nil {
			author = "@" + c.Owner.Username
		}
		r.writePlain("  %s  %s: %s\n", c.ID, author, c.Content)
	}
	return r.writePlain("\nPage %d/%d (%d comments)\n", page.Page, page.TotalPages, page.TotalDocs)
}

// CommentsAdd posts a comment on a video.
func (r *Runner) CommentsAdd(ctx context.Context, cmd *cli.Command) error {
	videoID, err := requireArg(cmd, "video")
	if err != nil {
		return err
	}
	content, err := requireArg(cmd, "content")
	if err != nil {
		return err
	}

	comment, err := r.videotube.AddComment(ctx, videoID, content)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Comment posted (ID: %s)\n", comment.ID)
}

// CommentsDelete deletes a comment.
func (r *Runner) CommentsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	if err := r.videotube.DeleteComment(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted comment %s\n", id)
}

// Like toggles the signed-in user's like on a video.
func (r *Runner) Like(ctx context.Context, cmd *cli.Command) error {
	videoID, err := requireArg(cmd, "video")
	if err != nil {
		return err
	}

	if err := r.videotube.ToggleVideoLike(ctx, videoID); err != nil {
		return err
	}
	return r.writePlain("✓ Like toggled on %s\n", videoID)
}

// Subscribe toggles a subscription. The channel is looked up by username first.
func (r *Runner) Subscribe(ctx context.Context, cmd *cli.Command) error {
	username, err := requireArg(cmd, "username")
	if err != nil {
		return err
	}

	channel, err := r.videotube.Channel(ctx, username)
	if err != nil {
		return err
	}

	if err := r.videotube.ToggleSubscription(ctx, channel.ID); err != nil {
		return err
	}

	if channel.IsSubscribed {
		return r.writePlain("✓ Unsubscribed from @%s\n", channel.Username)
	}
	return r.writePlain("✓ Subscribed to @%s\n", channel.Username)
}
