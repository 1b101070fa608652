package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
)

// Comments returns a page of comments on a video.
func (v *VideoTubeService) Comments(ctx context.Context, videoID string, page, limit int) (*models.Page[models.Comment], error) {
	path, err := endpoint("/comment", seg("video id", videoID))
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	comments, err := call[models.Page[models.Comment]](ctx, v, &Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, err
	}
	return &comments, nil
}

// AddComment posts a comment on a video.
func (v *VideoTubeService) AddComment(ctx context.Context, videoID, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: comment content", shared.ErrMissingArgument)
	}

	path, err := endpoint("/comment", seg("video id", videoID))
	if err != nil {
		return nil, err
	}

	req, err := jsonRequest(http.MethodPost, path, map[string]string{"content": content})
	if err != nil {
		return nil, err
	}

	comment, err := call[models.Comment](ctx, v, req)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes a comment.
func (v *VideoTubeService) DeleteComment(ctx context.Context, commentID string) error {
	path, err := endpoint("/comment/c", seg("comment id", commentID))
	if err != nil {
		return err
	}
	return v.exec(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// ToggleVideoLike likes or unlikes a video.
func (v *VideoTubeService) ToggleVideoLike(ctx context.Context, videoID string) error {
	path, err := endpoint("/likes/toggle/v", seg("video id", videoID))
	if err != nil {
		return err
	}
	return v.exec(ctx, &Request{Method: http.MethodPost, Path: path})
}

// ToggleSubscription subscribes to or unsubscribes from a channel.
func (v *VideoTubeService) ToggleSubscription(ctx context.Context, channelID string) error {
	path, err := endpoint("/subscriptions/c", seg("channel id", channelID))
	if err != nil {
		return err
	}
	return v.exec(ctx, &Request{Method: http.MethodPost, Path: path})
}

// DashboardStats returns the creator totals.
func (v *VideoTubeService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := call[models.DashboardStats](ctx, v, &Request{Method: http.MethodGet, Path: "/dashboard/stats"})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// DashboardVideos lists all of the creator's videos, drafts included.
func (v *VideoTubeService) DashboardVideos(ctx context.Context) ([]models.Video, error) {
	return call[[]models.Video](ctx, v, &Request{Method: http.MethodGet, Path: "/dashboard/videos"})
}
