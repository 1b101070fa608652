package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
)

// VideoQuery filters GET /videos. Zero fields are omitted.
type VideoQuery struct {
	Query    string
	UserID   string
	SortBy   string
	SortType string
	Page     int
	Limit    int
}

func (q VideoQuery) values() url.Values {
	v := url.Values{}
	if q.Query != "" {
		v.Set("query", q.Query)
	}
	if q.UserID != "" {
		v.Set("userId", q.UserID)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortType != "" {
		v.Set("sortType", q.SortType)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// PublishInput is the upload form.
type PublishInput struct {
	Title       string
	Description string
	VideoFile   string
	Thumbnail   string
	Progress    ProgressFunc
}

func (in PublishInput) form() (*MultipartForm, error) {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if in.VideoFile == "" {
		missing = append(missing, "videoFile")
	}
	if in.Thumbnail == "" {
		missing = append(missing, "thumbnail")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.Join(missing, ", "))
	}

	form := NewMultipartForm().
		AddField("title", in.Title).
		AddField("description", in.Description).
		AddFile("videoFile", in.VideoFile).
		AddFile("thumbnail", in.Thumbnail).
		OnProgress(in.Progress)

	if err := form.Validate(); err != nil {
		return nil, err
	}
	return form, nil
}

// ListVideos returns a page of published videos.
func (v *VideoTubeService) ListVideos(ctx context.Context, q VideoQuery) (*models.Page[models.Video], error) {
	page, err := call[models.Page[models.Video]](ctx, v, &Request{
		Method: http.MethodGet,
		Path:   "/videos",
		Query:  q.values(),
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetVideo fetches one video. Fetching a video records a view and a watch-history entry server side.
func (v *VideoTubeService) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	path, err := endpoint("/videos", seg("video id", videoID))
	if err != nil {
		return nil, err
	}

	video, err := call[models.Video](ctx, v, &Request{Method: http.MethodGet, Path: path})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrVideoNotFound, videoID)
		}
		return nil, err
	}
	return &video, nil
}

// PublishVideo uploads a video and its thumbnail.
func (v *VideoTubeService) PublishVideo(ctx context.Context, in PublishInput) (*models.Video, error) {
	form, err := in.form()
	if err != nil {
		return nil, err
	}

	video, err := call[models.Video](ctx, v, form.Request(http.MethodPost, "/videos"))
	if err != nil {
		return nil, err
	}

	v.logger.Info("video published", "id", video.ID, "title", video.Title)
	return &video, nil
}

// TogglePublish flips a video between published and draft.
func (v *VideoTubeService) TogglePublish(ctx context.Context, videoID string) (*models.Video, error) {
	path, err := endpoint("/videos/toggle/publish", seg("video id", videoID))
	if err != nil {
		return nil, err
	}

	video, err := call[models.Video](ctx, v, &Request{Method: http.MethodPatch, Path: path})
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// DeleteVideo removes a video.
func (v *VideoTubeService) DeleteVideo(ctx context.Context, videoID string) error {
	path, err := endpoint("/videos", seg("video id", videoID))
	if err != nil {
		return err
	}
	return v.exec(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// ChannelVideos lists a channel's videos by username.
func (v *VideoTubeService) ChannelVideos(ctx context.Context, username string, q VideoQuery) (*models.Channel, *models.Page[models.Video], error) {
	channel, err := v.Channel(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	q.UserID = channel.ID
	page, err := v.ListVideos(ctx, q)
	if err != nil {
		return channel, nil, err
	}
	return channel, page, nil
}
