package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
)

// UserPlaylists lists playlists owned by userID.
func (v *VideoTubeService) UserPlaylists(ctx context.Context, userID string) ([]models.Playlist, error) {
	path, err := endpoint("/playlist/user", seg("user id", userID))
	if err != nil {
		return nil, err
	}
	return call[[]models.Playlist](ctx, v, &Request{Method: http.MethodGet, Path: path})
}

// MyPlaylists lists playlists of the logged-in user.
func (v *VideoTubeService) MyPlaylists(ctx context.Context) ([]models.Playlist, error) {
	user := v.store.User()
	if user == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return v.UserPlaylists(ctx, user.ID)
}

// CreatePlaylist creates an empty playlist.
func (v *VideoTubeService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	req, err := jsonRequest(http.MethodPost, "/playlist", map[string]string{
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, err
	}

	playlist, err := call[models.Playlist](ctx, v, req)
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

// GetPlaylist fetches a playlist with its videos.
func (v *VideoTubeService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	path, err := endpoint("/playlist", seg("playlist id", playlistID))
	if err != nil {
		return nil, err
	}

	playlist, err := call[models.Playlist](ctx, v, &Request{Method: http.MethodGet, Path: path})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &playlist, nil
}

// DeletePlaylist removes a playlist.
func (v *VideoTubeService) DeletePlaylist(ctx context.Context, playlistID string) error {
	path, err := endpoint("/playlist", seg("playlist id", playlistID))
	if err != nil {
		return err
	}
	return v.exec(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// AddToPlaylist appends a video to a playlist.
func (v *VideoTubeService) AddToPlaylist(ctx context.Context, videoID, playlistID string) (*models.Playlist, error) {
	return v.patchPlaylist(ctx, "/playlist/add", videoID, playlistID)
}

// RemoveFromPlaylist drops a video from a playlist.
func (v *VideoTubeService) RemoveFromPlaylist(ctx context.Context, videoID, playlistID string) (*models.Playlist, error) {
	return v.patchPlaylist(ctx, "/playlist/remove", videoID, playlistID)
}

func (v *VideoTubeService) patchPlaylist(ctx context.Context, prefix, videoID, playlistID string) (*models.Playlist, error) {
	path, err := endpoint(prefix, seg("video id", videoID), seg("playlist id", playlistID))
	if err != nil {
		return nil, err
	}

	playlist, err := call[models.Playlist](ctx, v, &Request{Method: http.MethodPatch, Path: path})
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}
