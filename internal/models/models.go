// package models defines the data model exchanged with the VideoTube API
package models

import (
	"time"
)

// Envelope is the response wrapper used by every VideoTube endpoint.
type Envelope[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// Page is a paginated list (mongoose-aggregate-paginate shape).
type Page[T any] struct {
	Docs        []T  `json:"docs"`
	TotalDocs   int  `json:"totalDocs"`
	Limit       int  `json:"limit"`
	Page        int  `json:"page"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// User is an account profile as returned by /users endpoints.
type User struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	FullName   string    `json:"fullname,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// Channel is a public user profile with subscription counters.
type Channel struct {
	User
	SubscribersCount          int  `json:"subscribersCount"`
	ChannelsSubscribedToCount int  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool `json:"isSubscribed"`
}

// Owner is the embedded uploader of a video or author of a comment.
type Owner struct {
	ID               string `json:"_id"`
	Username         string `json:"username"`
	FullName         string `json:"fullname,omitempty"`
	Avatar           string `json:"avatar,omitempty"`
	SubscribersCount int    `json:"subscribersCount,omitempty"`
	IsSubscribed     bool   `json:"isSubscribed,omitempty"`
}

// Video is a published or draft upload.
type Video struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int       `json:"views"`
	IsPublished bool      `json:"isPublished"`
	LikesCount  int       `json:"likesCount,omitempty"`
	IsLiked     bool      `json:"isLiked,omitempty"`
	Owner       *Owner    `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// OwnerName returns the uploader's username, or "" when the owner was not populated.
func (v Video) OwnerName() string {
	if v.Owner == nil {
		return ""
	}
	return v.Owner.Username
}

// Comment is a comment on a video.
type Comment struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Video     string    `json:"video,omitempty"`
	Owner     *Owner    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Playlist is a named, ordered collection of videos owned by a user.
type Playlist struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Videos      []Video   `json:"videos,omitempty"`
	TotalVideos int       `json:"totalVideos,omitempty"`
	TotalViews  int       `json:"totalViews,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// VideoCount prefers the server-side counter and falls back to the embedded list.
func (p Playlist) VideoCount() int {
	if p.TotalVideos > 0 {
		return p.TotalVideos
	}
	return len(p.Videos)
}

// DashboardStats are the channel totals shown on the creator dashboard.
type DashboardStats struct {
	TotalVideos      int `json:"totalVideos"`
	TotalViews       int `json:"totalViews"`
	TotalSubscribers int `json:"totalSubscribers"`
	TotalLikes       int `json:"totalLikes"`
}

// LoginResult is the payload of a successful POST /users/login.
type LoginResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// TokenPair is the payload of POST /users/refresh-token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}
