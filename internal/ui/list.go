package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
)

var (
	_ list.Item = videoItem{}
	_ list.Item = commentItem{}
)

// videoItem wraps [models.Video] to implement [list.Item].
type videoItem struct {
	video models.Video
}

func (i videoItem) FilterValue() string { return i.video.Title }
func (i videoItem) Title() string       { return i.video.Title }
func (i videoItem) Description() string {
	parts := []string{shared.FormatDuration(i.video.Duration), fmt.Sprintf("%d views", i.video.Views)}
	if name := i.video.OwnerName(); name != "" {
		parts = append([]string{"@" + name}, parts...)
	}
	return strings.Join(parts, " • ")
}

// commentItem wraps [models.Comment] to implement [list.Item].
type commentItem struct {
	comment models.Comment
}

func (i commentItem) FilterValue() string { return i.comment.Content }
func (i commentItem) Title() string       { return i.comment.Content }
func (i commentItem) Description() string {
	if i.comment.Owner == nil {
		return ""
	}
	return "@" + i.comment.Owner.Username
}
