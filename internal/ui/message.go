package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vtx/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
	err  error
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgFeedFetched MsgKind = iota
	MsgVideoFetched
	MsgActionDone
)

type videoDetail struct {
	video    *models.Video
	comments []models.Comment
}

// feedFetchedMsg is the constructor for [MsgFeedFetched]
func feedFetchedMsg(page *models.Page[models.Video], err error) Msg {
	return Msg{kind: MsgFeedFetched, data: page, err: err}
}

// videoFetchedMsg is the constructor for [MsgVideoFetched]
func videoFetchedMsg(video *models.Video, comments []models.Comment, err error) Msg {
	return Msg{kind: MsgVideoFetched, data: videoDetail{video: video, comments: comments}, err: err}
}

// actionDoneMsg is the constructor for [MsgActionDone]; data carries the status line.
func actionDoneMsg(status string, err error) Msg {
	return Msg{kind: MsgActionDone, data: status, err: err}
}
