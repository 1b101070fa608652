package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/shared"
)

// PageSize is the number of videos requested per feed page.
const PageSize = 20

// ViewState represents the current view in the TUI.
type ViewState int

const (
	FeedView ViewState = iota
	DetailView
)

// Client is the subset of [services.VideoTubeService] the browser calls.
type Client interface {
	ListVideos(ctx context.Context, q services.VideoQuery) (*models.Page[models.Video], error)
	GetVideo(ctx context.Context, videoID string) (*models.Video, error)
	Comments(ctx context.Context, videoID string, page, limit int) (*models.Page[models.Comment], error)
	ToggleVideoLike(ctx context.Context, videoID string) error
	ToggleSubscription(ctx context.Context, channelID string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	client   Client
	query    services.VideoQuery
	view     ViewState
	width    int
	height   int
	feed     list.Model
	page     *models.Page[models.Video]
	comments list.Model
	video    *models.Video
	loading  bool
	status   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a feed browser. query selects the search, sort and page of the first fetch.
func NewModel(ctx context.Context, client Client, query services.VideoQuery) *Model {
	if query.Limit <= 0 {
		query.Limit = PageSize
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	return &Model{
		ctx:      ctx,
		client:   client,
		query:    query,
		view:     FeedView,
		feed:     newList(nil, "Videos"),
		comments: newList(nil, "Comments"),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

func newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init fetches the first feed page.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.fetchFeed()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.feed.SetSize(msg.Width-4, msg.Height-8)
		m.comments.SetSize(msg.Width-4, msg.Height/2)
		return m, nil

	case tea.KeyMsg:
		if m.feed.FilterState() == list.Filtering {
			break
		}
		switch m.view {
		case FeedView:
			return m.handleFeedKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.err = msg.err

	switch msg.kind {
	case MsgFeedFetched:
		if msg.err != nil {
			return m, nil
		}
		page := msg.data.(*models.Page[models.Video])
		m.page = page
		items := make([]list.Item, len(page.Docs))
		for i, v := range page.Docs {
			items[i] = videoItem{video: v}
		}
		m.feed.SetItems(items)
		m.feed.Title = m.feedTitle()

	case MsgVideoFetched:
		if msg.err != nil {
			return m, nil
		}
		detail := msg.data.(videoDetail)
		m.video = detail.video
		items := make([]list.Item, len(detail.comments))
		for i, c := range detail.comments {
			items[i] = commentItem{comment: c}
		}
		m.comments.SetItems(items)
		m.comments.Title = fmt.Sprintf("Comments (%d)", len(items))
		m.view = DetailView

	case MsgActionDone:
		if msg.err == nil {
			m.status = msg.data.(string)
		}
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case DetailView:
		body = m.renderDetail()
	default:
		body = m.renderFeed()
	}

	var footer []string
	if m.loading {
		footer = append(footer, styles.help.Render("Loading..."))
	}
	if m.err != nil {
		footer = append(footer, m.renderError())
	} else if m.status != "" {
		footer = append(footer, styles.ok.Render(m.status))
	}
	if len(footer) > 0 {
		body = fmt.Sprintf("%s\n\n%s", body, strings.Join(footer, "\n"))
	}
	return body
}

func (m *Model) handleFeedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.feed.SelectedItem().(videoItem); ok {
			m.loading = true
			m.status = ""
			return m, m.fetchVideo(item.video.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.next):
		if m.page != nil && m.page.HasNextPage {
			m.query.Page++
			m.loading = true
			return m, m.fetchFeed()
		}
		return m, nil
	case key.Matches(msg, m.keys.prev):
		if m.query.Page > 1 {
			m.query.Page--
			m.loading = true
			return m, m.fetchFeed()
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		return m, m.fetchFeed()
	}

	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = FeedView
		m.video = nil
		m.status = ""
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.like):
		if m.video != nil {
			return m, m.toggleLike(m.video.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.subscribe):
		if m.video != nil && m.video.Owner != nil {
			return m, m.toggleSubscription(m.video.Owner.ID, m.video.Owner.Username)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.comments, cmd = m.comments.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case FeedView:
		m.feed, cmd = m.feed.Update(msg)
	case DetailView:
		m.comments, cmd = m.comments.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchFeed() tea.Cmd {
	q := m.query
	return func() tea.Msg {
		page, err := m.client.ListVideos(m.ctx, q)
		return feedFetchedMsg(page, err)
	}
}

func (m *Model) fetchVideo(id string) tea.Cmd {
	return func() tea.Msg {
		video, err := m.client.GetVideo(m.ctx, id)
		if err != nil {
			return videoFetchedMsg(nil, nil, err)
		}
		var comments []models.Comment
		if page, err := m.client.Comments(m.ctx, id, 1, PageSize); err == nil {
			comments = page.Docs
		}
		return videoFetchedMsg(video, comments, nil)
	}
}

func (m *Model) toggleLike(videoID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.ToggleVideoLike(m.ctx, videoID); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg("✓ Like toggled", nil)
	}
}

func (m *Model) toggleSubscription(channelID, username string) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.ToggleSubscription(m.ctx, channelID); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg(fmt.Sprintf("✓ Subscription to @%s toggled", username), nil)
	}
}

func (m *Model) feedTitle() string {
	title := "Videos"
	if m.query.Query != "" {
		title = fmt.Sprintf("Videos matching %q", m.query.Query)
	}
	if m.page != nil && m.page.TotalPages > 0 {
		title = fmt.Sprintf("%s (page %d/%d)", title, m.page.Page, m.page.TotalPages)
	}
	return title
}

func (m *Model) renderError() string {
	if errors.Is(m.err, shared.ErrUnauthorized) || errors.Is(m.err, shared.ErrNotAuthenticated) {
		return styles.warn.Render("Session expired. Run `vtx auth login` and try again.")
	}
	return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
}

func (m *Model) renderFeed() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.next, m.keys.prev, m.keys.refresh, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.feed.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	if m.video == nil {
		return ""
	}
	v := m.video

	var b strings.Builder
	b.WriteString(styles.title.Render(v.Title))
	b.WriteString("\n")

	meta := []string{shared.FormatDuration(v.Duration), fmt.Sprintf("%d views", v.Views), fmt.Sprintf("%d likes", v.LikesCount)}
	if name := v.OwnerName(); name != "" {
		channel := "@" + name
		if v.Owner.IsSubscribed {
			channel += " (subscribed)"
		}
		meta = append([]string{channel}, meta...)
	}
	if v.IsLiked {
		meta = append(meta, "liked")
	}
	b.WriteString(styles.meta.Render(strings.Join(meta, " • ")))
	b.WriteString("\n\n")

	if v.Description != "" {
		b.WriteString(v.Description)
		b.WriteString("\n\n")
	}
	if v.VideoFile != "" {
		fmt.Fprintf(&b, "Watch: %s\n\n", v.VideoFile)
	}

	b.WriteString(m.comments.View())

	helpKeys := []key.Binding{m.keys.like, m.keys.subscribe, m.keys.back, m.keys.quit}
	fmt.Fprintf(&b, "\n\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}
