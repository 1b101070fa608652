// Package ui implements an interactive terminal feed browser using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [FeedView] : Page through published videos (n/p), optionally filtered by a search query
//  2. [DetailView] : Inspect one video with its comments, like it or subscribe to its channel
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving results via the Msg union type.
// API calls run as [tea.Cmd] functions against a [Client], so a 401 that the client cannot refresh surfaces as a
// "session expired" footer rather than a crash.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, l/s, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
