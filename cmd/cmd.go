// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "page",
			Usage: "Page number",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Results per page",
			Value: 10,
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and local storage",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create config.toml (if missing), the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "cookies",
				Usage: "Import a browser session from a \"Copy as cURL\" command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from browser dev tools",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing the cURL command",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in, sign out and inspect the current session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with email or username",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"e"},
						Usage:   "Account email",
					},
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Account username",
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("VTX_PASSWORD"),
						Required: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Log out and forget the stored token",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether a session is stored and when its token expires",
				Flags:  jsonFlags(),
				Action: r.optionalAuth(r.AuthStatus),
			},
			{
				Name:   "whoami",
				Usage:  "Show the signed-in user",
				Flags:  jsonFlags(),
				Action: r.requireAuth(r.AuthWhoami),
			},
			{
				Name:  "register",
				Usage: "Create a new account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "fullname", Usage: "Full name", Required: true},
					&cli.StringFlag{Name: "username", Usage: "Username", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Sources: cli.EnvVars("VTX_PASSWORD"), Required: true},
					&cli.StringFlag{Name: "avatar", Usage: "Path to avatar image", Required: true},
					&cli.StringFlag{Name: "cover", Usage: "Path to cover image"},
				},
				Action: r.AuthRegister,
			},
		},
	}
}

func videosCommand(r *Runner) *cli.Command {
	listFlags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   "Search text",
		},
		&cli.StringFlag{
			Name:  "user",
			Usage: "Only videos uploaded by this user ID",
		},
		&cli.StringFlag{
			Name:  "sort-by",
			Usage: "Sort field (createdAt, views, duration)",
		},
		&cli.StringFlag{
			Name:  "sort-type",
			Usage: "Sort direction (asc, desc)",
		},
	}, pageFlags()...)
	listFlags = append(listFlags, jsonFlags()...)

	return &cli.Command{
		Name:    "videos",
		Aliases: []string{"v"},
		Usage:   "Browse, upload and manage videos",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List published videos",
				Flags:  listFlags,
				Action: r.optionalAuth(r.VideosList),
			},
			{
				Name:      "get",
				Usage:     "Show a video",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the video file in the default player",
					},
				}, jsonFlags()...),
				Action: r.optionalAuth(r.VideosGet),
			},
			{
				Name:  "upload",
				Usage: "Upload and publish a video",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Video title", Required: true},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Video description", Required: true},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Path to the video file", Required: true},
					&cli.StringFlag{Name: "thumbnail", Usage: "Path to the thumbnail image", Required: true},
				}, jsonFlags()...),
				Action: r.requireAuth(r.VideosUpload),
			},
			{
				Name:      "toggle",
				Usage:     "Toggle a video between published and private",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.requireAuth(r.VideosTogglePublish),
			},
			{
				Name:      "delete",
				Usage:     "Delete a video",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.requireAuth(r.VideosDelete),
			},
		},
	}
}

func channelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "channel",
		Usage:     "Show a channel and its videos",
		Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
		Flags:     append(pageFlags(), jsonFlags()...),
		Action:    r.optionalAuth(r.ChannelShow),
	}
}

func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Find other users",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search users by username or name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     jsonFlags(),
				Action:    r.optionalAuth(r.ChannelSearch),
			},
		},
	}
}

func commentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "comments",
		Usage: "Read and write video comments",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List comments on a video",
				Arguments: []cli.Argument{&cli.StringArg{Name: "video"}},
				Flags:     append(pageFlags(), jsonFlags()...),
				Action:    r.optionalAuth(r.CommentsList),
			},
			{
				Name:      "add",
				Usage:     "Comment on a video",
				Arguments: []cli.Argument{&cli.StringArg{Name: "video"}, &cli.StringArg{Name: "content"}},
				Action:    r.requireAuth(r.CommentsAdd),
			},
			{
				Name:      "delete",
				Usage:     "Delete one of your comments",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.requireAuth(r.CommentsDelete),
			},
		},
	}
}

func likeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "like",
		Usage:     "Toggle your like on a video",
		Arguments: []cli.Argument{&cli.StringArg{Name: "video"}},
		Action:    r.requireAuth(r.Like),
	}
}

func subscribeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Toggle your subscription to a channel",
		Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
		Action:    r.requireAuth(r.Subscribe),
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage and export playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists, or another user's",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "User ID whose playlists to list"},
				}, jsonFlags()...),
				Action: r.requireAuth(r.PlaylistsList),
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its videos",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.requireAuth(r.PlaylistsShow),
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
				},
				Action: r.requireAuth(r.PlaylistsCreate),
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.requireAuth(r.PlaylistsDelete),
			},
			{
				Name:      "add",
				Usage:     "Add a video to a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}, &cli.StringArg{Name: "video"}},
				Action:    r.requireAuth(r.PlaylistsAdd),
			},
			{
				Name:      "remove",
				Usage:     "Remove a video from a playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}, &cli.StringArg{Name: "video"}},
				Action:    r.requireAuth(r.PlaylistsRemove),
			},
			{
				Name:  "export",
				Usage: "Export playlists to disk",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Playlist ID to export (repeatable); defaults to all of your playlists",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (json, csv, markdown, txt)",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (defaults to export.workers)",
					},
					&cli.BoolFlag{
						Name:  "covers",
						Usage: "Download cover images for markdown exports",
					},
				},
				Action: r.requireAuth(r.PlaylistsExport),
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "Show your watch history",
		Flags:  jsonFlags(),
		Action: r.requireAuth(r.History),
	}
}

func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Show channel statistics and uploads",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "videos", Usage: "Also list every upload"},
		}, jsonFlags()...),
		Action: r.requireAuth(r.Dashboard),
	}
}

func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Update your account",
		Commands: []*cli.Command{
			{
				Name:  "update",
				Usage: "Change full name and email",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "fullname", Usage: "New full name"},
					&cli.StringFlag{Name: "email", Usage: "New email"},
				},
				Action: r.requireAuth(r.ProfileUpdate),
			},
			{
				Name:      "avatar",
				Usage:     "Upload a new avatar",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Action:    r.requireAuth(r.ProfileAvatar),
			},
			{
				Name:      "cover",
				Usage:     "Upload a new cover image",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Action:    r.requireAuth(r.ProfileCover),
			},
			{
				Name:  "password",
				Usage: "Change your password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "old", Usage: "Current password", Required: true},
					&cli.StringFlag{Name: "new", Usage: "New password", Required: true},
				},
				Action: r.requireAuth(r.ProfilePassword),
			},
		},
	}
}

func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Fetch profile, history and channel data in one go",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the backup to this file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.requireAuth(r.Backup),
	}
}

func cookiesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cookies",
		Usage: "Inspect the persisted cookie jar",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored cookies",
				Flags:  jsonFlags(),
				Action: r.CookiesList,
			},
			{
				Name:   "clear",
				Usage:  "Delete every stored cookie",
				Action: r.CookiesClear,
			},
		},
	}
}

// apiCommand handles raw authenticated API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Raw authenticated calls to the VideoTube API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.optionalAuth(r.APIGet),
			},
			{
				Name:  "post",
				Usage: "POST a JSON body to a path",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.optionalAuth(r.APIPost),
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse videos interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Start with a search",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI is running",
				Value: "./tmp/vtx-tui.log",
			},
		},
		Action: r.optionalAuth(r.TUI),
	}
}
