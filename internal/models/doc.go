// Package models defines the VideoTube resources exchanged with the REST API.
//
// Every endpoint wraps its payload in an [Envelope]; list endpoints nest a [Page] inside it.
//
// Resource types:
//   - [User], [Channel] : account and public channel profiles
//   - [Video], [Owner] : uploads and their embedded uploader
//   - [Comment] : video comments
//   - [Playlist] : user playlists with embedded videos
//   - [DashboardStats] : creator dashboard totals
//   - [LoginResult], [TokenPair] : authentication payloads
//
// Field names follow the API's JSON (Mongo style "_id", camelCase elsewhere).
package models
