// Package services implements the authenticated HTTP pipeline and the VideoTube API client built on it.
//
// # Authenticated Requests
//
// [APIService.Send] attaches the session's access token as a bearer header and dispatches the request.
// A 401 triggers exactly one refresh: POST /users/refresh-token with no Authorization header, relying on the
// refresh cookie held by the HTTP client's cookie jar. On success the new token is stored and the request is
// replayed once; whatever the replay returns is final. On failure the session is expired
// ([session.EventExpired]) and the original 401 is returned.
//
// Request bodies are [BodyFunc] values opened once per attempt so a replay sends the same bytes.
// [MultipartForm] re-opens its files for each attempt and keeps a fixed boundary.
//
// Concurrent 401s refresh independently unless [APIServiceOpts.CollapseRefresh] is set, in which case they
// share a single in-flight refresh.
//
// # VideoTube Endpoints
//
// [VideoTubeService] wraps each endpoint in a typed call that unwraps the { statusCode, data, message } envelope.
// Login, logout, profile updates and [VideoTubeService.RestoreSession] keep the session store in step.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : any response with status >= 400 (as [*APIError])
//   - [shared.ErrUnauthorized] : a 401 that survived the refresh cycle
//   - [shared.ErrRefreshFailed] : cause attached to the expiry event
//   - [shared.ErrMissingArgument] : an empty path id, rejected before any request
//   - [shared.ErrVideoNotFound], [shared.ErrPlaylistNotFound] : 404 on lookups
package services
