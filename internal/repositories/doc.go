// Package repositories implements SQLite persistence for the client's session state.
//
// Key Implementations:
//   - [CredentialRepository] : the persisted access token (satisfies session.CredentialStore)
//   - [CookieRepository] : cookie rows keyed by origin, name and path
//   - [CookieJar] : an http.CookieJar writing through to [CookieRepository] so the API's http-only refresh cookie survives restarts
//
// [Open] opens the database and applies the embedded migrations from the shared package.
package repositories
