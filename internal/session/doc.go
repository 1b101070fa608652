// Package session holds the authenticated identity of the running client.
//
// A [Store] is the single source of truth for who is logged in. It is created once at startup, passed explicitly to whatever issues requests, and mutated only through its transitions:
//   - [Store.Login] : user + access token, token persisted
//   - [Store.SetUser] : user confirmed for an already known token
//   - [Store.SetAccessToken] : token replaced after a refresh
//   - [Store.Logout] : everything cleared, persisted token erased
//   - [Store.Expire] : Logout plus an [EventExpired] notification
//
// The access token is the only piece of session state that survives a restart. It lives in a [CredentialStore]: [FileCredentialStore], [MemoryCredentialStore], or the sqlite-backed repositories.CredentialRepository.
//
// Observers register with [Store.Subscribe] and receive an [Event] after every transition.
// Presentation code reacts to [EventExpired] instead of the request pipeline navigating on its own.
package session
