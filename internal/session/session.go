package session

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vtx/internal/models"
	"github.com/desertthunder/vtx/internal/shared"
)

// Session is a point-in-time copy of the store state.
//
// An empty AccessToken means no token is known.
type Session struct {
	User            *models.User
	AccessToken     string
	IsAuthenticated bool
}

// EventKind identifies the transition that produced an [Event].
type EventKind int

const (
	EventLogin EventKind = iota
	EventLogout
	EventUserSet
	EventTokenRefreshed
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	case EventUserSet:
		return "user_set"
	case EventTokenRefreshed:
		return "token_refreshed"
	case EventExpired:
		return "expired"
	default:
		return ""
	}
}

// Event is delivered to subscribers after a transition has been applied.
type Event struct {
	Kind    EventKind
	Session Session
	Cause   error // set for EventExpired
}

// Listener observes store transitions.
type Listener func(Event)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store holds the current user and access token. Safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	creds         CredentialStore
	user          *models.User
	token         string
	authenticated bool

	lmu       sync.Mutex
	listeners []subscription
	nextID    int

	logger *log.Logger
}

// NewStore creates a store hydrated from creds: the persisted token (if any) is loaded, the user is unknown and the session is not authenticated until [Store.SetUser] or [Store.Login].
func NewStore(creds CredentialStore, opts ...Option) (*Store, error) {
	if creds == nil {
		creds = NewMemoryCredentialStore("")
	}

	token, err := creds.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted token: %w", err)
	}

	s := &Store{
		creds: creds,
		token: token,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}

	return s, nil
}

// Login stores user and token, marks the session authenticated and persists the token.
//
// A nil user or empty token is rejected and leaves the state untouched.
// If persisting fails the in-memory transition still applies and the error is returned.
func (s *Store) Login(user *models.User, token string) error {
	if user == nil {
		return fmt.Errorf("%w: user is required", shared.ErrInvalidInput)
	}
	if token == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.authenticated = true
	err := s.creds.Save(token)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventLogin, Session: snap})

	if err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	return nil
}

// Logout clears user, token and the authenticated flag and erases the persisted token. Idempotent.
func (s *Store) Logout() error {
	snap, err := s.clear()
	s.emit(Event{Kind: EventLogout, Session: snap})
	return err
}

// Expire is a forced logout after an unrecoverable refresh failure. Subscribers receive [EventExpired] with cause.
func (s *Store) Expire(cause error) {
	snap, err := s.clear()
	if err != nil {
		s.logger.Warn("failed to erase persisted token", "error", err)
	}
	s.emit(Event{Kind: EventExpired, Session: snap, Cause: cause})
}

func (s *Store) clear() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""
	s.authenticated = false
	if err := s.creds.Erase(); err != nil {
		return s.snapshotLocked(), fmt.Errorf("failed to erase access token: %w", err)
	}
	return s.snapshotLocked(), nil
}

// SetUser records the confirmed user and marks the session authenticated. The token is not touched.
func (s *Store) SetUser(user *models.User) error {
	if user == nil {
		return fmt.Errorf("%w: user is required", shared.ErrInvalidInput)
	}

	s.mu.Lock()
	s.user = user
	s.authenticated = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUserSet, Session: snap})
	return nil
}

// SetAccessToken replaces the token after a successful refresh and persists it.
//
// The authenticated flag and user are left as they are.
func (s *Store) SetAccessToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	s.mu.Lock()
	s.token = token
	err := s.creds.Save(token)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventTokenRefreshed, Session: snap})

	if err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Session {
	var user *models.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return Session{User: user, AccessToken: s.token, IsAuthenticated: s.authenticated}
}

// AccessToken returns the current token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *models.User {
	return s.Snapshot().User
}

// IsAuthenticated reports whether a user has been confirmed.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers fn for future events and returns a function that removes it.
// Listeners are called in subscription order.
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit runs listeners outside the state lock so they may read the store.
func (s *Store) emit(e Event) {
	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, sub := range s.listeners {
		listeners = append(listeners, sub.fn)
	}
	s.lmu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}
