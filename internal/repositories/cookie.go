package repositories

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vtx/internal/shared"
	"golang.org/x/net/publicsuffix"
)

// StoredCookie is a cookies row.
type StoredCookie struct {
	ID        string
	URL       string
	Name      string
	Value     string
	Domain    string
	Path      string
	ExpiresAt *time.Time
	Secure    bool
	HTTPOnly  bool
	UpdatedAt time.Time
}

// Expired reports whether the cookie has an expiry in the past.
func (c StoredCookie) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// HTTPCookie converts the row back into an [http.Cookie].
func (c StoredCookie) HTTPCookie() *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if c.ExpiresAt != nil {
		cookie.Expires = *c.ExpiresAt
	}
	return cookie
}

// CookieRepository persists cookies keyed by (url, name, path).
type CookieRepository struct {
	db *sql.DB
}

// NewCookieRepository creates a new [CookieRepository] with the given database connection
func NewCookieRepository(db *sql.DB) *CookieRepository {
	return &CookieRepository{db: db}
}

// Upsert inserts or replaces a cookie for origin.
func (r *CookieRepository) Upsert(origin string, c *http.Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}

	var expires any
	switch {
	case c.MaxAge > 0:
		expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		expires = c.Expires
	}

	query := `
		INSERT INTO cookies (id, url, name, value, domain, path, expires_at, secure, http_only, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url, name, path) DO UPDATE SET
			value = excluded.value,
			domain = excluded.domain,
			expires_at = excluded.expires_at,
			secure = excluded.secure,
			http_only = excluded.http_only,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, shared.GenerateID(), origin, c.Name, c.Value, c.Domain, path, expires, c.Secure, c.HttpOnly, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save cookie: %w", err)
	}
	return nil
}

// Delete removes a cookie by (url, name, path).
func (r *CookieRepository) Delete(origin, name, path string) error {
	if path == "" {
		path = "/"
	}
	if _, err := r.db.Exec(`DELETE FROM cookies WHERE url = ? AND name = ? AND path = ?`, origin, name, path); err != nil {
		return fmt.Errorf("failed to delete cookie: %w", err)
	}
	return nil
}

// DeleteAll removes every stored cookie.
func (r *CookieRepository) DeleteAll() error {
	if _, err := r.db.Exec(`DELETE FROM cookies`); err != nil {
		return fmt.Errorf("failed to delete cookies: %w", err)
	}
	return nil
}

// List returns all stored cookies ordered by url and name.
func (r *CookieRepository) List() ([]StoredCookie, error) {
	rows, err := r.db.Query(`
		SELECT id, url, name, value, domain, path, expires_at, secure, http_only, updated_at
		FROM cookies
		ORDER BY url ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	var cookies []StoredCookie
	for rows.Next() {
		var (
			c         StoredCookie
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.URL, &c.Name, &c.Value, &c.Domain, &c.Path, &expiresAt, &c.Secure, &c.HTTPOnly, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if expiresAt.Valid {
			c.ExpiresAt = &expiresAt.Time
		}
		cookies = append(cookies, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cookies, nil
}

// CookieJar is an [http.CookieJar] that writes through to a [CookieRepository], so the refresh cookie set by the API survives restarts.
type CookieJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	repo   *CookieRepository
	logger *log.Logger
}

// NewCookieJar creates a jar and replays unexpired stored cookies into it. A nil logger writes to stderr.
func NewCookieJar(repo *CookieRepository, logger *log.Logger) (*CookieJar, error) {
	jar, err := newMemoryJar()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	j := &CookieJar{jar: jar, repo: repo, logger: logger}

	stored, err := repo.List()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, c := range stored {
		if c.Expired(now) {
			continue
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			continue
		}
		jar.SetCookies(u, []*http.Cookie{c.HTTPCookie()})
	}

	return j, nil
}

func newMemoryJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// SetCookies implements [http.CookieJar]. Persistence errors are logged; the in-memory jar is authoritative for the running process.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	origin := cookieOrigin(u)
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			if err := j.repo.Delete(origin, c.Name, c.Path); err != nil {
				j.logger.Warn("stored cookie not removed", "name", c.Name, "origin", origin, "error", err)
			}
			continue
		}
		if err := j.repo.Upsert(origin, c); err != nil {
			j.logger.Warn("cookie not persisted", "name", c.Name, "origin", origin, "error", err)
		}
	}
}

// Cookies implements [http.CookieJar].
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Stored lists the persisted cookies, including expired rows not yet replaced.
func (j *CookieJar) Stored() ([]StoredCookie, error) {
	return j.repo.List()
}

// Clear drops every cookie from memory and storage.
func (j *CookieJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := newMemoryJar()
	if err != nil {
		return err
	}
	j.jar = jar
	return j.repo.DeleteAll()
}

func cookieOrigin(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}
