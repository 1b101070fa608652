// Utilities for importing a browser session from a "Copy as cURL" command.
package shared

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	curlFlagRe   = regexp.MustCompile(`(?:-H|-b|--cookie|-X|--request|-d|--data(?:-raw|-binary|-urlencode)?)\s+(?:'[^']*'|"[^"]*"|\S+)`)
	curlURLRe    = regexp.MustCompile(`'(https?://[^']+)'|"(https?://[^"]+)"|(https?://[^\s'"]+)`)
)

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(filepath string) (*CurlHeaders, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts the target URL, headers and cookies.
//
// A -b/--cookie flag takes precedence over a Cookie header.
func ParseCurlCommand(curlCmd string) (*CurlHeaders, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	result := &CurlHeaders{Headers: make(map[string]string)}
	var headerCookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		result.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(curlCmd); m != nil {
		result.Cookie = firstGroup(m)
	} else {
		result.Cookie = headerCookie
	}

	// Flag values can contain URLs of their own, so they are removed before looking for the target.
	if m := curlURLRe.FindStringSubmatch(curlFlagRe.ReplaceAllString(curlCmd, " ")); m != nil {
		result.URL = firstGroup(m)
	}

	if len(result.Headers) == 0 && result.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return result, nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// BearerToken returns the token of an "Authorization: Bearer" header, if present.
func (c *CurlHeaders) BearerToken() string {
	for key, value := range c.Headers {
		if !strings.EqualFold(key, "authorization") {
			continue
		}
		scheme, token, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// Cookies parses the cookie string into individual cookies. Malformed pairs are skipped.
func (c *CurlHeaders) Cookies() []*http.Cookie {
	if c.Cookie == "" {
		return nil
	}
	cookies, err := http.ParseCookie(c.Cookie)
	if err == nil {
		return cookies
	}

	var parsed []*http.Cookie
	for _, part := range strings.Split(c.Cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		parsed = append(parsed, &http.Cookie{Name: name, Value: value})
	}
	return parsed
}

// Origin returns scheme://host of the captured request URL.
func (c *CurlHeaders) Origin() (*url.URL, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("%w: curl command has no URL", ErrInvalidInput)
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrInvalidInput, c.URL)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}
