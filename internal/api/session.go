// Package api holds the client side of a user session against the
// coinfolio server: the access token, the cookie jar carrying the refresh
// and CSRF cookies, and AuthFetch, the one way authenticated requests leave
// the process.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	csrfCookie = "csrftoken"
	csrfHeader = "X-CSRFToken"

	refreshPath = "/accounts/refresh/"
	logoutPath  = "/accounts/logout/"
	csrfPath    = "/csrf/"
)

// Options configures a Session. Zero values are usable.
type Options struct {
	HTTPClient *http.Client // must carry a cookie jar if set; one is added otherwise
	Timeout    time.Duration
	Logger     zerolog.Logger

	// OnSessionExpired fires after a failed refresh cleared the token.
	// Front ends send the user back to their login screen here.
	OnSessionExpired func()
	// OnLoggedOut fires after Logout cleared the token.
	OnLoggedOut func()
}

// Session is the process-wide auth context. It is safe for concurrent use.
type Session struct {
	origin  *url.URL // scheme://host of the API
	apiRoot string   // origin + "/api"
	http    *http.Client
	timeout time.Duration // bounds the shared refresh
	log     zerolog.Logger

	mu          sync.RWMutex
	accessToken string
	loading     bool

	refreshes singleflight.Group

	onExpired   func()
	onLoggedOut func()
}

// NewSession creates a session against baseURL, e.g. "http://localhost:8000/api".
// The session starts in the loading state until Bootstrap runs.
func NewSession(baseURL string, opts Options) (*Session, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", baseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		client.Jar = jar
	}

	timeout := client.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	origin := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	root := parsed.Path
	if !strings.HasSuffix(root, "/api") {
		root += "/api"
	}

	return &Session{
		origin:      origin,
		apiRoot:     origin.String() + root,
		http:        client,
		timeout:     timeout,
		log:         opts.Logger.With().Str("component", "session").Logger(),
		loading:     true,
		onExpired:   opts.OnSessionExpired,
		onLoggedOut: opts.OnLoggedOut,
	}, nil
}

// AccessToken returns the held token, "" when logged out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SetAccessToken replaces the held token. "" logs the session out locally.
func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

// Loading reports whether the startup refresh is still outstanding.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// APIRoot returns the URL every relative path is resolved against.
func (s *Session) APIRoot() string {
	return s.apiRoot
}

// Bootstrap attempts a silent refresh from the long-lived refresh cookie.
// Failure is not an error: the session simply stays anonymous.
func (s *Session) Bootstrap(ctx context.Context) {
	token, err := s.refresh(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("no valid refresh token")
		token = ""
	}

	s.mu.Lock()
	s.accessToken = token
	s.loading = false
	s.mu.Unlock()
}

// Logout invalidates the server session and drops the held token.
func (s *Session) Logout(ctx context.Context) error {
	err := s.AuthFetch(ctx, logoutPath, RequestOptions{Method: http.MethodPost}, true, nil)
	if isTransportErr(err) {
		s.log.Error().Err(err).Msg("logout failed")
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}
	if err != nil {
		// The server answered; the local session ends either way.
		s.log.Warn().Err(err).Msg("logout rejected by server")
	}

	s.SetAccessToken("")
	if s.onLoggedOut != nil {
		s.onLoggedOut()
	}
	return nil
}

// CSRFToken returns the csrftoken cookie value, "" when absent.
func (s *Session) CSRFToken() string {
	for _, c := range s.http.Jar.Cookies(s.origin) {
		if c.Name == csrfCookie {
			return c.Value
		}
	}
	return ""
}

// refreshShared runs at most one refresh at a time; concurrent callers
// receive the same result. The refresh is detached from the cancellation of
// whichever caller started it and bounded by the session timeout instead.
func (s *Session) refreshShared(ctx context.Context) (string, error) {
	v, err, shared := s.refreshes.Do("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(rctx)
	})
	if shared {
		s.log.Debug().Msg("joined in-flight refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiRoot+refreshPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: refresh: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("refresh rejected: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("refresh response carried no access_token")
	}
	return body.AccessToken, nil
}
