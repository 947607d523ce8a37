package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RequestOptions describes one call. Body is JSON encoded unless it is
// already a []byte or json.RawMessage.
type RequestOptions struct {
	Method string
	Query  url.Values
	Body   any
	Header http.Header
}

func needsCSRF(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// resolve maps a path to a full URL. Paths already starting with /api are
// taken relative to the origin, anything else relative to the API root.
func (s *Session) resolve(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var full string
	if strings.HasPrefix(path, "/api") {
		full = s.origin.String() + path
	} else {
		full = s.apiRoot + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + query.Encode()
	}
	return full
}

// AuthFetch performs a request against the API and decodes a 2xx JSON body
// into out (out may be nil).
//
// Mutating methods get a CSRF header, priming the cookie first when it is
// missing. Unless anonymous, the held access token is sent as a bearer
// token; a 401 then triggers one refresh and one retry. A failed refresh
// clears the token, fires OnSessionExpired and returns ErrSessionExpired.
func (s *Session) AuthFetch(ctx context.Context, path string, opts RequestOptions, anonymous bool, out any) error {
	fullURL := s.resolve(path, opts.Query)
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return err
	}

	if needsCSRF(method) && s.CSRFToken() == "" {
		s.primeCSRF(ctx)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	if csrf := s.CSRFToken(); csrf != "" {
		headers.Set(csrfHeader, csrf)
	}
	token := s.AccessToken()
	if token != "" && !anonymous {
		headers.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range opts.Header {
		headers[http.CanonicalHeaderKey(k)] = vs
	}

	status, respBody, err := s.send(ctx, method, fullURL, headers, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !anonymous && token != "" {
		newToken, rerr := s.refreshShared(ctx)
		if rerr == nil {
			s.SetAccessToken(newToken)
		}
		// A caller that gave up meanwhile says nothing about the session.
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if rerr != nil {
			s.log.Warn().Err(rerr).Str("url", fullURL).Msg("refresh failed, ending session")
			s.expire()
			return ErrSessionExpired
		}

		headers.Set("Authorization", "Bearer "+newToken)
		status, respBody, err = s.send(ctx, method, fullURL, headers, body)
		if err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		apiErr := newAPIError(status, respBody)
		s.log.Debug().Int("status", status).Str("url", fullURL).Str("message", apiErr.Message).Msg("api error")
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w (body: %s)", err, string(respBody))
		}
	}
	return nil
}

// expire clears the token. The hook fires once per session, not once per
// caller that saw the failed refresh.
func (s *Session) expire() {
	s.mu.Lock()
	held := s.accessToken != ""
	s.accessToken = ""
	s.mu.Unlock()
	if held && s.onExpired != nil {
		s.onExpired()
	}
}

// primeCSRF asks the server to set the csrftoken cookie. Failure is ignored;
// the request then goes out without the header and the server decides.
func (s *Session) primeCSRF(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiRoot+csrfPath, nil)
	if err != nil {
		return
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Debug().Err(err).Msg("csrf priming failed")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (s *Session) send(ctx context.Context, method, fullURL string, headers http.Header, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header = headers.Clone()

	s.log.Debug().Str("method", method).Str("url", fullURL).Msg("api request")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response: %v", ErrRequestFailed, err)
	}
	return resp.StatusCode, data, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return data, nil
}

func isTransportErr(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}
