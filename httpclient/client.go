// Package httpclient is the JSON transport used for every backend call. It
// attaches the stored bearer token and, on a 401, asks its Refresher for a new
// token and replays the request once.
package httpclient

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
	"sync"
	"time"

	"github.com/jrsteele09/go-clinic-auth/tokenstore"
	"github.com/rs/zerolog"
)

const (
	contentTypeJSON = "application/json"
	defaultTimeout  = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// ErrNetwork marks transport failures: the server was never reached or did not answer in time.
var ErrNetwork = errors.New("network error")

// StatusError is a non-2xx response. Message is taken from the body when present.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// TokenSource supplies the bearer token to attach. *tokenstore.Store satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Refresher obtains a fresh access token after a 401.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

type noRefreshKey struct{}

// WithoutRefresh marks requests whose 401 must be returned as is, such as the
// auth endpoints themselves.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRefreshKey{}, true)
}

func refreshDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRefreshKey{}).(bool)
	return v
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     zerolog.Logger

	refresherLock sync.RWMutex
	refresher     Refresher
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying client. Its Timeout is kept as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, tokens TokenSource, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// SetRefresher wires the component that renews tokens. It is set after
// construction because the refresher itself talks through this client.
func (c *Client) SetRefresher(r Refresher) {
	c.refresherLock.Lock()
	defer c.refresherLock.Unlock()
	c.refresher = r
}

func (c *Client) getRefresher() Refresher {
	c.refresherLock.RLock()
	defer c.refresherLock.RUnlock()
	return c.refresher
}

// Do sends in as a JSON body (when non-nil) and decodes the response into out
// (when non-nil). A 401 triggers at most one refresh and one replay; a replayed
// request is never retried again.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	err := c.send(ctx, method, path, body, out, c.tokens.AccessToken(ctx))
	if !IsUnauthorized(err) || refreshDisabled(ctx) {
		return err
	}
	refresher := c.getRefresher()
	if refresher == nil {
		return err
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("httpclient: 401, refreshing")
	token, refreshErr := refresher.Refresh(ctx)
	if errors.Is(refreshErr, tokenstore.ErrNoRefreshToken) {
		return err
	}
	if refreshErr != nil {
		return refreshErr
	}
	return c.send(ctx, method, path, body, out, token)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, out any, token string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %w", ErrNetwork, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: messageFromBody(data), Body: data}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) url(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// messageFromBody extracts a human readable message from either the envelope
// shape or an OAuth style error body.
func messageFromBody(data []byte) string {
	var body struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	switch {
	case body.Message != "":
		return body.Message
	case body.ErrorDescription != "":
		return body.ErrorDescription
	}
	return body.Error
}
