// Package apiclient is the shared HTTP client for calls to the OpenLeaf REST backend.
//
// Call sites never handle credentials themselves. Request decorators registered on the
// Client run inside its transport immediately before each request is dispatched, so a
// decorator that reads the current access token always sends the latest rotation.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20
	contentTypeJSON = "application/json"
)

// Decorator mutates an outgoing request before it is sent.
type Decorator func(*http.Request)

// DecoratorID identifies a registered Decorator so it can be ejected later.
type DecoratorID uint64

type registeredDecorator struct {
	id        DecoratorID
	decorator Decorator
}

// Client sends JSON requests to the backend, applying the registered decorators.
type Client struct {
	httpClient *http.Client

	mu         sync.RWMutex
	decorators []registeredDecorator
	nextID     DecoratorID
}

type Option func(*Client)

// WithHTTPClient uses a copy of httpClient; its transport is wrapped, not replaced.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		copied := *httpClient
		c.httpClient = &copied
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func New(options ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}

	next := c.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.httpClient.Transport = &decoratingTransport{client: c, next: next}
	return c
}

// Use registers a decorator and returns its id.
func (c *Client) Use(d Decorator) DecoratorID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.decorators = append(c.decorators, registeredDecorator{id: c.nextID, decorator: d})
	return c.nextID
}

// Eject removes a decorator. It returns false when id is not registered, which makes a
// second ejection of the same id a no-op.
func (c *Client) Eject(id DecoratorID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, d := range c.decorators {
		if d.id == id {
			c.decorators = append(c.decorators[:i], c.decorators[i+1:]...)
			return true
		}
	}
	return false
}

// Decorators returns the number of registered decorators.
func (c *Client) Decorators() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decorators)
}

func (c *Client) snapshotDecorators() []Decorator {
	c.mu.RLock()
	defer c.mu.RUnlock()

	decorators := make([]Decorator, len(c.decorators))
	for i, d := range c.decorators {
		decorators[i] = d.decorator
	}
	return decorators
}

// Do sends in as a JSON body (when non-nil) and decodes a 2xx JSON response into out (when
// non-nil). 401 and 403 responses yield an error matching ErrStaleAuthorization.
func (c *Client) Do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("[apiclient Do] failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("[apiclient Do] failed to build request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("[apiclient Do] %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("[apiclient Do] failed to read response: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, url, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("[apiclient Do] failed to decode response from %s: %w", url, err)
	}
	return nil
}

// decoratingTransport applies the client's decorators to a clone of every outgoing request.
type decoratingTransport struct {
	client *Client
	next   http.RoundTripper
}

func (t *decoratingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	decorators := t.client.snapshotDecorators()
	if len(decorators) == 0 {
		return t.next.RoundTrip(req)
	}

	decorated := req.Clone(req.Context())
	for _, decorate := range decorators {
		decorate(decorated)
	}
	return t.next.RoundTrip(decorated)
}
