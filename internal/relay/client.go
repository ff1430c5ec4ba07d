package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// Client talks to a relay over HTTP.
type Client struct {
	base       string
	http       *http.Client
	log        zerolog.Logger
	newBackOff func() backoff.BackOff
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithBackOff sets the retry policy; fn is called once per request.
func WithBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = fn }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log.With().Str("component", "relay").Logger() }
}

// NewClient returns a client for the relay at base, e.g. "http://localhost:8080".
func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		log:  zerolog.Nop(),
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StatusError is a non-2xx relay response.
type StatusError struct {
	Method string
	URL    string
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("relay %s %s: %d %s: %s", e.Method, e.URL, e.Status, http.StatusText(e.Status), e.Msg)
	}
	return fmt.Sprintf("relay %s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}

// Unwrap maps 404 to domain.ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// PublishBundle uploads owner's public bundle.
func (c *Client) PublishBundle(ctx context.Context, owner domain.PeerID, bundle domain.PreKeyBundle) error {
	return c.do(ctx, http.MethodPut, "/v1/bundles/"+url.PathEscape(owner.String()), bundle, nil)
}

// FetchPeerBundle downloads peer's bundle. The relay hands out at most one
// one-time pre-key per fetch.
func (c *Client) FetchPeerBundle(ctx context.Context, peer domain.PeerID) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.do(ctx, http.MethodGet, "/v1/bundles/"+url.PathEscape(peer.String()), nil, &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

// PushEnvelope queues env for to. A retried push after a lost response can
// queue the envelope twice; the receiver rejects the duplicate.
func (c *Client) PushEnvelope(ctx context.Context, from, to domain.PeerID, env domain.Envelope) error {
	req := PushRequest{From: from, Envelope: env}
	return c.do(ctx, http.MethodPost, "/v1/envelopes/"+url.PathEscape(to.String()), req, &PushResponse{})
}

// PullEnvelopes returns one page of deliveries for owner after sinceCursor.
func (c *Client) PullEnvelopes(ctx context.Context, owner domain.PeerID, sinceCursor string) ([]domain.Delivery, error) {
	q := url.Values{}
	if sinceCursor != "" {
		q.Set("since", sinceCursor)
	}
	q.Set("limit", strconv.Itoa(DefaultPullLimit))

	var out PullResponse
	path := "/v1/envelopes/" + url.PathEscape(owner.String()) + "?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Deliveries, nil
}

// Health checks that the relay answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do sends one JSON request, retrying network errors and 5xx responses.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	u := c.base + path

	op := func() error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			serr := &StatusError{Method: method, URL: u, Status: resp.StatusCode, Msg: errorMessage(resp.Body)}
			if resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("relay %s %s: decode: %w", method, u, err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Dur("retry_in", wait).Msg("relay request failed")
	}
	return backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify)
}

func errorMessage(r io.Reader) string {
	var e errorResponse
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&e); err != nil {
		return ""
	}
	return e.Error
}

var (
	_ domain.BundleDirectory   = (*Client)(nil)
	_ domain.EnvelopeTransport = (*Client)(nil)
	_ error                    = (*StatusError)(nil)
)
