package httpjson

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amirimatin/eventstore-probes/pkg/gossip"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	obsmetrics "github.com/amirimatin/eventstore-probes/pkg/observability/metrics"
	"github.com/amirimatin/eventstore-probes/pkg/observability/tracing"
	"github.com/amirimatin/eventstore-probes/pkg/projections"
	"github.com/amirimatin/eventstore-probes/pkg/stats"
	"github.com/amirimatin/eventstore-probes/pkg/streams"
	"github.com/amirimatin/eventstore-probes/pkg/transport"
)

const (
	AcceptJSON = "application/json"
	AcceptXML  = "application/xml"
	AcceptAtom = "application/atom+xml"
)

// StatusError is a non-200 answer from the event store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// FetchError carries the URL a request failed against so callers can name
// it in operator messages.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("GET %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Client is a thin HTTP client for the event store's HTTP API. It supports
// optional TLS and basic auth, and retries failed GETs with exponential
// backoff.
type Client struct {
	httpc     *http.Client
	transport *http.Transport
	isTLS     bool
	user      string
	password  string
	attempts  int
	backoff   time.Duration
	logger    *log.Logger
	breaker   *gobreaker.CircuitBreaker
}

// NewClient constructs a new Client with the given per-attempt timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{Proxy: http.ProxyFromEnvironment}
	return &Client{
		httpc:     &http.Client{Timeout: timeout, Transport: tr},
		transport: tr,
		attempts:  4,
		backoff:   100 * time.Millisecond,
		logger:    log.Default(),
	}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
	if c.transport != nil {
		c.transport.TLSClientConfig = cfg
	}
	c.isTLS = cfg != nil
	return c
}

// UseBasicAuth sends credentials with every request. An empty user disables
// authentication.
func (c *Client) UseBasicAuth(user, password string) *Client {
	c.user, c.password = user, password
	return c
}

// WithRetry overrides the number of attempts and the initial backoff, which
// doubles after every failed attempt.
func (c *Client) WithRetry(attempts int, backoff time.Duration) *Client {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts, c.backoff = attempts, backoff
	return c
}

// WithLogger sets the logger used for debug output.
func (c *Client) WithLogger(l *log.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// UseBreaker makes the client fail fast with gobreaker.ErrOpenState once
// threshold consecutive requests have failed, letting one request through
// again after cooldown. Only transport errors and 5xx answers count as
// failures.
func (c *Client) UseBreaker(threshold uint32, cooldown time.Duration) *Client {
	if threshold == 0 {
		c.breaker = nil
		return c
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "eventstore",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logutil.Warnf(c.logger, "httpjson: breaker %s %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil
		},
	})
	return c
}

// URL builds "<scheme>://<addr>:<port><path>".
func (c *Client) URL(addr string, port int, path string) string {
	scheme := "http"
	if c.isTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(addr, strconv.Itoa(port)), path)
}

// Get fetches rawURL and returns the body of a 200 response. Transport
// errors and 5xx answers are retried; other statuses fail at once. Every
// failure is a *FetchError.
func (c *Client) Get(ctx context.Context, endpoint, rawURL, accept string) ([]byte, error) {
	ctx, end := tracing.StartSpan(ctx, "http.get",
		attribute.String("http.url", rawURL),
		attribute.String("es.endpoint", endpoint),
	)
	defer end()

	body, err := c.guarded(ctx, rawURL, accept)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		tracing.Fail(ctx, err)
		err = &FetchError{URL: rawURL, Err: err}
	}
	obsmetrics.HTTPRequests.WithLabelValues(endpoint, outcome).Inc()
	return body, err
}

func (c *Client) guarded(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if c.breaker == nil {
		return c.get(ctx, rawURL, accept)
	}
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, rawURL, accept)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		logutil.Debugf(c.logger, "httpjson: GET %s (attempt %d)", rawURL, attempt+1)
		body, retry, err := c.do(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || attempt == c.attempts-1 {
			break
		}
		// backoff unless context is done
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(1<<attempt)):
		}
	}
	return nil, lastErr
}

func (c *Client) do(req *http.Request) (body []byte, retry bool, err error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, req.Context().Err() == nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	return b, false, nil
}

// Gossip fetches and decodes /gossip in the requested format.
func (c *Client) Gossip(ctx context.Context, addr string, port int, f gossip.Format) (gossip.Snapshot, error) {
	accept := AcceptJSON
	if f == gossip.FormatXML {
		accept = AcceptXML
	}
	u := c.URL(addr, port, "/gossip?format="+string(f))
	b, err := c.Get(ctx, "gossip", u, accept)
	if err != nil {
		return gossip.Snapshot{}, err
	}
	s, err := gossip.Decode(bytes.NewReader(b), f)
	if err != nil {
		return gossip.Snapshot{}, &FetchError{URL: u, Err: err}
	}
	return s, nil
}

// Projections fetches /projections/<kind>, where kind is "continuous" or
// "any".
func (c *Client) Projections(ctx context.Context, addr string, port int, kind string) ([]projections.Projection, error) {
	u := c.URL(addr, port, "/projections/"+kind)
	b, err := c.Get(ctx, "projections", u, AcceptJSON)
	if err != nil {
		return nil, err
	}
	list, err := projections.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	return list, nil
}

// StatsFeed fetches the node's own $stats stream as an Atom feed.
func (c *Client) StatsFeed(ctx context.Context, addr string, port int) (stats.Feed, error) {
	u := c.URL(addr, port, "/streams/"+url.PathEscape(stats.StreamName(addr, port)))
	b, err := c.Get(ctx, "stats-feed", u, AcceptAtom)
	if err != nil {
		return stats.Feed{}, err
	}
	f, err := stats.DecodeFeed(bytes.NewReader(b))
	if err != nil {
		return stats.Feed{}, &FetchError{URL: u, Err: err}
	}
	return f, nil
}

// StatsEntry fetches one stats event by the URL found in the feed.
func (c *Client) StatsEntry(ctx context.Context, entryURL string) (map[string]any, error) {
	b, err := c.Get(ctx, "stats-entry", entryURL, AcceptJSON)
	if err != nil {
		return nil, err
	}
	m, err := stats.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, &FetchError{URL: entryURL, Err: err}
	}
	return m, nil
}

// Streams returns a streams.Fetcher bound to one node.
func (c *Client) Streams(addr string, port int) streams.Fetcher {
	return nodeStreams{c: c, addr: addr, port: port}
}

type nodeStreams struct {
	c    *Client
	addr string
	port int
}

func (n nodeStreams) Stream(ctx context.Context, name string) (io.ReadCloser, error) {
	u := n.c.URL(n.addr, n.port, "/streams/"+url.PathEscape(name))
	b, err := n.c.Get(ctx, "stream", u, AcceptJSON)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

var _ transport.Client = (*Client)(nil)
