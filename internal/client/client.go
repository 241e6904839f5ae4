package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"adoptik/petfeed/internal/feed"
)

const (
	videosEndpoint = "/v1/videos"
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	backoffFactor         = 2.0

	// Requests per second allowed towards the API, with a small burst for
	// the reactions that follow a page load.
	defaultRate  = 10
	defaultBurst = 5
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned non-2xx status: %d - Body: %s", e.StatusCode, e.Body)
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	APIKey         string
	PageSize       int
	HTTPClient     *http.Client
	Limiter        *rate.Limiter
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zerolog.Logger
}

// Client reads the video feed from the petfeed HTTP API. It implements
// feed.Provider and feed.Reactor.
type Client struct {
	base           *url.URL
	apiKey         string
	pageSize       int
	http           *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	log            zerolog.Logger
}

var (
	_ feed.Provider = (*Client)(nil)
	_ feed.Reactor  = (*Client)(nil)
)

// New returns a Client for the API at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base API URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base API URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:           base,
		apiKey:         opts.APIKey,
		pageSize:       opts.PageSize,
		http:           opts.HTTPClient,
		limiter:        opts.Limiter,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		log:            zerolog.Nop(),
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: requestTimeout}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Limit(defaultRate), defaultBurst)
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = defaultInitialBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = defaultMaxBackoff
	}
	return c, nil
}

// FetchPage returns page of the feed. An empty slice marks the end.
func (c *Client) FetchPage(ctx context.Context, page int) ([]feed.VideoItem, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if c.pageSize > 0 {
		query.Set("limit", strconv.Itoa(c.pageSize))
	}

	var items []feed.VideoItem
	err := c.retryWithBackoff(ctx, func() error {
		items = nil
		return c.do(ctx, http.MethodGet, videosEndpoint, query, &items)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}
	c.log.Debug().Int("page", page).Int("items", len(items)).Msg("Fetched feed page")
	if items == nil {
		items = []feed.VideoItem{}
	}
	return items, nil
}

// React records reaction for the video with id videoID.
func (c *Client) React(ctx context.Context, videoID string, reaction feed.Reaction) error {
	switch reaction {
	case feed.ReactionLike, feed.ReactionShare, feed.ReactionView:
	default:
		return fmt.Errorf("unknown reaction %q", reaction)
	}
	path := videosEndpoint + "/" + url.PathEscape(videoID) + "/" + string(reaction)
	err := c.retryWithBackoff(ctx, func() error {
		return c.do(ctx, http.MethodPost, path, nil, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to send %s for video %s: %w", reaction, videoID, err)
	}
	return nil
}

// Like records a like for videoID.
func (c *Client) Like(ctx context.Context, videoID string) error {
	return c.React(ctx, videoID, feed.ReactionLike)
}

// Share records a share for videoID.
func (c *Client) Share(ctx context.Context, videoID string) error {
	return c.React(ctx, videoID, feed.ReactionShare)
}

// View records a view for videoID.
func (c *Client) View(ctx context.Context, videoID string) error {
	return c.React(ctx, videoID, feed.ReactionView)
}

// do performs a single request and decodes a JSON response into out when
// out is not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpointURL, err := c.base.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid endpoint path: %w", err)
	}
	if len(query) > 0 {
		endpointURL.RawQuery = query.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, endpointURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}

// retryWithBackoff runs fn until it succeeds, fails with a permanent error or
// runs out of attempts.
func (c *Client) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	backoff := c.initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == c.maxRetries || ctx.Err() != nil {
			break
		}
		if !isRetriableError(err) {
			return err
		}

		retryDelay := time.Duration(float64(backoff) * (1.0 + 0.2*rand.Float64()))
		c.log.Warn().Err(err).
			Dur("retry_in", retryDelay.Round(time.Millisecond)).
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Msg("Transient error, retrying")

		timer := time.NewTimer(retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
	return err
}

// isRetriableError reports whether err is worth another attempt.
func isRetriableError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
