package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/pkg/retry"
)

// Client talks to the Dooray drive REST API with retry, pacing and gzip support.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	rawClient   *http.Client
	retryConfig retry.Config
	limiter     *rate.Limiter

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	RetryConfig retry.Config
	RatePerSec  float64 // 0 = unlimited
	RateBurst   int
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.dooray.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		if cfg.RateBurst < 1 {
			cfg.RateBurst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		// The raw-media endpoint answers with a redirect whose target must be
		// fetched with the auth header, so redirects are followed by hand.
		rawClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retryConfig: cfg.RetryConfig,
		limiter:     limiter,
		online:      true,
	}
}

// IsOnline reports whether the last request reached the API.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("drive API is back online")
		} else {
			logging.Error("drive API is unreachable")
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

func (c *Client) applyAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "dooray-api "+c.token)
	}
}

type listResponse struct {
	Result []models.Item `json:"result"`
}

type drivesResponse struct {
	Result []models.Drive `json:"result"`
}

// ListDrives returns the caller's personal drives.
func (c *Client) ListDrives(ctx context.Context) ([]models.Drive, error) {
	var resp drivesResponse
	q := url.Values{"type": {"private"}}
	if err := c.getJSON(ctx, "list_drives", "/drive/v1/drives", q, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// ListFolders returns one page of folders directly under parentID.
func (c *Client) ListFolders(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error) {
	return c.listFiles(ctx, "list_folders", driveID, url.Values{
		"parentId": {parentID},
		"type":     {string(models.TypeFolder)},
	}, page, size)
}

// ListFiles returns one page of files directly under parentID.
func (c *Client) ListFiles(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error) {
	return c.listFiles(ctx, "list_files", driveID, url.Values{
		"parentId": {parentID},
		"type":     {string(models.TypeFile)},
	}, page, size)
}

// SearchInRoot runs the server-side text search from the drive root. Hits
// may be files or folders.
func (c *Client) SearchInRoot(ctx context.Context, driveID, query string, page, size int) ([]models.Item, error) {
	return c.listFiles(ctx, "search", driveID, url.Values{
		"parentId":   {RootID},
		"searchText": {query},
	}, page, size)
}

func (c *Client) listFiles(ctx context.Context, op, driveID string, q url.Values, page, size int) ([]models.Item, error) {
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(ClampPageSize(size)))
	var resp listResponse
	if err := c.getJSON(ctx, op, "/drive/v1/drives/"+url.PathEscape(driveID)+"/files", q, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	var lastStatus int

	err := retry.Do(ctx, c.retryConfig, func() error {
		lastStatus = 0
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		u := c.baseURL + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")
		c.applyAuth(req)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordDriveRequest(op, 0, time.Since(start))
			c.setOnline(false)
			return retry.Retryable(err)
		}
		defer resp.Body.Close()
		metrics.RecordDriveRequest(op, resp.StatusCode, time.Since(start))
		lastStatus = resp.StatusCode

		if err := checkStatus(resp); err != nil {
			if retry.IsRetryable(err) {
				c.setOnline(false)
			}
			return err
		}
		c.setOnline(true)

		var reader io.Reader = resp.Body
		if resp.Header.Get("Content-Encoding") == "gzip" {
			gr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return err
			}
			defer gr.Close()
			reader = gr
		}
		if err := json.NewDecoder(reader).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logging.Warn("drive request failed",
			zap.String("op", op),
			zap.Int("status", lastStatus),
			zap.Error(err),
		)
		return &TransportError{Op: op, Status: lastStatus, Err: err}
	}
	return nil
}

// checkStatus classifies a response: nil for 200, retryable for throttling
// and server errors, permanent otherwise.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	err := fmt.Errorf("server returned %d", resp.StatusCode)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.RetryAfter(err, retryAfter(resp.Header.Get("Retry-After")))
	}
	return err
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Download fetches a file's raw bytes. The API answers the media request
// with a redirect to the storage location, which is then fetched with the
// same credentials. The caller closes the returned reader.
func (c *Client) Download(ctx context.Context, driveID, fileID string) (io.ReadCloser, int64, error) {
	var body io.ReadCloser
	var size int64
	var lastStatus int

	err := retry.Do(ctx, c.retryConfig, func() error {
		lastStatus = 0
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		u := fmt.Sprintf("%s/drive/v1/drives/%s/files/%s?media=raw",
			c.baseURL, url.PathEscape(driveID), url.PathEscape(fileID))

		resp, err := c.rawGet(ctx, c.rawClient, u)
		if err != nil {
			return err
		}
		lastStatus = resp.StatusCode

		if isRedirect(resp.StatusCode) {
			loc, lerr := resp.Location()
			resp.Body.Close()
			if lerr != nil {
				return fmt.Errorf("redirect without location: %w", lerr)
			}
			resp, err = c.rawGet(ctx, c.httpClient, loc.String())
			if err != nil {
				return err
			}
			lastStatus = resp.StatusCode
		}

		if err := checkStatus(resp); err != nil {
			resp.Body.Close()
			return err
		}
		c.setOnline(true)

		body = resp.Body
		size = resp.ContentLength
		if resp.Header.Get("Content-Encoding") == "gzip" {
			gr, err := gzip.NewReader(resp.Body)
			if err != nil {
				resp.Body.Close()
				return err
			}
			body = &gzipReadCloser{gr: gr, body: resp.Body}
			size = -1
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, err
		}
		return nil, 0, &TransportError{Op: "download", Status: lastStatus, Err: err}
	}
	return body, size, nil
}

func (c *Client) rawGet(ctx context.Context, hc *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.applyAuth(req)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		metrics.RecordDriveRequest("download", 0, time.Since(start))
		c.setOnline(false)
		return nil, retry.Retryable(err)
	}
	metrics.RecordDriveRequest("download", resp.StatusCode, time.Since(start))
	return resp, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

type gzipReadCloser struct {
	gr   *gzip.Reader
	body io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.gr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	g.gr.Close()
	return g.body.Close()
}

var (
	_ Directory = (*Client)(nil)
	_ Fetcher   = (*Client)(nil)
)
