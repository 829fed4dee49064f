// Package influx writes measurements to InfluxDB over HTTP using line
// protocol, against either the 1.x /write endpoint or the 2.x /api/v2/write
// endpoint.
package influx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/klauspost/compress/gzip"

	"github.com/vjranagit/tickstats/pkg/types"
)

// Config holds InfluxDB connection settings. Database, RetentionPolicy,
// Username and Password apply to version 1; Org, Bucket and Token to
// version 2.
type Config struct {
	URL             string
	Version         int
	Database        string
	RetentionPolicy string
	Username        string
	Password        string
	Org             string
	Bucket          string
	Token           string
	Gzip            bool
	Timeout         time.Duration
}

// DefaultConfig returns default InfluxDB settings
func DefaultConfig() Config {
	return Config{
		URL:      "http://localhost:8086",
		Version:  1,
		Database: "tickstats",
		Gzip:     true,
		Timeout:  10 * time.Second,
	}
}

// Validate checks the settings required by the configured version
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid influx url %q", c.URL)
	}

	switch c.Version {
	case 1:
		if c.Database == "" {
			return fmt.Errorf("influx database is required for version 1")
		}
	case 2:
		if c.Org == "" || c.Bucket == "" {
			return fmt.Errorf("influx org and bucket are required for version 2")
		}
	default:
		return fmt.Errorf("unsupported influx version %d", c.Version)
	}
	return nil
}

// HTTPError is a non-2xx response from the server
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("influx write status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again. Client
// errors such as malformed lines or bad credentials are permanent.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}

// Client is a measurement sink writing to InfluxDB
type Client struct {
	cfg      Config
	http     *http.Client
	writeURL string
	logger   logr.Logger
}

// NewClient creates a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger logr.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		writeURL: buildWriteURL(cfg),
		logger:   logger.WithName("influx"),
	}, nil
}

func buildWriteURL(cfg Config) string {
	base := strings.TrimRight(cfg.URL, "/")
	q := url.Values{}
	q.Set("precision", "ns")

	if cfg.Version == 2 {
		q.Set("org", cfg.Org)
		q.Set("bucket", cfg.Bucket)
		return base + "/api/v2/write?" + q.Encode()
	}

	q.Set("db", cfg.Database)
	if cfg.RetentionPolicy != "" {
		q.Set("rp", cfg.RetentionPolicy)
	}
	return base + "/write?" + q.Encode()
}

// Write sends batch as a single request
func (c *Client) Write(ctx context.Context, batch []types.Measurement) error {
	var enc Encoder
	lines := enc.Encode(batch)
	if len(lines) == 0 {
		return nil
	}

	body, err := c.body(lines)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeURL, body)
	if err != nil {
		return fmt.Errorf("build write request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if c.cfg.Gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("write request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, res.Body)

	c.logger.V(1).Info("wrote points", "points", len(batch), "bytes", len(lines))
	return nil
}

func (c *Client) body(lines []byte) (io.Reader, error) {
	if !c.cfg.Gzip {
		return bytes.NewReader(lines), nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(lines); err != nil {
		return nil, fmt.Errorf("compress write body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress write body: %w", err)
	}
	return &buf, nil
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.cfg.Version == 2 && c.cfg.Token != "":
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
	case c.cfg.Version == 1 && c.cfg.Username != "":
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}

// Ping checks that the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.URL, "/")+"/ping", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: res.Status}
	}
	return nil
}
