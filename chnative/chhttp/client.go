// Package chhttp provides an HTTP fallback transport for chnative: it
// posts SQL to ClickHouse's HTTP interface with FORMAT ArrowStream and
// decodes the response via Arrow's IPC stream reader. This path never
// touches the native column codec in the chnative package — it is opaque
// to the core protocol implementation, for environments where the native
// TCP port isn't reachable but the HTTP interface is (e.g. behind a
// load balancer that only forwards HTTP).
package chhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

const arrowStreamContentType = "application/vnd.apache.arrow.stream"

// Config configures a Client.
type Config struct {
	// BaseURL is the ClickHouse HTTP endpoint, e.g. "http://localhost:8123".
	BaseURL string

	Database string
	User     string
	Password string

	// HTTPClient is used to issue requests. Defaults to a client with a
	// 30-second timeout.
	HTTPClient *http.Client
}

// Client issues queries over ClickHouse's HTTP interface: it POSTs a query
// body and decodes the response as an Arrow stream.
type Client struct {
	cfg Config
}

// NewClient builds a Client from cfg, filling in an HTTPClient default if
// unset.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg}
}

// Query executes sql (a SELECT) and returns the batches ClickHouse's HTTP
// interface returns as a FORMAT ArrowStream response.
func (c *Client) Query(ctx context.Context, sql string) ([]arrow.RecordBatch, error) {
	if !strings.Contains(strings.ToUpper(sql), "FORMAT") {
		sql = sql + " FORMAT ArrowStream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader([]byte(sql)))
	if err != nil {
		return nil, fmt.Errorf("chhttp: building request: %w", err)
	}
	q := url.Values{}
	if c.cfg.Database != "" {
		q.Set("database", c.cfg.Database)
	}
	req.URL.RawQuery = q.Encode()
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", arrowStreamContentType)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chhttp: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chhttp: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chhttp: server returned %d: %s", resp.StatusCode, string(body))
	}

	reader, err := ipc.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chhttp: opening Arrow IPC stream: %w", err)
	}
	defer reader.Release()

	var batches []arrow.RecordBatch
	for reader.Next() {
		rb := reader.RecordBatch()
		rb.Retain()
		batches = append(batches, rb)
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("chhttp: reading Arrow IPC stream: %w", err)
	}
	return batches, nil
}

// Insert sends rows as an INSERT ... FORMAT ArrowStream body built from
// batches, matching the server-side shape of FORMAT ArrowStream inserts.
func (c *Client) Insert(ctx context.Context, table string, batches []arrow.RecordBatch) error {
	if len(batches) == 0 {
		return nil
	}
	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(batches[0].Schema()))
	for _, rb := range batches {
		if err := writer.Write(rb); err != nil {
			return fmt.Errorf("chhttp: encoding Arrow IPC stream: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("chhttp: closing Arrow IPC stream: %w", err)
	}

	sql := fmt.Sprintf("INSERT INTO %s FORMAT ArrowStream", table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &buf)
	if err != nil {
		return fmt.Errorf("chhttp: building request: %w", err)
	}
	q := url.Values{}
	q.Set("query", sql)
	if c.cfg.Database != "" {
		q.Set("database", c.cfg.Database)
	}
	req.URL.RawQuery = q.Encode()
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	req.Header.Set("Content-Type", arrowStreamContentType)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("chhttp: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chhttp: server returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
