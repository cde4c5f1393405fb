package oanda

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrStreamClosed is returned when the venue ends the pricing stream.
var ErrStreamClosed = errors.New("pricing stream closed by server")

const maxRecordSize = 1 << 20

type StreamClient struct {
	baseURL    string
	accountID  string
	apiKey     string
	httpClient *http.Client
}

// NewStreamClient creates a pricing stream client. dialTimeout bounds
// connection setup and response headers only; the body is read for as long
// as the venue keeps it open.
func NewStreamClient(baseURL, accountID, apiKey string, dialTimeout time.Duration) *StreamClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = dialTimeout

	return &StreamClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountID:  accountID,
		apiKey:     apiKey,
		httpClient: &http.Client{Transport: transport},
	}
}

func (c *StreamClient) HTTPClient() *http.Client {
	return c.httpClient
}

// StreamURL builds /v3/accounts/{id}/pricing/stream?instruments=EUR_USD,USD_JPY
func (c *StreamClient) StreamURL(instruments []string) string {
	native := make([]string, len(instruments))
	for i, s := range instruments {
		native[i] = NativeSymbol(s)
	}
	q := url.Values{}
	q.Set("instruments", strings.Join(native, ","))
	return fmt.Sprintf("%s/v3/accounts/%s/pricing/stream?%s", c.baseURL, url.PathEscape(c.accountID), q.Encode())
}

// Stream opens the pricing stream and delivers parsed events on out in arrival
// order. It blocks until the stream ends, ctx is cancelled or a send on out
// would outlive ctx. A normal end of stream is reported as ErrStreamClosed.
func (c *StreamClient) Stream(ctx context.Context, instruments []string, out chan<- Event) error {
	// Construct the GET request with context for cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StreamURL(instruments), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	// Check HTTP status code
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("oanda error: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return ReadEvents(ctx, resp.Body, out)
}

// ReadEvents splits r into newline-delimited records and parses each one.
func ReadEvents(ctx context.Context, r io.Reader, out chan<- Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		ev := ParseEvent(line)
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("reading stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrStreamClosed
}
