package tagapi

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

	"github.com/keyxmakerx/tagdeck/internal/apperror"
	"github.com/keyxmakerx/tagdeck/internal/metrics"
)

const (
	tagsPath = "/tags"

	// maxErrorBody caps how much of an error response is read for logging.
	maxErrorBody = 4 << 10
)

// Client talks to the remote tag API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the API at baseURL (e.g.
// "http://localhost:3333") with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTP creates a client that uses the given *http.Client.
// Tests use it to point the client at an httptest server.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{httpClient: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// List fetches one page of tags filtered by title.
func (c *Client) List(ctx context.Context, params ListParams) (*TagPage, error) {
	q := url.Values{}
	q.Set("_page", strconv.Itoa(params.Page))
	q.Set("_per_page", strconv.Itoa(params.PerPage))
	q.Set("title", params.Title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating list request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "list")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page TagPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, apperror.NewUpstream("The tag service returned an unreadable response.",
			fmt.Errorf("decoding tag page: %w", err))
	}
	if page.Data == nil {
		page.Data = []Tag{}
	}

	return &page, nil
}

// Create submits a new tag. The API's response body is decoded when it is
// a tag object; otherwise the submitted fields are echoed back.
func (c *Client) Create(ctx context.Context, in CreateTagRequest) (*Tag, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("encoding tag: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tagsPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "create")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	created := Tag{Title: in.Title, Slug: in.Slug, AmountOfVideos: in.AmountOfVideos}
	raw, err := io.ReadAll(resp.Body)
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		var decoded Tag
		if json.Unmarshal(raw, &decoded) == nil && decoded.Title != "" {
			created = decoded
		}
	}

	return &created, nil
}

// do executes the request, records metrics, and converts transport failures
// and non-2xx statuses into upstream errors. On success the caller owns
// resp.Body.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(op, 0, time.Since(start))
		return nil, apperror.NewUpstream("The tag service is unreachable. Please try again.",
			fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	metrics.ObserveUpstream(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperror.NewUpstream(
			fmt.Sprintf("The tag service responded with status %d.", resp.StatusCode),
			fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet))),
		)
	}

	return resp, nil
}
