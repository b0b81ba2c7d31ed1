package syncclient

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
	"time"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("syncclient: not found")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("syncclient: %s %s: http %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("syncclient: %s %s: http %d", e.Method, e.Path, e.Status)
}

// Is makes 404 responses match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client is a REST client for the /api/v1 collection endpoints.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	stream  *http.Client
}

// NewClient constructs a client. token is sent as a bearer token when set.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("syncclient: empty base url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("syncclient: invalid base url: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		// The change stream is long-lived; only the context ends it.
		stream: &http.Client{},
	}, nil
}

// List fetches every record of a collection.
func (c *Client) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, collectionPath(collection), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, itemPath(collection, id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts a record and returns the stored version with server-computed fields.
func (c *Client) Create(ctx context.Context, collection string, record any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, collectionPath(collection), record, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces a record and returns the stored version.
func (c *Client) Update(ctx context.Context, collection, id string, record any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPut, itemPath(collection, id), record, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.doJSON(ctx, http.MethodDelete, itemPath(collection, id), nil, nil)
}

// openStream opens the server-sent change stream.
func (c *Client) openStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/changes/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Method: http.MethodGet, Path: "/api/v1/changes/stream", Status: resp.StatusCode}
	}
	return resp.Body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func collectionPath(collection string) string {
	return "/api/v1/" + url.PathEscape(collection)
}

func itemPath(collection, id string) string {
	return collectionPath(collection) + "/" + url.PathEscape(id)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
