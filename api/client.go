package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get for 404 answers
	ErrNotFound = errors.New("not found")
	// ErrQuorumNotReached is returned for 504 answers
	ErrQuorumNotReached = errors.New("quorum not reached")
	// ErrBadRequest is returned for 400 answers
	ErrBadRequest = errors.New("bad request")
)

// StatusError is returned for unexpected status codes
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Client talks to the client facing API of a node
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the node at endpoint (host:port or base URL)
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}

	return &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Status checks that the node is up
func (c *Client) Status(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, PathStatus, nil, http.StatusOK)
	return err
}

// Get reads key with the given quorum ("" = default quorum of the node)
func (c *Client) Get(ctx context.Context, key, replicas string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, entityPath(key, replicas), nil, http.StatusOK)
}

// Put writes key with the given quorum
func (c *Client) Put(ctx context.Context, key string, value []byte, replicas string) error {
	_, err := c.do(ctx, http.MethodPut, entityPath(key, replicas), value, http.StatusCreated)
	return err
}

// Delete removes key with the given quorum
func (c *Client) Delete(ctx context.Context, key, replicas string) error {
	_, err := c.do(ctx, http.MethodDelete, entityPath(key, replicas), nil, http.StatusAccepted)
	return err
}

func entityPath(key, replicas string) string {
	query := url.Values{}
	query.Set(ParamID, key)
	if replicas != "" {
		query.Set(ParamReplicas, replicas)
	}
	return PathEntity + "?" + query.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, expected int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case expected:
		return data, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusGatewayTimeout:
		return nil, ErrQuorumNotReached
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}
