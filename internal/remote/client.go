// Package remote talks to the task API served by cmd/server.
package remote

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

	"tasksync/internal/models"
)

// ErrStatus is wrapped by every non-2xx response.
var ErrStatus = errors.New("remote: unexpected status")

// Client is a RemoteStore over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for baseURL. token is sent as a bearer token
// when non-empty.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) tasksURL(userID string) string {
	return c.baseURL + "/users/" + url.PathEscape(userID) + "/tasks"
}

func (c *Client) taskURL(userID, id string) string {
	return c.tasksURL(userID) + "/" + url.PathEscape(id)
}

// FetchAll returns every task stored for userID.
func (c *Client) FetchAll(ctx context.Context, userID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, c.tasksURL(userID), nil, &tasks); err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	return tasks, nil
}

// Add stores t under its id. Same as Update.
func (c *Client) Add(ctx context.Context, userID string, t models.Task) error {
	return c.put(ctx, userID, t)
}

// Update stores t under its id, replacing any existing record.
func (c *Client) Update(ctx context.Context, userID string, t models.Task) error {
	return c.put(ctx, userID, t)
}

func (c *Client) put(ctx context.Context, userID string, t models.Task) error {
	if t.ID == "" {
		return models.ErrInvalidTask
	}
	t.UserID = userID
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPut, c.taskURL(userID, t.ID), body, nil); err != nil {
		return fmt.Errorf("put task %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes the task. Deleting a missing task succeeds.
func (c *Client) Delete(ctx context.Context, userID, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.taskURL(userID, id), nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
