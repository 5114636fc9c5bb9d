// Package gmail adapts the Gmail REST API to the mailbox port. Threads are
// selected by label and moved between labels once processed.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"MailTracker/internal/config"
	"MailTracker/internal/domain"
	"MailTracker/internal/ports"
)

const permalinkBase = "https://mail.google.com/mail/u/0/#all/"

var errNotFound = errors.New("gmail resource not found")

// Client implements ports.Mailbox over the Gmail v1 API.
type Client struct {
	endpoint    string
	user        string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger

	mu     sync.Mutex
	labels map[string]string
}

var _ ports.Mailbox = (*Client)(nil)

// NewClient builds a mailbox client from configuration.
func NewClient(cfg config.GmailConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	user := cfg.User
	if user == "" {
		user = "me"
	}
	return &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		user:        user,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// FetchThreads returns up to limit threads carrying label, each with all of
// its messages.
func (c *Client) FetchThreads(ctx context.Context, label string, limit int) ([]domain.Thread, error) {
	if c.accessToken == "" || c.endpoint == "" {
		return nil, fmt.Errorf("gmail client misconfigured")
	}

	labelID, ok, err := c.labelID(ctx, label, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Warn("source label does not exist", "label", label)
		return nil, nil
	}

	q := url.Values{}
	q.Set("labelIds", labelID)
	if limit > 0 {
		q.Set("maxResults", strconv.Itoa(limit))
	}
	var list struct {
		Threads []struct {
			ID string `json:"id"`
		} `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, c.userURL("threads")+"?"+q.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	threads := make([]domain.Thread, 0, len(list.Threads))
	for _, ref := range list.Threads {
		thread, err := c.getThread(ctx, ref.ID)
		if errors.Is(err, errNotFound) {
			c.logger.Warn("thread vanished while fetching", "thread_id", ref.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get thread %s: %w", ref.ID, err)
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// ModifyLabels removes and adds labels on a thread. Missing target labels
// are created on demand.
func (c *Client) ModifyLabels(ctx context.Context, threadID string, remove, add []string) error {
	payload := struct {
		AddLabelIDs    []string `json:"addLabelIds"`
		RemoveLabelIDs []string `json:"removeLabelIds"`
	}{}

	for _, name := range add {
		id, _, err := c.labelID(ctx, name, true)
		if err != nil {
			return err
		}
		payload.AddLabelIDs = append(payload.AddLabelIDs, id)
	}
	for _, name := range remove {
		id, ok, err := c.labelID(ctx, name, false)
		if err != nil {
			return err
		}
		if ok {
			payload.RemoveLabelIDs = append(payload.RemoveLabelIDs, id)
		}
	}

	err := c.do(ctx, http.MethodPost, c.userURL("threads", threadID, "modify"), payload, nil)
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("modify thread %s: %w", threadID, domain.ErrThreadNotFound)
	}
	if err != nil {
		return fmt.Errorf("modify thread %s: %w", threadID, err)
	}
	return nil
}

type threadResponse struct {
	ID       string `json:"id"`
	Messages []struct {
		ID           string      `json:"id"`
		ThreadID     string      `json:"threadId"`
		InternalDate string      `json:"internalDate"`
		Payload      messagePart `json:"payload"`
	} `json:"messages"`
}

func (c *Client) getThread(ctx context.Context, id string) (domain.Thread, error) {
	var resp threadResponse
	if err := c.do(ctx, http.MethodGet, c.userURL("threads", id)+"?format=full", nil, &resp); err != nil {
		return domain.Thread{}, err
	}

	thread := domain.Thread{ID: resp.ID, Messages: make([]domain.Message, 0, len(resp.Messages))}
	if thread.ID == "" {
		thread.ID = id
	}
	for _, m := range resp.Messages {
		thread.Messages = append(thread.Messages, domain.Message{
			ID:        m.ID,
			ThreadID:  thread.ID,
			Subject:   strings.TrimSpace(m.Payload.header("Subject")),
			From:      m.Payload.header("From"),
			Body:      extractBody(m.Payload),
			Timestamp: parseInternalDate(m.InternalDate),
			Permalink: permalinkBase + m.ID,
		})
	}
	return thread, nil
}

// labelID resolves a label name, creating it when create is set.
func (c *Client) labelID(ctx context.Context, name string, create bool) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.labels == nil {
		var resp struct {
			Labels []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"labels"`
		}
		if err := c.do(ctx, http.MethodGet, c.userURL("labels"), nil, &resp); err != nil {
			return "", false, fmt.Errorf("list labels: %w", err)
		}
		c.labels = make(map[string]string, len(resp.Labels))
		for _, l := range resp.Labels {
			c.labels[l.Name] = l.ID
		}
	}

	if id, ok := c.labels[name]; ok {
		return id, true, nil
	}
	if !create {
		return "", false, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	body := map[string]string{
		"name":                  name,
		"labelListVisibility":   "labelShow",
		"messageListVisibility": "show",
	}
	if err := c.do(ctx, http.MethodPost, c.userURL("labels"), body, &created); err != nil {
		return "", false, fmt.Errorf("create label %q: %w", name, err)
	}
	c.labels[name] = created.ID
	c.logger.Info("label created", "label", name)
	return created.ID, true, nil
}

func (c *Client) userURL(parts ...string) string {
	escaped := make([]string, 0, len(parts)+4)
	escaped = append(escaped, c.endpoint, "gmail", "v1", "users", url.PathEscape(c.user))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gmail API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func parseInternalDate(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
