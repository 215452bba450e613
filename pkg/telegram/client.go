package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// User is the subset of the bot account returned by getMe.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

// APIError is a failed Bot API call.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int // seconds, set on 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// Permanent reports whether retrying the same call cannot succeed: the user
// blocked the bot, deleted the account or the chat does not exist.
func (e *APIError) Permanent() bool {
	if e.Code == http.StatusForbidden {
		return true
	}
	d := strings.ToLower(e.Description)
	return strings.Contains(d, "blocked") || strings.Contains(d, "deactivated") || strings.Contains(d, "chat not found")
}

func (e *APIError) RetryAfterDelay() time.Duration {
	return time.Duration(e.RetryAfter) * time.Second
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    "https://api.telegram.org",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at another Bot API server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *Client) url(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// do posts body to method and decodes result into out. Every non-ok reply
// becomes an *APIError.
func (c *Client) do(ctx context.Context, method string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(method), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var wrapper struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Code: resp.StatusCode, Description: resp.Status}
		}
		return fmt.Errorf("telegram: decode %s: %w", method, err)
	}
	if !wrapper.OK {
		code := wrapper.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: wrapper.Description, RetryAfter: wrapper.Parameters.RetryAfter}
	}
	if out != nil {
		return json.Unmarshal(wrapper.Result, out)
	}
	return nil
}

// SendMessage sends a plain text message with link previews enabled.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return c.do(ctx, "sendMessage", body, nil)
}

// GetMe returns the bot account; used to validate the token at startup.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
