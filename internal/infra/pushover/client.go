package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-orb/internal/domain"
	"voice-orb/internal/infra"
)

type Client struct {
	token      string
	userKey    string
	title      string
	endpoint   string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(token, userKey, title string) *Client {
	return NewClientWithURL(token, userKey, title, "https://api.pushover.net/1/messages.json")
}

func NewClientWithURL(token, userKey, title, endpoint string) *Client {
	if title == "" {
		title = "Voice Orb"
	}
	return &Client{
		token:      token,
		userKey:    userKey,
		title:      title,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

// Notify pushes the notification to the user's devices. Delivery is retried
// on transient failures; the interaction itself is never retried.
func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("message", n.Message)
	data.Set("title", fmt.Sprintf("%s: %s", c.title, n.Title))

	return infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.endpoint,
			strings.NewReader(data.Encode()),
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if !infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return infra.Permanent(fmt.Errorf("pushover error: %s", resp.Status))
			}
			return fmt.Errorf("pushover error: %s", resp.Status)
		}

		return nil
	})
}
