package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-orb/internal/domain"
)

// DefaultEmptyReply is spoken when the webhook answers without any reply text.
const DefaultEmptyReply = "Sorry, I didn't get a response. Please try again."

const maxResponseBytes = 1 << 20

type Client struct {
	url        string
	emptyReply string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration, emptyReply string) *Client {
	if emptyReply == "" {
		emptyReply = DefaultEmptyReply
	}
	return &Client{
		url:        url,
		emptyReply: emptyReply,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// response accepts both reply keys; "response" wins over "message".
type response struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

func (c *Client) Ask(ctx context.Context, req domain.PendingRequest) (string, error) {
	bodyBytes, err := json.Marshal(request{
		Message:   req.Transcript,
		Timestamp: req.Timestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.ID != "" {
		httpReq.Header.Set("X-Request-ID", req.ID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("webhook error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return c.replyText(respBody), nil
}

func (c *Client) replyText(body []byte) string {
	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return c.emptyReply
	}

	if text := strings.TrimSpace(result.Response); text != "" {
		return text
	}
	if text := strings.TrimSpace(result.Message); text != "" {
		return text
	}
	return c.emptyReply
}
