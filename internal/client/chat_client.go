package client

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/studioflow-io/be-orders/internal/httpclient"
)

// ChatClient talks to the chat-ops workspace API (Slack-compatible surface).
// Channel provisioning and posts are always best-effort from the caller's
// point of view; this client just reports errors faithfully.
type ChatClient struct {
	http *httpclient.Client
}

// NewChatClient creates a chat-ops client with the given workspace token.
func NewChatClient(baseURL, token string, opts ...httpclient.Option) *ChatClient {
	opts = append([]httpclient.Option{httpclient.WithBearerToken(token)}, opts...)
	return &ChatClient{http: httpclient.NewClient(baseURL, opts...)}
}

// chatResponse is the workspace API envelope: HTTP 200 with ok=false on
// application-level failure.
type chatResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel *struct {
		ID string `json:"id"`
	} `json:"channel,omitempty"`
}

var channelNameSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

// channelName derives a workspace-legal channel name from a client name.
func channelName(clientName string) string {
	name := strings.ToLower(strings.TrimSpace(clientName))
	name = channelNameSanitizer.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "client"
	}
	if len(name) > 70 {
		name = name[:70]
	}
	return "order-" + name
}

// CreateChannel provisions a dedicated channel for a client and posts the
// contact info as its first message. Returns the channel id.
func (c *ChatClient) CreateChannel(ctx context.Context, clientName, contactInfo string) (string, error) {
	var resp chatResponse
	req := map[string]any{"name": channelName(clientName)}
	if err := c.http.Post(ctx, "/conversations.create", req, &resp); err != nil {
		return "", fmt.Errorf("create channel: %w", err)
	}
	if !resp.OK || resp.Channel == nil {
		return "", fmt.Errorf("create channel: workspace error: %s", resp.Error)
	}

	if contactInfo != "" {
		// First message is informational; a failure here does not undo the
		// provisioned channel.
		_ = c.postMessage(ctx, resp.Channel.ID, fmt.Sprintf("New client: %s\n%s", clientName, contactInfo))
	}
	return resp.Channel.ID, nil
}

// PostRecord posts structured fields (key: value lines, keys sorted) to a
// channel.
func (c *ChatClient) PostRecord(ctx context.Context, channelID string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "*%s*: %s\n", k, fields[k])
	}
	return c.postMessage(ctx, channelID, b.String())
}

// PostTransitionLog posts one stage-change line to a channel.
func (c *ChatClient) PostTransitionLog(ctx context.Context, channelID, fromLabel, toLabel, actor string) error {
	text := fmt.Sprintf("Stage changed: %s → %s (by %s)", fromLabel, toLabel, actor)
	if fromLabel == "" {
		text = fmt.Sprintf("Stage set: %s (by %s)", toLabel, actor)
	}
	return c.postMessage(ctx, channelID, text)
}

// PostUpload announces an uploaded deliverable with its URL.
func (c *ChatClient) PostUpload(ctx context.Context, channelID, itemLabel, url string) error {
	return c.postMessage(ctx, channelID, fmt.Sprintf("Upload ready — %s: %s", itemLabel, url))
}

func (c *ChatClient) postMessage(ctx context.Context, channelID, text string) error {
	var resp chatResponse
	req := map[string]any{"channel": channelID, "text": text}
	if err := c.http.Post(ctx, "/chat.postMessage", req, &resp); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("post message: workspace error: %s", resp.Error)
	}
	return nil
}
