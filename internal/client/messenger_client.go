package client

import (
	"context"
	"fmt"

	"github.com/studioflow-io/be-orders/internal/httpclient"
)

// MessengerClient delivers instant messages through the messaging provider's
// REST API.
type MessengerClient struct {
	http      *httpclient.Client
	senderKey string
}

// NewMessengerClient creates a messenger client.
func NewMessengerClient(baseURL, apiKey, senderKey string, opts ...httpclient.Option) *MessengerClient {
	opts = append([]httpclient.Option{httpclient.WithBearerToken(apiKey)}, opts...)
	return &MessengerClient{
		http:      httpclient.NewClient(baseURL, opts...),
		senderKey: senderKey,
	}
}

type sendMessageRequest struct {
	SenderKey string `json:"sender_key"`
	Recipient string `json:"recipient_id"`
	Text      string `json:"text"`
}

type sendMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SendMessage sends rendered text to one recipient.
func (c *MessengerClient) SendMessage(ctx context.Context, recipientID, text string) error {
	req := sendMessageRequest{
		SenderKey: c.senderKey,
		Recipient: recipientID,
		Text:      text,
	}

	var resp sendMessageResponse
	if err := c.http.Post(ctx, "/v1/messages", req, &resp); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("send message: provider error: %s", resp.Error)
	}
	return nil
}
