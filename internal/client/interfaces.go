package client

import (
	"context"

	"github.com/studioflow-io/be-orders/internal/repository"
)

// ChannelClientInterface is the chat-ops workspace contract: channel
// provisioning plus structured posts into an existing channel.
type ChannelClientInterface interface {
	CreateChannel(ctx context.Context, clientName, contactInfo string) (string, error)
	PostRecord(ctx context.Context, channelID string, fields map[string]string) error
	PostTransitionLog(ctx context.Context, channelID, fromLabel, toLabel, actor string) error
	PostUpload(ctx context.Context, channelID, itemLabel, url string) error
}

// MessengerClientInterface is the instant-messaging contract.
type MessengerClientInterface interface {
	SendMessage(ctx context.Context, recipientID, text string) error
}

// EmailClientInterface is the transactional email contract.
type EmailClientInterface interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
	SendDocumentEmail(ctx context.Context, to string, meta DocumentMeta, attachment []byte) error
}

// DocumentMeta describes an attached document.
type DocumentMeta struct {
	Filename    string
	Subject     string
	Description string
}

// ContractRendererInterface renders a contract into a binary document.
type ContractRendererInterface interface {
	RenderContractDocument(contract *repository.Contract, clientName string) ([]byte, error)
}
