package source

import (
	"context"

	"github.com/quotesync/quote-sync-service/internal/models"
)

// ServerInfo is the quote service's capability metadata, used outside the
// sync path for startup negotiation and logging.
type ServerInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// UnsubscribeFunc tears down a push subscription.
type UnsubscribeFunc func() error

// Client is the remote quote service as the sync core sees it: incremental
// fetch of paid quotes, a push event stream, and capability metadata.
type Client interface {
	// FetchSince returns all paid quotes with paidAt strictly greater than
	// since. An empty result is not an error.
	FetchSince(ctx context.Context, since int64) ([]models.RawRecord, error)

	// Subscribe opens the push channel. onMessage fires once per inbound
	// event; onError fires once when the stream dies. Either the returned
	// unsubscribe function or a stream error ends the subscription.
	Subscribe(ctx context.Context, onMessage func([]byte), onError func(error)) (UnsubscribeFunc, error)

	// Info returns the service's capability metadata.
	Info(ctx context.Context) (*ServerInfo, error)
}
