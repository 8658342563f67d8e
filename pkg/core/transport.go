package core

import (
	"context"
	"time"

	"Quill/pkg/schema"
)

// Transport is the remote store collaborator. Implementations handle their
// own retries; upserts must be idempotent so a duplicate send is safely
// ignorable.
type Transport interface {
	// Connect establishes the connection with the remote service.
	Connect() error

	// Disconnect closes the connection and stops all background operations.
	Disconnect() error

	// FetchConversations returns conversation records written since the
	// watermark, for initial load and periodic refresh.
	FetchConversations(ctx context.Context, since time.Time) ([]schema.WireConversation, error)

	// FetchMessages returns message records written since the watermark.
	FetchMessages(ctx context.Context, since time.Time) ([]schema.WireMessage, error)

	// StreamEvents returns a channel delivering individual insert/update
	// records as they occur remotely.
	StreamEvents() (<-chan Event, error)

	// UpsertConversation persists a locally originated conversation write.
	UpsertConversation(ctx context.Context, rec schema.WireConversation) error

	// UpsertMessage persists a locally originated message write.
	UpsertMessage(ctx context.Context, rec schema.WireMessage) error
}

// BlobStore is the object storage collaborator used for media transfer,
// keyed by a derived attachment path.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
