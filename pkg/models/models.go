// Package models defines the data models for the messaging cache.
package models

import (
	"fmt"
	"time"
)

// Channel identifies the service a conversation lives on.
type Channel string

const (
	ChannelLocal     Channel = "local"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
)

// Direction is the flow of a message relative to the organization.
type Direction string

const (
	// DirectionIncoming is a message authored by the contact.
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing is a message authored by an agent, visible to the contact.
	DirectionOutgoing Direction = "outgoing"
	// DirectionInternal is team-internal traffic the contact never sees
	// (notes, tool calls, tool results).
	DirectionInternal Direction = "internal"
)

// StatusKey is a lifecycle stage recorded in a message's status map.
type StatusKey string

const (
	StatusPending   StatusKey = "pending"
	StatusSent      StatusKey = "sent"
	StatusDelivered StatusKey = "delivered"
	StatusRead      StatusKey = "read"
	StatusFailed    StatusKey = "failed"
)

// Draft is a per-conversation text buffer persisted on the conversation's
// extension map. Local-only composer buffers never reach this type.
type Draft struct {
	Text      string    `json:"text"`
	Origin    string    `json:"origin"` // which surface wrote it, e.g. "web", "mobile"
	Timestamp time.Time `json:"timestamp"`
}

// Meta is the freeform extension map attached to a conversation.
// All fields are optional; absent means "never set".
type Meta struct {
	PinnedAt      *time.Time `json:"pinnedAt,omitempty"`
	ArchivedAt    *time.Time `json:"archivedAt,omitempty"`
	PausedAt      *time.Time `json:"pausedAt,omitempty"`
	Notifications *bool      `json:"notifications,omitempty"`
	Draft         *Draft     `json:"draft,omitempty"`
}

// Conversation is one thread with a contact on a single channel.
// Conversations are never deleted client-side, only marked archived.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	Meta      Meta      `json:"meta"`
	UpdatedAt time.Time `json:"updatedAt"` // write time, the recency key
}

// Pinned reports whether the conversation carries a pinned timestamp.
func (c Conversation) Pinned() bool { return c.Meta.PinnedAt != nil }

// Archived reports whether the conversation carries an archived timestamp.
func (c Conversation) Archived() bool { return c.Meta.ArchivedAt != nil }

// ConversationKey derives a conversation identity from the legacy topology,
// where threads were keyed by organization address + contact address instead
// of an opaque id.
func ConversationKey(orgAddress, contactAddress string) string {
	return fmt.Sprintf("%s:%s", orgAddress, contactAddress)
}

// Message is one record in a conversation. Identity is immutable; status and
// content may change across successive writes (pending → delivered → read).
type Message struct {
	ID             string                  `json:"id"`
	ConversationID string                  `json:"conversationId"`
	Direction      Direction               `json:"direction"`
	Content        Content                 `json:"content"`
	Status         map[StatusKey]time.Time `json:"status,omitempty"`
	AgentID        *string                 `json:"agentId,omitempty"` // nil for contact-originated messages
	Timestamp      time.Time               `json:"timestamp"`         // logical event time
	UpdatedAt      time.Time               `json:"updatedAt"`         // write time, the recency key
}

// Scheduled reports whether the message's event time is still in the future
// relative to its own write time. Scheduled messages must never be cached or
// rendered.
func (m Message) Scheduled() bool {
	return m.Timestamp.After(m.UpdatedAt)
}

// Author returns a stable author key: the agent id for agent-authored
// messages, "contact" otherwise.
func (m Message) Author() string {
	if m.AgentID != nil {
		return *m.AgentID
	}
	return "contact"
}

// FileDraft is a pending attachment staged in the composer before send.
// Like text draft buffers it is transient and never persisted remotely.
type FileDraft struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Data     []byte `json:"-"`
}
