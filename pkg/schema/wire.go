// Package schema bridges the two wire-format generations of message records:
// the flat per-type v0 shape and the current enveloped v1 shape.
package schema

import (
	"encoding/json"
	"time"

	"Quill/pkg/models"
)

// WireMedia is the v0 media descriptor.
type WireMedia struct {
	MimeType      string `json:"mimetype"`
	Size          int64  `json:"size"`
	FileName      string `json:"filename"`
	Caption       string `json:"caption,omitempty"`
	Transcription string `json:"transcription,omitempty"`
}

// WireFunction is the v0 descriptor for function_call / function_response
// messages, the predecessor of the v1 tool descriptor.
type WireFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// WireMessage is the superset of every message shape ever persisted. v1
// records carry Version "1" and a Body envelope; v0 records are detected by
// which of the legacy fields are present.
type WireMessage struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	OrgAddress     string  `json:"org_address,omitempty"`     // legacy topology
	ContactAddress string  `json:"contact_address,omitempty"` // legacy topology
	Direction      string  `json:"direction"`
	Type           string  `json:"type,omitempty"` // legacy type tag

	Version string          `json:"version,omitempty"`
	Body    *models.Content `json:"body,omitempty"` // v1 only

	Content    *string         `json:"content,omitempty"` // legacy plain text / reaction
	Media      *WireMedia      `json:"media,omitempty"`
	Function   *WireFunction   `json:"function,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Tool       *models.Tool    `json:"tool,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"` // structured leftovers (template, location, order)

	AgentID   *string              `json:"agent_id,omitempty"`
	Status    map[string]time.Time `json:"status,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// conversationID resolves the record's conversation identity, falling back to
// the legacy composite key when no opaque id is present.
func (r WireMessage) conversationID() string {
	if r.ConversationID != "" {
		return r.ConversationID
	}
	return models.ConversationKey(r.OrgAddress, r.ContactAddress)
}

// WireConversation is the remote conversation record. The shape did not
// change between generations apart from the identity scheme.
type WireConversation struct {
	ID             string       `json:"id,omitempty"`
	OrgAddress     string       `json:"org_address,omitempty"`
	ContactAddress string       `json:"contact_address,omitempty"`
	Name           string       `json:"name"`
	Channel        string       `json:"channel"`
	PinnedAt       *time.Time   `json:"pinned_at,omitempty"`
	ArchivedAt     *time.Time   `json:"archived_at,omitempty"`
	PausedAt       *time.Time   `json:"paused_at,omitempty"`
	Notifications  *bool        `json:"notifications,omitempty"`
	Draft          *models.Draft `json:"draft,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
