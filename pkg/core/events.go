package core

import "Quill/pkg/schema"

// EventType represents the type of event a transport can emit.
type EventType string

const (
	// EventTypeMessage represents a message insert/update observed remotely.
	EventTypeMessage EventType = "message"
	// EventTypeConversation represents a conversation insert/update observed remotely.
	EventTypeConversation EventType = "conversation"
	// EventTypeSyncStatus represents a synchronization status update.
	EventTypeSyncStatus EventType = "sync_status"
)

// Event is the base interface for all transport events.
type Event interface {
	Type() EventType
}

// MessageEvent carries one remotely observed message record, still in wire
// shape; the syncer runs it through the version migrator before it reaches
// the store.
type MessageEvent struct {
	Record schema.WireMessage
}

// Type returns the event type for MessageEvent.
func (e MessageEvent) Type() EventType {
	return EventTypeMessage
}

// ConversationEvent carries one remotely observed conversation record.
type ConversationEvent struct {
	Record schema.WireConversation
}

// Type returns the event type for ConversationEvent.
func (e ConversationEvent) Type() EventType {
	return EventTypeConversation
}

// SyncStatusType represents the type of synchronization status.
type SyncStatusType string

const (
	// SyncStatusFetching indicates a refresh is in progress.
	SyncStatusFetching SyncStatusType = "fetching"
	// SyncStatusCompleted indicates a refresh finished.
	SyncStatusCompleted SyncStatusType = "completed"
	// SyncStatusError indicates a refresh failed.
	SyncStatusError SyncStatusType = "error"
)

// SyncStatusEvent represents a synchronization status update.
type SyncStatusEvent struct {
	Status  SyncStatusType
	Message string // human-readable description of the current step
}

// Type returns the event type for SyncStatusEvent.
func (e SyncStatusEvent) Type() EventType {
	return EventTypeSyncStatus
}
