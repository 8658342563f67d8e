// Package providers contains implementations of the core.Transport
// interface.
package providers

import (
	"context"
	cryptoRand "crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"Quill/pkg/core"
	"Quill/pkg/models"
	"Quill/pkg/schema"
)

// MockTransport is a fake implementation of core.Transport for development
// and tests. It serves a small fixed set of conversations, accepts upserts
// into memory, and simulates live incoming messages.
type MockTransport struct {
	mu            sync.RWMutex
	conversations map[string]schema.WireConversation
	messages      map[string]schema.WireMessage
	eventChan     chan core.Event
	stopChan      chan struct{}
	connected     bool
	simulate      bool
}

var loremIpsum = []string{
	"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
	"Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris.",
	"Duis aute irure dolor in reprehenderit in voluptate velit esse.",
	"Excepteur sint occaecat cupidatat non proident, sunt in culpa.",
}

func secureRandInt(upperBound int) int {
	if upperBound <= 0 {
		return 0
	}
	n, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(int64(upperBound)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// NewMockTransport creates a mock transport. simulate controls whether fake
// live events are emitted after Connect; tests usually pass false.
func NewMockTransport(simulate bool) *MockTransport {
	m := &MockTransport{
		conversations: make(map[string]schema.WireConversation),
		messages:      make(map[string]schema.WireMessage),
		eventChan:     make(chan core.Event, 100),
		stopChan:      make(chan struct{}),
		simulate:      simulate,
	}
	m.generateFakeData()
	return m
}

func (m *MockTransport) generateFakeData() {
	now := time.Now()
	channels := []models.Channel{models.ChannelLocal, models.ChannelWhatsApp, models.ChannelInstagram}
	names := []string{"Alice Doe", "Bob Martin", "Carol Reyes"}
	for i, name := range names {
		convID := fmt.Sprintf("mock-conv-%d", i+1)
		m.conversations[convID] = schema.WireConversation{
			ID:        convID,
			Name:      name,
			Channel:   string(channels[i%len(channels)]),
			UpdatedAt: now.Add(-time.Duration(i) * time.Hour),
		}
		for j := 0; j < 5; j++ {
			ts := now.Add(-time.Duration(i*24+j) * time.Hour)
			text := loremIpsum[secureRandInt(len(loremIpsum))]
			direction := "incoming"
			if j%2 == 0 {
				direction = "outgoing"
			}
			msgID := uuid.NewString()
			body := models.TextContent(text)
			m.messages[msgID] = schema.WireMessage{
				ID:             msgID,
				ConversationID: convID,
				Direction:      direction,
				Version:        models.SchemaVersion,
				Body:           &body,
				Timestamp:      ts,
				UpdatedAt:      ts,
			}
		}
	}
}

// Connect starts the mock transport and, if enabled, the live event
// simulator.
func (m *MockTransport) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}
	m.connected = true
	if m.simulate {
		go m.simulateRealtimeEvents()
	}
	return nil
}

// Disconnect stops the simulator and closes the event stream.
func (m *MockTransport) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}
	m.connected = false
	close(m.stopChan)
	return nil
}

func (m *MockTransport) simulateRealtimeEvents() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.mu.Lock()
			convID := fmt.Sprintf("mock-conv-%d", secureRandInt(3)+1)
			now := time.Now()
			body := models.TextContent(loremIpsum[secureRandInt(len(loremIpsum))])
			rec := schema.WireMessage{
				ID:             uuid.NewString(),
				ConversationID: convID,
				Direction:      "incoming",
				Version:        models.SchemaVersion,
				Body:           &body,
				Timestamp:      now,
				UpdatedAt:      now,
			}
			m.messages[rec.ID] = rec
			m.mu.Unlock()
			select {
			case m.eventChan <- core.MessageEvent{Record: rec}:
			default:
			}
		}
	}
}

// FetchConversations returns conversations written since the watermark.
func (m *MockTransport) FetchConversations(_ context.Context, since time.Time) ([]schema.WireConversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.WireConversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		if conv.UpdatedAt.After(since) {
			out = append(out, conv)
		}
	}
	return out, nil
}

// FetchMessages returns messages written since the watermark.
func (m *MockTransport) FetchMessages(_ context.Context, since time.Time) ([]schema.WireMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.WireMessage, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.UpdatedAt.After(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// StreamEvents returns the live event channel.
func (m *MockTransport) StreamEvents() (<-chan core.Event, error) {
	return m.eventChan, nil
}

// UpsertConversation stores a conversation write, last writer wins.
func (m *MockTransport) UpsertConversation(_ context.Context, rec schema.WireConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.conversations[rec.ID]; ok && cached.UpdatedAt.After(rec.UpdatedAt) {
		return nil // duplicate or stale send, safely ignorable
	}
	m.conversations[rec.ID] = rec
	return nil
}

// UpsertMessage stores a message write, last writer wins.
func (m *MockTransport) UpsertMessage(_ context.Context, rec schema.WireMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.messages[rec.ID]; ok && cached.UpdatedAt.After(rec.UpdatedAt) {
		return nil
	}
	m.messages[rec.ID] = rec
	return nil
}

// MemoryBlobStore is an in-memory core.BlobStore for development and tests.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Get returns the blob stored at key.
func (s *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("no blob at key %s", key)
	}
	return blob, nil
}

// Put stores a blob at key.
func (s *MemoryBlobStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}
