// Package db persists the reconciled state to a local SQLite database so the
// client starts with a populated store while offline. It observes store
// changes; it never takes part in merge decisions.
package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Quill/pkg/models"
	"Quill/pkg/store"
)

// CachedConversation is the durable form of one conversation record. The
// full record travels as a JSON payload; only identity and the recency key
// get their own columns.
type CachedConversation struct {
	ID        string    `gorm:"primarykey"`
	Payload   string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"index"`
}

// CachedMessage is the durable form of one message record.
type CachedMessage struct {
	ID             string    `gorm:"primarykey"`
	ConversationID string    `gorm:"index"`
	Payload        string    `gorm:"type:text"`
	Timestamp      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// SyncState holds the remote-fetch watermark between runs.
type SyncState struct {
	ID        uint `gorm:"primarykey"`
	Watermark time.Time
}

// Cache wraps the gorm handle. Construct one per client; tests open their
// own isolated instances (":memory:" works).
type Cache struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the SQLite database at path and migrates the schema,
// creating parent directories as needed.
func Open(path string, log zerolog.Logger) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("could not create db directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := gdb.AutoMigrate(&CachedConversation{}, &CachedMessage{}, &SyncState{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}

	return &Cache{db: gdb, log: log}, nil
}

// Observe subscribes the cache to store changes. The store only notifies
// records that passed the recency gate, so a plain upsert is sufficient here.
func (c *Cache) Observe(st *store.Store) {
	st.Subscribe(func(ev store.Event) {
		switch ev.Kind {
		case store.EventConversations:
			if err := c.SaveConversations(ev.Conversations); err != nil {
				c.log.Warn().Err(err).Msg("Failed to persist conversation batch")
			}
		case store.EventMessages:
			if err := c.SaveMessages(ev.Messages); err != nil {
				c.log.Warn().Err(err).Str("conversation_id", ev.ConversationID).
					Msg("Failed to persist message batch")
			}
		}
	})
}

// SaveConversations upserts conversation records.
func (c *Cache) SaveConversations(convs []models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	rows := make([]CachedConversation, 0, len(convs))
	for _, conv := range convs {
		payload, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)
		}
		rows = append(rows, CachedConversation{
			ID:        conv.ID,
			Payload:   string(payload),
			UpdatedAt: conv.UpdatedAt,
		})
	}
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// SaveMessages upserts message records.
func (c *Cache) SaveMessages(msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]CachedMessage, 0, len(msgs))
	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message %s: %w", msg.ID, err)
		}
		rows = append(rows, CachedMessage{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Payload:        string(payload),
			Timestamp:      msg.Timestamp,
			UpdatedAt:      msg.UpdatedAt,
		})
	}
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// LoadInto seeds a store from the cached state. Rows that fail to decode are
// skipped with a diagnostic; one corrupt row must not blank the client.
func (c *Cache) LoadInto(st *store.Store) error {
	var convRows []CachedConversation
	if err := c.db.Find(&convRows).Error; err != nil {
		return fmt.Errorf("failed to load cached conversations: %w", err)
	}
	convs := make([]models.Conversation, 0, len(convRows))
	for _, row := range convRows {
		var conv models.Conversation
		if err := json.Unmarshal([]byte(row.Payload), &conv); err != nil {
			c.log.Warn().Err(err).Str("conversation_id", row.ID).Msg("Skipping corrupt cached conversation")
			continue
		}
		convs = append(convs, conv)
	}

	var msgRows []CachedMessage
	if err := c.db.Find(&msgRows).Error; err != nil {
		return fmt.Errorf("failed to load cached messages: %w", err)
	}
	msgs := make([]models.Message, 0, len(msgRows))
	for _, row := range msgRows {
		var msg models.Message
		if err := json.Unmarshal([]byte(row.Payload), &msg); err != nil {
			c.log.Warn().Err(err).Str("message_id", row.ID).Msg("Skipping corrupt cached message")
			continue
		}
		msgs = append(msgs, msg)
	}

	st.PushConversations(convs)
	st.PushMessages(msgs)
	c.log.Info().Int("conversations", len(convs)).Int("messages", len(msgs)).
		Msg("Seeded store from local cache")
	return nil
}

// Watermark returns the persisted remote-fetch watermark, zero if none.
func (c *Cache) Watermark() time.Time {
	var state SyncState
	if err := c.db.First(&state).Error; err != nil {
		return time.Time{}
	}
	return state.Watermark
}

// SetWatermark persists the remote-fetch watermark.
func (c *Cache) SetWatermark(t time.Time) {
	state := SyncState{ID: 1, Watermark: t}
	if err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&state).Error; err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist sync watermark")
	}
}
