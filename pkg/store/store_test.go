package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"Quill/pkg/models"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return New(zerolog.Nop())
}

func msg(id, convID string, ts, updated time.Time) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: convID,
		Direction:      models.DirectionIncoming,
		Content:        models.TextContent("hello " + id),
		Timestamp:      ts,
		UpdatedAt:      updated,
	}
}

func conv(id string, updated time.Time) models.Conversation {
	return models.Conversation{
		ID:        id,
		Name:      "conv " + id,
		Channel:   models.ChannelLocal,
		UpdatedAt: updated,
	}
}

func TestPushMessagesIdempotent(t *testing.T) {
	s := newTestStore()
	batch := []models.Message{
		msg("m1", "c1", baseTime, baseTime),
		msg("m2", "c1", baseTime.Add(time.Minute), baseTime.Add(time.Minute)),
	}

	s.PushMessages(batch)
	first := s.MessagesFor("c1")
	s.PushMessages(batch)
	second := s.MessagesFor("c1")

	assert.Equal(t, first, second)
}

func TestPushMessagesRecencyMonotonic(t *testing.T) {
	s := newTestStore()
	t0 := baseTime
	t1 := baseTime.Add(time.Hour)
	t2 := baseTime.Add(2 * time.Hour)

	// Apply batches out of order; the survivor must be the max updated_at.
	s.PushMessages([]models.Message{msg("m1", "c1", t0, t1)})
	s.PushMessages([]models.Message{msg("m1", "c1", t0, t2)})
	s.PushMessages([]models.Message{msg("m1", "c1", t0, t0)})

	got, ok := s.Message("c1", "m1")
	assert.True(t, ok)
	assert.True(t, got.UpdatedAt.Equal(t2))
}

func TestPushMessagesOrderingInvariant(t *testing.T) {
	s := newTestStore()
	s.PushMessages([]models.Message{
		msg("m1", "c1", baseTime.Add(time.Minute), baseTime.Add(time.Hour)),
		msg("m2", "c1", baseTime.Add(3*time.Minute), baseTime.Add(time.Hour)),
		msg("m3", "c1", baseTime.Add(2*time.Minute), baseTime.Add(time.Hour)),
	})

	got := s.MessagesFor("c1")
	assert.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp),
			"messages must be sorted timestamp descending")
	}
	assert.Equal(t, "m2", got[0].ID)
}

func TestScheduledMessagesSuppressed(t *testing.T) {
	s := newTestStore()
	scheduled := msg("m1", "c1", baseTime.Add(time.Hour), baseTime) // timestamp > updated_at
	s.PushMessages([]models.Message{scheduled})

	assert.Empty(t, s.MessagesFor("c1"))
	_, ok := s.Message("c1", "m1")
	assert.False(t, ok)
}

func TestStaleUpdateDiscarded(t *testing.T) {
	s := newTestStore()
	t0 := baseTime
	t1 := baseTime.Add(time.Hour)

	s.PushConversations([]models.Conversation{conv("c1", t1)})
	agent := "agent-a"
	current := msg("m1", "c1", t1, t1)
	current.AgentID = &agent
	s.PushMessages([]models.Message{current})

	// An older-looking update must not regress the cached record.
	stale := msg("m1", "c1", t1, t0)
	stale.Content = models.TextContent("stale body")
	s.PushMessages([]models.Message{stale})

	got, ok := s.Message("c1", "m1")
	assert.True(t, ok)
	assert.True(t, got.UpdatedAt.Equal(t1))
	assert.Equal(t, "hello m1", got.Content.Text)
}

func TestPushConversationsRecencyGate(t *testing.T) {
	s := newTestStore()
	t0 := baseTime
	t1 := baseTime.Add(time.Hour)

	newer := conv("c1", t1)
	newer.Name = "renamed"
	s.PushConversations([]models.Conversation{newer})
	s.PushConversations([]models.Conversation{conv("c1", t0)})

	got, ok := s.Conversation("c1")
	assert.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
}

func TestListenerSeesOnlyAcceptedRecords(t *testing.T) {
	s := newTestStore()
	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	t1 := baseTime.Add(time.Hour)
	s.PushMessages([]models.Message{msg("m1", "c1", t1, t1)})
	s.PushMessages([]models.Message{msg("m1", "c1", t1, baseTime)}) // stale, no event

	assert.Len(t, events, 1)
	assert.Equal(t, EventMessages, events[0].Kind)
	assert.Equal(t, "c1", events[0].ConversationID)
	assert.Len(t, events[0].Messages, 1)
}

func TestConversationListPinnedFirst(t *testing.T) {
	s := newTestStore()
	pinnedAt := baseTime.Add(time.Minute)

	active := conv("c-active", baseTime.Add(2*time.Hour))
	pinned := conv("c-pinned", baseTime)
	pinned.Meta.PinnedAt = &pinnedAt
	archivedAt := baseTime
	archived := conv("c-archived", baseTime.Add(3*time.Hour))
	archived.Meta.ArchivedAt = &archivedAt

	s.PushConversations([]models.Conversation{active, pinned, archived})

	list := s.ConversationList(false)
	assert.Len(t, list, 2)
	assert.Equal(t, "c-pinned", list[0].ID)
	assert.Equal(t, "c-active", list[1].ID)

	withArchived := s.ConversationList(true)
	assert.Len(t, withArchived, 3)
}

func TestPreviewPrefersDraft(t *testing.T) {
	s := newTestStore()
	s.PushConversations([]models.Conversation{conv("c1", baseTime)})
	s.PushMessages([]models.Message{msg("m1", "c1", baseTime, baseTime)})

	assert.Equal(t, "hello m1", s.Preview("c1"))

	s.SetDraft("c1", "half-typed reply")
	assert.Equal(t, "draft: half-typed reply", s.Preview("c1"))
}

func TestPreviewFileShowsKindAndSize(t *testing.T) {
	s := newTestStore()
	f := msg("m1", "c1", baseTime, baseTime)
	f.Content = models.Content{
		Version: models.SchemaVersion,
		Type:    models.ContentFile,
		Kind:    models.KindImage,
		File:    &models.FileContent{MimeType: "image/png", Size: 2048, FileName: "photo.png"},
	}
	s.PushMessages([]models.Message{f})

	assert.Contains(t, s.Preview("c1"), "image")
	assert.Contains(t, s.Preview("c1"), "kB")
}
