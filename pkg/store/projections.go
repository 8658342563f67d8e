package store

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"Quill/pkg/models"
)

// ConversationList returns the list-view projection: pinned conversations
// first (most recently pinned on top), the rest by last activity. Archived
// conversations are excluded unless includeArchived is set; they are never
// removed from the store itself.
func (s *Store) ConversationList(includeArchived bool) []models.Conversation {
	s.mu.RLock()
	convs := make([]models.Conversation, 0, s.conversations.Len())
	activity := make(map[string]int64, s.conversations.Len())
	for el := s.conversations.Front(); el != nil; el = el.Next() {
		conv := el.Value
		if conv.Archived() && !includeArchived {
			continue
		}
		last := conv.UpdatedAt
		if coll, ok := s.messages[conv.ID]; ok && coll.Len() > 0 {
			if ts := coll.Front().Value.Timestamp; ts.After(last) {
				last = ts
			}
		}
		activity[conv.ID] = last.UnixNano()
		convs = append(convs, conv)
	}
	s.mu.RUnlock()

	sort.SliceStable(convs, func(i, j int) bool {
		pi, pj := convs[i].Meta.PinnedAt, convs[j].Meta.PinnedAt
		if (pi != nil) != (pj != nil) {
			return pi != nil
		}
		if pi != nil && pj != nil && !pi.Equal(*pj) {
			return pi.After(*pj)
		}
		return activity[convs[i].ID] > activity[convs[j].ID]
	})
	return convs
}

// Preview returns the one-line list-view preview for a conversation: the
// pending draft when one exists, otherwise a rendering of the newest message.
func (s *Store) Preview(conversationID string) string {
	if text := s.Draft(conversationID); text != "" {
		return "draft: " + text
	}
	last, ok := s.LastMessage(conversationID)
	if !ok {
		return ""
	}
	return previewText(last)
}

func previewText(m models.Message) string {
	c := m.Content
	if err := c.Validate(); err != nil {
		return "(unsupported message)"
	}
	switch c.Type {
	case models.ContentText:
		return c.Text
	case models.ContentFile:
		return fmt.Sprintf("%s (%s)", c.Kind, humanize.Bytes(uint64(c.File.Size)))
	case models.ContentData:
		if c.Tool != nil {
			return fmt.Sprintf("tool: %s", c.Tool.Name)
		}
		return string(c.Kind)
	}
	return ""
}
