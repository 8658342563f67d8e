package store

import (
	"time"

	"github.com/bep/debounce"

	"Quill/pkg/models"
)

// autosaveDelay is how long the composer has to stay quiet before the draft
// buffer is persisted.
const autosaveDelay = 800 * time.Millisecond

// DraftOrigin marks drafts written by this client in the persisted record.
const DraftOrigin = "local"

// DraftPersister pushes a draft to the remote store. Invoked off the
// keystroke path, after the debounce window closes or on explicit flush.
type DraftPersister func(conversationID string, draft models.Draft)

// SetDraftPersister wires the background persistence hook. Wire it before
// the UI starts editing.
func (s *Store) SetDraftPersister(fn DraftPersister) {
	s.draftsMu.Lock()
	s.persistDraft = fn
	s.draftsMu.Unlock()
}

// SetDraft updates a conversation's composer buffer and restarts its
// debounced autosave. Rapid keystrokes coalesce into a single delayed write.
func (s *Store) SetDraft(conversationID, text string) {
	s.draftsMu.Lock()
	s.drafts[conversationID] = text
	seq := s.draftSeq[conversationID]
	deb, ok := s.debouncers[conversationID]
	if !ok {
		deb = debounce.New(autosaveDelay)
		s.debouncers[conversationID] = deb
	}
	s.draftsMu.Unlock()

	deb(func() {
		s.draftsMu.Lock()
		stale := s.draftSeq[conversationID] != seq
		current, exists := s.drafts[conversationID]
		s.draftsMu.Unlock()
		// A flush or drop between scheduling and firing already settled
		// this draft; the late fire must not resurrect it.
		if stale || !exists {
			return
		}
		s.saveDraft(conversationID, current)
	})
}

// Draft returns the composer buffer for a conversation, falling back to the
// server-persisted draft on its extension map.
func (s *Store) Draft(conversationID string) string {
	s.draftsMu.Lock()
	text, ok := s.drafts[conversationID]
	s.draftsMu.Unlock()
	if ok {
		return text
	}
	if conv, found := s.Conversation(conversationID); found && conv.Meta.Draft != nil {
		return conv.Meta.Draft.Text
	}
	return ""
}

// FlushDraft persists the buffer immediately, bypassing the debounce window.
// Call on conversation switch so a half-typed draft survives.
func (s *Store) FlushDraft(conversationID string) {
	s.draftsMu.Lock()
	s.draftSeq[conversationID]++
	text, ok := s.drafts[conversationID]
	s.draftsMu.Unlock()
	if !ok {
		return
	}
	s.saveDraft(conversationID, text)
}

// DropDraft discards the buffer and any pending autosave, and clears the
// persisted draft. Call after a successful send.
func (s *Store) DropDraft(conversationID string) {
	s.draftsMu.Lock()
	s.draftSeq[conversationID]++
	delete(s.drafts, conversationID)
	s.draftsMu.Unlock()
	s.saveDraft(conversationID, "")
}

// saveDraft applies the draft to the local conversation record through the
// normal merge path and hands it to the background persister.
func (s *Store) saveDraft(conversationID, text string) {
	conv, ok := s.Conversation(conversationID)
	if !ok {
		return
	}
	draft := models.Draft{Text: text, Origin: DraftOrigin, Timestamp: time.Now()}
	if text == "" {
		conv.Meta.Draft = nil
	} else {
		conv.Meta.Draft = &draft
	}
	conv.UpdatedAt = time.Now()
	s.PushConversations([]models.Conversation{conv})

	s.draftsMu.Lock()
	persist := s.persistDraft
	s.draftsMu.Unlock()
	if persist != nil {
		persist(conversationID, draft)
	}
}

// SetFileDraft stages a pending attachment for a conversation. Pass nil to
// clear.
func (s *Store) SetFileDraft(conversationID string, fd *models.FileDraft) {
	s.draftsMu.Lock()
	if fd == nil {
		delete(s.fileDrafts, conversationID)
	} else {
		s.fileDrafts[conversationID] = fd
	}
	s.draftsMu.Unlock()
}

// FileDraft returns the staged attachment for a conversation, if any.
func (s *Store) FileDraft(conversationID string) *models.FileDraft {
	s.draftsMu.Lock()
	defer s.draftsMu.Unlock()
	return s.fileDrafts[conversationID]
}
