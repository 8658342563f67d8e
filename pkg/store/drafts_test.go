package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"Quill/pkg/models"
)

type draftRecorder struct {
	mu    sync.Mutex
	calls []models.Draft
}

func (r *draftRecorder) persist(_ string, d models.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, d)
}

func (r *draftRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *draftRecorder) last() models.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func TestDraftAutosaveCoalesces(t *testing.T) {
	s := newTestStore()
	s.PushConversations([]models.Conversation{conv("c1", baseTime)})
	rec := &draftRecorder{}
	s.SetDraftPersister(rec.persist)

	// Rapid-fire keystrokes must coalesce into one delayed write.
	s.SetDraft("c1", "h")
	s.SetDraft("c1", "he")
	s.SetDraft("c1", "hel")
	s.SetDraft("c1", "hello")

	assert.Equal(t, 0, rec.count(), "no write inside the debounce window")
	time.Sleep(autosaveDelay + 400*time.Millisecond)

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "hello", rec.last().Text)
	assert.Equal(t, DraftOrigin, rec.last().Origin)

	// The draft also landed on the conversation's extension map.
	c, ok := s.Conversation("c1")
	assert.True(t, ok)
	if assert.NotNil(t, c.Meta.Draft) {
		assert.Equal(t, "hello", c.Meta.Draft.Text)
	}
}

func TestFlushDraftBypassesDebounce(t *testing.T) {
	s := newTestStore()
	s.PushConversations([]models.Conversation{conv("c1", baseTime)})
	rec := &draftRecorder{}
	s.SetDraftPersister(rec.persist)

	s.SetDraft("c1", "goodbye")
	s.FlushDraft("c1")
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "goodbye", rec.last().Text)

	// The pending debounced fire must not save a second time.
	time.Sleep(autosaveDelay + 400*time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestDropDraftClearsBufferAndPersisted(t *testing.T) {
	s := newTestStore()
	s.PushConversations([]models.Conversation{conv("c1", baseTime)})
	rec := &draftRecorder{}
	s.SetDraftPersister(rec.persist)

	s.SetDraft("c1", "never sent")
	s.DropDraft("c1")

	assert.Equal(t, "", s.Draft("c1"))
	c, _ := s.Conversation("c1")
	assert.Nil(t, c.Meta.Draft)

	// The stale debounced fire must not resurrect the dropped draft.
	time.Sleep(autosaveDelay + 400*time.Millisecond)
	assert.Equal(t, "", s.Draft("c1"))
	c, _ = s.Conversation("c1")
	assert.Nil(t, c.Meta.Draft)
}

func TestDraftFallsBackToPersistedMeta(t *testing.T) {
	s := newTestStore()
	c := conv("c1", baseTime)
	c.Meta.Draft = &models.Draft{Text: "from another device", Origin: "mobile", Timestamp: baseTime}
	s.PushConversations([]models.Conversation{c})

	assert.Equal(t, "from another device", s.Draft("c1"))
}

func TestFileDraftStaging(t *testing.T) {
	s := newTestStore()
	fd := &models.FileDraft{FileName: "report.pdf", MimeType: "application/pdf", Size: 4}

	s.SetFileDraft("c1", fd)
	assert.Equal(t, fd, s.FileDraft("c1"))

	s.SetFileDraft("c1", nil)
	assert.Nil(t, s.FileDraft("c1"))
}
