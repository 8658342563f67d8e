// Package store holds the authoritative in-memory projection of
// conversations and messages, built from remote batches and locally
// originated optimistic records.
package store

import (
	"sort"
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"Quill/pkg/models"
)

// EventKind tags a store change notification.
type EventKind string

const (
	// EventConversations fires after a conversation batch changed the store.
	EventConversations EventKind = "conversations"
	// EventMessages fires after a message batch changed one conversation.
	EventMessages EventKind = "messages"
)

// Event describes one accepted mutation. Only records that survived the
// recency gate are included, so observers (e.g. the sqlite cache) can persist
// them without re-checking staleness.
type Event struct {
	Kind           EventKind
	ConversationID string
	Conversations  []models.Conversation
	Messages       []models.Message
}

// Listener observes accepted store mutations. Listeners run synchronously on
// the pushing goroutine, after the store lock is released.
type Listener func(Event)

// Store is the reconciliation store. All mutations are atomic with respect
// to each other; the periodic refetch path, the live-update path and the
// optimistic-send path race freely and correctness rests on the recency gate,
// not on caller coordination.
type Store struct {
	mu            sync.RWMutex
	conversations *orderedmap.OrderedMap[string, models.Conversation]
	messages      map[string]*orderedmap.OrderedMap[string, models.Message]
	listeners     []Listener

	draftsMu     sync.Mutex
	drafts       map[string]string
	fileDrafts   map[string]*models.FileDraft
	draftSeq     map[string]uint64
	debouncers   map[string]func(func())
	persistDraft DraftPersister

	log zerolog.Logger
}

// New creates an empty store.
func New(log zerolog.Logger) *Store {
	return &Store{
		conversations: orderedmap.NewOrderedMap[string, models.Conversation](),
		messages:      make(map[string]*orderedmap.OrderedMap[string, models.Message]),
		drafts:        make(map[string]string),
		fileDrafts:    make(map[string]*models.FileDraft),
		draftSeq:      make(map[string]uint64),
		debouncers:    make(map[string]func(func())),
		log:           log,
	}
}

// Subscribe registers a change listener. Not safe to call concurrently with
// pushes; wire observers before the syncer starts.
func (s *Store) Subscribe(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(ev Event) {
	for _, fn := range s.listeners {
		fn(ev)
	}
}

// PushConversations merges a batch of observed conversation records. For each
// record the cached copy wins iff it carries a strictly newer write time;
// otherwise the incoming record replaces it wholesale. Re-applying a batch is
// a no-op and application order within a batch does not matter.
func (s *Store) PushConversations(batch []models.Conversation) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	accepted := make([]models.Conversation, 0, len(batch))
	for _, incoming := range batch {
		if incoming.ID == "" {
			continue
		}
		cached, ok := s.conversations.Get(incoming.ID)
		if ok && cached.UpdatedAt.After(incoming.UpdatedAt) {
			// Stale write, drop silently.
			continue
		}
		s.conversations.Set(incoming.ID, incoming)
		accepted = append(accepted, incoming)
	}
	s.mu.Unlock()

	if len(accepted) > 0 {
		s.log.Debug().Int("accepted", len(accepted)).Int("batch", len(batch)).
			Msg("Merged conversation batch")
		s.notify(Event{Kind: EventConversations, Conversations: accepted})
	}
}

// PushMessages merges a batch of observed message records. Scheduled messages
// (event time after their own write time) never enter the store. After the
// merge each touched conversation's collection is rebuilt sorted by timestamp
// descending, the ordering every downstream consumer relies on.
func (s *Store) PushMessages(batch []models.Message) {
	live := lo.Filter(batch, func(m models.Message, _ int) bool {
		return m.ID != "" && !m.Scheduled()
	})
	if dropped := len(batch) - len(live); dropped > 0 {
		s.log.Debug().Int("dropped", dropped).Msg("Suppressed scheduled messages")
	}
	if len(live) == 0 {
		return
	}

	byConversation := lo.GroupBy(live, func(m models.Message) string {
		return m.ConversationID
	})

	var events []Event
	s.mu.Lock()
	for convID, records := range byConversation {
		coll, ok := s.messages[convID]
		if !ok {
			coll = orderedmap.NewOrderedMap[string, models.Message]()
			s.messages[convID] = coll
		}

		accepted := make([]models.Message, 0, len(records))
		for _, incoming := range records {
			cached, exists := coll.Get(incoming.ID)
			if exists && cached.UpdatedAt.After(incoming.UpdatedAt) {
				continue
			}
			coll.Set(incoming.ID, incoming)
			accepted = append(accepted, incoming)
		}
		if len(accepted) == 0 {
			continue
		}

		s.messages[convID] = resort(coll)
		events = append(events, Event{
			Kind:           EventMessages,
			ConversationID: convID,
			Messages:       accepted,
		})
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notify(ev)
	}
}

// resort rebuilds a message collection as an ordered map sorted by timestamp
// descending (index 0 = most recent). Ties break on id so repeated merges are
// deterministic.
func resort(coll *orderedmap.OrderedMap[string, models.Message]) *orderedmap.OrderedMap[string, models.Message] {
	msgs := make([]models.Message, 0, coll.Len())
	for el := coll.Front(); el != nil; el = el.Next() {
		msgs = append(msgs, el.Value)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.After(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})

	rebuilt := orderedmap.NewOrderedMap[string, models.Message]()
	for _, m := range msgs {
		rebuilt.Set(m.ID, m)
	}
	return rebuilt
}

// Conversation returns the cached record for one conversation.
func (s *Store) Conversation(id string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations.Get(id)
}

// Message returns one cached message.
func (s *Store) Message(conversationID, id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.messages[conversationID]
	if !ok {
		return models.Message{}, false
	}
	return coll.Get(id)
}

// MessagesFor returns a copy of one conversation's messages, most recent
// first.
func (s *Store) MessagesFor(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.messages[conversationID]
	if !ok {
		return nil
	}
	msgs := make([]models.Message, 0, coll.Len())
	for el := coll.Front(); el != nil; el = el.Next() {
		msgs = append(msgs, el.Value)
	}
	return msgs
}

// LastMessage returns the most recent message of a conversation.
func (s *Store) LastMessage(conversationID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.messages[conversationID]
	if !ok || coll.Len() == 0 {
		return models.Message{}, false
	}
	return coll.Front().Value, true
}
