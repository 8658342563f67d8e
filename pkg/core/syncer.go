package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"Quill/pkg/models"
	"Quill/pkg/schema"
	"Quill/pkg/store"
)

// DefaultSyncInterval is the periodic refresh cadence when the config does
// not override it.
const DefaultSyncInterval = 30 * time.Second

// Syncer drives the remote batch path: periodic refetches and the live
// event stream both flow through the version migrator into the store. The
// store's recency gate makes the two paths safe to race.
type Syncer struct {
	transport Transport
	store     *store.Store
	interval  time.Duration

	mu            sync.Mutex
	watermark     time.Time
	saveWatermark func(time.Time)

	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger
}

// NewSyncer creates a syncer. saveWatermark persists the high-water mark
// between runs; pass nil to keep it in memory only.
func NewSyncer(transport Transport, st *store.Store, interval time.Duration, log zerolog.Logger) *Syncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Syncer{
		transport: transport,
		store:     st,
		interval:  interval,
		log:       log,
	}
}

// SetWatermark seeds the fetch watermark, typically from the local cache's
// persisted sync state.
func (s *Syncer) SetWatermark(t time.Time, save func(time.Time)) {
	s.mu.Lock()
	s.watermark = t
	s.saveWatermark = save
	s.mu.Unlock()
}

// Start connects the transport, runs an initial refresh, and launches the
// periodic refresh loop plus the live event pump. Call Stop to shut down.
func (s *Syncer) Start(ctx context.Context) error {
	if err := s.transport.Connect(); err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	events, err := s.transport.StreamEvents()
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	if err := s.Refresh(runCtx); err != nil {
		s.log.Warn().Err(err).Msg("Initial refresh failed, continuing with cached state")
	}

	go s.run(runCtx, events)
	return nil
}

// Stop halts background work and disconnects the transport.
func (s *Syncer) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	if err := s.transport.Disconnect(); err != nil {
		s.log.Warn().Err(err).Msg("Transport disconnect failed")
	}
}

func (s *Syncer) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Periodic refresh failed")
			}
		case ev, ok := <-events:
			if !ok {
				s.log.Info().Msg("Transport event stream closed")
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Syncer) handleEvent(ev Event) {
	switch e := ev.(type) {
	case MessageEvent:
		if msg, ok := schema.ToCurrent(e.Record); ok {
			s.store.PushMessages([]models.Message{msg})
			s.advanceWatermark(msg.UpdatedAt)
		}
	case ConversationEvent:
		if conv, ok := schema.ConversationToCurrent(e.Record); ok {
			s.store.PushConversations([]models.Conversation{conv})
			s.advanceWatermark(conv.UpdatedAt)
		}
	case SyncStatusEvent:
		s.log.Debug().Str("status", string(e.Status)).Str("detail", e.Message).
			Msg("Transport sync status")
	}
}

// Refresh fetches all records written since the watermark and reconciles
// them. Safe to call concurrently with the live event pump; the recency gate
// resolves any overlap.
func (s *Syncer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	since := s.watermark
	s.mu.Unlock()

	convRecs, err := s.transport.FetchConversations(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch conversations: %w", err)
	}
	msgRecs, err := s.transport.FetchMessages(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	convs := make([]models.Conversation, 0, len(convRecs))
	newest := since
	for _, rec := range convRecs {
		conv, ok := schema.ConversationToCurrent(rec)
		if !ok {
			continue
		}
		convs = append(convs, conv)
		if conv.UpdatedAt.After(newest) {
			newest = conv.UpdatedAt
		}
	}

	msgs := make([]models.Message, 0, len(msgRecs))
	for _, rec := range msgRecs {
		msg, ok := schema.ToCurrent(rec)
		if !ok {
			continue
		}
		msgs = append(msgs, msg)
		if msg.UpdatedAt.After(newest) {
			newest = msg.UpdatedAt
		}
	}

	s.store.PushConversations(convs)
	s.store.PushMessages(msgs)
	s.advanceWatermark(newest)

	s.log.Info().
		Int("conversations", len(convs)).
		Int("messages", len(msgs)).
		Time("since", since).
		Msg("Refresh reconciled")
	return nil
}

func (s *Syncer) advanceWatermark(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.After(s.watermark) {
		return
	}
	s.watermark = t
	if s.saveWatermark != nil {
		s.saveWatermark(t)
	}
}
