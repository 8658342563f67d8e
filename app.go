// Package quill wires the messaging cache core together: the reconciliation
// store, local SQLite cache, remote transport syncer, media transfer manager
// and timeline builder, behind one facade for the presentation layer.
package quill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"Quill/pkg/core"
	"Quill/pkg/db"
	"Quill/pkg/logging"
	"Quill/pkg/media"
	"Quill/pkg/models"
	"Quill/pkg/schema"
	"Quill/pkg/store"
	"Quill/pkg/timeline"
)

// upsertTimeout bounds background persistence of locally originated writes.
const upsertTimeout = 15 * time.Second

// App is the embedder-facing facade. Construct with New, call Start, and
// read the derived projections; all mutations go through the store's merge
// path.
type App struct {
	cfg       core.Config
	log       zerolog.Logger
	store     *store.Store
	cache     *db.Cache
	transport core.Transport
	syncer    *core.Syncer
	media     *media.Manager
	builder   *timeline.Builder
	viewer    timeline.Viewer
}

// New builds an App from its collaborators. Recognized config keys:
// "agent_id", "admin", "locale", "cache_path", "download_dir",
// "sync_interval".
func New(cfg core.Config, transport core.Transport, blobs core.BlobStore, log zerolog.Logger) (*App, error) {
	agentID, _ := cfg.GetString("agent_id")
	admin, _ := cfg.GetBool("admin")
	locale, _ := cfg.GetString("locale")

	cachePath, ok := cfg.GetString("cache_path")
	if !ok {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("could not get user config dir: %w", err)
		}
		cachePath = filepath.Join(configDir, "Quill", "quill.db")
	}
	downloadDir, ok := cfg.GetString("download_dir")
	if !ok {
		downloadDir = filepath.Join(filepath.Dir(cachePath), "downloads")
	}
	interval, _ := cfg.GetDuration("sync_interval")

	st := store.New(logging.Component(log, "store"))

	cache, err := db.Open(cachePath, logging.Component(log, "db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	cache.Observe(st)
	if err := cache.LoadInto(st); err != nil {
		log.Warn().Err(err).Msg("Could not seed store from local cache")
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		cache:     cache,
		transport: transport,
		builder:   timeline.NewBuilder(locale),
		viewer:    timeline.Viewer{AgentID: agentID, Admin: admin},
	}

	a.media = media.NewManager(blobs, a.syncMessageMeta, downloadDir, logging.Component(log, "media"))

	st.SetDraftPersister(func(conversationID string, _ models.Draft) {
		// Keep the keystroke, send and switch paths off the network.
		go a.persistConversation(conversationID)
	})

	a.syncer = core.NewSyncer(transport, st, interval, logging.Component(log, "sync"))
	a.syncer.SetWatermark(cache.Watermark(), cache.SetWatermark)
	return a, nil
}

// Start connects the transport and begins syncing.
func (a *App) Start(ctx context.Context) error {
	return a.syncer.Start(ctx)
}

// Shutdown stops background sync and flushes nothing further; drafts are
// flushed by the UI on conversation switch.
func (a *App) Shutdown() {
	a.syncer.Stop()
}

// Store exposes the reconciliation store for advanced embedders and tests.
func (a *App) Store() *store.Store { return a.store }

// --- List and thread projections ---

// Conversations returns the list-view projection, pinned first.
func (a *App) Conversations() []models.Conversation {
	return a.store.ConversationList(false)
}

// ConversationPreview returns the one-line preview for the list view.
func (a *App) ConversationPreview(conversationID string) string {
	return a.store.Preview(conversationID)
}

// Thread returns the annotated envelope/separator sequence for one
// conversation, ready to render top to bottom.
func (a *App) Thread(conversationID string) []timeline.Item {
	return a.builder.Thread(a.store.MessagesFor(conversationID), a.viewer)
}

// --- Drafts ---

// SetDraft updates the composer buffer; persistence is debounced.
func (a *App) SetDraft(conversationID, text string) { a.store.SetDraft(conversationID, text) }

// Draft returns the composer buffer, falling back to the persisted draft.
func (a *App) Draft(conversationID string) string { return a.store.Draft(conversationID) }

// SwitchConversation flushes the previous conversation's draft so it
// survives navigation.
func (a *App) SwitchConversation(fromConversationID string) {
	if fromConversationID != "" {
		a.store.FlushDraft(fromConversationID)
	}
}

// SetFileDraft stages or clears a pending attachment.
func (a *App) SetFileDraft(conversationID string, fd *models.FileDraft) {
	a.store.SetFileDraft(conversationID, fd)
}

// FileDraft returns the staged attachment, if any.
func (a *App) FileDraft(conversationID string) *models.FileDraft {
	return a.store.FileDraft(conversationID)
}

// --- Sending ---

// SendMessage sends a text message optimistically: the record enters the
// store immediately with a pending status, then persists in the background.
// The remote echo reconciles through the normal batch path.
func (a *App) SendMessage(conversationID, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot send an empty message")
	}
	msg := a.newOutgoing(conversationID)
	msg.Content = models.TextContent(text)

	a.store.PushMessages([]models.Message{msg})
	a.store.DropDraft(conversationID)
	go a.persistMessage(msg)
	return &msg, nil
}

// SendFile sends the staged file draft as a media message and starts its
// upload immediately.
func (a *App) SendFile(conversationID string, caption string) (*models.Message, error) {
	fd := a.store.FileDraft(conversationID)
	if fd == nil {
		return nil, fmt.Errorf("no file draft staged for conversation %s", conversationID)
	}

	msg := a.newOutgoing(conversationID)
	msg.Content = models.Content{
		Version: models.SchemaVersion,
		Type:    models.ContentFile,
		Kind:    fileKind(fd.MimeType),
		File: &models.FileContent{
			MimeType: fd.MimeType,
			Size:     fd.Size,
			FileName: fd.FileName,
			Caption:  caption,
		},
	}

	a.store.PushMessages([]models.Message{msg})
	a.store.SetFileDraft(conversationID, nil)

	a.media.Register(msg.ID, media.TransferUpload, fd.Data)
	if media.ShouldAutoStart(msg, media.TransferUpload) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
			defer cancel()
			_ = a.media.StartLoad(ctx, msg)
		}()
	}
	go a.persistMessage(msg)
	return &msg, nil
}

func (a *App) newOutgoing(conversationID string) models.Message {
	now := time.Now()
	agentID := a.viewer.AgentID
	return models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Direction:      models.DirectionOutgoing,
		Status:         map[models.StatusKey]time.Time{models.StatusPending: now},
		AgentID:        &agentID,
		Timestamp:      now,
		UpdatedAt:      now,
	}
}

func fileKind(mimeType string) models.Kind {
	switch {
	case len(mimeType) >= 6 && mimeType[:6] == "image/":
		return models.KindImage
	case len(mimeType) >= 6 && mimeType[:6] == "audio/":
		return models.KindAudio
	case len(mimeType) >= 6 && mimeType[:6] == "video/":
		return models.KindVideo
	default:
		return models.KindDocument
	}
}

// persistMessage pushes a locally originated message to the remote store.
// On failure the message is marked failed in the store; the remote echo of a
// successful upsert flows back through the sync path.
func (a *App) persistMessage(msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
	defer cancel()
	if err := a.transport.UpsertMessage(ctx, schema.ToWire(msg)); err != nil {
		a.log.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to persist message")
		failed := msg
		failed.Status = make(map[models.StatusKey]time.Time, len(msg.Status)+1)
		for k, v := range msg.Status {
			failed.Status[k] = v
		}
		failed.Status[models.StatusFailed] = time.Now()
		failed.UpdatedAt = time.Now()
		a.store.PushMessages([]models.Message{failed})
	}
}

// persistConversation pushes the current cached conversation record to the
// remote store.
func (a *App) persistConversation(conversationID string) {
	conv, ok := a.store.Conversation(conversationID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
	defer cancel()
	if err := a.transport.UpsertConversation(ctx, schema.ConversationToWire(conv)); err != nil {
		a.log.Warn().Err(err).Str("conversation_id", conversationID).
			Msg("Failed to persist conversation")
	}
}

// syncMessageMeta is the media manager's metadata-sync hook: the enriched
// record merges locally and persists remotely, both idempotent.
func (a *App) syncMessageMeta(msg models.Message) {
	a.store.PushMessages([]models.Message{msg})
	a.persistMessage(msg)
}

// --- Conversation actions ---

// mutateConversation applies an optimistic local meta change and persists it
// in the background.
func (a *App) mutateConversation(conversationID string, mutate func(*models.Conversation)) error {
	conv, ok := a.store.Conversation(conversationID)
	if !ok {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	mutate(&conv)
	conv.UpdatedAt = time.Now()
	a.store.PushConversations([]models.Conversation{conv})
	go a.persistConversation(conversationID)
	return nil
}

// PinConversation pins a conversation to the top of the list.
func (a *App) PinConversation(conversationID string) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		now := time.Now()
		c.Meta.PinnedAt = &now
	})
}

// UnpinConversation removes the pin.
func (a *App) UnpinConversation(conversationID string) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		c.Meta.PinnedAt = nil
	})
}

// ArchiveConversation marks a conversation archived. Conversations are never
// deleted client-side.
func (a *App) ArchiveConversation(conversationID string) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		now := time.Now()
		c.Meta.ArchivedAt = &now
	})
}

// UnarchiveConversation clears the archived mark.
func (a *App) UnarchiveConversation(conversationID string) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		c.Meta.ArchivedAt = nil
	})
}

// PauseConversation stamps the paused timestamp (automation hold).
func (a *App) PauseConversation(conversationID string) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		now := time.Now()
		c.Meta.PausedAt = &now
	})
}

// ResumeConversation clears the paused timestamp.
func (a *App) ResumeConversation(conversationID string) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		c.Meta.PausedAt = nil
	})
}

// SetNotifications sets the notification preference.
func (a *App) SetNotifications(conversationID string, enabled bool) error {
	return a.mutateConversation(conversationID, func(c *models.Conversation) {
		c.Meta.Notifications = &enabled
	})
}

// --- Media ---

// MediaLoad returns the transfer state for a message.
func (a *App) MediaLoad(messageID string) (media.Load, bool) {
	return a.media.Load(messageID)
}

// StartDownload registers (if needed) and starts the download for a media
// message. Blocks for the transfer; run off the UI goroutine.
func (a *App) StartDownload(ctx context.Context, conversationID, messageID string) error {
	msg, ok := a.store.Message(conversationID, messageID)
	if !ok {
		return fmt.Errorf("message not found: %s", messageID)
	}
	a.media.Register(msg.ID, media.TransferDownload, nil)
	return a.media.StartLoad(ctx, msg)
}

// CancelLoad cooperatively cancels an in-flight transfer.
func (a *App) CancelLoad(messageID string) {
	a.media.CancelLoad(messageID)
}

// SaveAttachment writes a downloaded attachment to the download directory
// and returns its path.
func (a *App) SaveAttachment(messageID, filename string) (string, error) {
	return a.media.HandleLoad(messageID, filename)
}
