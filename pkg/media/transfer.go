// Package media drives per-message attachment transfers as an explicit state
// machine: pending → loading → done/error, with cooperative cancellation back
// to pending. The state machine is passive; presentation logic decides when
// to start a transfer (see ShouldAutoStart).
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"Quill/pkg/core"
	"Quill/pkg/models"
)

// TransferType is fixed at creation and determines which transport operation
// StartLoad performs.
type TransferType string

const (
	TransferUpload   TransferType = "upload"
	TransferDownload TransferType = "download"
)

// Status is the lifecycle state of one transfer.
type Status string

const (
	StatusPending Status = "pending"
	StatusLoading Status = "loading"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// autoFetchWindow bounds automatic downloads: only media younger than this is
// fetched without the user asking.
const autoFetchWindow = 24 * time.Hour

// Load is a snapshot of one message's transfer state.
type Load struct {
	Type        TransferType
	Status      Status
	Blob        []byte
	Err         error
	HandledOnce bool
}

// entry is the internal, mutable form of Load.
type entry struct {
	Load
	cancelled bool
}

// MetaSync reconciles enriched attachment metadata (sniffed mime type,
// generated thumbnail artifact) after a successful upload. Implementations
// must be idempotent upserts; a duplicate sync is safely ignorable.
type MetaSync func(msg models.Message)

// Manager owns the transfer state for all messages in a session. Entries are
// transient and keyed by message id.
type Manager struct {
	mu    sync.Mutex
	loads map[string]*entry

	blobs    core.BlobStore
	syncMeta MetaSync
	saveDir  string
	log      zerolog.Logger
}

// NewManager creates a transfer manager. saveDir is where HandleLoad
// materializes downloaded files; syncMeta may be nil to skip metadata sync.
func NewManager(blobs core.BlobStore, syncMeta MetaSync, saveDir string, log zerolog.Logger) *Manager {
	return &Manager{
		loads:    make(map[string]*entry),
		blobs:    blobs,
		syncMeta: syncMeta,
		saveDir:  saveDir,
		log:      log,
	}
}

// Register creates a pending transfer for a message. For uploads, blob is the
// local bytes to push; for downloads it is ignored. Registering an existing
// message id is a no-op.
func (m *Manager) Register(msgID string, t TransferType, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.loads[msgID]; exists {
		return
	}
	m.loads[msgID] = &entry{Load: Load{Type: t, Status: StatusPending, Blob: blob}}
}

// Load returns a snapshot of one message's transfer state.
func (m *Manager) Load(msgID string) (Load, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.loads[msgID]
	if !ok {
		return Load{}, false
	}
	return e.Load, true
}

// StartLoad performs the transfer for a registered message. Allowed from
// pending (first attempt) and error (retry). The call blocks for the
// duration of the transport operation; run it off the UI goroutine.
func (m *Manager) StartLoad(ctx context.Context, msg models.Message) error {
	m.mu.Lock()
	e, ok := m.loads[msg.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no transfer registered for message %s", msg.ID)
	}
	if e.Status == StatusLoading || e.Status == StatusDone {
		m.mu.Unlock()
		return nil
	}
	e.Status = StatusLoading
	e.Err = nil
	e.cancelled = false
	transferType := e.Type
	blob := e.Blob
	m.mu.Unlock()

	key := StorageKey(msg)
	var (
		fetched []byte
		err     error
	)
	if transferType == TransferUpload {
		err = m.upload(ctx, msg, key, blob)
	} else {
		fetched, err = m.blobs.Get(ctx, key)
	}

	// The cancellation flag is consulted exactly here, after the transport
	// call resolves. If the call already completed the cancel was a no-op;
	// the UI re-offers the action.
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case e.cancelled:
		e.Status = StatusPending
		e.cancelled = false
		return nil
	case err != nil:
		e.Status = StatusError
		e.Err = err
		m.log.Warn().Err(err).Str("message_id", msg.ID).Str("type", string(transferType)).
			Msg("Media transfer failed")
		return err
	default:
		if transferType == TransferDownload {
			e.Blob = fetched
		}
		e.Status = StatusDone
		return nil
	}
}

// upload pushes the blob to object storage and, on success, runs the
// best-effort metadata sync on the owning message.
func (m *Manager) upload(ctx context.Context, msg models.Message, key string, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("no local blob staged for upload")
	}
	if err := m.blobs.Put(ctx, key, blob); err != nil {
		return err
	}

	if m.syncMeta == nil || msg.Content.File == nil {
		return nil
	}

	file := *msg.Content.File
	if file.MimeType == "" {
		file.MimeType = mimetype.Detect(blob).String()
	}
	file.Size = int64(len(blob))
	if msg.Content.Kind == models.KindImage && !hasArtifact(file.Artifacts, "thumbnail") {
		if thumb, err := thumbnailJPEG(blob, thumbnailMaxDim); err != nil {
			m.log.Debug().Err(err).Str("message_id", msg.ID).Msg("Thumbnail generation skipped")
		} else {
			thumbKey := key + ".thumb"
			if err := m.blobs.Put(ctx, thumbKey, thumb); err != nil {
				m.log.Debug().Err(err).Str("message_id", msg.ID).Msg("Thumbnail upload skipped")
			} else {
				file.Artifacts = append(file.Artifacts, models.Artifact{Kind: "thumbnail", StorageKey: thumbKey})
			}
		}
	}

	updated := msg
	content := msg.Content
	content.File = &file
	updated.Content = content
	updated.UpdatedAt = time.Now()
	m.syncMeta(updated)
	return nil
}

// CancelLoad requests cooperative cancellation of an in-flight transfer.
func (m *Manager) CancelLoad(msgID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.loads[msgID]; ok && e.Status == StatusLoading {
		e.cancelled = true
	}
}

// HandleLoad materializes an already-downloaded blob as a user-facing file
// save and marks the transfer handled. Downloads only.
func (m *Manager) HandleLoad(msgID, filename string) (string, error) {
	m.mu.Lock()
	e, ok := m.loads[msgID]
	if !ok || e.Type != TransferDownload || e.Status != StatusDone {
		m.mu.Unlock()
		return "", fmt.Errorf("no completed download for message %s", msgID)
	}
	blob := e.Blob
	e.HandledOnce = true
	m.mu.Unlock()

	if err := os.MkdirAll(m.saveDir, 0750); err != nil {
		return "", fmt.Errorf("could not create save directory: %w", err)
	}
	path := filepath.Join(m.saveDir, filepath.Base(filename))
	if err := os.WriteFile(path, blob, 0640); err != nil {
		return "", fmt.Errorf("could not save file: %w", err)
	}
	return path, nil
}

// ShouldAutoStart implements the presentation auto-trigger policy: outgoing
// uploads start immediately, downloads only for media under 24 hours old.
func ShouldAutoStart(msg models.Message, t TransferType) bool {
	if t == TransferUpload {
		return msg.Direction == models.DirectionOutgoing
	}
	return time.Since(msg.Timestamp) < autoFetchWindow
}

// StorageKey derives the object-storage path for a message's attachment.
func StorageKey(msg models.Message) string {
	name := ""
	if msg.Content.File != nil {
		name = msg.Content.File.FileName
	}
	sum := sha256.Sum256([]byte(msg.ID + "/" + name))
	return fmt.Sprintf("media/%s/%s%s", msg.ConversationID, hex.EncodeToString(sum[:16]), filepath.Ext(name))
}

func hasArtifact(artifacts []models.Artifact, kind string) bool {
	for _, a := range artifacts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
