package schema

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"Quill/pkg/models"
)

// ToCurrent converts a wire record of either generation into the current
// model. It is total over every shape ever persisted; the second return is
// false only for records matching no known shape, which are dropped with a
// diagnostic rather than misrendered.
func ToCurrent(rec WireMessage) (models.Message, bool) {
	content, ok := contentFromWire(rec)
	if !ok {
		log.Warn().
			Str("message_id", rec.ID).
			Str("legacy_type", rec.Type).
			Msg("Dropping message record with unrecognized shape")
		return models.Message{}, false
	}

	msg := models.Message{
		ID:             rec.ID,
		ConversationID: rec.conversationID(),
		Direction:      models.Direction(rec.Direction),
		Content:        content,
		AgentID:        rec.AgentID,
		Timestamp:      rec.Timestamp,
		UpdatedAt:      rec.UpdatedAt,
	}
	if len(rec.Status) > 0 {
		msg.Status = make(map[models.StatusKey]time.Time, len(rec.Status))
		for k, v := range rec.Status {
			msg.Status[models.StatusKey(k)] = v
		}
	}
	return msg, true
}

func contentFromWire(rec WireMessage) (models.Content, bool) {
	// Already current generation.
	if rec.Version == models.SchemaVersion && rec.Body != nil {
		return *rec.Body, true
	}

	switch {
	case rec.Function != nil || rec.ToolCallID != "":
		return toolContent(rec), true
	case rec.Media != nil:
		return fileContent(rec), true
	case rec.Content != nil:
		return textContent(rec), true
	case len(rec.Payload) > 0:
		// Generic structured payload (template, location, order, ...),
		// keyed by the legacy type tag.
		return models.Content{
			Version: models.SchemaVersion,
			Type:    models.ContentData,
			Kind:    models.Kind(rec.Type),
			Data:    rec.Payload,
		}, true
	}
	return models.Content{}, false
}

// toolContent reshapes a legacy function_call / function_response message
// into the current union, synthesizing a tool descriptor when the record
// predates first-class tool support.
func toolContent(rec WireMessage) models.Content {
	tool := rec.Tool
	if tool == nil {
		useID := rec.ToolCallID
		if useID == "" {
			// Records old enough to lack a call id still need a stable
			// correlation key; the record id is the only one available.
			useID = rec.ID
		}
		event := models.ToolEventUse
		if rec.Type == "function_response" || (rec.Function != nil && len(rec.Function.Response) > 0) {
			event = models.ToolEventResult
		}
		name := ""
		if rec.Function != nil {
			name = rec.Function.Name
		}
		tool = &models.Tool{
			UseID:    useID,
			Provider: "local",
			Event:    event,
			Name:     name,
		}
	}

	var data json.RawMessage
	if rec.Function != nil {
		if tool.Event == models.ToolEventResult && len(rec.Function.Response) > 0 {
			data = rec.Function.Response
		} else {
			data = rec.Function.Arguments
		}
	}
	if len(data) > 0 {
		return models.Content{
			Version: models.SchemaVersion,
			Type:    models.ContentData,
			Kind:    models.KindTool,
			Data:    data,
			Tool:    tool,
		}
	}

	text := ""
	if rec.Content != nil {
		text = *rec.Content
	}
	return models.Content{
		Version: models.SchemaVersion,
		Type:    models.ContentText,
		Kind:    models.KindPlain,
		Text:    text,
		Tool:    tool,
	}
}

// fileContent reshapes a legacy media message. For audio the caption slot was
// repurposed to hold the transcription, so it becomes an artifact instead of
// a caption.
func fileContent(rec WireMessage) models.Content {
	kind := models.Kind(rec.Type)
	switch kind {
	case models.KindImage, models.KindAudio, models.KindDocument, models.KindVideo, models.KindSticker:
	default:
		kind = models.KindDocument
	}

	file := &models.FileContent{
		MimeType: rec.Media.MimeType,
		Size:     rec.Media.Size,
		FileName: rec.Media.FileName,
	}
	if kind == models.KindAudio {
		transcript := rec.Media.Transcription
		if transcript == "" {
			transcript = rec.Media.Caption
		}
		if transcript != "" {
			file.Artifacts = []models.Artifact{{Kind: "transcription", Text: transcript}}
		}
	} else {
		file.Caption = rec.Media.Caption
	}

	return models.Content{
		Version: models.SchemaVersion,
		Type:    models.ContentFile,
		Kind:    kind,
		File:    file,
	}
}

func textContent(rec WireMessage) models.Content {
	kind := models.KindPlain
	switch rec.Type {
	case "reaction":
		kind = models.KindReaction
	case "draft":
		kind = models.KindDraft
	}
	return models.Content{
		Version: models.SchemaVersion,
		Type:    models.ContentText,
		Kind:    kind,
		Text:    *rec.Content,
	}
}

// ToLegacy converts a current-model message back to the v0 wire shape for
// consumers that have not migrated yet. It is a best-effort inverse: fields
// introduced in v1 that have no legacy slot are dropped, and multi-artifact
// attachments collapse to the single most relevant artifact.
func ToLegacy(msg models.Message) (WireMessage, bool) {
	rec := WireMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Direction:      string(msg.Direction),
		AgentID:        msg.AgentID,
		Timestamp:      msg.Timestamp,
		UpdatedAt:      msg.UpdatedAt,
	}
	if len(msg.Status) > 0 {
		rec.Status = make(map[string]time.Time, len(msg.Status))
		for k, v := range msg.Status {
			rec.Status[string(k)] = v
		}
	}

	c := msg.Content
	switch c.Type {
	case models.ContentText:
		text := c.Text
		rec.Content = &text
		switch c.Kind {
		case models.KindReaction:
			rec.Type = "reaction"
		case models.KindDraft:
			rec.Type = "draft"
		default:
			rec.Type = "text"
		}
		if c.Tool != nil {
			rec.Type = legacyToolType(c.Tool.Event)
			rec.ToolCallID = c.Tool.UseID
			rec.Function = &WireFunction{Name: c.Tool.Name}
		}
	case models.ContentFile:
		if c.File == nil {
			return WireMessage{}, false
		}
		rec.Type = string(c.Kind)
		media := &WireMedia{
			MimeType: c.File.MimeType,
			Size:     c.File.Size,
			FileName: c.File.FileName,
			Caption:  c.File.Caption,
		}
		// Collapse artifacts to the most relevant one: the transcription,
		// which v0 stored in the caption slot for audio.
		for _, a := range c.File.Artifacts {
			if a.Kind == "transcription" {
				media.Transcription = a.Text
				break
			}
		}
		rec.Media = media
	case models.ContentData:
		if c.Tool != nil {
			rec.Type = legacyToolType(c.Tool.Event)
			rec.ToolCallID = c.Tool.UseID
			fn := &WireFunction{Name: c.Tool.Name}
			if c.Tool.Event == models.ToolEventResult {
				fn.Response = c.Data
			} else {
				fn.Arguments = c.Data
			}
			rec.Function = fn
		} else {
			rec.Type = string(c.Kind)
			rec.Payload = c.Data
		}
	default:
		log.Warn().
			Str("message_id", msg.ID).
			Str("content_type", string(c.Type)).
			Msg("Cannot downgrade message with unknown content type")
		return WireMessage{}, false
	}
	return rec, true
}

func legacyToolType(event models.ToolEvent) string {
	if event == models.ToolEventResult {
		return "function_response"
	}
	return "function_call"
}

// ToWire wraps a current-model message in a v1 wire envelope. Locally
// originated sends travel in this shape.
func ToWire(msg models.Message) WireMessage {
	body := msg.Content
	rec := WireMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Direction:      string(msg.Direction),
		Version:        models.SchemaVersion,
		Body:           &body,
		AgentID:        msg.AgentID,
		Timestamp:      msg.Timestamp,
		UpdatedAt:      msg.UpdatedAt,
	}
	if len(msg.Status) > 0 {
		rec.Status = make(map[string]time.Time, len(msg.Status))
		for k, v := range msg.Status {
			rec.Status[string(k)] = v
		}
	}
	return rec
}

// ConversationToCurrent converts a wire conversation record to the model,
// resolving legacy composite identities.
func ConversationToCurrent(rec WireConversation) (models.Conversation, bool) {
	id := rec.ID
	if id == "" {
		if rec.OrgAddress == "" || rec.ContactAddress == "" {
			log.Warn().Str("name", rec.Name).Msg("Dropping conversation record without identity")
			return models.Conversation{}, false
		}
		id = models.ConversationKey(rec.OrgAddress, rec.ContactAddress)
	}
	return models.Conversation{
		ID:      id,
		Name:    rec.Name,
		Channel: models.Channel(rec.Channel),
		Meta: models.Meta{
			PinnedAt:      rec.PinnedAt,
			ArchivedAt:    rec.ArchivedAt,
			PausedAt:      rec.PausedAt,
			Notifications: rec.Notifications,
			Draft:         rec.Draft,
		},
		UpdatedAt: rec.UpdatedAt,
	}, true
}

// ConversationToWire is the inverse of ConversationToCurrent for upserts.
func ConversationToWire(conv models.Conversation) WireConversation {
	return WireConversation{
		ID:            conv.ID,
		Name:          conv.Name,
		Channel:       string(conv.Channel),
		PinnedAt:      conv.Meta.PinnedAt,
		ArchivedAt:    conv.Meta.ArchivedAt,
		PausedAt:      conv.Meta.PausedAt,
		Notifications: conv.Meta.Notifications,
		Draft:         conv.Meta.Draft,
		UpdatedAt:     conv.UpdatedAt,
	}
}
