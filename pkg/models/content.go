package models

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the current message content schema generation.
const SchemaVersion = "1"

// ContentType is the top-level tag of the content union.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentFile ContentType = "file"
	ContentData ContentType = "data"
)

// Kind discriminates within a content type.
type Kind string

const (
	// text kinds
	KindPlain    Kind = "plain"
	KindReaction Kind = "reaction"
	// KindDraft is a deprecated message kind kept only so old records still
	// decode; the timeline hides it except at the head of a thread.
	KindDraft Kind = "draft"

	// file kinds
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
	KindSticker  Kind = "sticker"

	// data kinds
	KindTool     Kind = "tool"
	KindTemplate Kind = "template"
	KindLocation Kind = "location"
	KindOrder    Kind = "order"
)

// ToolEvent distinguishes the two halves of a tool exchange.
type ToolEvent string

const (
	ToolEventUse    ToolEvent = "use"
	ToolEventResult ToolEvent = "result"
)

// Tool describes an internal tool-call or tool-result message. A use/result
// pair shares the same UseID.
type Tool struct {
	UseID    string    `json:"useId"`
	Provider string    `json:"provider"` // always "local" for records migrated from v0
	Event    ToolEvent `json:"event"`
	Name     string    `json:"name"`
}

// Artifact is a v1-only derived attachment companion, e.g. an audio
// transcription or an image thumbnail.
type Artifact struct {
	Kind       string `json:"kind"` // "transcription", "thumbnail"
	Text       string `json:"text,omitempty"`
	StorageKey string `json:"storageKey,omitempty"`
}

// FileContent carries a media attachment's metadata. The bytes themselves
// live in object storage, addressed by a derived key.
type FileContent struct {
	MimeType  string     `json:"mimeType"`
	Size      int64      `json:"size"`
	FileName  string     `json:"fileName"`
	Caption   string     `json:"caption,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Content is the tagged union carried by every message: exactly one of the
// Text / File / Data branches is populated, selected by Type. Tool is set on
// internal tool-call and tool-result messages regardless of branch.
type Content struct {
	Version string          `json:"version"`
	Type    ContentType     `json:"type"`
	Kind    Kind            `json:"kind"`
	Text    string          `json:"text,omitempty"`
	File    *FileContent    `json:"file,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Tool    *Tool           `json:"tool,omitempty"`
}

// TextContent builds a plain text content body.
func TextContent(text string) Content {
	return Content{Version: SchemaVersion, Type: ContentText, Kind: KindPlain, Text: text}
}

// Validate checks that the populated branch matches the type tag. The
// timeline fails closed per message on a violation instead of dropping the
// whole thread.
func (c Content) Validate() error {
	switch c.Type {
	case ContentText:
		return nil
	case ContentFile:
		if c.File == nil {
			return fmt.Errorf("file content without file descriptor")
		}
		return nil
	case ContentData:
		if len(c.Data) == 0 && c.Tool == nil {
			return fmt.Errorf("data content without payload")
		}
		return nil
	default:
		return fmt.Errorf("unknown content type %q", c.Type)
	}
}
