// Package timeline derives the renderable sequence for one conversation: a
// flat list of message envelopes annotated with visual group boundaries,
// interleaved with synthetic date separators.
package timeline

import (
	"time"

	"github.com/samber/lo"

	"Quill/pkg/models"
)

// Item is either an Envelope or a Separator.
type Item interface {
	timelineItem()
}

// Envelope is one rendered message plus its group-boundary flags. Avatar and
// author name are shown only on First; bottom margin only on Last. Invalid is
// set when the message's content shape is malformed, so rendering can show an
// inline placeholder for that message alone.
type Envelope struct {
	Message models.Message
	First   bool
	Last    bool
	Invalid bool
}

func (Envelope) timelineItem() {}

// Separator is a synthetic date-boundary marker. It is never persisted and
// always renders as its own group.
type Separator struct {
	Text  string
	First bool
	Last  bool
}

func (Separator) timelineItem() {}

// Viewer identifies who is looking at the thread.
type Viewer struct {
	AgentID string
	Admin   bool
}

// Builder turns a conversation's raw message set into the rendered sequence.
// Now is the shared ticking clock separator labels are computed against;
// re-running the builder as the clock advances moves "today" to "yesterday"
// without any stored state.
type Builder struct {
	Now    func() time.Time
	labels labelSet
}

// NewBuilder creates a builder for the given BCP 47 locale tag. Unsupported
// locales fall back to English.
func NewBuilder(locale string) *Builder {
	return &Builder{
		Now:    time.Now,
		labels: labelsFor(locale),
	}
}

// Thread derives the ordered item list for one conversation from its message
// collection as stored (most recent first). Pure function of its inputs and
// the clock: repeated invocations yield the same sequence.
func (b *Builder) Thread(messages []models.Message, viewer Viewer) []Item {
	visible := b.filter(messages, viewer)
	if len(visible) == 0 {
		return nil
	}

	// Stored order is newest-first; rendering is top-to-bottom oldest-first.
	oldest := lo.Reverse(visible)

	items := make([]Item, 0, len(oldest)*2)
	now := b.Now()
	var prev *models.Message
	for i := range oldest {
		msg := oldest[i]

		switch {
		case prev == nil:
			items = append(items, Separator{Text: b.labels.start, First: true, Last: true})
		case !sameDay(prev.Timestamp, msg.Timestamp):
			items = append(items, Separator{
				Text:  b.labels.dayLabel(msg.Timestamp, now),
				First: true,
				Last:  true,
			})
		}

		first := prev == nil || !sameGroup(*prev, msg)
		last := i == len(oldest)-1 || !sameGroup(msg, oldest[i+1])
		items = append(items, Envelope{
			Message: msg,
			First:   first,
			Last:    last,
			Invalid: msg.Content.Validate() != nil,
		})
		prev = &oldest[i]
	}
	return items
}

// filter applies visibility rules and the internal-direction rewrite, still
// in newest-first order.
func (b *Builder) filter(messages []models.Message, viewer Viewer) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for i, msg := range messages {
		// Non-admin viewers never see team-internal traffic.
		if msg.Direction == models.DirectionInternal && !viewer.Admin {
			continue
		}
		// The deprecated draft kind is hidden unless it is the newest item.
		if msg.Content.Kind == models.KindDraft && i != 0 {
			continue
		}
		// Internal messages read as a conversation between "me" and the
		// rest of the team.
		if msg.Direction == models.DirectionInternal {
			if msg.AgentID != nil && *msg.AgentID == viewer.AgentID {
				msg.Direction = models.DirectionOutgoing
			} else {
				msg.Direction = models.DirectionIncoming
			}
		}
		out = append(out, msg)
	}
	return out
}

// sameGroup reports whether two adjacent messages merge into one visual
// group: same author and same type signature.
func sameGroup(a, other models.Message) bool {
	return a.Author() == other.Author() && signature(a) == signature(other)
}

// signature is the grouping key. A tool exchange is keyed by its invocation
// id so a call and its result group together but never with unrelated tool
// traffic; everything else groups by direction + content kind.
func signature(m models.Message) string {
	if m.Content.Tool != nil {
		return "tool:" + m.Content.Tool.UseID
	}
	return string(m.Direction) + ":" + string(m.Content.Kind)
}

func sameDay(a, other time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := other.Local().Date()
	return ay == by && am == bm && ad == bd
}
