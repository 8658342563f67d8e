package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"Quill/pkg/models"
)

// Noon local time keeps day arithmetic away from timezone boundaries.
var threadNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

func newTestBuilder(locale string) *Builder {
	b := NewBuilder(locale)
	b.Now = func() time.Time { return threadNow }
	return b
}

func textMsg(id string, dir models.Direction, agent string, ts time.Time) models.Message {
	m := models.Message{
		ID:             id,
		ConversationID: "c1",
		Direction:      dir,
		Content:        models.TextContent("msg " + id),
		Timestamp:      ts,
		UpdatedAt:      ts,
	}
	if agent != "" {
		m.AgentID = &agent
	}
	return m
}

// newestFirst mirrors the stored ordering contract of the message collection.
func newestFirst(msgs ...models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func envelopes(items []Item) []Envelope {
	var out []Envelope
	for _, it := range items {
		if env, ok := it.(Envelope); ok {
			out = append(out, env)
		}
	}
	return out
}

func TestThreadStartsWithStartSeparatorAndRunsOldestFirst(t *testing.T) {
	b := newTestBuilder("en")
	m1 := textMsg("m1", models.DirectionIncoming, "", threadNow.Add(-2*time.Hour))
	m2 := textMsg("m2", models.DirectionIncoming, "", threadNow.Add(-1*time.Hour))

	items := b.Thread(newestFirst(m1, m2), Viewer{AgentID: "agent-1"})

	if assert.Len(t, items, 3) {
		sep, ok := items[0].(Separator)
		assert.True(t, ok)
		assert.Equal(t, "start of conversation", sep.Text)
		assert.True(t, sep.First)
		assert.True(t, sep.Last)
		assert.Equal(t, "m1", items[1].(Envelope).Message.ID)
		assert.Equal(t, "m2", items[2].(Envelope).Message.ID)
	}
}

func TestThreadEmptyAfterFilterIsNil(t *testing.T) {
	b := newTestBuilder("en")
	internal := textMsg("m1", models.DirectionInternal, "agent-2", threadNow)

	items := b.Thread(newestFirst(internal), Viewer{AgentID: "agent-1", Admin: false})
	assert.Nil(t, items)
}

func TestGroupingByAuthorAndSignature(t *testing.T) {
	b := newTestBuilder("en")
	agent := "agent-1"
	m1 := textMsg("m1", models.DirectionIncoming, "", threadNow.Add(-4*time.Minute))
	m2 := textMsg("m2", models.DirectionIncoming, "", threadNow.Add(-3*time.Minute))
	m3 := textMsg("m3", models.DirectionOutgoing, agent, threadNow.Add(-2*time.Minute))
	m4 := textMsg("m4", models.DirectionOutgoing, agent, threadNow.Add(-1*time.Minute))

	envs := envelopes(b.Thread(newestFirst(m1, m2, m3, m4), Viewer{AgentID: agent, Admin: true}))

	if assert.Len(t, envs, 4) {
		assert.True(t, envs[0].First)
		assert.False(t, envs[0].Last)
		assert.False(t, envs[1].First)
		assert.True(t, envs[1].Last)
		assert.True(t, envs[2].First)
		assert.False(t, envs[2].Last)
		assert.False(t, envs[3].First)
		assert.True(t, envs[3].Last)
	}
}

func TestToolCallAndResultGroupByUseID(t *testing.T) {
	b := newTestBuilder("en")
	agent := "agent-1"
	toolMsg := func(id, useID string, event models.ToolEvent, ts time.Time) models.Message {
		m := textMsg(id, models.DirectionOutgoing, agent, ts)
		m.Content = models.Content{
			Version: models.SchemaVersion,
			Type:    models.ContentData,
			Kind:    models.KindTool,
			Data:    json.RawMessage(`{}`),
			Tool:    &models.Tool{UseID: useID, Provider: "local", Event: event, Name: "lookup"},
		}
		return m
	}
	use := toolMsg("m1", "call-1", models.ToolEventUse, threadNow.Add(-3*time.Minute))
	result := toolMsg("m2", "call-1", models.ToolEventResult, threadNow.Add(-2*time.Minute))
	other := toolMsg("m3", "call-2", models.ToolEventUse, threadNow.Add(-1*time.Minute))

	envs := envelopes(b.Thread(newestFirst(use, result, other), Viewer{AgentID: agent, Admin: true}))

	if assert.Len(t, envs, 3) {
		// Same invocation id groups; a different invocation does not.
		assert.True(t, envs[0].First)
		assert.False(t, envs[0].Last)
		assert.False(t, envs[1].First)
		assert.True(t, envs[1].Last)
		assert.True(t, envs[2].First)
		assert.True(t, envs[2].Last)
	}
}

func TestInternalDirectionRewrite(t *testing.T) {
	b := newTestBuilder("en")
	mine := textMsg("m1", models.DirectionInternal, "agent-1", threadNow.Add(-2*time.Minute))
	theirs := textMsg("m2", models.DirectionInternal, "agent-2", threadNow.Add(-1*time.Minute))

	envs := envelopes(b.Thread(newestFirst(mine, theirs), Viewer{AgentID: "agent-1", Admin: true}))

	if assert.Len(t, envs, 2) {
		assert.Equal(t, models.DirectionOutgoing, envs[0].Message.Direction)
		assert.Equal(t, models.DirectionIncoming, envs[1].Message.Direction)
	}
}

func TestDeprecatedDraftKindVisibleOnlyWhenNewest(t *testing.T) {
	b := newTestBuilder("en")
	draft := func(id string, ts time.Time) models.Message {
		m := textMsg(id, models.DirectionOutgoing, "agent-1", ts)
		m.Content.Kind = models.KindDraft
		return m
	}
	buried := draft("m1", threadNow.Add(-3*time.Minute))
	plain := textMsg("m2", models.DirectionOutgoing, "agent-1", threadNow.Add(-2*time.Minute))
	newest := draft("m3", threadNow.Add(-1*time.Minute))

	envs := envelopes(b.Thread(newestFirst(buried, plain, newest), Viewer{AgentID: "agent-1", Admin: true}))

	ids := make([]string, 0, len(envs))
	for _, env := range envs {
		ids = append(ids, env.Message.ID)
	}
	assert.Equal(t, []string{"m2", "m3"}, ids)
}

func TestInvalidContentFlagged(t *testing.T) {
	b := newTestBuilder("en")
	broken := textMsg("m1", models.DirectionIncoming, "", threadNow)
	broken.Content = models.Content{
		Version: models.SchemaVersion,
		Type:    models.ContentFile,
		Kind:    models.KindImage,
		// File descriptor missing.
	}
	fine := textMsg("m2", models.DirectionIncoming, "", threadNow.Add(time.Minute))

	envs := envelopes(b.Thread(newestFirst(broken, fine), Viewer{AgentID: "agent-1"}))

	if assert.Len(t, envs, 2) {
		assert.True(t, envs[0].Invalid)
		assert.False(t, envs[1].Invalid)
	}
}

func TestDateSeparatorOnDayChange(t *testing.T) {
	b := newTestBuilder("en")
	yesterday := textMsg("m1", models.DirectionIncoming, "", threadNow.AddDate(0, 0, -1))
	today := textMsg("m2", models.DirectionIncoming, "", threadNow)

	items := b.Thread(newestFirst(yesterday, today), Viewer{AgentID: "agent-1"})

	if assert.Len(t, items, 4) {
		assert.Equal(t, "start of conversation", items[0].(Separator).Text)
		sep, ok := items[2].(Separator)
		assert.True(t, ok)
		assert.Equal(t, "today", sep.Text)
	}
}

func TestSpanishSeparators(t *testing.T) {
	b := newTestBuilder("es-MX")
	yesterday := textMsg("m1", models.DirectionIncoming, "", threadNow.AddDate(0, 0, -1))
	today := textMsg("m2", models.DirectionIncoming, "", threadNow)

	items := b.Thread(newestFirst(yesterday, today), Viewer{AgentID: "agent-1"})

	if assert.Len(t, items, 4) {
		assert.Equal(t, "inicio de la conversación", items[0].(Separator).Text)
		assert.Equal(t, "hoy", items[2].(Separator).Text)
	}
}

func TestDayLabelTickingClock(t *testing.T) {
	b := newTestBuilder("en")
	older := textMsg("m1", models.DirectionIncoming, "", threadNow.AddDate(0, 0, -2))
	latest := textMsg("m2", models.DirectionIncoming, "", threadNow.AddDate(0, 0, -1))
	msgs := newestFirst(older, latest)
	viewer := Viewer{AgentID: "agent-1"}

	items := b.Thread(msgs, viewer)
	assert.Equal(t, "yesterday", items[2].(Separator).Text)

	// Same inputs, one day later: the separator re-derives from the clock.
	b.Now = func() time.Time { return threadNow.AddDate(0, 0, 1) }
	items = b.Thread(msgs, viewer)
	sep := items[2].(Separator)
	weekday := threadNow.AddDate(0, 0, -1).Weekday()
	assert.Equal(t, english.weekdays[weekday], sep.Text)
}

func TestDayLabelAcrossSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	// The 2am Mar 9 2025 transition leaves only 23 wall-clock hours between
	// these two midnights; the label must still read one calendar day apart.
	sent := time.Date(2025, 3, 9, 13, 0, 0, 0, loc)
	now := time.Date(2025, 3, 10, 13, 0, 0, 0, loc)
	assert.Equal(t, "yesterday", english.dayLabel(sent, now))
	assert.Equal(t, "ayer", spanish.dayLabel(sent, now))

	// Fall back: 25 hours between midnights, still exactly one day.
	sent = time.Date(2025, 11, 2, 13, 0, 0, 0, loc)
	now = time.Date(2025, 11, 3, 13, 0, 0, 0, loc)
	assert.Equal(t, "yesterday", english.dayLabel(sent, now))

	// The shift must not ripple through the weekday window either.
	sent = time.Date(2025, 3, 7, 13, 0, 0, 0, loc) // Friday, 3 days back
	now = time.Date(2025, 3, 10, 13, 0, 0, 0, loc)
	assert.Equal(t, "Friday", english.dayLabel(sent, now))
}

func TestDayLabelBeyondWeekUsesDate(t *testing.T) {
	old := threadNow.AddDate(0, 0, -10)
	assert.Equal(t, old.Format("Jan 2, 2006"), english.dayLabel(old, threadNow))
	assert.Equal(t, "05/06/2025", spanish.dayLabel(old, threadNow))
}

func TestThreadIsDeterministic(t *testing.T) {
	b := newTestBuilder("en")
	agent := "agent-1"
	msgs := newestFirst(
		textMsg("m1", models.DirectionIncoming, "", threadNow.AddDate(0, 0, -2)),
		textMsg("m2", models.DirectionOutgoing, agent, threadNow.AddDate(0, 0, -1)),
		textMsg("m3", models.DirectionOutgoing, agent, threadNow),
	)
	viewer := Viewer{AgentID: agent, Admin: true}

	first := b.Thread(msgs, viewer)
	second := b.Thread(msgs, viewer)
	assert.Equal(t, first, second)
}

func TestLabelsForFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, english.start, labelsFor("fr").start)
	assert.Equal(t, english.start, labelsFor("not a tag").start)
	assert.Equal(t, spanish.start, labelsFor("es").start)
	assert.Equal(t, spanish.start, labelsFor("es-AR").start)
}
