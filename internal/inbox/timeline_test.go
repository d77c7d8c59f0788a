package inbox

import (
	"testing"
	"time"

	"skillswap/internal/models"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func msg(id, from, to string, status models.MessageStatus) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       from,
		ReceiverID:     to,
		Text:           "text " + id,
		CreatedAt:      t0,
		Status:         status,
	}
}

func messageIDs(list []models.Message) []string {
	result := make([]string, 0, len(list))
	for _, m := range list {
		result = append(result, m.ID)
	}
	return result
}

func TestTimelineAppendDedups(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")

	require.True(t, tl.Append(msg("m1", "u1", "u2", models.StatusSent)))
	require.False(t, tl.Append(msg("m1", "u1", "u2", models.StatusSent)))
	require.Equal(t, 1, tl.Len())

	// A duplicate may only move the status forward.
	require.False(t, tl.Append(msg("m1", "u1", "u2", models.StatusDelivered)))
	m, _ := tl.Get("m1")
	require.Equal(t, models.StatusDelivered, m.Status)
	tl.Append(msg("m1", "u1", "u2", models.StatusSent))
	m, _ = tl.Get("m1")
	require.Equal(t, models.StatusDelivered, m.Status)

	// Other conversations and id-less messages are ignored.
	other := msg("m2", "u2", "u1", "")
	other.ConversationID = "c2"
	require.False(t, tl.Append(other))
	require.False(t, tl.Append(msg("", "u2", "u1", "")))
	require.Equal(t, 1, tl.Len())
}

func TestTimelineMarksIncomingRead(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")

	tl.Append(msg("m1", "u2", "u1", ""))
	tl.Append(msg("m2", "u1", "u2", ""))

	m1, _ := tl.Get("m1")
	m2, _ := tl.Get("m2")
	require.Equal(t, models.StatusRead, m1.Status)
	require.Equal(t, models.StatusSent, m2.Status)
}

func TestTimelineLoadMergesPushed(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")

	// Pushed while the history request was in flight.
	tl.Append(msg("m3", "u2", "u1", ""))
	tl.Append(msg("m2", "u1", "u2", models.StatusDelivered))

	tl.Load([]models.Message{
		msg("m1", "u2", "u1", models.StatusDelivered),
		msg("m2", "u1", "u2", models.StatusSent),
	})

	require.Equal(t, []string{"m1", "m2", "m3"}, messageIDs(tl.Messages()))
	m1, _ := tl.Get("m1")
	m2, _ := tl.Get("m2")
	require.Equal(t, models.StatusRead, m1.Status)
	require.Equal(t, models.StatusDelivered, m2.Status, "history must not move the status back")
}

func TestTimelineLoadSkipsOtherConversations(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")

	stray := msg("m9", "u2", "u1", "")
	stray.ConversationID = "c2"
	noConv := msg("m1", "u2", "u1", "")
	noConv.ConversationID = ""
	tl.Load([]models.Message{stray, noConv, msg("m1", "u2", "u1", "")})

	require.Equal(t, []string{"m1"}, messageIDs(tl.Messages()))
}

func TestTimelineStatusUpdates(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")
	tl.Load([]models.Message{
		msg("m1", "u1", "u2", models.StatusSent),
		msg("m2", "u1", "u2", models.StatusSending),
		msg("m3", "u1", "u2", models.StatusRead),
	})

	require.True(t, tl.ApplyDelivered("m1"))
	require.False(t, tl.ApplyDelivered("m2"), "only sent messages become delivered")
	require.False(t, tl.ApplyDelivered("m3"))
	require.False(t, tl.ApplyDelivered("missing"))

	require.True(t, tl.ApplyRead("m1"))
	require.False(t, tl.ApplyRead("m1"))

	require.True(t, tl.ApplyReadAll())
	require.False(t, tl.ApplyReadAll())
	for _, m := range tl.Messages() {
		require.Equal(t, models.StatusRead, m.Status, m.ID)
	}
}

func TestTimelineReactionsReplace(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")
	tl.Append(msg("m1", "u2", "u1", ""))

	reactions := []models.Reaction{{Emoji: "👍", UserID: "u1"}}
	require.True(t, tl.ApplyReactions("m1", reactions))
	reactions[0].Emoji = "🎉"

	require.True(t, tl.ApplyReactions("m1", []models.Reaction{{Emoji: "🔥", UserID: "u2"}}))
	m, _ := tl.Get("m1")
	require.Equal(t, []models.Reaction{{Emoji: "🔥", UserID: "u2"}}, m.Reactions)

	require.False(t, tl.ApplyReactions("missing", reactions))
}

func TestTimelineReset(t *testing.T) {
	tl := NewTimeline("u1")
	tl.Reset("c1")
	tl.Append(msg("m1", "u2", "u1", ""))

	tl.Reset("c2")
	require.Equal(t, "c2", tl.ConversationID())
	require.Zero(t, tl.Len())
	_, ok := tl.Get("m1")
	require.False(t, ok)
}
