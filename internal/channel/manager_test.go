package channel

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notification-relay/internal/models"
)

// fakePusher records pushed events and can be told to fail.
type fakePusher struct {
	id     string
	fail   bool
	events []models.Event
}

func (f *fakePusher) ID() string { return f.id }

func (f *fakePusher) Push(event models.Event) error {
	if f.fail {
		return errors.New("connection closed")
	}
	f.events = append(f.events, event)
	return nil
}

func attach(t *testing.T, m *Manager, id string) *fakePusher {
	t.Helper()
	p := &fakePusher{id: id}
	m.Attach(p)
	return p
}

func TestJoinLeave(t *testing.T) {
	m := NewManager(zap.NewNop())
	attach(t, m, "c1")
	conv := models.ConversationChannel("55")

	m.Join("c1", conv)
	require.Equal(t, []string{"c1"}, m.Subscribers(conv))

	m.Leave("c1", conv)
	require.Empty(t, m.Subscribers(conv))
}

func TestJoin_Idempotent(t *testing.T) {
	m := NewManager(zap.NewNop())
	p := attach(t, m, "c1")
	conv := models.ConversationChannel("55")

	m.Join("c1", conv)
	m.Join("c1", conv)
	require.Len(t, m.Subscribers(conv), 1)

	// Double subscription must not cause duplicate delivery.
	n := m.Publish(conv, models.EventNewMessage, json.RawMessage(`{}`))
	require.Equal(t, 1, n)
	require.Len(t, p.events, 1)
}

func TestLeave_NotAMember_Noop(t *testing.T) {
	m := NewManager(zap.NewNop())
	attach(t, m, "c1")
	m.Leave("c1", models.ClassChannel("3a"))
	require.Empty(t, m.Channels("c1"))
}

func TestJoin_UnattachedConnection_Ignored(t *testing.T) {
	m := NewManager(zap.NewNop())
	conv := models.ConversationChannel("55")
	m.Join("ghost", conv)
	require.Empty(t, m.Subscribers(conv))
}

func TestLeaveAll_ClearsReverseIndex(t *testing.T) {
	m := NewManager(zap.NewNop())
	attach(t, m, "c1")
	attach(t, m, "c2")

	channels := []models.ChannelID{
		models.UserChannel("7"),
		models.ConversationChannel("55"),
		models.ClassChannel("3a"),
	}
	for _, ch := range channels {
		m.Join("c1", ch)
	}
	m.Join("c2", channels[1])

	m.LeaveAll("c1")
	for _, ch := range channels {
		require.NotContains(t, m.Subscribers(ch), "c1")
	}
	require.Empty(t, m.Channels("c1"))
	require.Equal(t, []string{"c2"}, m.Subscribers(channels[1]))
}

func TestPublish_OnlyToSubscribers(t *testing.T) {
	m := NewManager(zap.NewNop())
	joined := attach(t, m, "c1")
	other := attach(t, m, "c2")
	conv := models.ConversationChannel("55")

	m.Join("c1", conv)

	payload := json.RawMessage(`{"text":"bonjour"}`)
	n := m.Publish(conv, models.EventNewMessage, payload)

	require.Equal(t, 1, n)
	require.Len(t, joined.events, 1)
	require.Equal(t, models.EventNewMessage, joined.events[0].Type)
	require.JSONEq(t, string(payload), string(joined.events[0].Payload))
	require.Empty(t, other.events)
}

func TestPublish_EmptyChannel(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.Zero(t, m.Publish(models.UserChannel("404"), models.EventNotification, json.RawMessage(`{}`)))
}

func TestPublish_FailedPushDoesNotAbortFanout(t *testing.T) {
	m := NewManager(zap.NewNop())
	good := attach(t, m, "c1")
	bad := attach(t, m, "c2")
	bad.fail = true
	ch := models.ClassChannel("3a")

	m.Join("c1", ch)
	m.Join("c2", ch)

	n := m.Publish(ch, models.EventNewEvent, json.RawMessage(`{}`))
	require.Equal(t, 1, n)
	require.Len(t, good.events, 1)
}

func TestDetach_ExcludedFromLaterPublish(t *testing.T) {
	m := NewManager(zap.NewNop())
	gone := attach(t, m, "c1")
	stays := attach(t, m, "c2")
	conv := models.ConversationChannel("55")

	m.Join("c1", conv)
	m.Join("c2", conv)

	m.Detach("c1")

	n := m.Publish(conv, models.EventNewMessage, json.RawMessage(`{}`))
	require.Equal(t, 1, n)
	require.Empty(t, gone.events)
	require.Len(t, stays.events, 1)
}
