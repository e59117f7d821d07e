package realtime

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func drain(c *Connection) []Envelope {
	var out []Envelope
	for {
		select {
		case env, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestPublishReachesAllConnections(t *testing.T) {
	hub := testHub()
	defer hub.Close()

	a := hub.Register()
	b := hub.Register()
	require.Equal(t, 2, hub.ConnectedCount())

	hub.Publish(EventNotification, Notification{Type: NotificationLowStock, Message: "x"})

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
}

func TestPublishRoomOnlyReachesMembers(t *testing.T) {
	hub := testHub()
	defer hub.Close()

	member := hub.Register()
	outsider := hub.Register()
	hub.Join(member.ID, RoomBloodType("O-"))
	require.Equal(t, 1, hub.RoomSize(RoomBloodType("O-")))

	hub.PublishRoom(RoomBloodType("O-"), EventRequestCreated, nil)

	require.Len(t, drain(member), 1)
	require.Empty(t, drain(outsider))
}

func TestAuthenticateJoinsPersonalRoom(t *testing.T) {
	hub := testHub()
	defer hub.Close()

	conn := hub.Register()
	hub.Authenticate(conn.ID, "42")

	hub.PublishRoom(RoomUser("42"), EventNotification, nil)

	events := drain(conn)
	// The authenticate broadcast plus the room publish.
	require.Len(t, events, 2)
	require.Equal(t, EventStatsUpdate, events[0].Event)
	require.Equal(t, EventNotification, events[1].Event)
}

func TestUnregisterClosesStreamAndLeavesRooms(t *testing.T) {
	hub := testHub()
	defer hub.Close()

	conn := hub.Register()
	hub.Join(conn.ID, RoomBloodType("A+"))

	hub.Unregister(conn.ID)

	require.Equal(t, 0, hub.ConnectedCount())
	require.Equal(t, 0, hub.RoomSize(RoomBloodType("A+")))
	_, open := <-conn.Events()
	require.False(t, open)

	// Unregistering twice is harmless.
	hub.Unregister(conn.ID)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := testHub()
	defer hub.Close()

	conn := hub.Register()
	for i := 0; i < connSendBuffer+5; i++ {
		hub.Publish(EventStatsUpdate, nil)
	}

	require.Len(t, drain(conn), connSendBuffer)
	require.EqualValues(t, 5, hub.Dropped())
}

func TestConnectedCountCallback(t *testing.T) {
	hub := testHub()
	defer hub.Close()

	var counts []int
	hub.OnConnectedCountChange(func(n int) { counts = append(counts, n) })

	a := hub.Register()
	hub.Register()
	hub.Unregister(a.ID)

	require.Equal(t, []int{1, 2, 1}, counts)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	hub := testHub()
	conn := hub.Register()
	hub.Close()

	hub.Publish(EventStatsUpdate, nil)
	hub.Close()

	_, open := <-conn.Events()
	require.False(t, open)

	// Register after close hands back a detached connection.
	late := hub.Register()
	_, open = <-late.Events()
	require.False(t, open)
}
