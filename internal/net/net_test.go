package net

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(NewServeMux(hub))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, strings.TrimPrefix(srv.URL, "http://")
}

func dial(t *testing.T, addr, room string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(RoomURL(addr, room), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func waitMembers(t *testing.T, hub *Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Rooms()[room] == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRelaysWithinRoomOnly(t *testing.T) {
	hub, addr := startHub(t)
	a := dial(t, addr, "alpha")
	b := dial(t, addr, "alpha")
	c := dial(t, addr, "beta")
	waitMembers(t, hub, "alpha", 2)
	waitMembers(t, hub, "beta", 1)

	require.NoError(t, a.WriteJSON(Message{Type: MsgHello, From: "a"}))
	got := readMessage(t, b)
	assert.Equal(t, MsgHello, got.Type)
	assert.Equal(t, "a", got.From)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "other rooms hear nothing")

	require.NoError(t, a.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = a.ReadMessage()
	assert.Error(t, err, "sender is not echoed")
}

func TestHubAnnouncesLeave(t *testing.T) {
	hub, addr := startHub(t)
	a := dial(t, addr, "room")
	b := dial(t, addr, "room")
	waitMembers(t, hub, "room", 2)

	require.NoError(t, a.WriteJSON(Message{Type: MsgHello, From: "client-a"}))
	readMessage(t, b)

	require.NoError(t, a.Close())
	m := readMessage(t, b)
	assert.Equal(t, MsgLeave, m.Type)
	assert.Equal(t, "client-a", m.From)
	waitMembers(t, hub, "room", 1)
}

func TestHubAnnouncesLeaveOfSlowClient(t *testing.T) {
	hub, addr := startHub(t)
	w := dial(t, addr, "room")
	waitMembers(t, hub, "room", 1)

	// A member whose queue is never drained is dropped on the next frame.
	upgraded := make(chan *websocket.Conn, 1)
	side := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(rw, r, nil)
		if err == nil {
			upgraded <- conn
		}
	}))
	t.Cleanup(side.Close)
	dial(t, strings.TrimPrefix(side.URL, "http://"), "room")
	var conn *websocket.Conn
	select {
	case conn = <-upgraded:
	case <-time.After(2 * time.Second):
		t.Fatal("side connection was not upgraded")
	}
	hub.add(&client{conn: conn, room: "room", send: make(chan []byte), id: "client-slow"})
	waitMembers(t, hub, "room", 2)

	require.NoError(t, w.WriteJSON(Message{Type: MsgHello, From: "client-w"}))
	got := readMessage(t, w)
	assert.Equal(t, MsgLeave, got.Type)
	assert.Equal(t, "client-slow", got.From)
	waitMembers(t, hub, "room", 1)
}

func TestHubRejectsBadPaths(t *testing.T) {
	_, addr := startHub(t)
	for _, path := range []string{"/rooms/", "/rooms/a/b"} {
		resp, err := http.Get("http://" + addr + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

type replica struct {
	store *state.Store
	pres  *presence.Channel
}

func runReplica(t *testing.T, ctx context.Context, addr, site string) *replica {
	t.Helper()
	r := &replica{
		store: state.NewStore(site),
		pres:  presence.NewChannel(site, presence.User{Name: site, Color: "#000000"}),
	}
	peer := NewPeer(RoomURL(addr, "board"), r.store, r.pres, PeerOptions{
		HeartbeatInterval: 50 * time.Millisecond,
		PresenceTimeout:   time.Second,
		MinBackoff:        20 * time.Millisecond,
	})
	go peer.Run(ctx)
	return r
}

func rect(id string, x float64) state.Element {
	return state.Element{ID: id, Type: state.Rectangle, X: x, Width: 10, Height: 10, Style: state.DefaultStyle()}
}

func TestPeersConverge(t *testing.T) {
	_, addr := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := runReplica(t, ctx, addr, "site-a")
	// Written before b exists; b must get it from a's snapshot.
	require.NoError(t, a.store.Set(rect("early", 0)))
	b := runReplica(t, ctx, addr, "site-b")

	require.Eventually(t, func() bool {
		_, ok := b.store.Get("early")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, b.store.Set(rect("late", 50)))
	require.Eventually(t, func() bool {
		_, ok := a.store.Get("late")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	// Concurrent edits of one element settle on the same value.
	ea, _ := a.store.Get("early")
	eb, _ := b.store.Get("early")
	ea.X, eb.X = 111, 222
	require.NoError(t, a.store.Set(ea))
	require.NoError(t, b.store.Set(eb))
	require.Eventually(t, func() bool {
		xa, _ := a.store.Get("early")
		xb, _ := b.store.Get("early")
		return xa.X == xb.X && xa.Version == xb.Version
	}, 3*time.Second, 10*time.Millisecond)

	b.store.Remove("late")
	require.Eventually(t, func() bool {
		_, ok := a.store.Get("late")
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPresenceFlowsAndLeaves(t *testing.T) {
	_, addr := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := runReplica(t, ctx, addr, "site-a")
	bctx, bcancel := context.WithCancel(ctx)
	b := runReplica(t, bctx, addr, "site-b")

	b.pres.SetCursor(&state.Point{X: 3, Y: 4})
	require.Eventually(t, func() bool {
		rec, ok := a.pres.Peers()["site-b"]
		return ok && rec.Cursor != nil && *rec.Cursor == state.Point{X: 3, Y: 4}
	}, 3*time.Second, 10*time.Millisecond)

	bcancel()
	require.Eventually(t, func() bool {
		_, ok := a.pres.Peers()["site-b"]
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPresenceClearedWhenHubGoesAway(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewServeMux(hub))
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := runReplica(t, ctx, addr, "site-a")
	b := runReplica(t, ctx, addr, "site-b")
	require.Eventually(t, func() bool {
		_, ab := a.pres.Peers()["site-b"]
		_, ba := b.pres.Peers()["site-a"]
		return ab && ba
	}, 3*time.Second, 10*time.Millisecond)

	// No new connections, then drop the live ones; neither side can reconnect.
	srv.Close()
	hub.Close()
	require.Eventually(t, func() bool {
		return len(a.pres.Peers()) == 0 && len(b.pres.Peers()) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestLinks(t *testing.T) {
	link := ShareLink("192.168.1.4", 8888, "team")
	assert.Equal(t, "localboard://192.168.1.4:8888/team", link)

	addr, room, err := ParseLink(link)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.4:8888", addr)
	assert.Equal(t, "team", room)

	_, room, err = ParseLink("localboard://10.0.0.2:9000/")
	require.NoError(t, err)
	assert.Equal(t, DefaultRoom, room)

	_, _, err = ParseLink("http://10.0.0.2:9000/x")
	assert.ErrorIs(t, err, ErrBadLink)
	_, _, err = ParseLink("localboard://nohost/x")
	assert.ErrorIs(t, err, ErrBadLink)

	assert.Equal(t, "ws://h:1/rooms/r", RoomURL("h:1", "r"))
}

func TestRoomFromPath(t *testing.T) {
	room, err := RoomFromPath("/rooms/abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", room)
	_, err = RoomFromPath("/other/abc")
	assert.ErrorIs(t, err, ErrBadRoom)
}
