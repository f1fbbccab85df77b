package hub

import (
	"testing"
	"time"

	"github.com/chatstream/internal/logger"
	"github.com/chatstream/internal/model"
)

// recorderClient is the in-memory Client used to observe what the hub
// delivers.
type recorderClient struct {
	user *model.User
	room string
	msgs []*model.Message
}

func newRecorder(username string) *recorderClient {
	return &recorderClient{user: model.NewUser(username)}
}

func (c *recorderClient) Send(message *model.Message) { c.msgs = append(c.msgs, message) }
func (c *recorderClient) User() *model.User           { return c.user }
func (c *recorderClient) Room() string                { return c.room }
func (c *recorderClient) SetRoom(roomID string)       { c.room = roomID }

// received returns the recorded messages of the given type.
func (c *recorderClient) received(msgType model.MessageType) []*model.Message {
	var out []*model.Message
	for _, m := range c.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func newTestHub() *Hub {
	return NewHub(nil, nil, logger.NewLogger("hub-test"))
}

// joinDirect drives the join operation the same way the Run loop would.
func joinDirect(h *Hub, c Client, roomID string) {
	h.handleJoinRoom(&roomOp{client: c, roomID: roomID})
}

func TestRegisterSendsWelcomeAndRoomList(t *testing.T) {
	h := newTestHub()
	h.CreateRoom("General Chat")

	c := newRecorder("alice")
	h.registerClient(c)

	system := c.received(model.MessageTypeSystem)
	if len(system) != 2 {
		t.Fatalf("expected 2 system messages on register, got %d", len(system))
	}
	if system[0].Content != "Welcome to the chat!" {
		t.Errorf("unexpected welcome message: %q", system[0].Content)
	}
	if got := system[1].Content; got == "" || got == "Available rooms:" {
		t.Errorf("room list message should name the rooms, got %q", got)
	}
}

func TestRegisterIndexesUser(t *testing.T) {
	h := newTestHub()
	c := newRecorder("alice")
	h.registerClient(c)

	users := h.Users()
	if len(users) != 1 || users[0].ID != c.user.ID {
		t.Fatalf("expected user table to contain exactly %s, got %v", c.user.ID, users)
	}
}

func TestRegisterDuplicateReplacesPrior(t *testing.T) {
	h := newTestHub()
	first := newRecorder("alice")
	h.registerClient(first)

	// Same identity, new connection.
	second := &recorderClient{user: first.user}
	h.registerClient(second)

	if len(h.Users()) != 1 {
		t.Fatalf("expected a single user after duplicate register, got %d", len(h.Users()))
	}

	firstCount := len(first.msgs)
	h.sendPrivateMessage(&privateMessage{
		userID:  first.user.ID,
		message: model.NewMessage(model.MessageTypePrivate, "hello", "bob", "bob-id"),
	})
	if len(first.msgs) != firstCount {
		t.Error("replaced client should not receive messages")
	}
	if len(second.received(model.MessageTypePrivate)) != 1 {
		t.Error("replacement client should receive the private message")
	}
}

func TestUnregisterRemovesFromTables(t *testing.T) {
	h := newTestHub()
	c := newRecorder("alice")
	h.registerClient(c)
	h.unregisterClient(c)

	if len(h.Users()) != 0 {
		t.Fatalf("expected empty user table, got %d entries", len(h.Users()))
	}

	// Unregistering again is a no-op.
	h.unregisterClient(c)
	if len(h.Users()) != 0 {
		t.Error("double unregister should not change the user table")
	}
}

func TestUnregisterBroadcastsLeaveToRoom(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	y := newRecorder("bob")
	h.registerClient(x)
	h.registerClient(y)
	joinDirect(h, x, "general")
	joinDirect(h, y, "general")

	h.unregisterClient(x)

	leaves := y.received(model.MessageTypeLeave)
	if len(leaves) != 1 {
		t.Fatalf("expected 1 leave message for remaining member, got %d", len(leaves))
	}
	if leaves[0].Content != "alice left the room" {
		t.Errorf("unexpected leave content: %q", leaves[0].Content)
	}
}

func TestJoinRoomAutoCreates(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	h.registerClient(x)
	joinDirect(h, x, "general")

	rooms := h.Rooms()
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}
	if rooms[0].ID != "general" || rooms[0].Name != "general" || rooms[0].UserCount != 1 {
		t.Errorf("unexpected directory entry: %+v", rooms[0])
	}
	if x.Room() != "general" {
		t.Errorf("client room pointer = %q, want general", x.Room())
	}
	if x.user.Room != "general" {
		t.Errorf("user record room = %q, want general", x.user.Room)
	}
}

func TestBroadcastAppendsHistoryAndDelivers(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	y := newRecorder("bob")
	h.registerClient(x)
	h.registerClient(y)
	joinDirect(h, x, "general")
	joinDirect(h, y, "general")

	msg := model.NewMessage(model.MessageTypeText, "hi", "alice", x.user.ID)
	msg.Room = "general"
	h.broadcastMessage(msg)

	got := y.received(model.MessageTypeText)
	if len(got) != 1 || got[0].Content != "hi" {
		t.Fatalf("expected bob to receive one text message %q, got %v", "hi", got)
	}
	if len(x.received(model.MessageTypeText)) != 1 {
		t.Error("sender is a member and should receive its own broadcast")
	}
	if n := len(h.rooms["general"].Messages); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
}

func TestBroadcastUnknownRoomDropped(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	h.registerClient(x)

	msg := model.NewMessage(model.MessageTypeText, "hi", "alice", x.user.ID)
	msg.Room = "nope"
	h.broadcastMessage(msg)

	if len(h.rooms) != 0 {
		t.Error("broadcast to unknown room must not create it")
	}
	if len(x.received(model.MessageTypeText)) != 0 {
		t.Error("broadcast to unknown room must not be delivered")
	}
}

func TestJoinSwitchesRooms(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	watcher := newRecorder("bob")
	h.registerClient(x)
	h.registerClient(watcher)
	joinDirect(h, watcher, "roomA")
	joinDirect(h, x, "roomA")

	joinDirect(h, x, "roomB")

	if h.rooms["roomA"].HasUser(x.user.ID) {
		t.Error("user should have left roomA")
	}
	if !h.rooms["roomB"].HasUser(x.user.ID) {
		t.Error("user should be a member of roomB")
	}
	if leaves := watcher.received(model.MessageTypeLeave); len(leaves) != 1 {
		t.Errorf("roomA should see exactly one leave broadcast, got %d", len(leaves))
	}
}

func TestUserInAtMostOneRoom(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	h.registerClient(x)

	for _, roomID := range []string{"a", "b", "c", "a", "b"} {
		joinDirect(h, x, roomID)

		membership := 0
		for _, room := range h.rooms {
			if room.HasUser(x.user.ID) {
				membership++
			}
		}
		if membership != 1 {
			t.Fatalf("user appears in %d rooms after joining %s, want 1", membership, roomID)
		}
	}
}

func TestLeaveRoomIdempotent(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	watcher := newRecorder("bob")
	h.registerClient(x)
	h.registerClient(watcher)
	joinDirect(h, watcher, "general")
	joinDirect(h, x, "general")
	watcher.msgs = nil

	h.handleLeaveRoom(&roomOp{client: x, roomID: "general"})
	h.handleLeaveRoom(&roomOp{client: x, roomID: "general"})

	if h.rooms["general"].HasUser(x.user.ID) {
		t.Error("user should no longer be a member")
	}
	if x.Room() != "" {
		t.Errorf("room pointer = %q, want cleared", x.Room())
	}
	if leaves := watcher.received(model.MessageTypeLeave); len(leaves) != 1 {
		t.Errorf("expected exactly one leave broadcast, got %d", len(leaves))
	}
}

func TestHistoryReplayOnJoin(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	h.registerClient(x)
	joinDirect(h, x, "general")

	contents := []string{"one", "two", "three"}
	for _, content := range contents {
		msg := model.NewMessage(model.MessageTypeText, content, "alice", x.user.ID)
		msg.Room = "general"
		h.broadcastMessage(msg)
	}

	joiner := newRecorder("bob")
	h.registerClient(joiner)
	joinDirect(h, joiner, "general")

	replayed := joiner.received(model.MessageTypeText)
	if len(replayed) != len(contents) {
		t.Fatalf("replayed %d messages, want %d", len(replayed), len(contents))
	}
	for i, content := range contents {
		if replayed[i].Content != content {
			t.Errorf("replay[%d] = %q, want %q", i, replayed[i].Content, content)
		}
	}

	// A broadcast after the join arrives after the replay.
	msg := model.NewMessage(model.MessageTypeText, "four", "alice", x.user.ID)
	msg.Room = "general"
	h.broadcastMessage(msg)

	all := joiner.received(model.MessageTypeText)
	if len(all) != 4 || all[3].Content != "four" {
		t.Errorf("post-join broadcast should follow the replay, got %v", all)
	}
}

func TestHistoryOrderMatchesBroadcastOrder(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	h.registerClient(x)
	joinDirect(h, x, "general")

	contents := []string{"a", "b", "c", "d", "e"}
	for _, content := range contents {
		msg := model.NewMessage(model.MessageTypeText, content, "alice", x.user.ID)
		msg.Room = "general"
		h.broadcastMessage(msg)
	}

	history := h.rooms["general"].Messages
	if len(history) != len(contents) {
		t.Fatalf("history length = %d, want %d", len(history), len(contents))
	}
	for i, content := range contents {
		if history[i].Content != content {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Content, content)
		}
	}
}

func TestPrivateMessageDelivery(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	y := newRecorder("bob")
	h.registerClient(x)
	h.registerClient(y)

	h.sendPrivateMessage(&privateMessage{
		userID:  y.user.ID,
		message: model.NewMessage(model.MessageTypePrivate, "psst", "alice", x.user.ID),
	})

	if got := y.received(model.MessageTypePrivate); len(got) != 1 || got[0].Content != "psst" {
		t.Fatalf("expected bob to receive the private message, got %v", got)
	}
}

func TestPrivateMessageToDisconnectedUserIsNoOp(t *testing.T) {
	h := newTestHub()
	x := newRecorder("alice")
	h.registerClient(x)
	joinDirect(h, x, "general")
	before := len(h.rooms["general"].Messages)

	h.sendPrivateMessage(&privateMessage{
		userID:  "nobody",
		message: model.NewMessage(model.MessageTypePrivate, "psst", "alice", x.user.ID),
	})

	if len(h.rooms["general"].Messages) != before {
		t.Error("private miss must not touch room state")
	}
}

func TestCreateRoom(t *testing.T) {
	h := newTestHub()
	room := h.CreateRoom("General Chat")

	if room.ID == "" || room.ID == room.Name {
		t.Errorf("expected a generated id distinct from the name, got %q", room.ID)
	}
	rooms := h.Rooms()
	if len(rooms) != 1 || rooms[0].Name != "General Chat" || rooms[0].UserCount != 0 {
		t.Errorf("unexpected directory after create: %v", rooms)
	}
}

// TestRunLoop drives the hub through its public channel-based API the way
// the transport layer does.
func TestRunLoop(t *testing.T) {
	h := newTestHub()
	go h.Run()

	x := newRecorder("alice")
	h.Register(x)
	h.JoinRoom(x, "general")

	msg := model.NewMessage(model.MessageTypeText, "hi", "alice", x.user.ID)
	msg.Room = "general"
	h.Broadcast(msg)

	deadline := time.After(time.Second)
	for {
		rooms := h.Rooms()
		if len(rooms) == 1 && rooms[0].UserCount == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("hub did not process operations in time, rooms=%v", rooms)
		case <-time.After(10 * time.Millisecond):
		}
	}

	h.Unregister(x)
	deadline = time.After(time.Second)
	for {
		if len(h.Users()) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("unregister was not processed in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
