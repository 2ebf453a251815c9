package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/julianstephens/studyroom/internal/accounting"
	"github.com/julianstephens/studyroom/internal/auth"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/events"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/rooms"
	"github.com/julianstephens/studyroom/internal/storage"
	"github.com/julianstephens/studyroom/internal/storage/sqlite"
)

var clock = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type testServer struct {
	srv   *httptest.Server
	hub   *Hub
	store *sqlite.Store
	auth  *auth.Authenticator
	room  models.Room
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for _, u := range []models.User{
		{ID: "u1", LoginID: "alice", Nickname: "Alice"},
		{ID: "u2", LoginID: "bob", Nickname: "Bob"},
	} {
		if err := store.AddUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.AddPlanner(ctx, models.PlannerEntry{ID: "p1", UserID: "u1", Date: "2024-03-05", Todo: "algebra"}); err != nil {
		t.Fatal(err)
	}

	roomSvc := rooms.New(store, time.UTC, rooms.WithClock(func() time.Time { return clock }))
	room, err := roomSvc.Create(ctx, rooms.CreateParams{Title: "Library", IsChat: true, IsPublic: true, MaxNum: 4, ManagerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	authn, err := auth.New("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	acct := accounting.New(store, time.UTC, accounting.WithClock(func() time.Time { return clock.Add(time.Hour) }))
	hub := NewHub(store, acct, roomSvc, events.NewLocalBus(), authn, Options{})
	hub.now = func() time.Time { return clock }

	mux := http.NewServeMux()
	mux.Handle(constants.SocketPath, hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Close(ctx)
		srv.Close()
	})

	return &testServer{srv: srv, hub: hub, store: store, auth: authn, room: room}
}

func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := ts.auth.Issue(userID, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + constants.SocketPath
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial as %s failed: %v", userID, err)
	}
	t.Cleanup(func() { ws.CloseNow() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, ws, Frame{Event: event, Data: raw}); err != nil {
		t.Fatalf("write %s failed: %v", event, err)
	}
}

// expect reads frames until one named event arrives and decodes it into v.
func expect(t *testing.T, ws *websocket.Conn, event string, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var f Frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event != event {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(f.Data, v); err != nil {
				t.Fatalf("decode %s: %v", event, err)
			}
		}
		return
	}
}

func ms(d time.Duration) int64 { return clock.Add(d).UnixMilli() }

func TestRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + constants.SocketPath + "?token=garbage"
	_, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestRoomFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, "u1")
	bob := ts.dial(t, "u2")

	send(t, alice, constants.EventJoinRoom, joinRoomRequest{RoomID: ts.room.ID})
	var info roomInfoMessage
	expect(t, alice, constants.EventResponseRoomInfo, &info)
	if info.RoomID != ts.room.ID || info.Title != "Library" || info.RoomManager != "Alice" {
		t.Errorf("room info = %+v", info)
	}
	if len(info.Planner) != 1 || info.Planner[0].ID != "p1" {
		t.Errorf("planners = %+v", info.Planner)
	}
	var n noticeMessage
	expect(t, alice, constants.EventNotice, &n)
	if n.Message != "Alice joined the room" {
		t.Errorf("notice = %+v", n)
	}

	send(t, bob, constants.EventJoinRoom, joinRoomRequest{RoomID: ts.room.ID})
	expect(t, bob, constants.EventResponseRoomInfo, &info)
	if len(info.CurrentMember) != 2 {
		t.Errorf("members = %v", info.CurrentMember)
	}

	var member memberUpdate
	expect(t, alice, constants.EventUpdateMember, &member)
	if member.Nickname != "Bob" || member.State != "join" {
		t.Errorf("member update = %+v", member)
	}
	var ask userInfoRequest
	expect(t, alice, constants.EventRequestUserInfo, &ask)
	if ask.SocketID == "" {
		t.Fatal("requestUserInfo without socket id")
	}

	// Alice answers Bob's socket directly.
	send(t, alice, constants.EventResponseUserInfo, userInfoReply{SocketID: ask.SocketID, State: constants.StateStop, TotalTime: 42})
	var state userState
	expect(t, bob, constants.EventUpdateUserState, &state)
	if state.Nickname != "Alice" || state.State != constants.StateStop || state.TotalTime != 42 {
		t.Errorf("forwarded state = %+v", state)
	}

	send(t, alice, constants.EventStart, timerRequest{PlannerID: "p1", Timestamp: ms(0)})
	var upd updateData
	expect(t, alice, constants.EventResponseUpdateData, &upd)
	if !upd.Success || upd.State != constants.StateStart || upd.PlannerID != "p1" {
		t.Errorf("start reply = %+v", upd)
	}
	expect(t, bob, constants.EventUpdateUserState, &state)
	if state.State != constants.StateStart {
		t.Errorf("bob saw %+v, want start", state)
	}

	// A heartbeat is acknowledged to Alice only; Bob's next state is the stop.
	send(t, alice, constants.EventUpdate, timerRequest{PlannerID: "p1", Timestamp: ms(10 * time.Minute)})
	upd = updateData{}
	expect(t, alice, constants.EventResponseUpdateData, &upd)
	if !upd.Success || upd.TotalTime != (10*time.Minute).Milliseconds() {
		t.Errorf("update reply = %+v", upd)
	}

	send(t, alice, constants.EventStop, timerRequest{PlannerID: "p1", Timestamp: ms(30 * time.Minute)})
	upd = updateData{}
	expect(t, alice, constants.EventResponseUpdateData, &upd)
	if !upd.Success || upd.State != constants.StateStop || upd.TotalTime != (30*time.Minute).Milliseconds() {
		t.Errorf("stop reply = %+v", upd)
	}
	expect(t, bob, constants.EventUpdateUserState, &state)
	if state.State != constants.StateStop || state.TotalTime != (30*time.Minute).Milliseconds() {
		t.Errorf("bob saw %+v, want stop after 30m", state)
	}

	send(t, bob, constants.EventSendChat, chatRequest{Message: " hello "})
	var chat chatMessage
	expect(t, alice, constants.EventChat, &chat)
	if chat.Sender != "Bob" || chat.Message != "hello" || chat.Time != "10:00" || chat.Type != "chat" {
		t.Errorf("chat = %+v", chat)
	}
	expect(t, bob, constants.EventChat, nil)
}

func TestErrorsGoToSender(t *testing.T) {
	ts := newTestServer(t)
	bob := ts.dial(t, "u2")

	tests := []struct {
		name  string
		event string
		data  any
		code  string
	}{
		{"stop without session", constants.EventStop, timerRequest{PlannerID: "p1", Timestamp: ms(0)}, "session_not_found"},
		{"foreign planner", constants.EventStart, timerRequest{PlannerID: "p1", Timestamp: ms(0)}, "planner_not_found"},
		{"chat outside room", constants.EventSendChat, chatRequest{Message: "hi"}, "bad_request"},
		{"unknown event", "dance", map[string]string{}, "bad_request"},
		{"missing room", constants.EventJoinRoom, joinRoomRequest{RoomID: "nope"}, "room_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, bob, tt.event, tt.data)
			var e errorMessage
			expect(t, bob, constants.EventError, &e)
			if e.Code != tt.code || e.Event != tt.event {
				t.Errorf("error = %+v, want code %s", e, tt.code)
			}
		})
	}
}

func TestDisconnectClosesSession(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, "u1")
	bob := ts.dial(t, "u2")

	send(t, alice, constants.EventJoinRoom, joinRoomRequest{RoomID: ts.room.ID})
	expect(t, alice, constants.EventResponseRoomInfo, nil)
	send(t, bob, constants.EventJoinRoom, joinRoomRequest{RoomID: ts.room.ID})
	expect(t, bob, constants.EventResponseRoomInfo, nil)

	send(t, alice, constants.EventStart, timerRequest{PlannerID: "p1", Timestamp: ms(0)})
	expect(t, alice, constants.EventResponseUpdateData, nil)

	alice.Close(websocket.StatusNormalClosure, "bye")

	// The server clock is one hour after the start.
	var state userState
	expect(t, bob, constants.EventUpdateUserState, &state)
	for state.State != constants.StateStop {
		expect(t, bob, constants.EventUpdateUserState, &state)
	}
	if state.Nickname != "Alice" || state.TotalTime != time.Hour.Milliseconds() {
		t.Errorf("state after disconnect = %+v", state)
	}
	var member memberUpdate
	expect(t, bob, constants.EventUpdateMember, &member)
	if member.Nickname != "Alice" || member.State != "leave" {
		t.Errorf("member update = %+v", member)
	}

	if _, err := ts.store.GetSession(context.Background(), "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("session still stored: %v", err)
	}
	room, err := ts.store.GetRoom(context.Background(), ts.room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if room.CurrentNum != 1 {
		t.Errorf("CurrentNum = %d, want 1", room.CurrentNum)
	}
}

func TestClosedHubRefusesSockets(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.hub.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	token, err := ts.auth.Issue("u1", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + constants.SocketPath
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err == nil {
		t.Fatal("dial succeeded after Close")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v, want 503", resp)
	}
	if n := ts.hub.Connections(); n != 0 {
		t.Errorf("Connections() = %d, want 0", n)
	}
}
