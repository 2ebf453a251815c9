package rooms

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage/sqlite"
)

func setup(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for _, u := range []models.User{
		{ID: "u1", LoginID: "alice", Nickname: "Alice"},
		{ID: "u2", LoginID: "bob", Nickname: "Bob"},
		{ID: "u3", LoginID: "carol", Nickname: "Carol"},
	} {
		if err := store.AddUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	svc := New(store, time.UTC, WithClock(func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }))
	return svc, store
}

func TestCreate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	room, err := svc.Create(ctx, CreateParams{Title: "  Night owls ", IsChat: true, IsPublic: true, ManagerID: "u1", Tags: []string{"cs", " "}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if room.Title != "Night owls" || room.MaxNum != 8 || len(room.TagList) != 1 {
		t.Errorf("room = %+v", room)
	}

	tests := []struct {
		name string
		p    CreateParams
	}{
		{"empty title", CreateParams{Title: " ", ManagerID: "u1"}},
		{"negative capacity", CreateParams{Title: "x", MaxNum: -1, ManagerID: "u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.p); !errors.Is(err, ErrInvalidRoom) {
				t.Errorf("Create() error = %v, want ErrInvalidRoom", err)
			}
		})
	}
	if _, err := svc.Create(ctx, CreateParams{Title: "x", ManagerID: "nobody"}); err == nil {
		t.Error("expected unknown manager to fail")
	}
}

func TestJoin(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	room, err := svc.Create(ctx, CreateParams{Title: "Locked", Password: "pw", MaxNum: 2, IsChat: true, ManagerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []models.PlannerEntry{
		{ID: "old", UserID: "u1", Date: "2024-03-01", Todo: "too old"},
		{ID: "y", UserID: "u1", Date: "2024-03-04", Todo: "yesterday"},
		{ID: "t", UserID: "u1", Date: "2024-03-05", Todo: "today"},
		{ID: "n", UserID: "u1", Date: "2024-03-06", Todo: "tomorrow"},
	} {
		if err := store.AddPlanner(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := svc.Join(ctx, room.ID, "u1", "nope"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Join with wrong password error = %v", err)
	}
	if _, _, err := svc.Join(ctx, "missing", "u1", ""); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Join missing room error = %v", err)
	}

	_, info, err := svc.Join(ctx, room.ID, "u1", "pw")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if info.Title != "Locked" || info.RoomManager != "Alice" || !info.IsChat {
		t.Errorf("info = %+v", info)
	}
	if len(info.CurrentMember) != 1 || info.CurrentMember[0] != "Alice" {
		t.Errorf("members = %v", info.CurrentMember)
	}
	if len(info.Planner) != 3 {
		t.Errorf("got %d planners, want yesterday..tomorrow", len(info.Planner))
	}

	if _, _, err := svc.Join(ctx, room.ID, "u2", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Join(ctx, room.ID, "u3", "pw"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("Join full room error = %v, want ErrRoomFull", err)
	}

	left, err := svc.Leave(ctx, room.ID, "u2")
	if err != nil || !left {
		t.Fatalf("Leave = (%v, %v)", left, err)
	}
	if _, _, err := svc.Join(ctx, room.ID, "u3", "pw"); err != nil {
		t.Errorf("Join after a seat freed failed: %v", err)
	}
}

func TestListDefaultsToOnePage(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := svc.Create(ctx, CreateParams{Title: "room", MaxNum: 2, IsPublic: true, ManagerID: "u1"}); err != nil {
			t.Fatal(err)
		}
	}
	rooms, err := svc.List(ctx, models.RoomFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 20 {
		t.Errorf("got %d rooms, want a page of 20", len(rooms))
	}
	rest, err := svc.List(ctx, models.RoomFilter{Offset: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 5 {
		t.Errorf("second page has %d rooms, want 5", len(rest))
	}
}
