package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
)

// compile-time check
var _ storage.Provider = (*Store)(nil)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addUser(t *testing.T, s *Store, id, nickname string) {
	t.Helper()
	if err := s.AddUser(context.Background(), models.User{ID: id, LoginID: id + "-login", Nickname: nickname}); err != nil {
		t.Fatalf("AddUser(%s) failed: %v", id, err)
	}
}

func TestInitWritesDefaultSettings(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	settings, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.Timezone != constants.DefaultTimezone || settings.RoomMaxNum != constants.DefaultRoomMaxNum {
		t.Errorf("unexpected defaults: %+v", settings)
	}

	settings.Timezone = "Asia/Seoul"
	if err := s.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	// Init on an existing database keeps stored settings.
	if err := s.Init(ctx); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	got, _ := s.GetSettings(ctx)
	if got.Timezone != "Asia/Seoul" {
		t.Errorf("Timezone = %q after re-init, want Asia/Seoul", got.Timezone)
	}
}

func TestLoadRequiresInit(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail on a missing database")
	}
}

func TestUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	addUser(t, s, "u1", "alice")

	u, err := s.GetUserByLoginID(ctx, "u1-login")
	if err != nil {
		t.Fatalf("GetUserByLoginID failed: %v", err)
	}
	if u.ID != "u1" || u.Nickname != "alice" {
		t.Errorf("got %+v", u)
	}

	if _, err := s.GetUser(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUser(nope) error = %v, want ErrNotFound", err)
	}
	if err := s.AddUser(ctx, models.User{ID: "u2", LoginID: "u1-login", Nickname: "dup"}); err == nil {
		t.Error("expected duplicate login id to fail")
	}
}

func TestJoinAndLeaveRoom(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	addUser(t, s, "u1", "alice")
	addUser(t, s, "u2", "bob")
	addUser(t, s, "u3", "carol")

	room := models.Room{ID: "r1", Title: "Morning study", IsChat: true, IsPublic: true, MaxNum: 2, RoomManager: "u1", TagList: []string{"math"}}
	if err := s.AddRoom(ctx, room); err != nil {
		t.Fatalf("AddRoom failed: %v", err)
	}

	if err := s.JoinRoom(ctx, "r1", "u1", 1); err != nil {
		t.Fatalf("JoinRoom(u1) failed: %v", err)
	}
	// Joining twice does not take a second seat.
	if err := s.JoinRoom(ctx, "r1", "u1", 2); err != nil {
		t.Fatalf("second JoinRoom(u1) failed: %v", err)
	}
	if err := s.JoinRoom(ctx, "r1", "u2", 3); err != nil {
		t.Fatalf("JoinRoom(u2) failed: %v", err)
	}
	if err := s.JoinRoom(ctx, "r1", "u3", 4); !errors.Is(err, storage.ErrRoomFull) {
		t.Fatalf("JoinRoom(u3) error = %v, want ErrRoomFull", err)
	}
	if err := s.JoinRoom(ctx, "missing", "u3", 4); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("JoinRoom(missing) error = %v, want ErrNotFound", err)
	}

	got, err := s.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentNum != 2 || !got.IsFull() {
		t.Errorf("CurrentNum = %d, want 2 and full", got.CurrentNum)
	}
	if len(got.TagList) != 1 || got.TagList[0] != "math" {
		t.Errorf("TagList = %v", got.TagList)
	}

	members, err := s.RoomMembers(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].Nickname != "alice" || members[1].Nickname != "bob" {
		t.Errorf("members = %+v", members)
	}

	left, err := s.LeaveRoom(ctx, "r1", "u2")
	if err != nil || !left {
		t.Fatalf("LeaveRoom(u2) = (%v, %v)", left, err)
	}
	left, err = s.LeaveRoom(ctx, "r1", "u2")
	if err != nil || left {
		t.Fatalf("second LeaveRoom(u2) = (%v, %v), want (false, nil)", left, err)
	}
	got, _ = s.GetRoom(ctx, "r1")
	if got.CurrentNum != 1 {
		t.Errorf("CurrentNum = %d after leave, want 1", got.CurrentNum)
	}

	if err := s.ClearPresence(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRoom(ctx, "r1")
	if got.CurrentNum != 0 {
		t.Errorf("CurrentNum = %d after ClearPresence, want 0", got.CurrentNum)
	}
}

func TestListRooms(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	addUser(t, s, "u1", "alice")

	rooms := []models.Room{
		{ID: "r1", Title: "Math Club", IsPublic: true, MaxNum: 1, CurrentNum: 1, RoomManager: "u1"},
		{ID: "r2", Title: "Quiet reading", IsPublic: false, Password: "pw", MaxNum: 4, RoomManager: "u1", TagList: []string{"books"}},
		{ID: "r3", Title: "math olympiad", IsPublic: true, MaxNum: 4, RoomManager: "u1"},
	}
	for _, r := range rooms {
		if err := s.AddRoom(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	yes, no := true, false
	tests := []struct {
		name   string
		filter models.RoomFilter
		want   []string
	}{
		{"all", models.RoomFilter{}, []string{"r1", "r2", "r3"}},
		{"search is case-insensitive", models.RoomFilter{Search: "MATH"}, []string{"r1", "r3"}},
		{"search tags", models.RoomFilter{Search: "books"}, []string{"r2"}},
		{"public only", models.RoomFilter{IsPublic: &yes}, []string{"r1", "r3"}},
		{"private only", models.RoomFilter{IsPublic: &no}, []string{"r2"}},
		{"has free seat", models.RoomFilter{IsPossible: &yes}, []string{"r2", "r3"}},
		{"full", models.RoomFilter{IsPossible: &no}, []string{"r1"}},
		{"paged", models.RoomFilter{Limit: 1, Offset: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRooms(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRooms failed: %v", err)
			}
			if tt.want == nil {
				if len(got) != 1 {
					t.Errorf("got %d rooms, want 1", len(got))
				}
				return
			}
			ids := map[string]bool{}
			for _, r := range got {
				ids[r.ID] = true
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for _, id := range tt.want {
				if !ids[id] {
					t.Errorf("missing room %s in %v", id, ids)
				}
			}
		})
	}
}

func TestPlannerTimeline(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	p := models.PlannerEntry{ID: "p1", UserID: "u1", Date: "2024-03-05", Todo: "read"}
	if err := s.AddPlanner(ctx, p); err != nil {
		t.Fatalf("AddPlanner failed: %v", err)
	}

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.AppendInterval(ctx, "p1", models.Interval{StartTime: 1000, EndTime: 4000}); err != nil {
			return err
		}
		return tx.AppendInterval(ctx, "p1", models.Interval{StartTime: 5000, EndTime: 6000})
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	got, err := s.GetPlanner(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalTime != 4000 || len(got.TimelineList) != 2 || got.TimelineList[1].StartTime != 5000 {
		t.Errorf("planner = %+v", got)
	}

	if err := s.SetPlannerComplete(ctx, "p1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPlannerComplete(ctx, "missing", true); !errors.Is(err, storage.ErrNoRowsAffected) {
		t.Errorf("SetPlannerComplete(missing) error = %v, want ErrNoRowsAffected", err)
	}

	if err := s.AddPlanner(ctx, models.PlannerEntry{ID: "p2", UserID: "u1", Date: "2024-03-06", Todo: "write"}); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListPlanners(ctx, "u1", "2024-03-04", "2024-03-06")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "p1" || !list[0].IsComplete || len(list[0].TimelineList) != 2 || len(list[1].TimelineList) != 0 {
		t.Errorf("ListPlanners = %+v", list)
	}

	if err := s.DeletePlanner(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPlanner(ctx, "p1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPlanner after delete error = %v, want ErrNotFound", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if err := s.AddPlanner(ctx, models.PlannerEntry{ID: "p1", UserID: "u1", Date: "2024-03-05", Todo: "read"}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.AppendInterval(ctx, "p1", models.Interval{StartTime: 1, EndTime: 11}); err != nil {
			return err
		}
		if err := tx.ApplyStatistic(ctx, models.StatisticDelta{UserID: "u1", Date: "2024-03-05", TotalTime: 10}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	p, _ := s.GetPlanner(ctx, "p1")
	if p.TotalTime != 0 || len(p.TimelineList) != 0 {
		t.Errorf("planner changed after rollback: %+v", p)
	}
	if _, err := s.GetStatistic(ctx, "u1", "2024-03-05"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("statistic exists after rollback: %v", err)
	}
}

func TestStatisticsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	addUser(t, s, "u1", "alice")
	addUser(t, s, "u2", "bob")

	deltas := []models.StatisticDelta{
		{UserID: "u1", Date: "2024-03-05", TotalTime: 100, MaxTime: 100},
		{UserID: "u1", Date: "2024-03-05", TotalTime: 50, RestTime: 30, MaxTime: 60},
		{UserID: "u1", Date: "2024-03-06", TotalTime: 10, MaxTime: 10},
		{UserID: "u2", Date: "2024-03-05", TotalTime: 500, MaxTime: 500},
	}
	deltas[0].Buckets.Morning = 100
	deltas[1].Buckets.Afternoon = 50
	deltas[2].Buckets.Night = 10
	deltas[3].Buckets.Evening = 500

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		for _, d := range deltas {
			if err := tx.ApplyStatistic(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	st, err := s.GetStatistic(ctx, "u1", "2024-03-05")
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalTime != 150 || st.RestTime != 30 || st.MaxTime != 100 {
		t.Errorf("statistic = %+v", st)
	}
	if st.Total() != st.TotalTime {
		t.Errorf("buckets sum %d != totalTime %d", st.Total(), st.TotalTime)
	}

	list, err := s.ListStatistics(ctx, "u1", "2024-03-01", "2024-03-31")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListStatistics = (%v, %v)", list, err)
	}

	ranking, err := s.Ranking(ctx, "2024-03-01", "2024-03-31", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranking) != 2 || ranking[0].UserID != "u2" || ranking[0].Nickname != "bob" || ranking[1].TotalTime != 160 {
		t.Errorf("ranking = %+v", ranking)
	}
}

func TestSessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	focusing := models.Idle("u1").Focus("p1", 1000, "2024-03-05")
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.SaveSession(ctx, focusing)
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got != focusing {
		t.Errorf("GetSession = %+v, want %+v", got, focusing)
	}

	paused := got.Pause(2000, "2024-03-05")
	err = s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.SaveSession(ctx, paused); err != nil {
			return err
		}
		return tx.SaveSession(ctx, models.Idle("u2"))
	})
	if err == nil {
		t.Fatal("expected idle session to be rejected")
	}

	// The failed transaction left the focusing row untouched.
	got, _ = s.GetSession(ctx, "u1")
	if !got.Focusing() {
		t.Errorf("session = %+v, want focusing", got)
	}

	all, err := s.ListSessions(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListSessions = (%v, %v)", all, err)
	}

	err = s.WithTx(ctx, func(tx storage.Tx) error { return tx.DeleteSession(ctx, "u1") })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSession(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSession after delete error = %v, want ErrNotFound", err)
	}
}

func TestSchemaStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	current, latest, err := s.SchemaStatus(ctx)
	if err != nil {
		t.Fatalf("SchemaStatus failed: %v", err)
	}
	if current != latest || latest < 1 {
		t.Errorf("SchemaStatus() = (%d, %d), want equal and >= 1", current, latest)
	}

	if _, _, err := NewStore(filepath.Join(t.TempDir(), "x.db")).SchemaStatus(ctx); err == nil {
		t.Error("SchemaStatus on an unopened store should fail")
	}
}
