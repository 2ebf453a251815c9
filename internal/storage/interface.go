package storage

import (
	"context"
	"errors"

	"github.com/julianstephens/studyroom/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNoRowsAffected = errors.New("no rows affected")
	ErrRoomFull       = errors.New("room is full")
)

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context, logFn func(string)) (int, error)

	// Settings
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	// Users
	AddUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByLoginID(ctx context.Context, loginID string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// Rooms
	AddRoom(ctx context.Context, room models.Room) error
	GetRoom(ctx context.Context, id string) (models.Room, error)
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	// JoinRoom adds the member and takes a seat atomically. Joining a room
	// twice is a no-op; a room without a free seat yields ErrRoomFull.
	JoinRoom(ctx context.Context, roomID, userID string, at int64) error
	// LeaveRoom reports whether the user was a member.
	LeaveRoom(ctx context.Context, roomID, userID string) (bool, error)
	RoomMembers(ctx context.Context, roomID string) ([]models.User, error)
	// ClearPresence empties every room and drops all sessions.
	ClearPresence(ctx context.Context) error

	// Planners
	AddPlanner(ctx context.Context, planner models.PlannerEntry) error
	GetPlanner(ctx context.Context, id string) (models.PlannerEntry, error)
	// ListPlanners returns the user's entries with from <= date <= to.
	ListPlanners(ctx context.Context, userID, from, to string) ([]models.PlannerEntry, error)
	SetPlannerComplete(ctx context.Context, id string, complete bool) error
	DeletePlanner(ctx context.Context, id string) error

	// Statistics
	GetStatistic(ctx context.Context, userID, date string) (models.Statistic, error)
	ListStatistics(ctx context.Context, userID, from, to string) ([]models.Statistic, error)
	Ranking(ctx context.Context, from, to string, limit int) ([]models.RankEntry, error)

	// Sessions
	GetSession(ctx context.Context, userID string) (models.SessionState, error)
	ListSessions(ctx context.Context) ([]models.SessionState, error)

	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Utils
	GetConfigPath() string
}

// Tx is the unit of work used by session accounting.
type Tx interface {
	GetSession(ctx context.Context, userID string) (models.SessionState, error)
	SaveSession(ctx context.Context, session models.SessionState) error
	DeleteSession(ctx context.Context, userID string) error

	GetPlanner(ctx context.Context, id string) (models.PlannerEntry, error)
	AddPlanner(ctx context.Context, planner models.PlannerEntry) error
	// AppendInterval adds iv to the planner's timeline and total time.
	AppendInterval(ctx context.Context, plannerID string, iv models.Interval) error

	GetStatistic(ctx context.Context, userID, date string) (models.Statistic, error)
	ApplyStatistic(ctx context.Context, delta models.StatisticDelta) error
}
