// Package rooms manages study rooms and their membership.
package rooms

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/studyroom/internal/constants"
	apperrors "github.com/julianstephens/studyroom/internal/errors"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
)

var (
	ErrRoomNotFound  = apperrors.New("room_not_found", "room not found")
	ErrRoomFull      = apperrors.New("room_full", "room is full")
	ErrWrongPassword = apperrors.New("wrong_password", "wrong room password")
	ErrInvalidRoom   = apperrors.New("bad_request", "room needs a title and a capacity of at least 1")
)

type Service struct {
	store storage.Provider
	loc   *time.Location
	now   func() time.Time
}

type Option func(*Service)

// WithClock replaces the clock used for join times and the planner window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Provider, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{store: store, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateParams struct {
	Title     string
	Notice    string
	Password  string
	IsChat    bool
	IsPublic  bool
	MaxNum    int
	Tags      []string
	ManagerID string
}

// Create stores a new room. A zero MaxNum takes the room_max_num setting.
func (s *Service) Create(ctx context.Context, p CreateParams) (models.Room, error) {
	if p.MaxNum == 0 {
		settings, err := s.store.GetSettings(ctx)
		if err != nil {
			return models.Room{}, fmt.Errorf("failed to load settings: %w", err)
		}
		p.MaxNum = settings.RoomMaxNum
		if p.MaxNum == 0 {
			p.MaxNum = constants.DefaultRoomMaxNum
		}
	}
	title := strings.TrimSpace(p.Title)
	if title == "" || p.MaxNum < 1 {
		return models.Room{}, ErrInvalidRoom
	}
	if _, err := s.store.GetUser(ctx, p.ManagerID); err != nil {
		return models.Room{}, fmt.Errorf("room manager %s: %w", p.ManagerID, err)
	}

	tags := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	room := models.Room{
		ID:          uuid.NewString(),
		Title:       title,
		Notice:      p.Notice,
		Password:    p.Password,
		IsChat:      p.IsChat,
		IsPublic:    p.IsPublic,
		MaxNum:      p.MaxNum,
		TagList:     tags,
		RoomManager: p.ManagerID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.AddRoom(ctx, room); err != nil {
		return models.Room{}, fmt.Errorf("failed to save room: %w", err)
	}
	return room, nil
}

// List returns rooms newest first, one page of RoomListLimit by default.
func (s *Service) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	if filter.Limit <= 0 {
		filter.Limit = constants.RoomListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListRooms(ctx, filter)
}

func (s *Service) Get(ctx context.Context, roomID string) (models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// Join seats userID in the room after checking the password and returns
// what the new member needs to render the room.
func (s *Service) Join(ctx context.Context, roomID, userID, password string) (models.Room, models.RoomInfo, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return models.Room{}, models.RoomInfo{}, err
	}
	if room.Password != "" && subtle.ConstantTimeCompare([]byte(room.Password), []byte(password)) != 1 {
		return models.Room{}, models.RoomInfo{}, ErrWrongPassword
	}

	if err := s.store.JoinRoom(ctx, roomID, userID, s.now().UnixMilli()); err != nil {
		switch {
		case errors.Is(err, storage.ErrRoomFull):
			return models.Room{}, models.RoomInfo{}, ErrRoomFull
		case errors.Is(err, storage.ErrNotFound):
			return models.Room{}, models.RoomInfo{}, ErrRoomNotFound
		}
		return models.Room{}, models.RoomInfo{}, fmt.Errorf("failed to join room: %w", err)
	}

	info, err := s.Info(ctx, room, userID)
	if err != nil {
		return models.Room{}, models.RoomInfo{}, err
	}
	return room, info, nil
}

// Leave frees the user's seat. It reports whether the user was seated.
func (s *Service) Leave(ctx context.Context, roomID, userID string) (bool, error) {
	left, err := s.store.LeaveRoom(ctx, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to leave room: %w", err)
	}
	return left, nil
}

// Info describes room for userID: members by nickname and the user's
// planners from yesterday to tomorrow.
func (s *Service) Info(ctx context.Context, room models.Room, userID string) (models.RoomInfo, error) {
	members, err := s.store.RoomMembers(ctx, room.ID)
	if err != nil {
		return models.RoomInfo{}, fmt.Errorf("failed to load members: %w", err)
	}
	info := models.RoomInfo{
		Title:         room.Title,
		Notice:        room.Notice,
		IsChat:        room.IsChat,
		CurrentMember: make([]string, 0, len(members)),
		Planner:       []models.PlannerEntry{},
	}
	for _, m := range members {
		info.CurrentMember = append(info.CurrentMember, m.Nickname)
	}

	manager, err := s.store.GetUser(ctx, room.RoomManager)
	switch {
	case err == nil:
		info.RoomManager = manager.Nickname
	case errors.Is(err, storage.ErrNotFound):
		info.RoomManager = ""
	default:
		return models.RoomInfo{}, fmt.Errorf("failed to load room manager: %w", err)
	}

	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -1).Format(constants.DateFormat)
	to := today.AddDate(0, 0, 1).Format(constants.DateFormat)
	planners, err := s.store.ListPlanners(ctx, userID, from, to)
	if err != nil {
		return models.RoomInfo{}, fmt.Errorf("failed to load planners: %w", err)
	}
	if planners != nil {
		info.Planner = planners
	}
	return info, nil
}
