package models

import "time"

type Room struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Notice      string    `json:"notice"`
	Password    string    `json:"-"`
	IsChat      bool      `json:"isChat"`
	IsPublic    bool      `json:"isPublic"`
	MaxNum      int       `json:"maxNum"`
	CurrentNum  int       `json:"currentNum"`
	TagList     []string  `json:"tagList"`
	RoomManager string    `json:"roomManager"` // user id
	CreatedAt   time.Time `json:"createdAt"`
}

// IsFull reports whether no seat is left.
func (r Room) IsFull() bool {
	return r.MaxNum > 0 && r.CurrentNum >= r.MaxNum
}

// RoomFilter narrows a room listing. Nil pointers mean "don't care".
type RoomFilter struct {
	Search     string
	IsPublic   *bool
	IsPossible *bool // true: rooms with a free seat, false: full rooms
	Limit      int
	Offset     int
}

// RoomInfo is what a member sees right after joining.
type RoomInfo struct {
	Title         string         `json:"title"`
	Notice        string         `json:"notice"`
	IsChat        bool           `json:"isChat"`
	RoomManager   string         `json:"roomManager"`
	CurrentMember []string       `json:"currentMember"`
	Planner       []PlannerEntry `json:"planner"`
}
