package models

import "time"

type User struct {
	ID        string    `json:"_id"`
	LoginID   string    `json:"id"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"-"`
}
