package models

import "time"

// Interval is a closed focus interval in epoch milliseconds.
type Interval struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
}

// Millis returns the length of the interval.
func (i Interval) Millis() int64 {
	return i.EndTime - i.StartTime
}

// PlannerEntry is one user's todo for one calendar day.
type PlannerEntry struct {
	ID           string     `json:"_id"`
	UserID       string     `json:"userId"`
	Date         string     `json:"date"` // YYYY-MM-DD format
	Todo         string     `json:"todo"`
	IsComplete   bool       `json:"isComplete"`
	TotalTime    int64      `json:"totalTime"` // milliseconds
	TimelineList []Interval `json:"timelineList"`
	CreatedAt    time.Time  `json:"-"`
}

// CarryForward returns a fresh entry for date that continues p's todo.
func (p PlannerEntry) CarryForward(id, date string) PlannerEntry {
	return PlannerEntry{
		ID:        id,
		UserID:    p.UserID,
		Date:      date,
		Todo:      p.Todo,
		CreatedAt: time.Now().UTC(),
	}
}
