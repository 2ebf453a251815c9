package models

import "github.com/julianstephens/studyroom/internal/dayparts"

// Statistic aggregates one user's study time for one calendar day.
// TotalTime equals the sum of the day-part buckets.
type Statistic struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	TotalTime int64  `json:"totalTime"`
	RestTime  int64  `json:"restTime"`
	MaxTime   int64  `json:"maxTime"` // longest continuous focus streak
	dayparts.Buckets
}

// StatisticDelta is applied to a Statistic as an upsert: counters are
// incremented and MaxTime is combined with max().
type StatisticDelta struct {
	UserID    string
	Date      string
	TotalTime int64
	RestTime  int64
	MaxTime   int64
	Buckets   dayparts.Buckets
}

// Empty reports whether applying the delta would change nothing.
func (d StatisticDelta) Empty() bool {
	return d.TotalTime == 0 && d.RestTime == 0 && d.MaxTime == 0 && d.Buckets.Total() == 0
}

// Apply folds the delta into s.
func (s *Statistic) Apply(d StatisticDelta) {
	s.TotalTime += d.TotalTime
	s.RestTime += d.RestTime
	if d.MaxTime > s.MaxTime {
		s.MaxTime = d.MaxTime
	}
	s.Buckets.Merge(d.Buckets)
}

// CalendarDay is one day of the monthly calendar view.
type CalendarDay struct {
	Date      string `json:"date"`
	TotalTime int64  `json:"totalTime"`
}

// RankEntry is one row of the study-time ranking.
type RankEntry struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	TotalTime int64  `json:"totalTime"`
}
