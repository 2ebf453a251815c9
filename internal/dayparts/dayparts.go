// Package dayparts splits a wall-clock interval into calendar days and the
// four fixed six-hour buckets statistics are aggregated by.
package dayparts

import (
	"time"

	"github.com/julianstephens/studyroom/internal/constants"
)

// Part identifies one of the four six-hour windows of a local day.
type Part int

const (
	Night     Part = iota // 00:00-06:00
	Morning               // 06:00-12:00
	Afternoon             // 12:00-18:00
	Evening               // 18:00-24:00
)

// Parts lists every bucket in day order.
var Parts = []Part{Night, Morning, Afternoon, Evening}

var partNames = [...]string{"night", "morning", "afternoon", "evening"}

func (p Part) String() string {
	if p < Night || p > Evening {
		return "unknown"
	}
	return partNames[p]
}

// Of returns the bucket a local time falls into.
func Of(t time.Time) Part {
	return Part(t.Hour() / 6)
}

// Buckets holds milliseconds per day-part.
type Buckets struct {
	Night     int64 `json:"night"`
	Morning   int64 `json:"morning"`
	Afternoon int64 `json:"afternoon"`
	Evening   int64 `json:"evening"`
}

// Total returns the sum of all four buckets.
func (b Buckets) Total() int64 {
	return b.Night + b.Morning + b.Afternoon + b.Evening
}

// Get returns the milliseconds recorded for p.
func (b Buckets) Get(p Part) int64 {
	switch p {
	case Night:
		return b.Night
	case Morning:
		return b.Morning
	case Afternoon:
		return b.Afternoon
	case Evening:
		return b.Evening
	}
	return 0
}

// Add increments the bucket for p by ms.
func (b *Buckets) Add(p Part, ms int64) {
	switch p {
	case Night:
		b.Night += ms
	case Morning:
		b.Morning += ms
	case Afternoon:
		b.Afternoon += ms
	case Evening:
		b.Evening += ms
	}
}

// Merge adds every bucket of o to b.
func (b *Buckets) Merge(o Buckets) {
	for _, p := range Parts {
		b.Add(p, o.Get(p))
	}
}

// DaySplit is the portion of an interval that falls on one calendar day.
type DaySplit struct {
	Date    string
	Start   time.Time
	End     time.Time
	Buckets Buckets
}

// Millis returns the length of the day's portion in milliseconds.
func (d DaySplit) Millis() int64 {
	return d.End.Sub(d.Start).Milliseconds()
}

// Split walks [start, end) day by day in loc and returns the per-day bucket
// breakdown. The result is empty when end is not after start. The sum of all
// buckets equals end-start.
func Split(start, end time.Time, loc *time.Location) []DaySplit {
	if !end.After(start) {
		return nil
	}
	start, end = start.In(loc), end.In(loc)

	var splits []DaySplit
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for day.Before(end) {
		y, m, d := day.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

		split := DaySplit{
			Date:  day.Format(constants.DateFormat),
			Start: later(start, day),
			End:   earlier(end, next),
		}
		for _, p := range Parts {
			lo := time.Date(y, m, d, int(p)*6, 0, 0, 0, loc)
			hi := next
			if p != Evening {
				hi = time.Date(y, m, d, int(p+1)*6, 0, 0, 0, loc)
			}
			split.Buckets.Add(p, overlap(split.Start, split.End, lo, hi))
		}
		splits = append(splits, split)
		day = next
	}
	return splits
}

// Totals sums the buckets of every split.
func Totals(splits []DaySplit) Buckets {
	var b Buckets
	for _, s := range splits {
		b.Merge(s.Buckets)
	}
	return b
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) int64 {
	lo := later(aStart, bStart)
	hi := earlier(aEnd, bEnd)
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo).Milliseconds()
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
