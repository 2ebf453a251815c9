package models

import "fmt"

// Phase is the state of a user's study session.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFocusing Phase = "focusing"
	PhasePaused   Phase = "paused"
)

// SessionState is the per-user session cursor. Only the timestamps that
// belong to the current phase are set:
//
//	Idle:     no row is stored
//	Focusing: FocusSince, StreakSince
//	Paused:   PausedSince
type SessionState struct {
	UserID    string `json:"userId"`
	PlannerID string `json:"plannerId"`
	Phase     Phase  `json:"phase"`
	// FocusSince is where the open planner interval starts.
	FocusSince int64 `json:"focusSince,omitempty"`
	// StreakSince is where the continuous focus streak starts; task
	// changes keep it, a stop clears it.
	StreakSince int64  `json:"streakSince,omitempty"`
	PausedSince int64  `json:"pausedSince,omitempty"`
	Date        string `json:"date"`
}

// Idle returns the state of a user without a session row.
func Idle(userID string) SessionState {
	return SessionState{UserID: userID, Phase: PhaseIdle}
}

func (s SessionState) Focusing() bool { return s.Phase == PhaseFocusing }
func (s SessionState) Paused() bool   { return s.Phase == PhasePaused }
func (s SessionState) IsIdle() bool   { return s.Phase == PhaseIdle || s.Phase == "" }

// Focus moves the session into Focusing on plannerID at ts. The streak
// clock is kept when the session is already focusing.
func (s SessionState) Focus(plannerID string, ts int64, date string) SessionState {
	streak := ts
	if s.Focusing() {
		streak = s.StreakSince
	}
	return SessionState{
		UserID:      s.UserID,
		PlannerID:   plannerID,
		Phase:       PhaseFocusing,
		FocusSince:  ts,
		StreakSince: streak,
		Date:        date,
	}
}

// Pause moves the session into Paused at ts.
func (s SessionState) Pause(ts int64, date string) SessionState {
	return SessionState{
		UserID:      s.UserID,
		PlannerID:   s.PlannerID,
		Phase:       PhasePaused,
		PausedSince: ts,
		Date:        date,
	}
}

// Validate checks that only the timestamps of the current phase are set.
func (s SessionState) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("session has no user")
	}
	switch s.Phase {
	case PhaseFocusing:
		if s.PlannerID == "" || s.FocusSince <= 0 || s.StreakSince <= 0 || s.PausedSince != 0 {
			return fmt.Errorf("invalid focusing session for user %s", s.UserID)
		}
		if s.StreakSince > s.FocusSince {
			return fmt.Errorf("streak starts after focus interval for user %s", s.UserID)
		}
	case PhasePaused:
		if s.PausedSince <= 0 || s.FocusSince != 0 || s.StreakSince != 0 {
			return fmt.Errorf("invalid paused session for user %s", s.UserID)
		}
	default:
		return fmt.Errorf("session phase %q cannot be stored", s.Phase)
	}
	return nil
}
