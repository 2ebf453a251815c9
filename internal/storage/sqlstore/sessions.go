package sqlstore

import (
	"context"
	"fmt"

	"github.com/julianstephens/studyroom/internal/models"
)

const sessionColumns = `user_id, planner_id, phase, focus_since, streak_since, paused_since, date`

func (c conn) GetSession(ctx context.Context, userID string) (models.SessionState, error) {
	row := c.queryRow(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE user_id = ?", userID)
	st, err := scanSession(row)
	if err != nil {
		return models.SessionState{}, notFound(err, "session "+userID)
	}
	return st, nil
}

func (c conn) SaveSession(ctx context.Context, st models.SessionState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("refusing to save session: %w", err)
	}
	_, err := c.exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			planner_id = excluded.planner_id,
			phase = excluded.phase,
			focus_since = excluded.focus_since,
			streak_since = excluded.streak_since,
			paused_since = excluded.paused_since,
			date = excluded.date`,
		st.UserID, st.PlannerID, string(st.Phase), st.FocusSince, st.StreakSince, st.PausedSince, st.Date)
	return err
}

func (c conn) DeleteSession(ctx context.Context, userID string) error {
	_, err := c.exec(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

func (s *DB) ListSessions(ctx context.Context) ([]models.SessionState, error) {
	rows, err := s.query(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.SessionState
	for rows.Next() {
		st, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, st)
	}
	return sessions, rows.Err()
}

func scanSession(row scanner) (models.SessionState, error) {
	var st models.SessionState
	var phase string
	if err := row.Scan(&st.UserID, &st.PlannerID, &phase, &st.FocusSince, &st.StreakSince, &st.PausedSince, &st.Date); err != nil {
		return models.SessionState{}, err
	}
	st.Phase = models.Phase(phase)
	return st, nil
}
