package sqlstore

import (
	"context"
	"time"

	"github.com/julianstephens/studyroom/internal/models"
)

const plannerColumns = `id, user_id, date, todo, is_complete, total_time, created_at`

func (c conn) AddPlanner(ctx context.Context, p models.PlannerEntry) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := c.exec(ctx, `
		INSERT INTO planners (`+plannerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Date, p.Todo, p.IsComplete, p.TotalTime, p.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}
	for _, iv := range p.TimelineList {
		if _, err := c.exec(ctx, `
			INSERT INTO planner_timeline (planner_id, start_time, end_time) VALUES (?, ?, ?)`,
			p.ID, iv.StartTime, iv.EndTime); err != nil {
			return err
		}
	}
	return nil
}

func (c conn) GetPlanner(ctx context.Context, id string) (models.PlannerEntry, error) {
	row := c.queryRow(ctx, "SELECT "+plannerColumns+" FROM planners WHERE id = ?", id)
	p, err := scanPlanner(row)
	if err != nil {
		return models.PlannerEntry{}, notFound(err, "planner "+id)
	}

	rows, err := c.query(ctx, `
		SELECT start_time, end_time FROM planner_timeline
		WHERE planner_id = ? ORDER BY start_time`, id)
	if err != nil {
		return models.PlannerEntry{}, err
	}
	defer rows.Close()

	p.TimelineList = []models.Interval{}
	for rows.Next() {
		var iv models.Interval
		if err := rows.Scan(&iv.StartTime, &iv.EndTime); err != nil {
			return models.PlannerEntry{}, err
		}
		p.TimelineList = append(p.TimelineList, iv)
	}
	return p, rows.Err()
}

func (c conn) AppendInterval(ctx context.Context, plannerID string, iv models.Interval) error {
	res, err := c.exec(ctx, `
		UPDATE planners SET total_time = total_time + ? WHERE id = ?`, iv.Millis(), plannerID)
	if err != nil {
		return err
	}
	if err := mustAffect(res, "planner "+plannerID); err != nil {
		return err
	}
	_, err = c.exec(ctx, `
		INSERT INTO planner_timeline (planner_id, start_time, end_time) VALUES (?, ?, ?)`,
		plannerID, iv.StartTime, iv.EndTime)
	return err
}

func (s *DB) ListPlanners(ctx context.Context, userID, from, to string) ([]models.PlannerEntry, error) {
	rows, err := s.query(ctx, `
		SELECT `+plannerColumns+` FROM planners
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, created_at, id`, userID, from, to)
	if err != nil {
		return nil, err
	}

	var planners []models.PlannerEntry
	index := map[string]int{}
	for rows.Next() {
		p, err := scanPlanner(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		p.TimelineList = []models.Interval{}
		index[p.ID] = len(planners)
		planners = append(planners, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(planners) == 0 {
		return planners, nil
	}

	tl, err := s.query(ctx, `
		SELECT t.planner_id, t.start_time, t.end_time
		FROM planner_timeline t JOIN planners p ON p.id = t.planner_id
		WHERE p.user_id = ? AND p.date >= ? AND p.date <= ?
		ORDER BY t.start_time`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer tl.Close()

	for tl.Next() {
		var id string
		var iv models.Interval
		if err := tl.Scan(&id, &iv.StartTime, &iv.EndTime); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			planners[i].TimelineList = append(planners[i].TimelineList, iv)
		}
	}
	return planners, tl.Err()
}

func (s *DB) SetPlannerComplete(ctx context.Context, id string, complete bool) error {
	res, err := s.exec(ctx, "UPDATE planners SET is_complete = ? WHERE id = ?", complete, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "planner "+id)
}

func (s *DB) DeletePlanner(ctx context.Context, id string) error {
	return s.inTx(ctx, func(c conn) error {
		if _, err := c.exec(ctx, "DELETE FROM planner_timeline WHERE planner_id = ?", id); err != nil {
			return err
		}
		res, err := c.exec(ctx, "DELETE FROM planners WHERE id = ?", id)
		if err != nil {
			return err
		}
		return mustAffect(res, "planner "+id)
	})
}

func scanPlanner(row scanner) (models.PlannerEntry, error) {
	var p models.PlannerEntry
	var created int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Date, &p.Todo, &p.IsComplete, &p.TotalTime, &created); err != nil {
		return models.PlannerEntry{}, err
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	return p, nil
}
