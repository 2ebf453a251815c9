package sqlstore

import (
	"context"

	"github.com/julianstephens/studyroom/internal/models"
)

const statisticColumns = `user_id, date, total_time, rest_time, max_time, night, morning, afternoon, evening`

func (c conn) ApplyStatistic(ctx context.Context, d models.StatisticDelta) error {
	_, err := c.exec(ctx, `
		INSERT INTO statistics (`+statisticColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_time = statistics.total_time + excluded.total_time,
			rest_time = statistics.rest_time + excluded.rest_time,
			max_time = CASE WHEN excluded.max_time > statistics.max_time
				THEN excluded.max_time ELSE statistics.max_time END,
			night = statistics.night + excluded.night,
			morning = statistics.morning + excluded.morning,
			afternoon = statistics.afternoon + excluded.afternoon,
			evening = statistics.evening + excluded.evening`,
		d.UserID, d.Date, d.TotalTime, d.RestTime, d.MaxTime,
		d.Buckets.Night, d.Buckets.Morning, d.Buckets.Afternoon, d.Buckets.Evening)
	return err
}

func (c conn) GetStatistic(ctx context.Context, userID, date string) (models.Statistic, error) {
	row := c.queryRow(ctx, "SELECT "+statisticColumns+" FROM statistics WHERE user_id = ? AND date = ?", userID, date)
	st, err := scanStatistic(row)
	if err != nil {
		return models.Statistic{}, notFound(err, "statistic "+userID+"/"+date)
	}
	return st, nil
}

func (s *DB) ListStatistics(ctx context.Context, userID, from, to string) ([]models.Statistic, error) {
	rows, err := s.query(ctx, `
		SELECT `+statisticColumns+` FROM statistics
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.Statistic
	for rows.Next() {
		st, err := scanStatistic(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *DB) Ranking(ctx context.Context, from, to string, limit int) ([]models.RankEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.query(ctx, `
		SELECT s.user_id, COALESCE(u.nickname, ''), SUM(s.total_time) AS total
		FROM statistics s LEFT JOIN users u ON u.id = s.user_id
		WHERE s.date >= ? AND s.date <= ?
		GROUP BY s.user_id, u.nickname
		HAVING SUM(s.total_time) > 0
		ORDER BY total DESC, s.user_id
		LIMIT ?`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranking []models.RankEntry
	for rows.Next() {
		var e models.RankEntry
		if err := rows.Scan(&e.UserID, &e.Nickname, &e.TotalTime); err != nil {
			return nil, err
		}
		ranking = append(ranking, e)
	}
	return ranking, rows.Err()
}

func scanStatistic(row scanner) (models.Statistic, error) {
	var st models.Statistic
	err := row.Scan(&st.UserID, &st.Date, &st.TotalTime, &st.RestTime, &st.MaxTime,
		&st.Night, &st.Morning, &st.Afternoon, &st.Evening)
	return st, err
}
