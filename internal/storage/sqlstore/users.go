package sqlstore

import (
	"context"
	"time"

	"github.com/julianstephens/studyroom/internal/models"
)

func (s *DB) AddUser(ctx context.Context, user models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO users (id, login_id, nickname, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.LoginID, user.Nickname, user.CreatedAt.UnixMilli())
	return err
}

func (s *DB) GetUser(ctx context.Context, id string) (models.User, error) {
	row := s.queryRow(ctx, "SELECT id, login_id, nickname, created_at FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, notFound(err, "user "+id)
	}
	return u, nil
}

func (s *DB) GetUserByLoginID(ctx context.Context, loginID string) (models.User, error) {
	row := s.queryRow(ctx, "SELECT id, login_id, nickname, created_at FROM users WHERE login_id = ?", loginID)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, notFound(err, "user "+loginID)
	}
	return u, nil
}

func (s *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.query(ctx, "SELECT id, login_id, nickname, created_at FROM users ORDER BY login_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var u models.User
	var created int64
	if err := row.Scan(&u.ID, &u.LoginID, &u.Nickname, &created); err != nil {
		return models.User{}, err
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}
