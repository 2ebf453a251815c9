package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
)

const roomColumns = `id, title, notice, password, is_chat, is_public, max_num, current_num, tags, manager_id, created_at`

func (s *DB) AddRoom(ctx context.Context, room models.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	tags := room.TagList
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Title, room.Notice, room.Password, room.IsChat, room.IsPublic,
		room.MaxNum, room.CurrentNum, string(tagsJSON), room.RoomManager, room.CreatedAt.UnixMilli())
	return err
}

func (s *DB) GetRoom(ctx context.Context, id string) (models.Room, error) {
	row := s.queryRow(ctx, "SELECT "+roomColumns+" FROM rooms WHERE id = ?", id)
	r, err := scanRoom(row)
	if err != nil {
		return models.Room{}, notFound(err, "room "+id)
	}
	return r, nil
}

func (s *DB) ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	var where []string
	var args []any

	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(tags) LIKE ?)")
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.IsPublic != nil {
		where = append(where, "is_public = ?")
		args = append(args, *filter.IsPublic)
	}
	if filter.IsPossible != nil {
		if *filter.IsPossible {
			where = append(where, "current_num < max_num")
		} else {
			where = append(where, "current_num >= max_num")
		}
	}

	query := "SELECT " + roomColumns + " FROM rooms"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *DB) DeleteRoom(ctx context.Context, id string) error {
	return s.inTx(ctx, func(c conn) error {
		if _, err := c.exec(ctx, "DELETE FROM room_members WHERE room_id = ?", id); err != nil {
			return err
		}
		res, err := c.exec(ctx, "DELETE FROM rooms WHERE id = ?", id)
		if err != nil {
			return err
		}
		return mustAffect(res, "room "+id)
	})
}

func (s *DB) JoinRoom(ctx context.Context, roomID, userID string, at int64) error {
	return s.inTx(ctx, func(c conn) error {
		var exists int
		if err := c.queryRow(ctx, "SELECT COUNT(*) FROM rooms WHERE id = ?", roomID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("room %s: %w", roomID, storage.ErrNotFound)
		}

		res, err := c.exec(ctx, `
			INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)
			ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID, at)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return nil
		}

		res, err = c.exec(ctx, `
			UPDATE rooms SET current_num = current_num + 1
			WHERE id = ? AND current_num < max_num`, roomID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("room %s: %w", roomID, storage.ErrRoomFull)
		}
		return nil
	})
}

func (s *DB) LeaveRoom(ctx context.Context, roomID, userID string) (bool, error) {
	left := false
	err := s.inTx(ctx, func(c conn) error {
		res, err := c.exec(ctx, "DELETE FROM room_members WHERE room_id = ? AND user_id = ?", roomID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		if _, err := c.exec(ctx, `
			UPDATE rooms SET current_num = current_num - 1
			WHERE id = ? AND current_num > 0`, roomID); err != nil {
			return err
		}
		left = true
		return nil
	})
	return left, err
}

func (s *DB) RoomMembers(ctx context.Context, roomID string) ([]models.User, error) {
	rows, err := s.query(ctx, `
		SELECT u.id, u.login_id, u.nickname, u.created_at
		FROM room_members m JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.joined_at, u.id`, roomID)
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

func (s *DB) ClearPresence(ctx context.Context) error {
	return s.inTx(ctx, func(c conn) error {
		if _, err := c.exec(ctx, "DELETE FROM room_members"); err != nil {
			return err
		}
		if _, err := c.exec(ctx, "UPDATE rooms SET current_num = 0"); err != nil {
			return err
		}
		_, err := c.exec(ctx, "DELETE FROM sessions")
		return err
	})
}

func scanRoom(row scanner) (models.Room, error) {
	var r models.Room
	var tags string
	var created int64
	if err := row.Scan(&r.ID, &r.Title, &r.Notice, &r.Password, &r.IsChat, &r.IsPublic,
		&r.MaxNum, &r.CurrentNum, &tags, &r.RoomManager, &created); err != nil {
		return models.Room{}, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &r.TagList); err != nil {
			return models.Room{}, fmt.Errorf("failed to decode tags of room %s: %w", r.ID, err)
		}
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	return r, nil
}
