// Package accounting turns timer events into planner time, statistics and
// session state. Every operation for a user runs under that user's lock
// and inside one storage transaction.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/dayparts"
	"github.com/julianstephens/studyroom/internal/logger"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
	"github.com/julianstephens/studyroom/internal/utils"
)

// Result is what a room learns about a member after an accounting event.
type Result struct {
	UserID string
	// PlannerID is the entry the session points at after the event. A
	// rollover moves it to the carried-forward entry of the new day, and
	// later calls must name that entry.
	PlannerID string
	// TotalTime is the member's studied time on the day of the event.
	TotalTime int64
	State     constants.RoomState
	Planner   models.PlannerEntry
	Session   models.SessionState
}

type Service struct {
	store storage.Provider
	loc   *time.Location
	now   func() time.Time
	locks *userLocks
}

type Option func(*Service)

// WithClock replaces the server clock used by Disconnect.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service that cuts days at midnight in loc.
func New(store storage.Provider, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store: store,
		loc:   loc,
		now:   time.Now,
		locks: newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Start begins focusing on plannerID at ts. A paused session first books
// the rest since it paused.
func (s *Service) Start(ctx context.Context, userID, plannerID string, ts int64) (Result, error) {
	defer s.locks.lock(userID)()

	var res Result
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sess, err := loadSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		if sess.Focusing() {
			return ErrAlreadyFocusing
		}
		if sess.Paused() {
			if err := s.bookRest(ctx, tx, sess, ts); err != nil {
				return err
			}
		}

		planner, err := s.plannerFor(ctx, tx, userID, plannerID, ts)
		if err != nil {
			return err
		}

		next := sess.Focus(planner.ID, ts, s.day(ts))
		if err := tx.SaveSession(ctx, next); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		res, err = s.result(ctx, tx, next, ts, constants.StateStart)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Session started", "user", userID, "planner", res.PlannerID, "ts", ts)
	return res, nil
}

// Stop closes the focus interval on plannerID at ts and pauses the session.
func (s *Service) Stop(ctx context.Context, userID, plannerID string, ts int64) (Result, error) {
	defer s.locks.lock(userID)()

	var res Result
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sess, err := loadSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !sess.Focusing() {
			return ErrSessionNotFound
		}
		if sess.PlannerID != plannerID {
			return ErrTaskMismatch
		}

		last, err := s.closeFocus(ctx, tx, sess, ts)
		if err != nil {
			return err
		}

		sess.PlannerID = last.ID
		next := sess.Pause(ts, s.day(ts))
		if err := tx.SaveSession(ctx, next); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		res, err = s.result(ctx, tx, next, ts, constants.StateStop)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Session stopped", "user", userID, "planner", res.PlannerID, "ts", ts)
	return res, nil
}

// Change moves a focusing session to newPlannerID at ts. The interval so
// far is booked to the old planner; the streak keeps running.
func (s *Service) Change(ctx context.Context, userID, newPlannerID string, ts int64) (Result, error) {
	defer s.locks.lock(userID)()

	var res Result
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sess, err := loadSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !sess.Focusing() {
			return ErrSessionNotFound
		}
		if sess.PlannerID == newPlannerID {
			return ErrSamePlanner
		}
		if _, err := ownPlanner(ctx, tx, userID, newPlannerID); err != nil {
			return err
		}

		if _, err := s.closeFocus(ctx, tx, sess, ts); err != nil {
			return err
		}

		planner, err := s.plannerFor(ctx, tx, userID, newPlannerID, ts)
		if err != nil {
			return err
		}

		next := sess.Focus(planner.ID, ts, s.day(ts))
		if err := tx.SaveSession(ctx, next); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		res, err = s.result(ctx, tx, next, ts, constants.StateStart)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Session changed planner", "user", userID, "planner", res.PlannerID, "ts", ts)
	return res, nil
}

// Update books everything up to ts without changing the phase. A focusing
// session must name its planner.
func (s *Service) Update(ctx context.Context, userID, plannerID string, ts int64) (Result, error) {
	defer s.locks.lock(userID)()

	var res Result
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sess, err := loadSession(ctx, tx, userID)
		if err != nil {
			return err
		}

		var next models.SessionState
		state := constants.StateStop
		switch {
		case sess.Focusing():
			if sess.PlannerID != plannerID {
				return ErrTaskMismatch
			}
			last, err := s.closeFocus(ctx, tx, sess, ts)
			if err != nil {
				return err
			}
			next = sess
			next.PlannerID = last.ID
			next.FocusSince = ts
			next.Date = s.day(ts)
			state = constants.StateStart
		case sess.Paused():
			if err := s.bookRest(ctx, tx, sess, ts); err != nil {
				return err
			}
			next = sess.Pause(ts, s.day(ts))
		default:
			return ErrSessionNotFound
		}

		if err := tx.SaveSession(ctx, next); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		res, err = s.result(ctx, tx, next, ts, state)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Disconnect closes a focusing session at the server's clock and removes
// the session. ok is false when the user had no session.
func (s *Service) Disconnect(ctx context.Context, userID string) (res Result, ok bool, err error) {
	defer s.locks.lock(userID)()

	ts := s.now().UnixMilli()
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		sess, err := loadSession(ctx, tx, userID)
		if err != nil {
			return err
		}
		if sess.IsIdle() {
			return nil
		}
		ok = true

		if sess.Focusing() {
			// Client clocks may run ahead of the server.
			if ts < sess.FocusSince {
				ts = sess.FocusSince
			}
			last, err := s.closeFocus(ctx, tx, sess, ts)
			switch {
			case errors.Is(err, ErrPlannerNotFound):
				logger.Warn("Dropping session whose planner is gone", "user", userID, "planner", sess.PlannerID)
			case err != nil:
				return err
			default:
				sess.PlannerID = last.ID
			}
		}

		if err := tx.DeleteSession(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		res, err = s.result(ctx, tx, models.Idle(userID), ts, constants.StateStop)
		res.PlannerID = sess.PlannerID
		return err
	})
	if err != nil {
		return Result{}, false, err
	}
	if ok {
		logger.Debug("Session closed on disconnect", "user", userID, "ts", ts)
	}
	return res, ok, nil
}

// Status returns the user's session and studied time today.
func (s *Service) Status(ctx context.Context, userID string) (models.SessionState, int64, error) {
	sess, err := s.store.GetSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return models.SessionState{}, 0, err
		}
		sess = models.Idle(userID)
	}
	stat, err := s.store.GetStatistic(ctx, userID, s.day(s.now().UnixMilli()))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.SessionState{}, 0, err
	}
	return sess, stat.TotalTime, nil
}

// closeFocus books [FocusSince, ts) day by day. Days after the planner's
// own day get a carried-forward planner; the last planner touched is
// returned.
func (s *Service) closeFocus(ctx context.Context, tx storage.Tx, sess models.SessionState, ts int64) (models.PlannerEntry, error) {
	if ts < sess.FocusSince {
		return models.PlannerEntry{}, ErrInvalidTimestamp
	}

	current, err := ownPlanner(ctx, tx, sess.UserID, sess.PlannerID)
	if err != nil {
		return models.PlannerEntry{}, err
	}

	splits := dayparts.Split(utils.FromMillis(sess.FocusSince, s.loc), utils.FromMillis(ts, s.loc), s.loc)
	for _, sp := range splits {
		if sp.Date > current.Date {
			next := current.CarryForward(uuid.NewString(), sp.Date)
			if err := tx.AddPlanner(ctx, next); err != nil {
				return models.PlannerEntry{}, fmt.Errorf("failed to carry planner forward: %w", err)
			}
			current = next
		}

		start, end := sp.Start.UnixMilli(), sp.End.UnixMilli()
		if err := tx.AppendInterval(ctx, current.ID, models.Interval{StartTime: start, EndTime: end}); err != nil {
			return models.PlannerEntry{}, fmt.Errorf("failed to append interval: %w", err)
		}

		streakStart := max(sess.StreakSince, utils.Midnight(sp.Start).UnixMilli())
		delta := models.StatisticDelta{
			UserID:    sess.UserID,
			Date:      sp.Date,
			TotalTime: sp.Millis(),
			MaxTime:   end - streakStart,
			Buckets:   sp.Buckets,
		}
		if err := tx.ApplyStatistic(ctx, delta); err != nil {
			return models.PlannerEntry{}, fmt.Errorf("failed to update statistic: %w", err)
		}
	}
	return current, nil
}

// bookRest adds [PausedSince, ts) to each touched day's rest time.
func (s *Service) bookRest(ctx context.Context, tx storage.Tx, sess models.SessionState, ts int64) error {
	if ts < sess.PausedSince {
		return ErrInvalidTimestamp
	}
	splits := dayparts.Split(utils.FromMillis(sess.PausedSince, s.loc), utils.FromMillis(ts, s.loc), s.loc)
	for _, sp := range splits {
		delta := models.StatisticDelta{UserID: sess.UserID, Date: sp.Date, RestTime: sp.Millis()}
		if err := tx.ApplyStatistic(ctx, delta); err != nil {
			return fmt.Errorf("failed to update rest time: %w", err)
		}
	}
	return nil
}

// plannerFor returns the user's planner to focus on at ts, carrying an
// entry from an earlier day forward to today.
func (s *Service) plannerFor(ctx context.Context, tx storage.Tx, userID, plannerID string, ts int64) (models.PlannerEntry, error) {
	planner, err := ownPlanner(ctx, tx, userID, plannerID)
	if err != nil {
		return models.PlannerEntry{}, err
	}
	day := s.day(ts)
	if planner.Date >= day {
		return planner, nil
	}
	next := planner.CarryForward(uuid.NewString(), day)
	if err := tx.AddPlanner(ctx, next); err != nil {
		return models.PlannerEntry{}, fmt.Errorf("failed to carry planner forward: %w", err)
	}
	return next, nil
}

func (s *Service) result(ctx context.Context, tx storage.Tx, sess models.SessionState, ts int64, state constants.RoomState) (Result, error) {
	res := Result{
		UserID:    sess.UserID,
		PlannerID: sess.PlannerID,
		State:     state,
		Session:   sess,
	}
	stat, err := tx.GetStatistic(ctx, sess.UserID, s.day(ts))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Result{}, fmt.Errorf("failed to load statistic: %w", err)
	}
	res.TotalTime = stat.TotalTime

	if sess.PlannerID != "" {
		res.Planner, err = tx.GetPlanner(ctx, sess.PlannerID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to load planner: %w", err)
		}
	}
	return res, nil
}

func (s *Service) day(ts int64) string {
	return utils.DayOf(ts, s.loc)
}

func loadSession(ctx context.Context, tx storage.Tx, userID string) (models.SessionState, error) {
	sess, err := tx.GetSession(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Idle(userID), nil
	}
	if err != nil {
		return models.SessionState{}, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func ownPlanner(ctx context.Context, tx storage.Tx, userID, plannerID string) (models.PlannerEntry, error) {
	planner, err := tx.GetPlanner(ctx, plannerID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PlannerEntry{}, ErrPlannerNotFound
	}
	if err != nil {
		return models.PlannerEntry{}, fmt.Errorf("failed to load planner: %w", err)
	}
	if planner.UserID != userID {
		return models.PlannerEntry{}, ErrPlannerNotFound
	}
	return planner, nil
}
