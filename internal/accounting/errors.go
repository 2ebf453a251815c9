package accounting

import apperrors "github.com/julianstephens/studyroom/internal/errors"

var (
	ErrSessionNotFound  = apperrors.New("session_not_found", "no running study session")
	ErrTaskMismatch     = apperrors.New("task_mismatch", "planner does not match the running session")
	ErrAlreadyFocusing  = apperrors.New("already_started", "a study session is already running")
	ErrSamePlanner      = apperrors.New("same_planner", "already studying this planner")
	ErrPlannerNotFound  = apperrors.New("planner_not_found", "planner not found")
	ErrInvalidTimestamp = apperrors.New("invalid_timestamp", "timestamp is before the open interval")
)
