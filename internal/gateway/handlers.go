package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/julianstephens/studyroom/internal/accounting"
	"github.com/julianstephens/studyroom/internal/constants"
	apperrors "github.com/julianstephens/studyroom/internal/errors"
	"github.com/julianstephens/studyroom/internal/events"
	"github.com/julianstephens/studyroom/internal/logger"
)

var (
	errBadRequest   = apperrors.New("bad_request", "malformed event")
	errUnknownEvent = apperrors.New("bad_request", "unknown event")
	errNotInRoom    = apperrors.New("bad_request", "join a room first")
	errChatDisabled = apperrors.New("bad_request", "chat is disabled in this room")
)

func (h *Hub) handle(ctx context.Context, c *conn, f Frame) {
	var err error
	switch f.Event {
	case constants.EventJoinRoom:
		err = h.onJoinRoom(ctx, c, f.Data)
	case constants.EventLeaveRoom:
		err = h.leave(ctx, c)
	case constants.EventSendChat:
		err = h.onSendChat(ctx, c, f.Data)
	case constants.EventResponseUserInfo:
		err = h.onUserInfo(ctx, c, f.Data)
	case constants.EventStart, constants.EventStop, constants.EventChange, constants.EventUpdate:
		err = h.onTimer(ctx, c, f.Event, f.Data)
	default:
		err = errUnknownEvent
	}
	if err != nil {
		h.sendError(c, f.Event, err)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errBadRequest
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errBadRequest
	}
	return nil
}

func (h *Hub) onJoinRoom(ctx context.Context, c *conn, data json.RawMessage) error {
	var req joinRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return errBadRequest
	}
	if c.room == req.RoomID {
		return nil
	}
	if c.room != "" {
		if err := h.leave(ctx, c); err != nil {
			return err
		}
	}

	room, info, err := h.rooms.Join(ctx, req.RoomID, c.user.ID, req.Password)
	if err != nil {
		return err
	}
	c.room, c.roomChat = room.ID, room.IsChat
	h.enterRoom(c, room.ID)

	h.sendTo(c, constants.EventResponseRoomInfo, roomInfoMessage{RoomID: room.ID, RoomInfo: info})
	h.publish(ctx, room.ID, c.id, constants.EventUpdateMember, memberUpdate{Nickname: c.user.Nickname, State: "join"})
	h.publish(ctx, room.ID, c.id, constants.EventRequestUserInfo, userInfoRequest{SocketID: c.id})
	if room.IsChat {
		h.publish(ctx, room.ID, "", constants.EventNotice, noticeMessage{
			Type:    "notice",
			Message: fmt.Sprintf("%s joined the room", c.user.Nickname),
		})
	}
	logger.Info("Joined room", "user", c.user.ID, "room", room.ID)
	return nil
}

// leave closes the user's session, frees the seat and tells the room.
func (h *Hub) leave(ctx context.Context, c *conn) error {
	if err := h.closeSession(ctx, c); err != nil {
		return err
	}
	if c.room == "" {
		return nil
	}

	roomID, chat := c.room, c.roomChat
	if _, err := h.rooms.Leave(ctx, roomID, c.user.ID); err != nil {
		return err
	}
	h.exitRoom(c, roomID)
	c.room, c.roomChat = "", false

	h.publish(ctx, roomID, c.id, constants.EventUpdateMember, memberUpdate{Nickname: c.user.Nickname, State: "leave"})
	if chat {
		h.publish(ctx, roomID, c.id, constants.EventNotice, noticeMessage{
			Type:    "notice",
			Message: fmt.Sprintf("%s left the room", c.user.Nickname),
		})
	}
	logger.Info("Left room", "user", c.user.ID, "room", roomID)
	return nil
}

func (h *Hub) closeSession(ctx context.Context, c *conn) error {
	res, ok, err := h.accounting.Disconnect(ctx, c.user.ID)
	if err != nil || !ok || c.room == "" {
		return err
	}
	h.publish(ctx, c.room, c.id, constants.EventUpdateUserState, userState{
		Nickname:  c.user.Nickname,
		State:     res.State,
		TotalTime: res.TotalTime,
	})
	return nil
}

// disconnect runs when the socket is gone; errors can only be logged.
func (h *Hub) disconnect(ctx context.Context, c *conn) {
	if err := h.leave(ctx, c); err != nil {
		logger.Error("Failed to clean up socket", "conn", c.id, "user", c.user.ID, "room", c.room, "error", err)
	}
}

func (h *Hub) onSendChat(ctx context.Context, c *conn, data json.RawMessage) error {
	var req chatRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if c.room == "" {
		return errNotInRoom
	}
	if !c.roomChat {
		return errChatDisabled
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return errBadRequest
	}
	h.publish(ctx, c.room, "", constants.EventChat, chatMessage{
		Type:    "chat",
		Time:    h.now().In(h.accounting.Location()).Format(h.opts.ChatTimeFormat),
		Message: msg,
		Sender:  c.user.Nickname,
	})
	return nil
}

// onUserInfo forwards a member's timer state to the socket that asked.
func (h *Hub) onUserInfo(ctx context.Context, c *conn, data json.RawMessage) error {
	var req userInfoReply
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.SocketID == "" {
		return errBadRequest
	}
	if req.State != constants.StateStart {
		req.State = constants.StateStop
	}
	env, err := events.New("", constants.EventUpdateUserState, userState{
		Nickname:  c.user.Nickname,
		State:     req.State,
		TotalTime: req.TotalTime,
	})
	if err != nil {
		return err
	}
	env.TargetConn = req.SocketID
	if err := h.bus.Publish(ctx, env); err != nil {
		logger.Warn("Failed to publish event", "event", env.Event, "error", err)
	}
	return nil
}

func (h *Hub) onTimer(ctx context.Context, c *conn, event string, data json.RawMessage) error {
	var req timerRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	ts := req.Timestamp
	if ts <= 0 {
		ts = h.now().UnixMilli()
	}

	var (
		res accounting.Result
		err error
	)
	switch event {
	case constants.EventStart:
		if req.PlannerID == "" {
			return errBadRequest
		}
		res, err = h.accounting.Start(ctx, c.user.ID, req.PlannerID, ts)
	case constants.EventStop:
		res, err = h.accounting.Stop(ctx, c.user.ID, req.PlannerID, ts)
	case constants.EventChange:
		next := req.NewPlannerID
		if next == "" {
			next = req.PlannerID
		}
		if next == "" {
			return errBadRequest
		}
		res, err = h.accounting.Change(ctx, c.user.ID, next, ts)
	case constants.EventUpdate:
		res, err = h.accounting.Update(ctx, c.user.ID, req.PlannerID, ts)
	}
	if err != nil {
		return err
	}

	h.sendTo(c, constants.EventResponseUpdateData, updateData{
		Success:   true,
		PlannerID: res.PlannerID,
		Planner:   res.Planner,
		TotalTime: res.TotalTime,
		State:     res.State,
	})
	// Heartbeats are acknowledged to the sender only.
	if c.room != "" && event != constants.EventUpdate {
		h.publish(ctx, c.room, c.id, constants.EventUpdateUserState, userState{
			Nickname:  c.user.Nickname,
			State:     res.State,
			TotalTime: res.TotalTime,
		})
	}
	return nil
}

// publish fans data out to room. Failures are logged, never returned:
// the accounting work they describe is already committed.
func (h *Hub) publish(ctx context.Context, room, exclude, event string, data any) {
	env, err := events.New(room, event, data)
	if err != nil {
		logger.Error("Failed to build event", "event", event, "error", err)
		return
	}
	env.ExcludeConn = exclude
	if err := h.bus.Publish(ctx, env); err != nil {
		logger.Warn("Failed to publish event", "event", event, "room", room, "error", err)
	}
}

// sendTo writes straight to one local socket.
func (h *Hub) sendTo(c *conn, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	msg, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	c.enqueue(msg)
}

func (h *Hub) sendError(c *conn, event string, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeInternal {
		logger.Error("Event failed", "event", event, "conn", c.id, "user", c.user.ID, "error", err)
	} else {
		logger.Debug("Event rejected", "event", event, "user", c.user.ID, "code", code)
	}
	h.sendTo(c, constants.EventError, errorMessage{
		Event:   event,
		Code:    code,
		Message: apperrors.PublicMessage(err),
	})
}
