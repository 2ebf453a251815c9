package gateway

import (
	"encoding/json"

	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/models"
)

// Frame is one websocket text message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client → server payloads

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type userInfoReply struct {
	SocketID  string              `json:"socketId"`
	State     constants.RoomState `json:"state"`
	TotalTime int64               `json:"totalTime"`
}

type timerRequest struct {
	PlannerID    string `json:"plannerId"`
	NewPlannerID string `json:"newPlannerId"`
	Timestamp    int64  `json:"timestamp"`
}

// Server → client payloads

type noticeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type chatMessage struct {
	Type    string `json:"type"`
	Time    string `json:"time"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

type roomInfoMessage struct {
	RoomID string `json:"roomId"`
	models.RoomInfo
}

type memberUpdate struct {
	Nickname string `json:"nickname"`
	State    string `json:"state"` // join or leave
}

type userInfoRequest struct {
	SocketID string `json:"socketId"`
}

type userState struct {
	Nickname  string              `json:"nickname"`
	State     constants.RoomState `json:"state"`
	TotalTime int64               `json:"totalTime"`
}

type updateData struct {
	Success bool `json:"success"`
	// PlannerID is the entry the session now runs on. It differs from the
	// requested one after a day rollover and must be used by the client
	// for the next stop, change or update.
	PlannerID string              `json:"plannerId"`
	Planner   models.PlannerEntry `json:"planner"`
	TotalTime int64               `json:"totalTime"`
	State     constants.RoomState `json:"state"`
}

type errorMessage struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
