package constants

import "time"

// RoomState is the timer state a member reports to the rest of a room.
type RoomState string

const (
	AppName            = "studyroom"
	DefaultKeyringUser = "database-connection"
	SecretKeyringUser  = "jwt-secret"
	DefaultConfigPath  = "~/.config/studyroom/studyroom.db"
	Version            = "v0.3.0"

	// DateFormat is the calendar day format used for planner and statistic keys (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MonthFormat is the calendar month format used by the statistics calendar (YYYY-MM)
	MonthFormat = "2006-01"

	// ChatTimeFormat is the time format stamped on chat messages (HH:MM)
	ChatTimeFormat = "15:04"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "studyroom-"
	BackupFileSuffix = ".db"

	// Server constants
	DefaultAddr        = ":8080"
	SocketPath         = "/rooms"
	HealthPath         = "/healthz"
	ServerLockfileName = "studyroom-server.lock"
	RedisChannel       = "studyroom:events"
	ShutdownTimeout    = 10 * time.Second
	SocketWriteTimeout = 5 * time.Second
	SocketSendBuffer   = 64
	SocketReadLimit    = 64 << 10
	TokenTTL           = 24 * time.Hour

	// Room defaults
	DefaultRoomMaxNum = 8
	RoomListLimit     = 20

	// Member timer states
	StateStart RoomState = "start"
	StateStop  RoomState = "stop"
)

// Client → server events
const (
	EventJoinRoom         = "joinRoom"
	EventLeaveRoom        = "leaveRoom"
	EventSendChat         = "sendChat"
	EventResponseUserInfo = "responseUserInfo"
	EventStart            = "start"
	EventStop             = "stop"
	EventChange           = "change"
	EventUpdate           = "update"
)

// Server → client events
const (
	EventNotice             = "notice"
	EventChat               = "chat"
	EventResponseRoomInfo   = "responseRoomInfo"
	EventUpdateMember       = "updateMember"
	EventRequestUserInfo    = "requestUserInfo"
	EventUpdateUserState    = "updateUserState"
	EventResponseUpdateData = "responseUpdateData"
	EventError              = "error"
)
