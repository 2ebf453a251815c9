package models

// Settings represents server-wide settings
type Settings struct {
	Timezone       string `json:"timezone"`         // IANA timezone name used for day boundaries, or "Local"
	ChatTimeFormat string `json:"chat_time_format"` // Go layout stamped on chat messages
	RoomMaxNum     int    `json:"room_max_num"`     // default capacity for new rooms
}
