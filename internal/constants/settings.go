package constants

const (
	// General Settings
	SettingTimezone       = "timezone"
	SettingChatTimeFormat = "chat_time_format"
	SettingRoomMaxNum     = "room_max_num"

	// Default Settings Values
	DefaultTimezone = "Local" // Use system local timezone by default
)
