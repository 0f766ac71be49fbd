package messages

import "time"

// Status is the read-only snapshot shown by the display and the web UI.
type Status struct {
	DeviceID     string       `json:"device_id"`
	Schedule     ScheduleView `json:"schedule"`
	LocalTime    string       `json:"local_time,omitempty"` // last known, kept across failed polls
	TimeSyncedAt time.Time    `json:"time_synced_at,omitempty"`
	DueSoon      bool         `json:"due_soon"`
	Fed          bool         `json:"fed"` // a feed completed within the display window
	LastFeed     *FeedEvent   `json:"last_feed,omitempty"`
	Paused       bool         `json:"paused"`
	Running      bool         `json:"running"`
	LastError    string       `json:"last_error,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
