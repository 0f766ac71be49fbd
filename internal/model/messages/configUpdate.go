package messages

import "github.com/LeonardoBeccarini/feeder/internal/model"

// ConfigUpdate is a schedule change as delivered by the configuration UI:
// every field is raw text and validated independently.
type ConfigUpdate struct {
	RequestID          string `json:"request_id,omitempty"`
	Time               string `json:"time"`
	Quantity           string `json:"quantity"`
	DispenseDurationMs string `json:"dispenseDurationMs"`
}

// UpdateResult tells the requester which fields were accepted.
type UpdateResult struct {
	RequestID string              `json:"request_id,omitempty"`
	Fields    []model.FieldResult `json:"fields"`
	Schedule  ScheduleView        `json:"schedule"`
	Persisted bool                `json:"persisted"`
}

// Rejected reports whether any field was refused.
func (r UpdateResult) Rejected() bool {
	for _, f := range r.Fields {
		if f.Status == model.FieldRejected {
			return true
		}
	}
	return false
}

// ScheduleView is the textual form of a FeedingSchedule, as read back by the UI.
type ScheduleView struct {
	Time               string `json:"time"`
	Quantity           int    `json:"quantity"`
	DispenseDurationMs int    `json:"dispenseDurationMs"`
}

func NewScheduleView(s model.FeedingSchedule) ScheduleView {
	return ScheduleView{
		Time:               s.FeedingTime.String(),
		Quantity:           s.Quantity,
		DispenseDurationMs: s.UnitDurationMs(),
	}
}

// FeedCommand asks for an immediate feed over MQTT.
type FeedCommand struct {
	RequestID string `json:"request_id,omitempty"`
}

// CommandResult is published back on the command result topic.
type CommandResult struct {
	RequestID string        `json:"request_id,omitempty"`
	Command   string        `json:"command"` // "feed" | "schedule"
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Feed      *FeedEvent    `json:"feed,omitempty"`
	Update    *UpdateResult `json:"update,omitempty"`
}
