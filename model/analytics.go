package model

type EventType string

const (
	EventView          EventType = "view"
	EventStart         EventType = "start"
	EventFieldComplete EventType = "field_complete"
	EventAbandon       EventType = "abandon"
	EventSubmit        EventType = "submit"
)

func (t EventType) Valid() bool {
	switch t {
	case EventView, EventStart, EventFieldComplete, EventAbandon, EventSubmit:
		return true
	}
	return false
}

// AnalyticsEvent rows are a write-only log, never updated.
type AnalyticsEvent struct {
	ID         string         `json:"id"`
	FormID     string         `json:"form_id"`
	ResponseID *string        `json:"response_id"`
	EventType  EventType      `json:"event_type"`
	FieldID    *string        `json:"field_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  int64          `json:"created_at"`
}

type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// DemoUserID is the seeded account used by local development setups.
const DemoUserID = "demo_user_1"
