package inbox

// Message is an inbox message as delivered over the socket.
type Message struct {
	MessageID string         `json:"messageId"`
	Title     string         `json:"title"`
	Preview   string         `json:"preview"`
	Created   string         `json:"created"`
	Read      bool           `json:"read"`
	Archived  bool           `json:"archived"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventType identifies a read-state change on an inbox message.
type EventType string

const (
	EventTypeRead        EventType = "read"
	EventTypeUnread      EventType = "unread"
	EventTypeArchive     EventType = "archive"
	EventTypeMarkAllRead EventType = "mark-all-read"
)

// MessageEvent is a read-state change for one message, or for all
// messages when Event is EventTypeMarkAllRead (MessageID empty).
type MessageEvent struct {
	MessageID string    `json:"messageId,omitempty"`
	Event     EventType `json:"event"`
}
