package courier

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Provider identifies the push platform a device token belongs to.
// The values are the provider keys the backend expects.
type Provider string

const (
	ProviderAPNS Provider = "apn"
	ProviderFCM  Provider = "firebase-fcm"
)

// EventKind represents a notification lifecycle point reported to the
// backend.
type EventKind string

const (
	EventDelivered EventKind = "DELIVERED"
	EventClicked   EventKind = "CLICKED"
	EventOpened    EventKind = "OPENED"
	EventRead      EventKind = "READ"
)

// ---------------------------------------------------------------------------
// Wire bodies
// ---------------------------------------------------------------------------

// DeviceInfo describes the device a token was issued on. All fields are
// optional; the backend stores them verbatim for audience targeting.
type DeviceInfo struct {
	AppID        string `json:"app_id,omitempty"`
	AdID         string `json:"ad_id,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
}

// putTokenBody is the body of PUT /users/{userId}/tokens/{token}.
type putTokenBody struct {
	ProviderKey Provider    `json:"provider_key"`
	Device      *DeviceInfo `json:"device,omitempty"`
}

// trackEventBody is the body posted to a notification's tracking URL.
type trackEventBody struct {
	Event EventKind `json:"event"`
}

// ---------------------------------------------------------------------------
// Notification payload shapes
// ---------------------------------------------------------------------------

// NotificationContent is the displayable part of a push notification.
// The extension path may augment it before handing it to the OS.
type NotificationContent struct {
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle,omitempty"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
}

// NotificationRequest is an inbound OS notification event: the raw
// payload plus the content the OS proposes to display.
type NotificationRequest struct {
	Payload map[string]any
	Content NotificationContent
}

// trackingURLKey is the payload key carrying the per-message tracking
// endpoint issued by the backend.
const trackingURLKey = "trackingUrl"

// TrackingURL extracts the backend tracking endpoint from a push
// payload. It returns "" when the payload carries none (e.g. a push
// not sent through the platform).
func TrackingURL(payload map[string]any) string {
	v, ok := payload[trackingURLKey]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
