// Package ws manages the WebSocket connections that act as the
// storefront's delivery surfaces. Each storefront session may hold a
// "page" connection (the foreground tab) and a "worker" connection
// (the service-worker bridge); the notification dispatcher picks
// between them.
package ws

// Event is one message on a WebSocket connection. Seq is a per-hub
// monotonic counter so the client can detect missed events.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operations
const (
	OpHeartbeat  = "heartbeat"
	OpPermission = "permission" // client reports its notification permission state
)

// Server → Client operations
const (
	OpReady             = "ready"
	OpHeartbeatAck      = "heartbeat_ack"
	OpNotification      = "notification"       // in-page notification for the foreground tab
	OpShowNotification  = "show_notification"  // render via the service worker
	OpPermissionRequest = "permission_request" // ask the client to prompt for permission
)

// ReadyData is the first event after connect.
type ReadyData struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
}

// PermissionData reports the browser permission state: "unrequested",
// "granted" or "denied".
type PermissionData struct {
	State string `json:"state"`
}

// PageNotificationData is the payload for an in-page notification. The
// client auto-dismisses after AutoDismissMs and focuses the window on
// click.
type PageNotificationData struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	Tag           string `json:"tag"`
	AutoDismissMs int64  `json:"auto_dismiss_ms"`
}

// WorkerNotificationData is the page→worker contract carried verbatim to
// the service worker: it renders an OS notification with the unique tag
// and, on click, focuses an existing same-origin window or opens
// /notifications, never both.
type WorkerNotificationData struct {
	Type  string `json:"type"` // always "SHOW_NOTIFICATION"
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}
