package notify

import (
	"fmt"

	"github.com/kuantumticaret/storepulse/internal/ws"
)

// autoDismiss is how long the foreground notification stays on screen.
const autoDismissMs = 5000

// hubSender is the slice of the ws hub the surfaces need.
type hubSender interface {
	HasConnection(sessionID, kind string) bool
	SendToSession(sessionID, kind string, event ws.Event) bool
}

// WorkerSurface delegates rendering to the session's service-worker
// bridge. The payload is the page→worker message contract verbatim.
type WorkerSurface struct {
	hub       hubSender
	sessionID string
}

func NewWorkerSurface(hub hubSender, sessionID string) *WorkerSurface {
	return &WorkerSurface{hub: hub, sessionID: sessionID}
}

func (s *WorkerSurface) Available() bool {
	return s.hub.HasConnection(s.sessionID, ws.KindWorker)
}

func (s *WorkerSurface) Show(n Notification) error {
	sent := s.hub.SendToSession(s.sessionID, ws.KindWorker, ws.Event{
		Op: ws.OpShowNotification,
		Data: ws.WorkerNotificationData{
			Type:  "SHOW_NOTIFICATION",
			Title: n.Title,
			Body:  n.Body,
			Tag:   n.Tag,
		},
	})
	if !sent {
		return fmt.Errorf("no worker connection for session %s", s.sessionID)
	}
	return nil
}

// PageSurface renders a direct in-page notification with a short
// auto-dismiss timer; the client focuses the window on click.
type PageSurface struct {
	hub       hubSender
	sessionID string
}

func NewPageSurface(hub hubSender, sessionID string) *PageSurface {
	return &PageSurface{hub: hub, sessionID: sessionID}
}

func (s *PageSurface) Available() bool {
	return s.hub.HasConnection(s.sessionID, ws.KindPage)
}

func (s *PageSurface) Show(n Notification) error {
	sent := s.hub.SendToSession(s.sessionID, ws.KindPage, ws.Event{
		Op: ws.OpNotification,
		Data: ws.PageNotificationData{
			Title:         n.Title,
			Body:          n.Body,
			Tag:           n.Tag,
			AutoDismissMs: autoDismissMs,
		},
	})
	if !sent {
		return fmt.Errorf("no page connection for session %s", s.sessionID)
	}
	return nil
}
