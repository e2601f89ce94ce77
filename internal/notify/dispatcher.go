// Package notify delivers notification rows to whichever surface a
// storefront session has available: the service-worker bridge first,
// the foreground page second, nothing visible last. The row in the
// store is the durable copy; visible delivery is advisory.
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
)

// Title shown for storefront notification events.
const notificationTitle = "Yeni bildirim"

type Permission int

const (
	PermissionUnrequested Permission = iota
	PermissionGranted
	PermissionDenied
)

func ParsePermission(state string) (Permission, bool) {
	switch state {
	case "unrequested":
		return PermissionUnrequested, true
	case "granted":
		return PermissionGranted, true
	case "denied":
		return PermissionDenied, true
	}
	return PermissionUnrequested, false
}

// Notification is one visible delivery. The tag is unique per event so
// the OS never collapses distinct notifications.
type Notification struct {
	Title string
	Body  string
	Tag   string
}

// Surface is one way of showing a notification to the user.
type Surface interface {
	Available() bool
	Show(n Notification) error
}

// Dispatcher owns one session's delivery state: the permission state
// machine, the surface precedence, and exactly one feed subscription
// filtered to the current identity.
type Dispatcher struct {
	feed   repositories.NotificationFeed
	worker Surface
	page   Surface
	// prompt asks the client to run the browser permission prompt.
	prompt func()
	debug  bool

	mu         sync.Mutex
	perm       Permission
	promptSent bool
	deniedSeen bool
	sub        repositories.FeedSubscription
	userID     *uuid.UUID

	seq atomic.Int64
}

func NewDispatcher(feed repositories.NotificationFeed, worker, page Surface, prompt func(), debug bool) *Dispatcher {
	return &Dispatcher{
		feed:   feed,
		worker: worker,
		page:   page,
		prompt: prompt,
		debug:  debug,
	}
}

// Init runs the once-per-session permission request. A state of
// granted or denied never triggers the prompt, and a denied state
// observed at any point suppresses it for good.
func (d *Dispatcher) Init() {
	d.mu.Lock()
	shouldPrompt := d.perm == PermissionUnrequested && !d.promptSent && !d.deniedSeen
	if shouldPrompt {
		d.promptSent = true
	}
	d.mu.Unlock()

	if shouldPrompt && d.prompt != nil {
		d.prompt()
	}
}

// SetPermission records the client's reported permission state.
func (d *Dispatcher) SetPermission(p Permission) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p == PermissionDenied {
		d.deniedSeen = true
	}
	d.perm = p
}

func (d *Dispatcher) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

// SetIdentity swaps the feed subscription to the new identity. The
// prior subscription is released before the new one opens so a session
// can neither receive duplicates nor another identity's notifications.
// A nil userID (logout, anonymous) leaves the session unsubscribed.
func (d *Dispatcher) SetIdentity(ctx context.Context, userID *uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sub != nil {
		if err := d.sub.Close(); err != nil && d.debug {
			log.Printf("[notify] failed to release feed subscription: %v", err)
		}
		d.sub = nil
	}
	d.userID = userID

	if userID == nil {
		return
	}

	sub, err := d.feed.Subscribe(ctx, *userID, func(n models.NotificationMessage) {
		d.Deliver(notificationTitle, n.Message)
	})
	if err != nil {
		if d.debug {
			log.Printf("[notify] failed to subscribe feed for %s: %v", userID, err)
		}
		return
	}
	d.sub = sub
}

// Deliver shows a notification through the preferred surface:
//
//  1. worker bridge, when present — richer OS notifications that
//     survive tab backgrounding;
//  2. foreground page, when permission is granted;
//  3. nothing — the row stays unread in the store until the user opens
//     the notifications view. Not a failure.
//
// The precedence is total: a present worker is never bypassed, even
// when its delivery errors.
func (d *Dispatcher) Deliver(title, body string) {
	n := Notification{
		Title: title,
		Body:  body,
		Tag:   fmt.Sprintf("notification-%d", d.seq.Add(1)),
	}

	if d.worker != nil && d.worker.Available() {
		if err := d.worker.Show(n); err != nil && d.debug {
			log.Printf("[notify] worker delivery failed: %v", err)
		}
		return
	}

	if d.Permission() == PermissionGranted && d.page != nil && d.page.Available() {
		if err := d.page.Show(n); err != nil && d.debug {
			log.Printf("[notify] page delivery failed: %v", err)
		}
		return
	}
}

// Teardown releases the feed subscription.
func (d *Dispatcher) Teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sub != nil {
		if err := d.sub.Close(); err != nil && d.debug {
			log.Printf("[notify] failed to release feed subscription: %v", err)
		}
		d.sub = nil
	}
	d.userID = nil
}
