package api

import (
	"context"
	"sync"

	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/notify"
	"github.com/kuantumticaret/storepulse/internal/presence"
	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/kuantumticaret/storepulse/internal/tracker"
	"github.com/kuantumticaret/storepulse/internal/ws"
)

// SessionRuntime bundles the per-session components: the visit tracker,
// the presence publisher and the notification dispatcher. One runtime
// exists per storefront session; identity changes flow to all three.
type SessionRuntime struct {
	Tracker    *tracker.Tracker
	Publisher  *presence.Publisher
	Dispatcher *notify.Dispatcher
}

// Runtimes creates and releases SessionRuntimes. The hub's lifecycle
// callbacks feed back into it: a session losing its last connection
// releases the runtime, a permission report updates the dispatcher.
type Runtimes struct {
	visits   repositories.VisitRepository
	trackers *tracker.Manager
	channel  repositories.PresenceChannel
	feed     repositories.NotificationFeed
	hub      *ws.Hub
	debug    bool

	mu       sync.Mutex
	sessions map[string]*SessionRuntime
}

func NewRuntimes(
	visits repositories.VisitRepository,
	channel repositories.PresenceChannel,
	feed repositories.NotificationFeed,
	hub *ws.Hub,
	debug bool,
) *Runtimes {
	r := &Runtimes{
		visits:   visits,
		trackers: tracker.NewManager(visits, debug),
		channel:  channel,
		feed:     feed,
		hub:      hub,
		debug:    debug,
		sessions: make(map[string]*SessionRuntime),
	}
	hub.OnSessionGone(func(sessionID string) {
		r.Release(context.Background(), sessionID)
	})
	hub.OnPermission(func(sessionID, state string) {
		r.SetPermission(sessionID, state)
	})
	hub.OnHeartbeat(func(sessionID string) {
		r.Refresh(context.Background(), sessionID)
	})
	return r
}

// Get returns the session's runtime, creating it on first use.
func (r *Runtimes) Get(sessionID string) *SessionRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.sessions[sessionID]
	if !ok {
		prompt := func() {
			r.hub.SendToSession(sessionID, ws.KindPage, ws.Event{Op: ws.OpPermissionRequest})
		}
		rt = &SessionRuntime{
			Tracker:   r.trackers.Get(sessionID),
			Publisher: presence.NewPublisher(r.channel, r.debug),
			Dispatcher: notify.NewDispatcher(
				r.feed,
				notify.NewWorkerSurface(r.hub, sessionID),
				notify.NewPageSurface(r.hub, sessionID),
				prompt,
				r.debug,
			),
		}
		rt.Dispatcher.Init()
		r.sessions[sessionID] = rt
	}
	return rt
}

// Bind attaches an identity to the session. Only future visit brackets
// carry the user id; presence publishes and the notification feed
// subscription start immediately.
func (r *Runtimes) Bind(ctx context.Context, sessionID string, account *models.Account) {
	rt := r.Get(sessionID)
	userID := account.ID
	rt.Tracker.SetUser(&userID)
	rt.Publisher.SetIdentity(ctx, account)
	rt.Dispatcher.SetIdentity(ctx, &userID)
}

// Unbind returns the session to anonymous: presence is retracted, the
// feed subscription released. Open visit brackets keep their stamp.
func (r *Runtimes) Unbind(ctx context.Context, sessionID string) {
	rt := r.Get(sessionID)
	rt.Tracker.SetUser(nil)
	rt.Publisher.SetIdentity(ctx, nil)
	rt.Dispatcher.SetIdentity(ctx, nil)
}

// Refresh restamps the session's presence entry against the channel
// TTL. Heartbeats drive this; sessions without a runtime are ignored.
func (r *Runtimes) Refresh(ctx context.Context, sessionID string) {
	r.mu.Lock()
	rt, ok := r.sessions[sessionID]
	r.mu.Unlock()

	if ok {
		rt.Publisher.Refresh(ctx)
	}
}

// SetPermission forwards a client-reported permission state.
func (r *Runtimes) SetPermission(sessionID, state string) {
	perm, ok := notify.ParsePermission(state)
	if !ok {
		return
	}
	r.Get(sessionID).Dispatcher.SetPermission(perm)
}

// Release tears the session down: the open bracket is closed, presence
// retracted, the feed subscription dropped.
func (r *Runtimes) Release(ctx context.Context, sessionID string) {
	r.mu.Lock()
	rt, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.trackers.Release(ctx, sessionID)
	rt.Publisher.Teardown(ctx)
	rt.Dispatcher.Teardown()
}

// Shutdown releases every live runtime. Called once on server exit.
func (r *Runtimes) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*SessionRuntime, 0, len(r.sessions))
	for _, rt := range r.sessions {
		sessions = append(sessions, rt)
	}
	r.sessions = make(map[string]*SessionRuntime)
	r.mu.Unlock()

	r.trackers.CloseAll(ctx)
	for _, rt := range sessions {
		rt.Publisher.Teardown(ctx)
		rt.Dispatcher.Teardown()
	}
}
