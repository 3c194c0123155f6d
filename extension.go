package courier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// defaultExtensionBudget bounds content delivery from inside the
// runner, under the ~30s wall-clock budget the OS grants a notification
// service extension.
const defaultExtensionBudget = 25 * time.Second

// ExtensionRunner implements the notification-service-extension path:
// it starts the delivered-tracking call without awaiting it and
// guarantees the OS completion callback is invoked exactly once,
// whether tracking settles first, the internal deadline fires first, or
// the OS signals expiry. Pending network calls run to completion in the
// background; their results are discarded once content was delivered.
type ExtensionRunner struct {
	tracker  *Tracker
	registry *TaskRegistry
	clock    clockwork.Clock
	budget   time.Duration
	logger   *slog.Logger
}

// NewExtensionRunner creates a runner over the given collaborators.
func NewExtensionRunner(tracker *Tracker, registry *TaskRegistry, clock clockwork.Clock, budget time.Duration, logger *slog.Logger) *ExtensionRunner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if budget <= 0 {
		budget = defaultExtensionBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtensionRunner{
		tracker:  tracker,
		registry: registry,
		clock:    clock,
		budget:   budget,
		logger:   logger,
	}
}

// ExtensionHandle gates content delivery for one notification request.
// Its respond callback fires exactly once.
type ExtensionHandle struct {
	once    sync.Once
	respond func(NotificationContent)
	content NotificationContent
	logger  *slog.Logger

	mu    sync.Mutex
	timer clockwork.Timer
}

// DidReceive processes one extension request. It submits the DELIVERED
// tracking call, arms the internal deadline, and returns immediately;
// respond is called with the best-available content when either
// settles. Forward the OS expiry signal to TimeWillExpire on the
// returned handle.
func (r *ExtensionRunner) DidReceive(ctx context.Context, req NotificationRequest, respond func(NotificationContent)) *ExtensionHandle {
	h := &ExtensionHandle{
		respond: respond,
		content: req.Content,
		logger:  r.logger,
	}
	// The deadline callback can run before AfterFunc returns when the
	// budget is tiny; publish the timer under the handle's lock so fire
	// sees either nil or a fully assigned timer.
	h.mu.Lock()
	h.timer = r.clock.AfterFunc(r.budget, func() {
		h.fire("deadline")
	})
	h.mu.Unlock()

	trackingURL := TrackingURL(req.Payload)
	r.registry.Register(ctx, func(ctx context.Context) {
		if trackingURL == "" {
			r.logger.Debug("Extension payload has no tracking URL")
		} else if err := r.tracker.Track(ctx, trackingURL, EventDelivered); err != nil {
			r.logger.Error("Extension tracking failed", "error", err)
		}
		h.fire("tracking settled")
	})
	return h
}

// TimeWillExpire delivers the best-available content in response to the
// OS expiry signal. Safe to call at any point; a duplicate call is a no-op.
func (h *ExtensionHandle) TimeWillExpire() {
	h.fire("expiry")
}

func (h *ExtensionHandle) fire(reason string) {
	h.once.Do(func() {
		h.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()
		h.logger.Debug("Delivering notification content", "reason", reason)
		h.respond(h.content)
	})
}
