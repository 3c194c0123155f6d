package courier

import (
	"context"
	"log/slog"
)

// Tracker reports notification lifecycle events to the backend. The
// foreground entry points are fire-and-forget: the app's presentation
// or click callback runs immediately, never waiting on (or failing
// with) the network. Tracking errors are logged and swallowed. Each
// event is sent at most once per call; the backend tolerates
// duplicates, so at-least-once across retries by the caller is fine.
type Tracker struct {
	exec     *Executor
	registry *TaskRegistry
	logger   *slog.Logger
}

// NewTracker creates a Tracker over the given collaborators.
func NewTracker(exec *Executor, registry *TaskRegistry, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{exec: exec, registry: registry, logger: logger}
}

// Track posts the event to the notification's tracking URL and waits
// for the result. Most callers want TrackAsync; this variant exists for
// callers that need the typed outcome (e.g. the demo CLI).
func (t *Tracker) Track(ctx context.Context, trackingURL string, event EventKind) error {
	_, _, err := t.exec.Execute(ctx, Request{
		Method: "POST",
		URL:    trackingURL,
		Body:   trackEventBody{Event: event},
	})
	return err
}

// TrackAsync submits the tracking call through the task registry and
// returns immediately. Failures are logged, never surfaced.
func (t *Tracker) TrackAsync(ctx context.Context, trackingURL string, event EventKind) {
	if trackingURL == "" {
		t.logger.Debug("Notification payload has no tracking URL, skipping", "event", event)
		return
	}
	t.registry.Register(ctx, func(ctx context.Context) {
		if err := t.Track(ctx, trackingURL, event); err != nil {
			t.logger.Error("Notification tracking failed", "event", event, "error", err)
		}
	})
}

// Delivered handles a foreground delivery: it starts the DELIVERED
// tracking call and invokes present unconditionally, so display is
// never blocked or failed by network issues.
func (t *Tracker) Delivered(ctx context.Context, payload map[string]any, present func()) {
	t.TrackAsync(ctx, TrackingURL(payload), EventDelivered)
	if present != nil {
		present()
	}
}

// Clicked handles a notification tap: it starts the CLICKED tracking
// call and invokes onClick unconditionally.
func (t *Tracker) Clicked(ctx context.Context, payload map[string]any, onClick func()) {
	t.TrackAsync(ctx, TrackingURL(payload), EventClicked)
	if onClick != nil {
		onClick()
	}
}
