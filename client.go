package courier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultBaseURL is the default Courier API base URL.
const DefaultBaseURL = "https://api.courier.com"

// Option configures Client.
type Option func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithSessionDir sets the directory for credential storage. Without it
// the session lives in memory only.
func WithSessionDir(dir string) Option {
	return func(c *Client) {
		c.sessionDir = dir
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used for the extension deadline.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithExtensionBudget sets the internal deadline for extension content
// delivery.
func WithExtensionBudget(d time.Duration) Option {
	return func(c *Client) {
		c.extBudget = d
	}
}

// WithDeviceInfo attaches a device descriptor to token registrations.
func WithDeviceInfo(device DeviceInfo) Option {
	return func(c *Client) {
		c.device = &device
	}
}

// Client is the public SDK surface: sign-in/out, device-token sync, and
// notification tracking. One Client per process is the expected shape;
// all shared state lives in the Client and its components, not in
// package globals. Construction is cheap and does no network I/O.
type Client struct {
	baseURL    string
	sessionDir string
	logger     *slog.Logger
	httpClient *http.Client
	clock      clockwork.Clock
	extBudget  time.Duration
	device     *DeviceInfo

	store     *CredentialStore
	exec      *Executor
	registry  *TaskRegistry
	tokens    *TokenSync
	tracker   *Tracker
	extension *ExtensionRunner
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	execOpts := []ExecutorOption{WithExecutorLogger(c.logger)}
	if c.httpClient != nil {
		execOpts = append(execOpts, WithExecutorHTTPClient(c.httpClient))
	}

	c.store = NewCredentialStore(c.sessionDir, c.logger)
	c.exec = NewExecutor(execOpts...)
	c.registry = NewTaskRegistry(c.logger)
	c.tokens = NewTokenSync(c.store, c.exec, c.registry, c.baseURL, c.device, c.logger)
	c.tracker = NewTracker(c.exec, c.registry, c.logger)
	c.extension = NewExtensionRunner(c.tracker, c.registry, c.clock, c.extBudget, c.logger)
	return c
}

// SignIn stores the user's credentials and re-checks every captured
// device token for sync. Token syncs run asynchronously; SignIn itself
// does not block on the network.
func (c *Client) SignIn(ctx context.Context, userID, accessToken, clientKey string) error {
	if userID == "" || accessToken == "" {
		return fmt.Errorf("sign in: user id and access token are required")
	}
	c.logger.Debug("Signing in", "userId", userID)
	c.store.SetCredentials(userID, accessToken, clientKey)
	c.tokens.Resync(ctx)
	return nil
}

// SignOut clears the stored credentials. Device-token sync state is
// kept: the engine remembers which user each token was confirmed for,
// so signing in as a different user re-syncs an unchanged token.
// Idempotent.
func (c *Client) SignOut() error {
	c.logger.Debug("Signing out")
	c.store.ClearCredentials()
	return nil
}

// UserID returns the signed-in user's id, or "" when signed out.
func (c *Client) UserID() string {
	sess, ok := c.store.Session()
	if !ok {
		return ""
	}
	return sess.UserID
}

// IsSignedIn reports whether a user is signed in.
func (c *Client) IsSignedIn() bool {
	_, ok := c.store.Session()
	return ok
}

// Session returns the current session, if any.
func (c *Client) Session() (Session, bool) {
	return c.store.Session()
}

// AccessTokenFactory returns the signed-in user's access token. Used by
// the inbox socket.
func (c *Client) AccessTokenFactory(ctx context.Context) (string, error) {
	sess, ok := c.store.Session()
	if !ok {
		return "", ErrNoSession
	}
	return sess.AccessToken, nil
}

// ClientKey returns the session's client key, or "" when absent.
func (c *Client) ClientKey() string {
	sess, _ := c.store.Session()
	return sess.ClientKey
}

// SetAPNSToken records a raw APNs token. The value is hex-encoded for
// the backend, matching how APNs tokens are conventionally transported.
func (c *Client) SetAPNSToken(ctx context.Context, token []byte) {
	c.tokens.SetToken(ctx, ProviderAPNS, fmt.Sprintf("%x", token))
}

// SetFCMToken records an FCM registration token.
func (c *Client) SetFCMToken(ctx context.Context, token string) {
	c.tokens.SetToken(ctx, ProviderFCM, token)
}

// APNSToken returns the latest hex-encoded APNs token, synced or not.
func (c *Client) APNSToken() string {
	return c.tokens.Token(ProviderAPNS)
}

// FCMToken returns the latest FCM token, synced or not.
func (c *Client) FCMToken() string {
	return c.tokens.Token(ProviderFCM)
}

// TrackNotification posts a lifecycle event to the notification's
// tracking URL and waits for the typed result.
func (c *Client) TrackNotification(ctx context.Context, trackingURL string, event EventKind) error {
	return c.tracker.Track(ctx, trackingURL, event)
}

// TrackNotificationAsync posts a lifecycle event fire-and-forget;
// failures are logged, never surfaced.
func (c *Client) TrackNotificationAsync(ctx context.Context, trackingURL string, event EventKind) {
	c.tracker.TrackAsync(ctx, trackingURL, event)
}

// NotificationDelivered reports a foreground delivery and invokes
// present immediately, independent of the network.
func (c *Client) NotificationDelivered(ctx context.Context, payload map[string]any, present func()) {
	c.tracker.Delivered(ctx, payload, present)
}

// NotificationClicked reports a notification tap and invokes onClick
// immediately, independent of the network.
func (c *Client) NotificationClicked(ctx context.Context, payload map[string]any, onClick func()) {
	c.tracker.Clicked(ctx, payload, onClick)
}

// Extension returns the notification-service-extension runner.
func (c *Client) Extension() *ExtensionRunner {
	return c.extension
}

// OnTasksComplete registers a callback fired each time the set of
// in-flight network tasks drains. See TaskRegistry.OnAllComplete for
// the concurrency contract.
func (c *Client) OnTasksComplete(fn func()) {
	c.registry.OnAllComplete(fn)
}
