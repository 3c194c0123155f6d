package courier

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
)

// tokenState is the per-provider sync state machine. A provider starts
// unknown, becomes captured when the OS delivers a value, and synced
// when the backend confirms that value for the current user. Any new
// OS-delivered value re-enters captured, even from synced.
type tokenState struct {
	current    string // latest OS-delivered value, the desired sync target
	inFlight   string // value currently being synced, "" when idle
	synced     string // last value the backend confirmed
	syncedUser string // user the confirmed value was registered for
	recheck    bool   // an evaluate arrived while a sync was in flight
}

// TokenSync detects device-token changes and pushes them to the
// backend. The desired value is tracked separately from the in-flight
// value: a token observed while a sync is running wins once that sync
// settles (last-value-wins). There is no timer-driven retry; a failed
// sync leaves the provider captured until the next OS callback or
// sign-in re-check.
type TokenSync struct {
	store    *CredentialStore
	exec     *Executor
	registry *TaskRegistry
	baseURL  string
	device   *DeviceInfo
	logger   *slog.Logger

	mu     sync.Mutex
	tokens map[Provider]*tokenState
}

// NewTokenSync creates a TokenSync over the given collaborators.
func NewTokenSync(store *CredentialStore, exec *Executor, registry *TaskRegistry, baseURL string, device *DeviceInfo, logger *slog.Logger) *TokenSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSync{
		store:    store,
		exec:     exec,
		registry: registry,
		baseURL:  baseURL,
		device:   device,
		logger:   logger,
	}
}

// SetToken records an OS-delivered token value and syncs it to the
// backend when a session is active and the value is not already
// confirmed for that user. Without a session the value is kept for the
// sign-in re-check. The network call runs asynchronously.
func (ts *TokenSync) SetToken(ctx context.Context, provider Provider, value string) {
	ts.mu.Lock()
	st := ts.state(provider)
	st.current = value
	ts.evaluateLocked(ctx, provider, st)
	ts.mu.Unlock()
}

// Resync re-checks every provider with a captured value. Called after
// sign-in, since captured values observed while signed out had no
// destination user.
func (ts *TokenSync) Resync(ctx context.Context) {
	ts.mu.Lock()
	for provider, st := range ts.tokens {
		if st.current != "" {
			ts.evaluateLocked(ctx, provider, st)
		}
	}
	ts.mu.Unlock()
}

// Token returns the latest OS-delivered value for provider, synced or not.
func (ts *TokenSync) Token(provider Provider) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if st, ok := ts.tokens[provider]; ok {
		return st.current
	}
	return ""
}

// state returns the provider's state, creating it if needed. Callers hold mu.
func (ts *TokenSync) state(provider Provider) *tokenState {
	if ts.tokens == nil {
		ts.tokens = make(map[Provider]*tokenState)
	}
	st, ok := ts.tokens[provider]
	if !ok {
		st = &tokenState{}
		ts.tokens[provider] = st
	}
	return st
}

// evaluateLocked decides whether the provider's current value needs a
// sync and starts one. Callers hold mu. At most one sync per provider
// is in flight; an evaluate deferred by an in-flight sync is remembered
// and repeated when it settles, so a sign-in as a different user during
// a sync is not lost.
func (ts *TokenSync) evaluateLocked(ctx context.Context, provider Provider, st *tokenState) {
	if st.inFlight != "" {
		st.recheck = true
		return
	}

	sess, ok := ts.store.Session()
	if !ok {
		ts.logger.Debug("Token captured without session, deferring sync", "provider", provider)
		return
	}
	if st.current == st.synced && sess.UserID == st.syncedUser {
		ts.logger.Debug("Token already synced, skipping", "provider", provider)
		return
	}

	value := st.current
	st.inFlight = value
	ts.logger.Debug("Syncing device token", "provider", provider, "userId", sess.UserID, "token_prefix", truncate(value, 12))

	ts.registry.Register(ctx, func(ctx context.Context) {
		err := ts.putToken(ctx, sess, provider, value)
		ts.settle(ctx, provider, value, sess.UserID, err)
	})
}

// settle records the outcome of a sync and re-evaluates when a newer
// value arrived while it ran, when an evaluate was deferred behind it,
// or when it succeeded — the suppression check in evaluateLocked stops
// the success case from looping, and catches a user change that
// happened mid-flight. A failed sync of a value that is still current
// is not retried from here.
func (ts *TokenSync) settle(ctx context.Context, provider Provider, value, userID string, err error) {
	ts.mu.Lock()
	st := ts.state(provider)
	st.inFlight = ""
	again := st.current != value || st.recheck
	st.recheck = false
	if err != nil {
		ts.logger.Error("Device token sync failed", "provider", provider, "error", err)
	} else {
		st.synced = value
		st.syncedUser = userID
		again = true
		ts.logger.Debug("Device token synced", "provider", provider)
	}
	if again {
		ts.evaluateLocked(ctx, provider, st)
	}
	ts.mu.Unlock()
}

func (ts *TokenSync) putToken(ctx context.Context, sess Session, provider Provider, value string) error {
	u := ts.baseURL + "/users/" + url.PathEscape(sess.UserID) + "/tokens/" + url.PathEscape(value)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+sess.AccessToken)

	_, _, err := ts.exec.Execute(ctx, Request{
		Method:  "PUT",
		URL:     u,
		Headers: headers,
		Body:    putTokenBody{ProviderKey: provider, Device: ts.device},
	})
	return err
}
