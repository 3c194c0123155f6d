package courier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenBackend records token sync requests and can block selected
// token values until released.
type tokenBackend struct {
	mu       sync.Mutex
	requests []recordedTokenPut
	status   int
	block    map[string]chan struct{} // token value -> release gate
	received chan string              // token value, sent when the request arrives
}

type recordedTokenPut struct {
	Path        string
	Method      string
	Auth        string
	ProviderKey Provider
}

func newTokenBackend() *tokenBackend {
	return &tokenBackend{
		status:   http.StatusNoContent,
		block:    make(map[string]chan struct{}),
		received: make(chan string, 16),
	}
}

func (b *tokenBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body putTokenBody
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.requests = append(b.requests, recordedTokenPut{
			Path:        r.URL.Path,
			Method:      r.Method,
			Auth:        r.Header.Get("Authorization"),
			ProviderKey: body.ProviderKey,
		})
		token := path.Base(r.URL.Path)
		gate := b.block[token]
		status := b.status
		b.mu.Unlock()

		b.received <- token
		if gate != nil {
			<-gate
		}
		w.WriteHeader(status)
	})
}

func (b *tokenBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *tokenBackend) request(i int) recordedTokenPut {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[i]
}

func newTokenSyncForTest(t *testing.T, baseURL string) (*TokenSync, *CredentialStore, chan struct{}) {
	t.Helper()
	store := NewCredentialStore("", nil)
	reg := NewTaskRegistry(nil)
	drained := make(chan struct{}, 8)
	reg.OnAllComplete(func() { drained <- struct{}{} })
	ts := NewTokenSync(store, NewExecutor(), reg, baseURL, nil, nil)
	return ts, store, drained
}

func waitSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for " + what)
	}
}

func TestTokenSync_NoSessionDefers(t *testing.T) {
	backend := newTokenBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, _, _ := newTokenSyncForTest(t, server.URL)
	ts.SetToken(context.Background(), ProviderAPNS, "abc")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, backend.count(), "no session means no network call")
	assert.Equal(t, "abc", ts.Token(ProviderAPNS), "the value is kept for the sign-in re-check")
}

func TestTokenSync_SignInTriggersDeferredSync(t *testing.T) {
	backend := newTokenBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	ts.SetToken(context.Background(), ProviderAPNS, "abc")
	require.Equal(t, 0, backend.count())

	store.SetCredentials("u1", "t1", "")
	ts.Resync(context.Background())
	waitSignal(t, drained, "token sync")

	require.Equal(t, 1, backend.count())
	req := backend.request(0)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "/users/u1/tokens/abc", req.Path)
	assert.Equal(t, "Bearer t1", req.Auth)
	assert.Equal(t, ProviderAPNS, req.ProviderKey)
}

func TestTokenSync_SuppressesUnchangedValue(t *testing.T) {
	backend := newTokenBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderFCM, "fcm-token")
	waitSignal(t, drained, "first sync")
	require.Equal(t, 1, backend.count())

	ts.SetToken(context.Background(), ProviderFCM, "fcm-token")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, backend.count(), "an already-synced value must not be re-sent")
}

func TestTokenSync_FailureStaysEligibleForRetry(t *testing.T) {
	backend := newTokenBackend()
	backend.status = http.StatusInternalServerError
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderFCM, "fcm-token")
	waitSignal(t, drained, "failed sync")
	require.Equal(t, 1, backend.count())

	// No timer-driven retry happens on its own.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, backend.count())

	// The next OS callback with the same value retries, because the
	// value was never confirmed.
	backend.mu.Lock()
	backend.status = http.StatusNoContent
	backend.mu.Unlock()

	ts.SetToken(context.Background(), ProviderFCM, "fcm-token")
	waitSignal(t, drained, "retried sync")
	assert.Equal(t, 2, backend.count())
}

func TestTokenSync_LastValueWins(t *testing.T) {
	backend := newTokenBackend()
	release := make(chan struct{})
	backend.block["v1"] = release
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderFCM, "v1")

	// Wait until the v1 sync is in flight, then supersede it.
	select {
	case tok := <-backend.received:
		require.Equal(t, "v1", tok)
	case <-time.After(3 * time.Second):
		t.Fatal("v1 sync never reached the backend")
	}
	ts.SetToken(context.Background(), ProviderFCM, "v2")

	close(release)
	waitSignal(t, drained, "both syncs settling")

	require.Equal(t, 2, backend.count(), "v2 must be synced after v1 settles")
	assert.Equal(t, "/users/u1/tokens/v1", backend.request(0).Path)
	assert.Equal(t, "/users/u1/tokens/v2", backend.request(1).Path)

	ts.mu.Lock()
	assert.Equal(t, "v2", ts.tokens[ProviderFCM].synced, "final synced state converges to the newest value")
	ts.mu.Unlock()
}

func TestTokenSync_DifferentUserForcesResync(t *testing.T) {
	backend := newTokenBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderAPNS, "abc")
	waitSignal(t, drained, "first user sync")
	require.Equal(t, 1, backend.count())

	store.ClearCredentials()
	store.SetCredentials("u2", "t2", "")
	ts.Resync(context.Background())
	waitSignal(t, drained, "second user sync")

	require.Equal(t, 2, backend.count(), "the backend association is per-user")
	assert.Equal(t, "/users/u2/tokens/abc", backend.request(1).Path)
}

func TestTokenSync_SignInDuringInFlightSyncReSyncs(t *testing.T) {
	backend := newTokenBackend()
	release := make(chan struct{})
	backend.block["abc"] = release
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderAPNS, "abc")

	// Wait until the u1 sync is in flight, then switch users under it.
	select {
	case tok := <-backend.received:
		require.Equal(t, "abc", tok)
	case <-time.After(3 * time.Second):
		t.Fatal("u1 sync never reached the backend")
	}
	store.ClearCredentials()
	store.SetCredentials("u2", "t2", "")
	ts.Resync(context.Background())

	close(release)
	waitSignal(t, drained, "both syncs settling")

	require.Equal(t, 2, backend.count(), "the new user's sync must follow the old one")
	assert.Equal(t, "/users/u1/tokens/abc", backend.request(0).Path)
	assert.Equal(t, "/users/u2/tokens/abc", backend.request(1).Path)
	assert.Equal(t, "Bearer t2", backend.request(1).Auth)

	ts.mu.Lock()
	assert.Equal(t, "u2", ts.tokens[ProviderAPNS].syncedUser)
	ts.mu.Unlock()
}

func TestTokenSync_ResyncDuringFailedSyncIsNotLost(t *testing.T) {
	backend := newTokenBackend()
	backend.status = http.StatusInternalServerError
	release := make(chan struct{})
	backend.block["abc"] = release
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderAPNS, "abc")
	select {
	case <-backend.received:
	case <-time.After(3 * time.Second):
		t.Fatal("u1 sync never reached the backend")
	}
	store.ClearCredentials()
	store.SetCredentials("u2", "t2", "")
	ts.Resync(context.Background())

	close(release)
	waitSignal(t, drained, "both syncs settling")

	// Even though the u1 sync failed, the sign-in re-check deferred
	// behind it still runs for u2. The failed u2 attempt is then left
	// for the next OS callback or sign-in, not hot-looped.
	require.Equal(t, 2, backend.count())
	assert.Equal(t, "/users/u2/tokens/abc", backend.request(1).Path)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, backend.count(), "a failed sync of a still-current value is not retried on its own")
}

func TestTokenSync_SameUserReSignInSuppressed(t *testing.T) {
	backend := newTokenBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ts, store, drained := newTokenSyncForTest(t, server.URL)
	store.SetCredentials("u1", "t1", "")

	ts.SetToken(context.Background(), ProviderAPNS, "abc")
	waitSignal(t, drained, "initial sync")
	require.Equal(t, 1, backend.count())

	store.ClearCredentials()
	store.SetCredentials("u1", "t1", "")
	ts.Resync(context.Background())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, backend.count(), "same user, same token: nothing to re-sync")
}
