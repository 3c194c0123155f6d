package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/philippseith/signalr"

	courier "github.com/trycourier/courier-push-go"
)

// DefaultHubBase is the default realtime hub base URL.
const DefaultHubBase = "https://realtime.courier.com"

// Credentials supplies the socket's auth context. *courier.Client
// satisfies it.
type Credentials interface {
	AccessTokenFactory(ctx context.Context) (string, error)
	ClientKey() string
	UserID() string
}

// SocketOption configures Socket.
type SocketOption func(*Socket)

// WithHubBase sets the realtime hub base URL.
func WithHubBase(base string) SocketOption {
	return func(s *Socket) {
		s.hubBase = base
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) SocketOption {
	return func(s *Socket) {
		s.logger = logger
	}
}

// Socket is the realtime client for inbox events.
type Socket struct {
	creds   Credentials
	hubBase string
	client  signalr.Client
	exec    *courier.Executor
	logger  *slog.Logger

	onMessage func(Message)
	onEvent   func(MessageEvent)
	onOpen    func()
	onClose   func()
	onError   func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSocket creates a new inbox socket.
func NewSocket(creds Credentials, opts ...SocketOption) *Socket {
	s := &Socket{
		creds:   creds,
		hubBase: DefaultHubBase,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.exec = courier.NewExecutor(courier.WithExecutorLogger(s.logger))
	return s
}

// Handler registration. Must be called before Start().

func (s *Socket) OnMessage(handler func(Message))    { s.onMessage = handler }
func (s *Socket) OnEvent(handler func(MessageEvent)) { s.onEvent = handler }
func (s *Socket) OnOpen(handler func())              { s.onOpen = handler }
func (s *Socket) OnClose(handler func())             { s.onClose = handler }
func (s *Socket) OnError(handler func(error))        { s.onError = handler }

// Start builds the hub connection and waits until it is established.
func (s *Socket) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	receiver := &inboxReceiver{s: s}

	hubURL := s.hubBase + "/inbox"
	s.logger.Debug("Building inbox hub", "url", hubURL)

	client, err := signalr.NewClient(ctx,
		signalr.WithConnector(func() (signalr.Connection, error) {
			return s.connect(ctx, hubURL)
		}),
		signalr.WithReceiver(receiver),
		signalr.Logger(&slogAdapter{logger: s.logger}, true),
		signalr.KeepAliveInterval(15*time.Second),
		signalr.TimeoutInterval(30*time.Second),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("creating inbox client: %w", err)
	}

	s.client = client

	// Start is non-blocking — wait for the actual connection.
	client.Start()

	waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
	defer waitCancel()
	if err := <-client.WaitForState(waitCtx, signalr.ClientConnected); err != nil {
		cancel()
		return fmt.Errorf("waiting for inbox connection: %w", err)
	}

	s.logger.Debug("Inbox socket connected")
	if s.onOpen != nil {
		s.onOpen()
	}
	return nil
}

// connect performs the negotiate handshake and opens the WebSocket.
func (s *Socket) connect(ctx context.Context, hubURL string) (signalr.Connection, error) {
	token, err := s.creds.AccessTokenFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	if key := s.creds.ClientKey(); key != "" {
		headers.Set("X-Courier-Client-Key", key)
	}
	headers.Set("X-Courier-User-Id", s.creds.UserID())

	negotiateURL := hubURL + "/negotiate"
	s.logger.Debug("Inbox negotiate", "url", negotiateURL)

	var negResp struct {
		ConnectionID string `json:"connectionId"`
		URL          string `json:"url"`
		AccessToken  string `json:"accessToken"`
	}
	if err := s.exec.ExecuteJSON(ctx, courier.Request{
		Method:  "POST",
		URL:     negotiateURL,
		Headers: headers.Clone(),
	}, &negResp); err != nil {
		return nil, fmt.Errorf("negotiate: %w", err)
	}

	// A managed hub returns a redirect URL and a hub-issued token;
	// a self-hosted hub returns a connectionId on the same host.
	var wsURL *url.URL
	if negResp.URL != "" && negResp.AccessToken != "" {
		wsURL, err = url.Parse(negResp.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redirect URL: %w", err)
		}
		headers.Set("Authorization", "Bearer "+negResp.AccessToken)
	} else {
		wsURL, _ = url.Parse(hubURL)
		q := wsURL.Query()
		q.Set("id", negResp.ConnectionID)
		wsURL.RawQuery = q.Encode()
	}

	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else if wsURL.Scheme == "http" {
		wsURL.Scheme = "ws"
	}

	connID := negResp.ConnectionID
	if connID == "" {
		connID = "managed"
	}

	s.logger.Debug("Opening inbox WebSocket", "url", wsURL.String())
	conn, err := signalr.NewWebSocketConnection(ctx, wsURL, connID, headers)
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial: %w", err)
	}
	return conn, nil
}

// Stop disconnects the socket.
func (s *Socket) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.logger.Debug("Inbox socket disconnected")
	if s.onClose != nil {
		s.onClose()
	}
}

// MarkRead marks one message read on the server.
func (s *Socket) MarkRead(messageID string) {
	if s.client != nil {
		s.logger.Debug("Inbox send", "method", "MarkRead", "messageId", messageID)
		s.client.Send("MarkRead", messageID)
	}
}

// MarkAllRead marks every message read on the server.
func (s *Socket) MarkAllRead() {
	if s.client != nil {
		s.logger.Debug("Inbox send", "method", "MarkAllRead")
		s.client.Send("MarkAllRead")
	}
}

// inboxReceiver implements the hub's receiver interface. Method names
// match the hub method names exactly.
type inboxReceiver struct {
	s *Socket
}

func (r *inboxReceiver) ReceiveInboxMessage(raw json.RawMessage) {
	r.s.logger.Debug("ReceiveInboxMessage raw", "json", truncate(string(raw), 2000))
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.s.logger.Error("Error parsing ReceiveInboxMessage", "error", err)
		if r.s.onError != nil {
			r.s.onError(fmt.Errorf("parsing inbox message: %w", err))
		}
		return
	}
	if r.s.onMessage != nil {
		r.s.onMessage(msg)
	}
}

func (r *inboxReceiver) ReceiveMessageEvent(raw json.RawMessage) {
	r.s.logger.Debug("ReceiveMessageEvent raw", "json", truncate(string(raw), 2000))
	var ev MessageEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		r.s.logger.Error("Error parsing ReceiveMessageEvent", "error", err)
		if r.s.onError != nil {
			r.s.onError(fmt.Errorf("parsing inbox event: %w", err))
		}
		return
	}
	if r.s.onEvent != nil {
		r.s.onEvent(ev)
	}
}

// slogAdapter adapts slog.Logger to the SignalR library's go-kit/log
// interface, which emits flat key-value pairs.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Log(keyVals ...interface{}) error {
	if len(keyVals) == 0 {
		return nil
	}
	// Skip keys slog already manages (level, ts, caller).
	var attrs []any
	for i := 0; i+1 < len(keyVals); i += 2 {
		key := fmt.Sprint(keyVals[i])
		if key == "level" || key == "ts" || key == "caller" {
			continue
		}
		attrs = append(attrs, key, keyVals[i+1])
	}
	a.logger.Debug("signalr", attrs...)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
