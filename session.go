package courier

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Session is the locally persisted identity of the signed-in user.
// UserID and AccessToken are always both present; ClientKey is optional
// and only meaningful for inbox access.
type Session struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ClientKey   string `json:"client_key,omitempty"`
}

const credentialsFile = "courier_credentials.json"

// CredentialStore owns the Session: single writer, persisted to disk,
// surviving process restarts. With an empty directory it is memory-only.
// A storage failure degrades to "no session", never to an error.
type CredentialStore struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
	loaded  bool
}

// NewCredentialStore creates a store persisting under dir. An empty dir
// disables persistence.
func NewCredentialStore(dir string, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{dir: dir, logger: logger}
}

// SetCredentials signs the user in, overwriting any prior session.
func (s *CredentialStore) SetCredentials(userID, accessToken, clientKey string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{UserID: userID, AccessToken: accessToken, ClientKey: clientKey}
	s.session = &sess
	s.loaded = true
	s.save(&sess)
	return sess
}

// Session returns the current session, restoring it from disk on first
// access. ok is false when signed out.
func (s *CredentialStore) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.session = s.load()
		s.loaded = true
	}
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// ClearCredentials signs the user out. Idempotent.
func (s *CredentialStore) ClearCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	s.loaded = true

	path := s.credsPath()
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to remove credentials", "error", err)
	}
}

func (s *CredentialStore) credsPath() string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, credentialsFile)
}

func (s *CredentialStore) load() *Session {
	path := s.credsPath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("Failed to read credentials", "error", err)
		}
		return nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Error("Failed to parse credentials, treating as signed out", "error", err)
		return nil
	}
	if sess.UserID == "" || sess.AccessToken == "" {
		return nil
	}
	s.logger.Debug("Resumed credentials", "userId", sess.UserID, "path", path)
	return &sess
}

func (s *CredentialStore) save(sess *Session) {
	path := s.credsPath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.logger.Error("Failed to create session directory", "error", err)
		return
	}
	data, _ := json.MarshalIndent(sess, "", "  ")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		s.logger.Error("Failed to save credentials", "error", err)
	} else {
		s.logger.Debug("Saved credentials", "path", path)
	}
}
