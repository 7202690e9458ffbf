// Package session persists the two credential entries the client keeps
// between runs: the opaque bearer token and the user profile. They live as
// two separate files with no schema versioning; last writer wins.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"audiencedeck/internal/api"
	"audiencedeck/internal/logging"
)

const (
	tokenFile   = "token"
	profileFile = "profile.json"
)

// Store holds the session credential on disk and caches it for in-process
// readers. It satisfies api.Credentials.
type Store struct {
	dir string

	mu    sync.RWMutex
	token string
	user  api.User
	hasU  bool
}

// NewStore opens (and creates if needed) the credential directory and loads
// any persisted entries.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("credentials directory required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	s := &Store{dir: dir}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload reads both entries from disk, tolerating absence.
func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.user = api.User{}
	s.hasU = false

	data, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	switch {
	case err == nil:
		s.token = strings.TrimSpace(string(data))
	case !os.IsNotExist(err):
		return err
	}

	data, err = os.ReadFile(filepath.Join(s.dir, profileFile))
	switch {
	case err == nil:
		var u api.User
		if jsonErr := json.Unmarshal(data, &u); jsonErr != nil {
			// A corrupt profile is treated as absent, not fatal.
			logging.Session("discarding unreadable profile: %v", jsonErr)
			return nil
		}
		s.user = u
		s.hasU = true
	case !os.IsNotExist(err):
		return err
	}
	return nil
}

// Token returns the stored bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the stored profile if present.
func (s *Store) User() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.hasU
}

// Save persists a fresh session (both entries).
func (s *Store) Save(sess api.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.dir, tokenFile), []byte(sess.Token+"\n"), 0600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess.User, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, profileFile), data, 0600); err != nil {
		return err
	}

	s.token = sess.Token
	s.user = sess.User
	s.hasU = true
	logging.Session("session saved for %s", sess.User.Email)
	return nil
}

// Clear removes both credential entries. Called on logout and on any 401
// response. Removing entries that are already gone is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, name := range []string{tokenFile, profileFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.token = ""
	s.user = api.User{}
	s.hasU = false
	logging.Session("credentials cleared")
	return firstErr
}

// Dir returns the credential directory path.
func (s *Store) Dir() string {
	return s.dir
}
