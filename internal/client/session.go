package client

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// SessionStore keeps the access token of the signed-in user.
type SessionStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemorySession holds the token for the life of the process.
type MemorySession struct {
	mu    sync.Mutex
	token string
}

func (s *MemorySession) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemorySession) Save(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemorySession) Clear() error {
	return s.Save("")
}

// FileSession persists the token in a file readable only by its owner.
type FileSession struct {
	Path string
}

func (s FileSession) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "reading session file")
	}
	return strings.TrimSpace(string(data)), nil
}

func (s FileSession) Save(token string) error {
	return errors.Wrap(os.WriteFile(s.Path, []byte(token+"\n"), 0o600), "writing session file")
}

func (s FileSession) Clear() error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}
