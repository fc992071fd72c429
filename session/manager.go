package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/blixt/calendar-assistant/dispatch"
)

// Manager hands out the current session and swaps it when the refresh token
// changes. The old session is closed right after the swap, so a request that
// still holds its backend fails its next tool call.
type Manager struct {
	opts Options
	log  zerolog.Logger

	// newSession is replaced in tests.
	newSession func(opts Options, refreshToken string, logger zerolog.Logger) *Session

	mu      sync.Mutex
	token   string
	current *Session
}

func NewManager(opts Options, refreshToken string, logger zerolog.Logger) *Manager {
	m := &Manager{
		opts:       opts,
		log:        logger,
		newSession: New,
		token:      refreshToken,
	}
	m.current = m.newSession(opts, refreshToken, logger)
	return m
}

func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Rotate replaces the session with one using refreshToken. It returns false
// when the token is unchanged.
func (m *Manager) Rotate(refreshToken string) bool {
	refreshToken = strings.TrimSpace(refreshToken)
	m.mu.Lock()
	if refreshToken == "" || refreshToken == m.token {
		m.mu.Unlock()
		return false
	}
	old := m.current
	m.current = m.newSession(m.opts, refreshToken, m.log)
	m.token = refreshToken
	m.mu.Unlock()

	if err := old.Close(); err != nil {
		m.log.Warn().Err(err).Msg("Failed to close previous session")
	}
	m.log.Info().Msg("Refresh token changed, session replaced")
	return true
}

// WatchTokenFile rotates the session whenever the file at path is written.
// The directory is watched rather than the file so that editors and tools
// that replace the file are noticed. It blocks until ctx is done.
func (m *Manager) WatchTokenFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("could not watch %s: %w", path, err)
	}

	// Pick up a token that was written before the watch started.
	m.reloadTokenFile(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				m.reloadTokenFile(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn().Err(err).Msg("Token file watcher error")
		}
	}
}

func (m *Manager) reloadTokenFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn().Err(err).Str("file", path).Msg("Failed to read token file")
		}
		return
	}
	m.Rotate(string(data))
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Close()
}

// Backend returns the backend of the current session.
func (m *Manager) Backend() dispatch.Backend {
	return m.Current().Backend()
}
