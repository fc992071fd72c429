package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blixt/calendar-assistant/mcpclient"
)

func TestNew(t *testing.T) {
	opts := Options{
		Calendar:  mcpclient.Command{Path: "calendar-server", Env: map[string]string{"GOOGLE_CLIENT_ID": "id"}},
		Lookahead: 7 * 24 * time.Hour,
	}
	s := New(opts, "token-1", zerolog.Nop())

	backend := s.Backend()
	require.NotNil(t, backend.Calendar)
	assert.Nil(t, backend.Mail)
	assert.Equal(t, 7*24*time.Hour, backend.Calendar.Lookahead)
	assert.NotContains(t, opts.Calendar.Env, RefreshTokenEnv, "options are not modified")
	assert.NoError(t, s.Close(), "closing an unconnected session is fine")

	opts.Mail = &mcpclient.Command{Path: "gmail-server"}
	s = New(opts, "token-1", zerolog.Nop())
	assert.NotNil(t, s.Backend().Mail)
	assert.NoError(t, s.Close())
}

type recordingFactory struct {
	mu     sync.Mutex
	tokens []string
}

func (f *recordingFactory) newSession(opts Options, refreshToken string, logger zerolog.Logger) *Session {
	f.mu.Lock()
	f.tokens = append(f.tokens, refreshToken)
	f.mu.Unlock()
	return New(opts, refreshToken, logger)
}

func (f *recordingFactory) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func newTestManager(token string) (*Manager, *recordingFactory) {
	f := &recordingFactory{}
	m := &Manager{
		opts:       Options{Calendar: mcpclient.Command{Path: "calendar-server"}},
		log:        zerolog.Nop(),
		newSession: f.newSession,
		token:      token,
	}
	m.current = m.newSession(m.opts, token, m.log)
	return m, f
}

func TestManager_Rotate(t *testing.T) {
	m, f := newTestManager("token-1")
	first := m.Current()

	assert.False(t, m.Rotate("token-1"), "same token")
	assert.False(t, m.Rotate("  "), "empty token")
	assert.Same(t, first, m.Current())

	assert.True(t, m.Rotate("token-2\n"))
	assert.NotSame(t, first, m.Current())
	assert.Equal(t, []string{"token-1", "token-2"}, f.seen())
	assert.NoError(t, m.Close())
}

func TestManager_RotateClosesPreviousBackend(t *testing.T) {
	m := NewManager(Options{Calendar: mcpclient.Command{Path: "calendar-server"}}, "token-1", zerolog.Nop())
	stale := m.Backend()

	require.True(t, m.Rotate("token-2"))
	_, err := stale.Calendar.GetEvent(context.Background(), "e1")
	assert.ErrorContains(t, err, "client is closed")
	assert.NotSame(t, stale.Calendar, m.Backend().Calendar)
	assert.NoError(t, m.Close())
}

func TestManager_WatchTokenFile(t *testing.T) {
	m, f := newTestManager("token-1")
	path := filepath.Join(t.TempDir(), "refresh_token")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.WatchTokenFile(ctx, path) }()

	assert.Eventually(t, func() bool {
		// Rewrite until the watcher is running and picks it up.
		_ = os.WriteFile(path, []byte("token-2\n"), 0o600)
		seen := f.seen()
		return seen[len(seen)-1] == "token-2"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"token-1", "token-2"}, f.seen(), "rewriting the same token does not rotate")
	assert.NoError(t, m.Close())
}
