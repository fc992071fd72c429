// Package session owns the tool server subprocesses. A Session is bound to
// one refresh token; the Manager replaces it when the token changes.
package session

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/rs/zerolog"

	"github.com/blixt/calendar-assistant/calendar"
	"github.com/blixt/calendar-assistant/dispatch"
	"github.com/blixt/calendar-assistant/gmail"
	"github.com/blixt/calendar-assistant/mcpclient"
)

const RefreshTokenEnv = "GOOGLE_REFRESH_TOKEN"

type Options struct {
	Calendar mcpclient.Command
	// Mail is nil when no email server is configured.
	Mail *mcpclient.Command
	// Lookahead bounds event searches by description. Zero means the default.
	Lookahead time.Duration
}

type Session struct {
	calendarMCP *mcpclient.Client
	mailMCP     *mcpclient.Client
	backend     dispatch.Backend
}

func New(opts Options, refreshToken string, logger zerolog.Logger) *Session {
	calCommand := opts.Calendar
	calCommand.Env = maps.Clone(opts.Calendar.Env)
	if calCommand.Env == nil {
		calCommand.Env = map[string]string{}
	}
	calCommand.Env[RefreshTokenEnv] = refreshToken

	s := &Session{calendarMCP: mcpclient.New("calendar", calCommand, logger)}
	s.backend.Calendar = calendar.New(s.calendarMCP, logger)
	if opts.Lookahead > 0 {
		s.backend.Calendar.Lookahead = opts.Lookahead
	}
	if opts.Mail != nil {
		s.mailMCP = mcpclient.New("gmail", *opts.Mail, logger)
		s.backend.Mail = gmail.New(s.mailMCP)
	}
	return s
}

// Connect starts the subprocesses up front instead of on first use.
func (s *Session) Connect(ctx context.Context) error {
	err := s.calendarMCP.Connect(ctx)
	if s.mailMCP != nil {
		err = errors.Join(err, s.mailMCP.Connect(ctx))
	}
	return err
}

func (s *Session) Backend() dispatch.Backend {
	return s.backend
}

func (s *Session) Close() error {
	err := s.calendarMCP.Close()
	if s.mailMCP != nil {
		err = errors.Join(err, s.mailMCP.Close())
	}
	return err
}
