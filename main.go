package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/blixt/calendar-assistant/config"
	"github.com/blixt/calendar-assistant/console"
	"github.com/blixt/calendar-assistant/dispatch"
	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/llm/claude"
	"github.com/blixt/calendar-assistant/llm/google"
	"github.com/blixt/calendar-assistant/llm/openai"
	"github.com/blixt/calendar-assistant/logging"
	"github.com/blixt/calendar-assistant/mcpclient"
	"github.com/blixt/calendar-assistant/server"
	"github.com/blixt/calendar-assistant/session"
)

const usage = `Usage: calendar-assistant [-config file] [serve|chat [message...]]

  serve  run the HTTP server (default)
  chat   talk to the assistant in the terminal
`

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := "serve", flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "chat":
		err = chat(ctx, cfg, logger, strings.Join(args, " "))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Exiting")
	}
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	provider, err := newProvider(cfg.LLM)
	if err != nil {
		return err
	}
	client := llm.NewWithToolbox(provider, dispatch.Tools())
	dispatcher := newDispatcher(cfg, client, logger)

	sessions, err := newSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	srv := server.New(dispatcher, sessions, logger)
	logger.Info().Str("provider", provider.Company()).Str("model", cfg.LLM.Model).Msg("Using completion provider")
	return srv.ListenAndServe(ctx, cfg.Server.Addr())
}

func chat(ctx context.Context, cfg *config.Config, logger zerolog.Logger, input string) error {
	provider, err := newProvider(cfg.LLM)
	if err != nil {
		return err
	}
	client := llm.NewWithToolbox(provider, dispatch.Tools())
	dispatcher := newDispatcher(cfg, client, logger)

	sessions, err := newSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	out := console.New(os.Stdout)

	// The liner package makes the input prompt a lot nicer to use, supporting
	// arrow keys and common keyboard shortcuts.
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	getInput := func() string {
		input, err := line.Prompt("> ")
		if err != nil || input == "exit" {
			return ""
		}
		line.AppendHistory(input)
		return input
	}

	if input == "" {
		out.Reply("What can I do for your calendar?")
		input = getInput()
	}
	for input != "" && ctx.Err() == nil {
		reply, err := dispatcher.Run(ctx, sessions.Backend(), input, out.Observe)
		if err != nil {
			out.Error(err)
		} else {
			out.Reply(reply.Response)
		}
		input = getInput()
	}

	total := client.TotalUsage()
	out.Reply(fmt.Sprintf("%s thanks you for the %d input and %d output tokens. Bye!", client.Company(), total.InputTokens, total.OutputTokens))
	return nil
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "groq", "openai":
		m := openai.New(cfg.Model).WithAPIKey(cfg.APIKey).WithTemperature(cfg.Temperature).WithMaxTokens(cfg.MaxTokens)
		switch {
		case cfg.BaseURL != "":
			m.WithBaseURL(cfg.BaseURL, companyName(cfg.Provider))
		case cfg.Provider == "openai":
			m.WithBaseURL(openai.OpenAIBaseURL, "OpenAI")
		}
		return m, nil
	case "anthropic":
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return claude.New(cfg.Model, opts...).WithTemperature(cfg.Temperature).WithMaxTokens(cfg.MaxTokens), nil
	case "google":
		m := google.New(cfg.Model).WithTemperature(cfg.Temperature).WithMaxOutputTokens(cfg.MaxTokens)
		if cfg.TopP > 0 {
			m.WithTopP(cfg.TopP)
		}
		if cfg.VertexProject != "" {
			return m.WithVertexAI(cfg.APIKey, cfg.VertexProject, cfg.VertexRegion), nil
		}
		if cfg.BaseURL != "" {
			return m.WithGeminiBaseURL(cfg.BaseURL, cfg.APIKey), nil
		}
		return m.WithGeminiAPI(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func companyName(provider string) string {
	switch provider {
	case "groq":
		return "Groq"
	case "openai":
		return "OpenAI"
	default:
		return provider
	}
}

func newDispatcher(cfg *config.Config, client *llm.Client, logger zerolog.Logger) *dispatch.Dispatcher {
	d := dispatch.New(client, logger)
	if cfg.Dispatch.SystemPrompt != "" {
		d.SystemPrompt = cfg.Dispatch.SystemPrompt
	}
	d.DebugFile = cfg.Dispatch.DebugFile
	return d
}

func sessionOptions(cfg *config.Config) session.Options {
	opts := session.Options{
		Calendar: mcpclient.Command{
			Path: cfg.Calendar.Command,
			Args: cfg.Calendar.Args,
			Env: map[string]string{
				"GOOGLE_CLIENT_ID":     cfg.Calendar.ClientID,
				"GOOGLE_CLIENT_SECRET": cfg.Calendar.ClientSecret,
			},
		},
		Lookahead: time.Duration(cfg.Dispatch.LookaheadDays) * 24 * time.Hour,
	}
	if cfg.Gmail.Command != "" {
		opts.Mail = &mcpclient.Command{
			Path: cfg.Gmail.Command,
			Args: cfg.Gmail.Args,
			Env: map[string]string{
				"GMAIL_OAUTH_PATH":       cfg.Gmail.OAuthPath,
				"GMAIL_CREDENTIALS_PATH": cfg.Gmail.CredentialsPath,
			},
		}
	}
	return opts
}

// newSessions starts the tool servers and, when a token file is configured,
// keeps them in sync with the refresh token stored there. Nothing works
// without the tool servers, so failing to start them is an error.
func newSessions(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*session.Manager, error) {
	sessions := session.NewManager(sessionOptions(cfg), cfg.Calendar.RefreshToken, logger)
	if err := sessions.Current().Connect(ctx); err != nil {
		_ = sessions.Close()
		return nil, fmt.Errorf("failed to start tool servers: %w", err)
	}
	if cfg.Calendar.TokenFile != "" {
		go func() {
			if err := sessions.WatchTokenFile(ctx, cfg.Calendar.TokenFile); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("path", cfg.Calendar.TokenFile).Msg("Stopped watching token file")
			}
		}()
	}
	return sessions, nil
}
