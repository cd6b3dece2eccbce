// mhchat terminal chat client
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/Hemant07J07/mhchat/internal/chat"
	"github.com/Hemant07J07/mhchat/internal/config"
	"github.com/Hemant07J07/mhchat/internal/gateway"
	"github.com/Hemant07J07/mhchat/internal/store"
	"github.com/Hemant07J07/mhchat/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mhchat:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	var (
		conversationID = flag.String("conv", "", "conversation id to join (required)")
		accessToken    = flag.String("token", "", "access token; overrides the token file")
		apiBase        = flag.String("api", cfg.APIBaseURL, "backend REST base URL")
		wsBase         = flag.String("ws", cfg.WSBaseURL, "backend WebSocket base URL")
		gatewayBase    = flag.String("gateway", "", "mediation gateway base URL; empty runs without assistant replies")
		dbPath         = flag.String("db", cfg.DBPath, "transcript database path")
		tokenFile      = flag.String("token-file", cfg.TokenFile, "stored credential file")
		logFile        = flag.String("log", "", "debug log path; empty discards logs")
	)
	flag.Parse()

	if *conversationID == "" {
		flag.Usage()
		return fmt.Errorf("-conv is required")
	}

	logger, closeLog, err := newLogger(*logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	tokens := tokenSource(*accessToken, *tokenFile)

	archive, err := store.NewSQLite(*dbPath)
	if err != nil {
		return fmt.Errorf("open transcript archive: %w", err)
	}
	defer func() { _ = archive.Close() }()

	session := chat.NewSession(chat.SessionConfig{
		BaseURL:        *wsBase,
		Tokens:         tokens,
		ReconnectDelay: cfg.ReconnectDelay,
		PingOnOpen:     true,
		Logger:         logger,
	})
	defer session.Close()

	var mediator *gateway.Client
	if *gatewayBase != "" {
		mediator = gateway.NewClient(*gatewayBase)
	}

	app := newApp(appConfig{
		conversationID: *conversationID,
		historyLimit:   cfg.HistoryLimit,
		session:        session,
		rest:           chat.NewClient(*apiBase, tokens, logger),
		mediator:       mediator,
		archive:        archive,
		logger:         logger,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// newLogger writes structured logs to path, or discards them so the
// alternate screen stays clean.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}

// tokenSource prefers an explicitly supplied token, then the stored
// credential file under its usual keys.
func tokenSource(explicit, file string) token.Source {
	if explicit != "" {
		return token.Static(explicit)
	}
	return token.Chain{Store: token.NewFileStore(file)}
}
