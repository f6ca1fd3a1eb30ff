// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and shared command state for lgchat.
//
// Command: lgchat
// Short:   Terminal chat client for a LangGraph chat backend
//
// Global Flags:
//   --config PATH      Config file (default ~/.langgraph-chat/config.toml)
//   --api-url URL      Backend address (overrides config and LGCHAT_API_URL)
//   --log-level LEVEL  Log level; logs go to stderr when set
//   --ephemeral        Keep credentials in memory only
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/account"
	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/config"
	"github.com/jeranaias/lgchat/internal/logging"
	"github.com/jeranaias/lgchat/internal/tokenstore"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// setupAnnotation tells PersistentPreRunE how much state a command needs.
const (
	setupAnnotation = "lgchat/setup"
	setupNone       = "none"   // nothing (version)
	setupConfig     = "config" // configuration only
	setupTerminal   = "tui"    // full state, logs always go to a file
)

// errNotSignedIn is returned by commands that need a user token.
var errNotSignedIn = fmt.Errorf("%w: run 'lgchat login' first", api.ErrNotSignedIn)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries the state shared by all commands. It is filled in by the root
// command's PersistentPreRunE and released by execute.
type app struct {
	// Global flags
	configPath string
	apiURL     string
	logLevel   string
	ephemeral  bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	lines  *bufio.Reader

	cfg     *config.Config
	logger  *logging.Logger
	store   tokenstore.Store
	account *account.Account

	// Terminal hooks, replaced in tests.
	readPassword  func(prompt string) (string, error)
	newLineReader func() (lineReader, error)
	interrupts    func() (<-chan os.Signal, func())
	isTerminal    func() bool
	runTUI        func(ctx context.Context, a *app) error
}

func newApp() *app {
	a := &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	a.readPassword = a.terminalPassword
	a.newLineReader = newHistoryLiner
	a.interrupts = notifyInterrupts
	a.isTerminal = IsStdoutTTY
	a.runTUI = runTUI
	return a
}

// Execute runs lgchat with the process arguments and returns the exit code.
func Execute(ctx context.Context) int {
	return newApp().execute(ctx, os.Args[1:])
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		DisplayError(a.errOut, err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lgchat",
		Short: "Terminal chat client for a LangGraph chat backend",
		Long: `lgchat talks to a LangGraph chat backend: it signs you in, manages
chat sessions and streams replies as they are generated.

Run without a command to open the terminal UI.`,
		Example: `  lgchat login --email ada@example.com
  lgchat ask "What is a state machine?"
  lgchat chat --session 3f2a
  lgchat sessions list`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{setupAnnotation: setupTerminal},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context(), a)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.langgraph-chat/config.toml)")
	flags.StringVar(&a.apiURL, "api-url", "", "backend address, overrides config and LGCHAT_API_URL")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); logs go to stderr when set")
	flags.BoolVar(&a.ephemeral, "ephemeral", false, "keep credentials in memory only")

	root.AddCommand(
		newTUICommand(a),
		newRegisterCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newSessionsCommand(a),
		newChatCommand(a),
		newAskCommand(a),
		newHistoryCommand(a),
		newClearCommand(a),
		newConfigCommand(a),
		newDoctorCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration, logging, the token store and the account, as
// far as cmd needs them.
func (a *app) setup(cmd *cobra.Command) error {
	level := cmd.Annotations[setupAnnotation]
	if level == setupNone {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if level == setupConfig {
		return nil
	}

	logCfg := cfg.Log
	if logCfg.File == "" && (a.logLevel == "" || level == setupTerminal) {
		if logCfg.File, err = cfg.LogPath(); err != nil {
			return err
		}
	}
	logger, err := logging.Setup(logCfg, a.errOut)
	if err != nil {
		return err
	}
	a.logger = logger

	backend := cfg.Storage.Backend
	if a.ephemeral {
		backend = tokenstore.BackendMemory
	}
	path, err := cfg.TokenPath()
	if err != nil {
		return err
	}
	store, err := tokenstore.Open(backend, path)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	a.store = store

	client := newClient(cfg, logger.With().Str("component", "api").Logger())
	a.account = account.New(client, store, logger.Logger)
	if _, err := a.account.Restore(); err != nil {
		return err
	}

	logger.Debug().
		Str("command", cmd.CommandPath()).
		Str("api", cfg.API.BaseURL).
		Str("storage", backend).
		Msg("starting")
	return nil
}

// newClient creates the backend client described by cfg.
func newClient(cfg *config.Config, log zerolog.Logger) *api.Client {
	return api.New(cfg.API.BaseURL,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSecs)*time.Second),
		api.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
		api.WithUserAgent(cfg.API.UserAgent+"/"+Version),
		api.WithLogger(log),
	)
}

// loadConfig reads the config file and applies flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if a.apiURL != "" {
		cfg.API.BaseURL = strings.TrimSuffix(a.apiURL, "/")
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configFile returns the file config commands read and write.
func (a *app) configFile() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.PathTOML()
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn().Err(err).Msg("closing token store")
		}
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Close()
		a.logger = nil
	}
}

func (a *app) requireSignIn() error {
	if !a.account.SignedIn() {
		return errNotSignedIn
	}
	return nil
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

// readLine reads one line from the command's input.
func (a *app) readLine(prompt string) (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewReader(a.in)
	}
	if prompt != "" {
		fmt.Fprint(a.errOut, prompt)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// notifyInterrupts relays Ctrl+C while a reply is streaming.
func notifyInterrupts() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}
