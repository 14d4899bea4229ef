// Package cli implements the us command line client and the usd operator commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/gate"
	"github.com/terraincognita07/us/internal/i18n"
	"github.com/terraincognita07/us/internal/services"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

type Environment struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type App struct {
	messages *i18n.Manager
	language string
	logger   *slog.Logger

	gate    *gate.Gate
	auth    *services.AuthService
	couples *services.CoupleService
	moods   *services.MoodService

	prompt *prompter
	outMu  sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

func NewApp(client backend.Client, messages *i18n.Manager, language string, env Environment) *App {
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}

	logger := slog.Default()
	rootGate := gate.New(client, services.NewMembershipService(client), gate.Options{Logger: logger})
	return &App{
		messages: messages,
		language: messages.NormalizeLanguage(language),
		logger:   logger,
		gate:     rootGate,
		auth:     services.NewAuthService(client),
		couples:  services.NewCoupleService(client, rootGate),
		moods:    services.NewMoodService(client),
		prompt:   newPrompter(env.Stdin, env.Stdout),
		stdout:   env.Stdout,
		stderr:   env.Stderr,
	}
}

// Run executes one command and returns the process exit code.
func (app *App) Run(ctx context.Context, args []string) int {
	defer app.gate.Stop()

	if len(args) == 0 {
		app.usage()
		return exitUsage
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "signup":
		err = app.signUp(ctx, rest)
	case "signin":
		err = app.signIn(ctx, rest)
	case "signout":
		err = app.signOut(ctx)
	case "forgot-password":
		err = app.forgotPassword(ctx, rest)
	case "reset-password":
		err = app.resetPassword(ctx, rest)
	case "status":
		err = app.status(ctx)
	case "watch":
		err = app.watch(ctx)
	case "couple":
		err = app.couple(ctx, rest)
	case "mood":
		err = app.mood(ctx, rest)
	case "features":
		app.features()
	case "help", "-h", "--help":
		app.usage()
	default:
		app.errorf("cli.unknown_command", command)
		app.usage()
		return exitUsage
	}

	if err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		app.renderError(err)
		return exitError
	}
	return exitOK
}

func (app *App) flagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(app.stderr)
	return flags
}

func (app *App) usage() {
	app.errorf("cli.usage")
}

func (app *App) t(key string) string {
	return app.messages.Translate(app.language, key)
}

func (app *App) printf(key string, args ...any) {
	app.outMu.Lock()
	defer app.outMu.Unlock()
	fmt.Fprintln(app.stdout, app.messages.Translatef(app.language, key, args...))
}

func (app *App) errorf(key string, args ...any) {
	app.outMu.Lock()
	defer app.outMu.Unlock()
	fmt.Fprintln(app.stderr, app.messages.Translatef(app.language, key, args...))
}

// renderError prints the message a service error maps to. Causes go to the log only.
func (app *App) renderError(err error) {
	var serviceErr *services.Error
	if !errors.As(err, &serviceErr) {
		app.logger.Error("command failed", "error", err)
		app.errorf("error.unexpected")
		return
	}

	lines := []string{app.t(serviceErr.Key)}
	for _, detail := range serviceErr.Details {
		lines = append(lines, "  - "+app.t(detail))
	}
	app.outMu.Lock()
	fmt.Fprintln(app.stderr, strings.Join(lines, "\n"))
	app.outMu.Unlock()

	if serviceErr.Err != nil {
		app.logger.Debug("command failed", "kind", string(serviceErr.Kind), "key", serviceErr.Key, "error", serviceErr.Err)
	}
}

func (app *App) valueOrPrompt(value string, promptKey string) (string, error) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed, nil
	}
	return app.prompt.line(app.t(promptKey))
}
