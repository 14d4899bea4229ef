package cli

import (
	"context"
	"errors"
	"time"

	"github.com/terraincognita07/us/internal/gate"
)

const statusTimeout = 15 * time.Second

// showScreen evaluates the gate once for the current session and prints where the user lands.
func (app *App) showScreen(ctx context.Context) error {
	if err := app.gate.Recheck(ctx); err != nil && !errors.Is(err, gate.ErrStopped) {
		app.logger.Warn("membership check failed", "error", err)
	}
	app.printSnapshot(app.gate.Snapshot())
	return nil
}

func (app *App) printSnapshot(snapshot gate.Snapshot) {
	if snapshot.State == gate.Checking {
		app.printf("gate.checking")
		return
	}
	screen := snapshot.Screen()
	app.printf("gate.screen", screen.Route, string(screen.Stack))
}

func (app *App) status(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	app.gate.Start()
	snapshot, err := app.gate.Wait(ctx, func(snapshot gate.Snapshot) bool {
		return snapshot.State != gate.Checking
	})
	if err != nil {
		return err
	}
	if snapshot.Session != nil {
		app.printf("auth.signed_in", snapshot.Session.User.Email)
	}
	app.printSnapshot(snapshot)
	return nil
}

// watch prints every gate transition until ctx ends.
func (app *App) watch(ctx context.Context) error {
	app.errorf("gate.watching")
	unsubscribe := app.gate.Subscribe(app.printSnapshot)
	defer unsubscribe()

	app.gate.Start()
	<-ctx.Done()
	return nil
}
