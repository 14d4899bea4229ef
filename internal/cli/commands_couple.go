package cli

import (
	"context"
	"strings"
)

func (app *App) couple(ctx context.Context, args []string) error {
	if len(args) == 0 {
		app.usage()
		return errUsage
	}

	switch args[0] {
	case "create":
		couple, err := app.couples.Create(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		app.printf("couple.created", couple.JoinCode)
		app.printSnapshot(app.gate.Snapshot())
		return nil
	case "join":
		couple, err := app.couples.Join(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		app.printf("couple.joined", couple.Name)
		app.printSnapshot(app.gate.Snapshot())
		return nil
	case "show":
		overview, err := app.couples.Current(ctx)
		if err != nil {
			return err
		}
		app.printf("couple.summary", overview.Couple.Name, overview.Couple.JoinCode, len(overview.Members))
		for _, member := range overview.Members {
			app.printf("couple.member_line", member.UserID, member.Role)
		}
		return nil
	default:
		app.errorf("cli.unknown_command", "couple "+args[0])
		app.usage()
		return errUsage
	}
}
