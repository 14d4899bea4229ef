package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/terraincognita07/us/internal/models"
)

const moodTimeLayout = "2006-01-02 15:04"

func (app *App) mood(ctx context.Context, args []string) error {
	if len(args) == 0 {
		app.usage()
		return errUsage
	}

	switch args[0] {
	case "log":
		if len(args) < 2 {
			app.usage()
			return errUsage
		}
		entry, err := app.moods.Log(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		app.printf("mood.saved", moodEmoji(entry.Mood), entry.Mood)
		return nil
	case "list":
		flags := app.flagSet("mood list")
		limit := flags.Int("limit", 20, "number of entries to show")
		if err := flags.Parse(args[1:]); err != nil {
			return errUsage
		}
		entries, err := app.moods.Recent(ctx, *limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			app.printf("mood.empty")
			return nil
		}
		for _, entry := range entries {
			label := strings.TrimSpace(moodEmoji(entry.Mood) + " " + entry.Mood)
			app.printf("mood.entry", entry.CreatedAt.Local().Format(moodTimeLayout), label, entry.Note)
		}
		return nil
	default:
		app.errorf("cli.unknown_command", "mood "+args[0])
		app.usage()
		return errUsage
	}
}

func (app *App) features() {
	app.printf("features.header")
	app.outMu.Lock()
	defer app.outMu.Unlock()
	for _, feature := range models.Features() {
		fmt.Fprintf(app.stdout, "%s %s: %s\n", feature.Emoji, feature.Title, feature.Description)
	}
}

func moodEmoji(mood string) string {
	if option, ok := models.CanonicalMood(mood); ok {
		return option.Emoji
	}
	return ""
}
