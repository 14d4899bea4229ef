package cli

import (
	"context"

	"github.com/terraincognita07/us/internal/services"
)

func (app *App) signUp(ctx context.Context, args []string) error {
	flags := app.flagSet("signup")
	email := flags.String("email", "", "account email")
	fullName := flags.String("name", "", "your full name")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	emailValue, err := app.valueOrPrompt(*email, "prompt.email")
	if err != nil {
		return err
	}
	nameValue, err := app.valueOrPrompt(*fullName, "prompt.full_name")
	if err != nil {
		return err
	}
	password, err := app.prompt.secret(app.t("prompt.password"))
	if err != nil {
		return err
	}

	current, err := app.auth.SignUp(ctx, services.SignUpInput{Email: emailValue, Password: password, FullName: nameValue})
	if err != nil {
		return err
	}
	app.printf("auth.sign_up_success")
	app.printf("auth.signed_in", current.User.Email)
	return app.showScreen(ctx)
}

func (app *App) signIn(ctx context.Context, args []string) error {
	flags := app.flagSet("signin")
	email := flags.String("email", "", "account email")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	emailValue, err := app.valueOrPrompt(*email, "prompt.email")
	if err != nil {
		return err
	}
	password, err := app.prompt.secret(app.t("prompt.password"))
	if err != nil {
		return err
	}

	current, err := app.auth.SignIn(ctx, emailValue, password)
	if err != nil {
		return err
	}
	app.printf("auth.signed_in", current.User.Email)
	return app.showScreen(ctx)
}

func (app *App) signOut(ctx context.Context) error {
	if err := app.auth.SignOut(ctx); err != nil {
		return err
	}
	app.printf("auth.signed_out")
	return nil
}

func (app *App) forgotPassword(ctx context.Context, args []string) error {
	flags := app.flagSet("forgot-password")
	email := flags.String("email", "", "account email")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	emailValue, err := app.valueOrPrompt(*email, "prompt.email")
	if err != nil {
		return err
	}
	if err := app.auth.SendPasswordReset(ctx, emailValue); err != nil {
		return err
	}
	app.printf("auth.reset_sent")
	return nil
}

func (app *App) resetPassword(ctx context.Context, args []string) error {
	flags := app.flagSet("reset-password")
	token := flags.String("token", "", "token from the password reset link")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	tokenValue, err := app.valueOrPrompt(*token, "prompt.reset_token")
	if err != nil {
		return err
	}
	password, err := app.prompt.secret(app.t("prompt.new_password"))
	if err != nil {
		return err
	}

	if _, err := app.auth.CompletePasswordReset(ctx, tokenValue, password); err != nil {
		return err
	}
	app.printf("auth.password_updated")
	return app.showScreen(ctx)
}
