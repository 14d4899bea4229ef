package api

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// LogMailer writes recovery links to the server log instead of sending email.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (mailer *LogMailer) SendRecovery(_ context.Context, email string, link string) error {
	mailer.logger.Info("password recovery link", "email", email, "link", link)
	return nil
}

func recoveryLink(redirectTo string, token string) string {
	target := strings.TrimSpace(redirectTo)
	parsed, err := url.Parse(target)
	if target == "" || err != nil {
		return token
	}

	query := parsed.Query()
	query.Set("token", token)
	query.Set("type", "recovery")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
