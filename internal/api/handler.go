// Package api serves the Supabase-compatible auth and table endpoints used by the us client.
package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/terraincognita07/us/internal/db"
	"github.com/terraincognita07/us/internal/security"
	"gorm.io/gorm"
)

const (
	signInAttemptLimit    = 5
	signInAttemptWindow   = 15 * time.Minute
	recoveryAttemptLimit  = 5
	recoveryAttemptWindow = time.Hour
)

// Mailer delivers password recovery links.
type Mailer interface {
	SendRecovery(ctx context.Context, email string, link string) error
}

type Options struct {
	// AnonKey, when set, must be presented in the apikey header of every auth and table call.
	AnonKey  string
	TokenTTL time.Duration
	// SiteURL is the recovery redirect used when a request names none.
	SiteURL  string
	Mailer   Mailer
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

type Handler struct {
	db       *gorm.DB
	repos    *db.Repositories
	tokens   *security.TokenIssuer
	anonKey  string
	siteURL  string
	mailer   Mailer
	logger   *slog.Logger
	signIn   *attemptLimiter
	recovery *attemptLimiter
	revoked  *revocationList
	joins    *joinGrants
	metrics  *metrics
	tables   map[string]restTable
	now      func() time.Time
}

func NewHandler(database *gorm.DB, secret string, opts Options) (*Handler, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("secret key is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}

	handler := &Handler{
		db:       database,
		repos:    db.NewRepositories(database),
		tokens:   security.NewTokenIssuer([]byte(secret), opts.TokenTTL),
		anonKey:  strings.TrimSpace(opts.AnonKey),
		siteURL:  strings.TrimSpace(opts.SiteURL),
		mailer:   mailer,
		logger:   logger,
		signIn:   newAttemptLimiter(signInAttemptLimit, signInAttemptWindow),
		recovery: newAttemptLimiter(recoveryAttemptLimit, recoveryAttemptWindow),
		revoked:  newRevocationList(),
		joins:    newJoinGrants(joinGrantTTL),
		metrics:  newMetrics(opts.Registry),
		now:      time.Now,
	}
	handler.tables = handler.restTables()
	return handler, nil
}
