// Package backend describes the hosted auth and hosted table operations the app consumes.
package backend

import (
	"context"

	"github.com/terraincognita07/us/internal/models"
)

const (
	TableUsers         = "users"
	TableCouples       = "couples"
	TableCoupleMembers = "couple_members"
	TableMoodEntries   = "mood_entries"
)

// Filter holds equality predicates keyed by column name.
type Filter map[string]string

type Query struct {
	Select []string
	Filter Filter
	Order  string
	Desc   bool
	Limit  int
}

type Profile struct {
	FullName string
}

type Auth interface {
	GetSession() *models.Session
	OnSessionChange(listener func(*models.Session)) (unsubscribe func())
	SignUp(ctx context.Context, email string, password string, profile Profile) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email string, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string, redirectTo string) error
	VerifyRecovery(ctx context.Context, token string) (*models.Session, error)
	UpdatePassword(ctx context.Context, password string) error
}

// Tables decodes rows into dest, which must be a pointer to a slice.
type Tables interface {
	Query(ctx context.Context, table string, query Query, dest any) error
	Insert(ctx context.Context, table string, row any, dest any) error
	Delete(ctx context.Context, table string, filter Filter) error
}

type Client interface {
	Auth
	Tables
}
