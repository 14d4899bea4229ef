package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
)

const (
	defaultMoodListLimit = 20
	maxMoodListLimit     = 100
	maxMoodNoteRunes     = 500
)

type MoodService struct {
	client      backend.Client
	memberships *MembershipService
}

func NewMoodService(client backend.Client) *MoodService {
	return &MoodService{client: client, memberships: NewMembershipService(client)}
}

type newMoodRow struct {
	CoupleID string `json:"couple_id"`
	UserID   string `json:"user_id"`
	Mood     string `json:"mood"`
	Note     string `json:"note"`
}

func (service *MoodService) Log(ctx context.Context, rawMood string, rawNote string) (models.MoodEntry, error) {
	current := service.client.GetSession()
	if current == nil {
		return models.MoodEntry{}, ErrSessionRequired
	}
	option, ok := models.CanonicalMood(rawMood)
	if !ok {
		return models.MoodEntry{}, ErrUnknownMood
	}
	note := strings.TrimSpace(rawNote)
	if utf8.RuneCountInString(note) > maxMoodNoteRunes {
		return models.MoodEntry{}, ErrMoodNoteTooLong
	}

	membership, err := service.memberships.Primary(ctx, current.User.ID)
	if err != nil {
		return models.MoodEntry{}, wrapError(ErrMoodSaveFailed, err)
	}
	if membership == nil {
		return models.MoodEntry{}, ErrNoCouple
	}

	var inserted []models.MoodEntry
	row := newMoodRow{CoupleID: membership.CoupleID, UserID: current.User.ID, Mood: option.Label, Note: note}
	if err := service.client.Insert(ctx, backend.TableMoodEntries, row, &inserted); err != nil {
		return models.MoodEntry{}, wrapError(ErrMoodSaveFailed, err)
	}
	if len(inserted) == 0 {
		return models.MoodEntry{CoupleID: row.CoupleID, UserID: row.UserID, Mood: row.Mood, Note: row.Note}, nil
	}
	return inserted[0], nil
}

func (service *MoodService) Recent(ctx context.Context, limit int) ([]models.MoodEntry, error) {
	current := service.client.GetSession()
	if current == nil {
		return nil, ErrSessionRequired
	}
	if limit <= 0 {
		limit = defaultMoodListLimit
	}
	if limit > maxMoodListLimit {
		limit = maxMoodListLimit
	}

	membership, err := service.memberships.Primary(ctx, current.User.ID)
	if err != nil {
		return nil, wrapError(ErrMoodLoadFailed, err)
	}
	if membership == nil {
		return nil, ErrNoCouple
	}

	entries := make([]models.MoodEntry, 0)
	if err := service.client.Query(ctx, backend.TableMoodEntries, backend.Query{
		Filter: backend.Filter{"couple_id": membership.CoupleID},
		Order:  "created_at",
		Desc:   true,
		Limit:  limit,
	}, &entries); err != nil {
		return nil, wrapError(ErrMoodLoadFailed, err)
	}
	return entries, nil
}
