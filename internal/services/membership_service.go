package services

import (
	"context"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
)

type MembershipService struct {
	tables backend.Tables
}

func NewMembershipService(tables backend.Tables) *MembershipService {
	return &MembershipService{tables: tables}
}

// HasCouple reports whether the user holds any couple membership.
func (service *MembershipService) HasCouple(ctx context.Context, userID string) (bool, error) {
	var rows []models.CoupleMember
	err := service.tables.Query(ctx, backend.TableCoupleMembers, backend.Query{
		Select: []string{"id"},
		Filter: backend.Filter{"user_id": userID},
	}, &rows)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Primary returns the user's earliest membership, or nil when there is none.
func (service *MembershipService) Primary(ctx context.Context, userID string) (*models.CoupleMember, error) {
	var rows []models.CoupleMember
	err := service.tables.Query(ctx, backend.TableCoupleMembers, backend.Query{
		Filter: backend.Filter{"user_id": userID},
		Order:  "joined_at",
		Limit:  1,
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
