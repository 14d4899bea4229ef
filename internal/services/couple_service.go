package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
)

type GateRefresher interface {
	Recheck(ctx context.Context) error
}

type CoupleService struct {
	client      backend.Client
	memberships *MembershipService
	gate        GateRefresher
	codes       JoinCodeGenerator
}

func NewCoupleService(client backend.Client, gate GateRefresher) *CoupleService {
	return &CoupleService{
		client:      client,
		memberships: NewMembershipService(client),
		gate:        gate,
		codes:       GenerateJoinCode,
	}
}

func (service *CoupleService) WithJoinCodeGenerator(codes JoinCodeGenerator) *CoupleService {
	service.codes = codes
	return service
}

type newCoupleRow struct {
	Name     string `json:"name"`
	JoinCode string `json:"join_code"`
	Status   string `json:"status"`
}

type newMemberRow struct {
	CoupleID string `json:"couple_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

type CoupleOverview struct {
	Couple  models.Couple
	Role    string
	Members []models.CoupleMember
}

func (service *CoupleService) Create(ctx context.Context, rawName string) (models.Couple, error) {
	current := service.client.GetSession()
	if current == nil {
		return models.Couple{}, ErrSessionRequired
	}
	name := strings.TrimSpace(rawName)
	if name == "" {
		return models.Couple{}, ErrCoupleNameRequired
	}

	couple, err := service.insertCoupleWithFreshCode(ctx, name)
	if err != nil {
		return models.Couple{}, err
	}

	member := newMemberRow{CoupleID: couple.ID, UserID: current.User.ID, Role: models.RoleCreator}
	if err := service.client.Insert(ctx, backend.TableCoupleMembers, member, nil); err != nil {
		if deleteErr := service.client.Delete(ctx, backend.TableCouples, backend.Filter{"id": couple.ID}); deleteErr != nil {
			slog.Error("orphan couple left behind", "couple_id", couple.ID, "error", deleteErr)
		}
		return models.Couple{}, wrapError(ErrCreateCoupleFailed, err)
	}

	slog.Info("couple created", "couple_id", couple.ID, "user_id", current.User.ID)
	service.refreshGate(ctx)
	return couple, nil
}

func (service *CoupleService) insertCoupleWithFreshCode(ctx context.Context, name string) (models.Couple, error) {
	for attempt := 1; attempt <= maxJoinCodeAttempts; attempt++ {
		code, err := service.codes()
		if err != nil {
			return models.Couple{}, wrapError(ErrCreateCoupleFailed, err)
		}

		var taken []models.Couple
		if err := service.client.Query(ctx, backend.TableCouples, backend.Query{
			Select: []string{"id"},
			Filter: backend.Filter{"join_code": code},
			Limit:  1,
		}, &taken); err != nil {
			return models.Couple{}, wrapError(ErrCreateCoupleFailed, err)
		}
		if len(taken) > 0 {
			slog.Debug("join code already taken", "attempt", attempt)
			continue
		}

		var inserted []models.Couple
		row := newCoupleRow{Name: name, JoinCode: code, Status: models.CoupleStatusActive}
		err = service.client.Insert(ctx, backend.TableCouples, row, &inserted)
		if backend.IsConflict(err) {
			slog.Debug("join code collided on insert", "attempt", attempt)
			continue
		}
		if err != nil {
			return models.Couple{}, wrapError(ErrCreateCoupleFailed, err)
		}
		if len(inserted) == 0 || inserted[0].ID == "" {
			return models.Couple{}, wrapError(ErrCreateCoupleFailed, errors.New("insert returned no couple"))
		}
		return inserted[0], nil
	}
	return models.Couple{}, wrapError(ErrCreateCoupleFailed, errJoinCodeExhausted)
}

func (service *CoupleService) Join(ctx context.Context, rawCode string) (models.Couple, error) {
	current := service.client.GetSession()
	if current == nil {
		return models.Couple{}, ErrSessionRequired
	}
	code := NormalizeJoinCode(rawCode)
	if code == "" {
		return models.Couple{}, ErrJoinCodeRequired
	}

	var couples []models.Couple
	if err := service.client.Query(ctx, backend.TableCouples, backend.Query{
		Filter: backend.Filter{"join_code": code, "status": models.CoupleStatusActive},
		Limit:  1,
	}, &couples); err != nil {
		return models.Couple{}, wrapError(ErrJoinCoupleFailed, err)
	}
	if len(couples) == 0 {
		return models.Couple{}, ErrInvalidJoinCode
	}
	couple := couples[0]

	var existing []models.CoupleMember
	if err := service.client.Query(ctx, backend.TableCoupleMembers, backend.Query{
		Select: []string{"id"},
		Filter: backend.Filter{"couple_id": couple.ID, "user_id": current.User.ID},
	}, &existing); err != nil {
		return models.Couple{}, wrapError(ErrJoinCoupleFailed, err)
	}
	if len(existing) > 0 {
		return models.Couple{}, ErrAlreadyMember
	}

	member := newMemberRow{CoupleID: couple.ID, UserID: current.User.ID, Role: models.RoleMember}
	if err := service.client.Insert(ctx, backend.TableCoupleMembers, member, nil); err != nil {
		if backend.IsConflict(err) {
			return models.Couple{}, ErrAlreadyMember
		}
		return models.Couple{}, wrapError(ErrJoinCoupleFailed, err)
	}

	slog.Info("couple joined", "couple_id", couple.ID, "user_id", current.User.ID)
	service.refreshGate(ctx)
	return couple, nil
}

func (service *CoupleService) Current(ctx context.Context) (CoupleOverview, error) {
	current := service.client.GetSession()
	if current == nil {
		return CoupleOverview{}, ErrSessionRequired
	}

	membership, err := service.memberships.Primary(ctx, current.User.ID)
	if err != nil {
		return CoupleOverview{}, wrapError(ErrCoupleLookupFailed, err)
	}
	if membership == nil {
		return CoupleOverview{}, ErrNoCouple
	}

	var couples []models.Couple
	if err := service.client.Query(ctx, backend.TableCouples, backend.Query{
		Filter: backend.Filter{"id": membership.CoupleID},
		Limit:  1,
	}, &couples); err != nil {
		return CoupleOverview{}, wrapError(ErrCoupleLookupFailed, err)
	}
	if len(couples) == 0 {
		return CoupleOverview{}, ErrNoCouple
	}

	var members []models.CoupleMember
	if err := service.client.Query(ctx, backend.TableCoupleMembers, backend.Query{
		Filter: backend.Filter{"couple_id": membership.CoupleID},
		Order:  "joined_at",
	}, &members); err != nil {
		return CoupleOverview{}, wrapError(ErrCoupleLookupFailed, err)
	}

	return CoupleOverview{Couple: couples[0], Role: membership.Role, Members: members}, nil
}

func (service *CoupleService) refreshGate(ctx context.Context) {
	if service.gate == nil {
		return
	}
	if err := service.gate.Recheck(ctx); err != nil {
		slog.Warn("gate recheck after couple change failed", "error", err)
	}
}
