package api

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/db"
	"github.com/terraincognita07/us/internal/models"
	"github.com/terraincognita07/us/internal/security"
)

const maxMoodNoteRunes = 500

// restTable is one table exposed under /rest/v1 with its column whitelist and row policies.
type restTable interface {
	hasColumn(name string) bool
	find(query db.TableQuery, caller models.AuthUser) (any, error)
	insert(raw []byte, caller models.AuthUser, now time.Time) (any, int, error)
	remove(filter map[string]any, caller models.AuthUser) (int64, error)
}

type typedTable[T any] struct {
	repo    *db.TableRepository[T]
	columns map[string]struct{}
	// ownerColumn names the column that must equal the caller's id on insert and delete.
	ownerColumn string
	prepare     func(row *T, caller models.AuthUser, now time.Time) error
	guardDelete func(filter map[string]any) error
	// scope narrows a listing to rows the caller may read. False means nothing is visible.
	scope func(query *db.TableQuery, caller models.AuthUser) (bool, error)
	found func(query db.TableQuery, rows []T, caller models.AuthUser)
}

func newTypedTable[T any](repo *db.TableRepository[T], columns []string) *typedTable[T] {
	set := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		set[column] = struct{}{}
	}
	return &typedTable[T]{repo: repo, columns: set}
}

func (table *typedTable[T]) hasColumn(name string) bool {
	_, ok := table.columns[name]
	return ok
}

func (table *typedTable[T]) find(query db.TableQuery, caller models.AuthUser) (any, error) {
	if table.scope != nil {
		visible, err := table.scope(&query, caller)
		if err != nil {
			return nil, err
		}
		if !visible {
			return []T{}, nil
		}
	}

	rows, err := table.repo.Find(query)
	if err != nil {
		return nil, err
	}
	if table.found != nil {
		table.found(query, rows, caller)
	}
	return rows, nil
}

func (table *typedTable[T]) insert(raw []byte, caller models.AuthUser, now time.Time) (any, int, error) {
	rows, err := decodeRows[T](raw)
	if err != nil {
		return nil, 0, err
	}
	for index := range rows {
		if err := table.prepare(&rows[index], caller, now); err != nil {
			return nil, 0, err
		}
	}
	if err := table.repo.CreateAll(rows); err != nil {
		return nil, 0, err
	}
	return rows, len(rows), nil
}

func (table *typedTable[T]) remove(filter map[string]any, caller models.AuthUser) (int64, error) {
	if len(filter) == 0 {
		return 0, db.ErrMissingFilter
	}
	if table.ownerColumn != "" && filter[table.ownerColumn] != caller.ID {
		return 0, errRowPolicy
	}
	if table.guardDelete != nil {
		if err := table.guardDelete(filter); err != nil {
			return 0, err
		}
	}
	return table.repo.Delete(filter)
}

// decodeRows accepts a single JSON object or an array of objects and rejects unknown columns.
func decodeRows[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, badRequest(backend.CodeInvalidText, "request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()

	if trimmed[0] == '[' {
		var rows []T
		if err := decoder.Decode(&rows); err != nil {
			return nil, badRequest(backend.CodeInvalidText, "invalid rows: %v", err)
		}
		if len(rows) == 0 {
			return nil, badRequest(backend.CodeInvalidText, "no rows to insert")
		}
		return rows, nil
	}

	var row T
	if err := decoder.Decode(&row); err != nil {
		return nil, badRequest(backend.CodeInvalidText, "invalid row: %v", err)
	}
	return []T{row}, nil
}

// restrictTo narrows query to rows whose column is one of allowed. It reports false when
// nothing can match, including a filter that asks for a value outside allowed.
func restrictTo(query *db.TableQuery, column string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	if query.Filter == nil {
		query.Filter = map[string]any{}
	}
	if requested, ok := query.Filter[column]; ok {
		value, isString := requested.(string)
		return isString && slices.Contains(allowed, value)
	}
	query.Filter[column] = allowed
	return true
}

func (handler *Handler) coupleIDsOf(userID string) ([]string, error) {
	memberships, err := handler.repos.CoupleMembers.Find(db.TableQuery{Filter: map[string]any{"user_id": userID}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.CoupleID)
	}
	return ids, nil
}

// scopeToCouples limits a listing to the couples the caller belongs to.
func (handler *Handler) scopeToCouples(column string) func(*db.TableQuery, models.AuthUser) (bool, error) {
	return func(query *db.TableQuery, caller models.AuthUser) (bool, error) {
		coupleIDs, err := handler.coupleIDsOf(caller.ID)
		if err != nil {
			return false, err
		}
		return restrictTo(query, column, coupleIDs), nil
	}
}

func checkViolation(format string, args ...any) *requestError {
	return badRequest(backend.CodeCheckViolation, format, args...)
}

func (handler *Handler) restTables() map[string]restTable {
	users := newTypedTable(handler.repos.Users, []string{"id", "email", "full_name", "avatar_url", "created_at", "updated_at"})
	users.ownerColumn = "id"
	users.scope = func(query *db.TableQuery, caller models.AuthUser) (bool, error) {
		visible := []string{caller.ID}
		coupleIDs, err := handler.coupleIDsOf(caller.ID)
		if err != nil || len(coupleIDs) == 0 {
			return restrictTo(query, "id", visible), err
		}
		partners, err := handler.repos.CoupleMembers.Find(db.TableQuery{Filter: map[string]any{"couple_id": coupleIDs}})
		if err != nil {
			return false, err
		}
		for _, partner := range partners {
			if !slices.Contains(visible, partner.UserID) {
				visible = append(visible, partner.UserID)
			}
		}
		return restrictTo(query, "id", visible), nil
	}
	users.prepare = func(row *models.User, caller models.AuthUser, now time.Time) error {
		if row.ID != caller.ID {
			return errRowPolicy
		}
		if strings.TrimSpace(row.Email) == "" {
			row.Email = caller.Email
		}
		row.FullName = strings.TrimSpace(row.FullName)
		row.CreatedAt = now
		row.UpdatedAt = now
		return nil
	}

	couples := newTypedTable(handler.repos.Couples, []string{"id", "name", "join_code", "status", "created_at", "updated_at"})
	couples.prepare = func(row *models.Couple, _ models.AuthUser, now time.Time) error {
		row.ID = uuid.NewString()
		row.Name = strings.TrimSpace(row.Name)
		if row.Name == "" {
			return checkViolation("couple name must not be empty")
		}
		if !security.IsJoinCode(row.JoinCode) {
			return checkViolation("join_code must be %d characters of A-Z or 0-9", security.JoinCodeLength)
		}
		if row.Status == "" {
			row.Status = models.CoupleStatusActive
		}
		if !models.IsValidCoupleStatus(row.Status) {
			return checkViolation("invalid couple status %q", row.Status)
		}
		row.CreatedAt = now
		row.UpdatedAt = now
		return nil
	}
	// An exact join code lookup is the one way to see a couple before belonging to it.
	couples.scope = func(query *db.TableQuery, caller models.AuthUser) (bool, error) {
		if _, byCode := query.Filter["join_code"]; byCode {
			return true, nil
		}
		return handler.scopeToCouples("id")(query, caller)
	}
	couples.found = func(query db.TableQuery, rows []models.Couple, caller models.AuthUser) {
		if _, byCode := query.Filter["join_code"]; !byCode {
			return
		}
		now := handler.now().UTC()
		for _, couple := range rows {
			handler.joins.allow(caller.ID, couple.ID, now)
		}
	}
	couples.guardDelete = func(filter map[string]any) error {
		matched, err := handler.repos.Couples.Find(db.TableQuery{Filter: filter})
		if err != nil {
			return err
		}
		for _, couple := range matched {
			members, err := handler.repos.CoupleMembers.Count(map[string]any{"couple_id": couple.ID})
			if err != nil {
				return err
			}
			if members > 0 {
				return errRowPolicy
			}
		}
		return nil
	}

	members := newTypedTable(handler.repos.CoupleMembers, []string{"id", "couple_id", "user_id", "role", "joined_at"})
	members.ownerColumn = "user_id"
	members.scope = handler.scopeToCouples("couple_id")
	members.prepare = func(row *models.CoupleMember, caller models.AuthUser, now time.Time) error {
		if row.UserID != caller.ID {
			return errRowPolicy
		}
		if strings.TrimSpace(row.CoupleID) == "" {
			return checkViolation("couple_id is required")
		}
		if row.Role == "" {
			row.Role = models.RoleMember
		}
		if !models.IsValidRole(row.Role) {
			return checkViolation("invalid member role %q", row.Role)
		}
		if err := handler.admitMember(row, caller, now); err != nil {
			return err
		}
		row.ID = uuid.NewString()
		row.JoinedAt = now
		return nil
	}

	moods := newTypedTable(handler.repos.MoodEntries, []string{"id", "couple_id", "user_id", "mood", "note", "created_at"})
	moods.ownerColumn = "user_id"
	moods.scope = handler.scopeToCouples("couple_id")
	moods.prepare = func(row *models.MoodEntry, caller models.AuthUser, now time.Time) error {
		if row.UserID != caller.ID {
			return errRowPolicy
		}
		membership, err := handler.repos.CoupleMembers.Count(map[string]any{"couple_id": row.CoupleID, "user_id": caller.ID})
		if err != nil {
			return err
		}
		if membership == 0 {
			return errRowPolicy
		}
		option, ok := models.CanonicalMood(row.Mood)
		if !ok {
			return checkViolation("unknown mood %q", row.Mood)
		}
		row.Mood = option.Label
		row.Note = strings.TrimSpace(row.Note)
		if utf8.RuneCountInString(row.Note) > maxMoodNoteRunes {
			return checkViolation("note must be at most %d characters", maxMoodNoteRunes)
		}
		row.ID = uuid.NewString()
		row.CreatedAt = now
		return nil
	}

	return map[string]restTable{
		backend.TableUsers:         users,
		backend.TableCouples:       couples,
		backend.TableCoupleMembers: members,
		backend.TableMoodEntries:   moods,
	}
}

// admitMember lets the first member of a couple join as its creator and everyone after
// that join as a member of an active couple they looked up by join code. A missing
// couple is left to the foreign key.
func (handler *Handler) admitMember(row *models.CoupleMember, caller models.AuthUser, now time.Time) error {
	couples, err := handler.repos.Couples.Find(db.TableQuery{Filter: map[string]any{"id": row.CoupleID}, Limit: 1})
	if err != nil || len(couples) == 0 {
		return err
	}
	couple := couples[0]

	if row.Role == models.RoleCreator {
		existing, err := handler.repos.CoupleMembers.Count(map[string]any{"couple_id": couple.ID})
		if err != nil {
			return err
		}
		if existing > 0 {
			return errRowPolicy
		}
		return nil
	}

	if !couple.IsActive() || !handler.joins.allowed(caller.ID, couple.ID, now) {
		return errRowPolicy
	}
	return nil
}
