package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/db"
	"gorm.io/gorm"
)

const (
	headerAPIKey = "apikey"
	headerPrefer = "Prefer"
)

var errRowPolicy = errors.New("row violates row-level security policy")

// apiError answers with the {"code","message"} body the client decodes into backend.Error.
func apiError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(fiber.Map{"code": code, "message": message})
}

// requestError is a client mistake detected while reading a table request.
type requestError struct {
	status  int
	code    string
	message string
}

func (err *requestError) Error() string {
	return err.message
}

func badRequest(code string, format string, args ...any) *requestError {
	return &requestError{status: fiber.StatusBadRequest, code: code, message: fmt.Sprintf(format, args...)}
}

func (handler *Handler) respondTableError(c *fiber.Ctx, table string, err error) error {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return apiError(c, reqErr.status, reqErr.code, reqErr.message)
	case errors.Is(err, errRowPolicy):
		return apiError(c, fiber.StatusForbidden, backend.CodeInsufficientPrivilege,
			fmt.Sprintf("new row violates row-level security policy for table %q", table))
	case errors.Is(err, db.ErrMissingFilter):
		return apiError(c, fiber.StatusBadRequest, backend.CodeMissingFilter, "DELETE requires a WHERE clause")
	case db.IsUniqueViolation(err):
		return apiError(c, fiber.StatusConflict, backend.CodeUniqueViolation, "duplicate key value violates unique constraint")
	case db.IsForeignKeyViolation(err):
		return apiError(c, fiber.StatusConflict, backend.CodeForeignKeyViolation,
			fmt.Sprintf("insert or delete on table %q violates foreign key constraint", table))
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apiError(c, fiber.StatusNotFound, "PGRST116", "no rows found")
	}

	handler.logger.Error("table request failed", "table", table, "error", err)
	return apiError(c, fiber.StatusInternalServerError, "XX000", "internal server error")
}
