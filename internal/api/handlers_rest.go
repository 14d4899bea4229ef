package api

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/db"
)

// reservedParams are query parameters that are not column filters.
var reservedParams = map[string]struct{}{
	"select": {},
	"order":  {},
	"limit":  {},
}

type tableRequest struct {
	query   db.TableQuery
	columns []string
}

func (handler *Handler) ListRows(c *fiber.Ctx) error {
	name, table, ok := handler.lookupTable(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, backend.CodeUndefinedTable, "relation \""+name+"\" does not exist")
	}
	user, authenticated := currentUser(c)
	if !authenticated {
		return apiError(c, fiber.StatusUnauthorized, backend.CodeBadJWT, "missing session")
	}
	request, parseErr := parseTableRequest(c, table)
	if parseErr != nil {
		return handler.respondTableError(c, name, parseErr)
	}

	rows, findErr := table.find(request.query, *user)
	if findErr != nil {
		return handler.respondTableError(c, name, findErr)
	}
	return respondRows(c, fiber.StatusOK, rows, request.columns)
}

func (handler *Handler) InsertRows(c *fiber.Ctx) error {
	name, table, ok := handler.lookupTable(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, backend.CodeUndefinedTable, "relation \""+name+"\" does not exist")
	}
	user, authenticated := currentUser(c)
	if !authenticated {
		return apiError(c, fiber.StatusUnauthorized, backend.CodeBadJWT, "missing session")
	}
	request, parseErr := parseTableRequest(c, table)
	if parseErr != nil {
		return handler.respondTableError(c, name, parseErr)
	}

	rows, count, insertErr := table.insert(c.Body(), *user, handler.now().UTC())
	if insertErr != nil {
		return handler.respondTableError(c, name, insertErr)
	}
	handler.metrics.rowsWritten(name, "insert", count)

	if !strings.Contains(c.Get(headerPrefer), "return=representation") {
		return c.SendStatus(fiber.StatusCreated)
	}
	return respondRows(c, fiber.StatusCreated, rows, request.columns)
}

func (handler *Handler) DeleteRows(c *fiber.Ctx) error {
	name, table, ok := handler.lookupTable(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, backend.CodeUndefinedTable, "relation \""+name+"\" does not exist")
	}
	user, authenticated := currentUser(c)
	if !authenticated {
		return apiError(c, fiber.StatusUnauthorized, backend.CodeBadJWT, "missing session")
	}
	request, parseErr := parseTableRequest(c, table)
	if parseErr != nil {
		return handler.respondTableError(c, name, parseErr)
	}

	deleted, deleteErr := table.remove(request.query.Filter, *user)
	if deleteErr != nil {
		return handler.respondTableError(c, name, deleteErr)
	}
	handler.metrics.rowsWritten(name, "delete", int(deleted))
	return c.SendStatus(fiber.StatusNoContent)
}

func (handler *Handler) lookupTable(c *fiber.Ctx) (string, restTable, bool) {
	name := c.Params("table")
	table, ok := handler.tables[name]
	return name, table, ok
}

func parseTableRequest(c *fiber.Ctx, table restTable) (tableRequest, error) {
	request := tableRequest{query: db.TableQuery{Filter: map[string]any{}}}

	var parseErr error
	c.Context().QueryArgs().VisitAll(func(rawKey []byte, rawValue []byte) {
		if parseErr != nil {
			return
		}
		key := string(rawKey)
		if _, reserved := reservedParams[key]; reserved {
			return
		}
		if !table.hasColumn(key) {
			parseErr = badRequest(backend.CodeUndefinedColumn, "column %q does not exist", key)
			return
		}
		value, ok := strings.CutPrefix(string(rawValue), "eq.")
		if !ok {
			parseErr = badRequest(backend.CodeBadFilter, "unsupported filter %q on column %q, only eq is supported", string(rawValue), key)
			return
		}
		request.query.Filter[key] = value
	})
	if parseErr != nil {
		return tableRequest{}, parseErr
	}

	if raw := strings.TrimSpace(c.Query("select")); raw != "" && raw != "*" {
		for _, column := range strings.Split(raw, ",") {
			column = strings.TrimSpace(column)
			if !table.hasColumn(column) {
				return tableRequest{}, badRequest(backend.CodeUndefinedColumn, "column %q does not exist", column)
			}
			request.columns = append(request.columns, column)
		}
	}

	if raw := strings.TrimSpace(c.Query("order")); raw != "" {
		column, direction, _ := strings.Cut(raw, ".")
		if !table.hasColumn(column) {
			return tableRequest{}, badRequest(backend.CodeUndefinedColumn, "column %q does not exist", column)
		}
		switch direction {
		case "", "asc":
		case "desc":
			request.query.Desc = true
		default:
			return tableRequest{}, badRequest(backend.CodeBadFilter, "unsupported order direction %q", direction)
		}
		request.query.Order = column
	}

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return tableRequest{}, badRequest(backend.CodeBadFilter, "invalid limit %q", raw)
		}
		request.query.Limit = limit
	}
	return request, nil
}

// respondRows writes rows as a JSON array, keeping only the selected columns when a projection was requested.
func respondRows(c *fiber.Ctx, status int, rows any, columns []string) error {
	if len(columns) == 0 {
		return c.Status(status).JSON(rows)
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	var full []map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &full); err != nil {
		return err
	}

	projected := make([]map[string]json.RawMessage, 0, len(full))
	for _, row := range full {
		kept := make(map[string]json.RawMessage, len(columns))
		for _, column := range columns {
			if value, ok := row[column]; ok {
				kept[column] = value
			}
		}
		projected = append(projected, kept)
	}
	return c.Status(status).JSON(projected)
}
