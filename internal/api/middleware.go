package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
	"github.com/terraincognita07/us/internal/security"
	"gorm.io/gorm"
)

const (
	contextUserKey   = "current_user"
	contextClaimsKey = "current_claims"
)

func (handler *Handler) RequireAPIKey(c *fiber.Ctx) error {
	if handler.anonKey == "" {
		return c.Next()
	}
	if strings.TrimSpace(c.Get(headerAPIKey)) != handler.anonKey {
		return apiError(c, fiber.StatusUnauthorized, backend.CodeNoAPIKey, "Invalid API key")
	}
	return c.Next()
}

func (handler *Handler) AuthRequired(c *fiber.Ctx) error {
	user, claims, err := handler.authenticateRequest(c)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apiError(c, fiber.StatusUnauthorized, backend.CodeUserNotFound, "User from sub claim in JWT does not exist")
		}
		return apiError(c, fiber.StatusUnauthorized, backend.CodeBadJWT, "invalid JWT: "+err.Error())
	}

	c.Locals(contextUserKey, user)
	c.Locals(contextClaimsKey, claims)
	return c.Next()
}

func (handler *Handler) authenticateRequest(c *fiber.Ctx) (*models.AuthUser, *security.TokenClaims, error) {
	rawToken := bearerToken(c)
	if rawToken == "" || (handler.anonKey != "" && rawToken == handler.anonKey) {
		return nil, nil, security.ErrTokenMissing
	}

	claims, err := handler.tokens.ParseAccessToken(rawToken)
	if err != nil {
		return nil, nil, err
	}
	if handler.revoked.isRevoked(claims.ID, handler.now()) {
		return nil, nil, errors.New("token has been revoked")
	}

	user, err := handler.repos.AuthUsers.FindByID(claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return &user, claims, nil
}

func bearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentUser(c *fiber.Ctx) (*models.AuthUser, bool) {
	user, ok := c.Locals(contextUserKey).(*models.AuthUser)
	return user, ok
}

func currentClaims(c *fiber.Ctx) (*security.TokenClaims, bool) {
	claims, ok := c.Locals(contextClaimsKey).(*security.TokenClaims)
	return claims, ok
}
