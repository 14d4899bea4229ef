package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/db"
	"github.com/terraincognita07/us/internal/models"
	"github.com/terraincognita07/us/internal/security"
	"github.com/terraincognita07/us/internal/services"
	"gorm.io/gorm"
)

type signUpInput struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Data     userMetadata `json:"data"`
}

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type recoverInput struct {
	Email string `json:"email"`
}

type verifyInput struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type userUpdateInput struct {
	Password *string `json:"password"`
	Data     *struct {
		FullName *string `json:"full_name"`
	} `json:"data"`
}

func (handler *Handler) SignUp(c *fiber.Ctx) error {
	var input signUpInput
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "invalid request body")
	}
	email := services.NormalizeAuthEmail(input.Email)
	if email == "" {
		return apiError(c, fiber.StatusUnprocessableEntity, backend.CodeValidationFailed, "Unable to validate email address: invalid format")
	}
	if violations := services.PasswordViolations(input.Password); len(violations) > 0 {
		return apiError(c, fiber.StatusUnprocessableEntity, backend.CodeWeakPassword, "Password is too weak: "+strings.Join(violations, ", "))
	}

	exists, err := handler.repos.AuthUsers.ExistsByNormalizedEmail(email)
	if err != nil {
		handler.logger.Error("sign up lookup failed", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to create account")
	}
	if exists {
		handler.metrics.authEvent("signup", "exists")
		return apiError(c, fiber.StatusUnprocessableEntity, backend.CodeUserAlreadyExists, "User already registered")
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to secure password")
	}

	now := handler.now().UTC()
	user := models.AuthUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     services.NormalizeFullName(input.Data.FullName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := handler.repos.AuthUsers.Create(&user); err != nil {
		if db.IsUniqueViolation(err) {
			return apiError(c, fiber.StatusUnprocessableEntity, backend.CodeUserAlreadyExists, "User already registered")
		}
		handler.logger.Error("sign up insert failed", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to create account")
	}

	handler.metrics.authEvent("signup", "ok")
	handler.logger.Info("user signed up", "user_id", user.ID)
	return handler.respondSession(c, user)
}

func (handler *Handler) Token(c *fiber.Ctx) error {
	if grantType := c.Query("grant_type"); grantType != "password" {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "unsupported grant_type "+grantType)
	}

	var input credentialsInput
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "invalid request body")
	}
	email := services.NormalizeAuthEmail(input.Email)
	if email == "" || input.Password == "" {
		return apiError(c, fiber.StatusBadRequest, backend.CodeInvalidCredentials, "Invalid login credentials")
	}

	now := handler.now()
	key := limiterKey(c, email)
	if wait := handler.signIn.retryAfter(key, now); wait > 0 {
		handler.metrics.authEvent("token", "rate_limited")
		setRetryAfter(c, wait)
		return apiError(c, fiber.StatusTooManyRequests, backend.CodeRateLimited, "Too many sign in attempts, try again later")
	}

	user, err := handler.repos.AuthUsers.FindByNormalizedEmail(email)
	if err == nil {
		err = security.ComparePassword(user.PasswordHash, input.Password)
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, security.ErrPasswordMismatch) {
			handler.logger.Error("sign in failed", "error", err)
			return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to sign in")
		}
		handler.signIn.record(key, now)
		handler.metrics.authEvent("token", "invalid")
		return apiError(c, fiber.StatusBadRequest, backend.CodeInvalidCredentials, "Invalid login credentials")
	}

	handler.signIn.reset(key)
	handler.metrics.authEvent("token", "ok")
	return handler.respondSession(c, user)
}

func (handler *Handler) Logout(c *fiber.Ctx) error {
	if claims, ok := currentClaims(c); ok && claims.ExpiresAt != nil {
		handler.revoked.revoke(claims.ID, claims.ExpiresAt.Time)
	}
	handler.metrics.authEvent("logout", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}

// Recover always answers 200 so callers cannot probe which addresses have accounts.
func (handler *Handler) Recover(c *fiber.Ctx) error {
	var input recoverInput
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "invalid request body")
	}
	email := services.NormalizeAuthEmail(input.Email)
	if email == "" {
		return apiError(c, fiber.StatusUnprocessableEntity, backend.CodeValidationFailed, "Unable to validate email address: invalid format")
	}

	now := handler.now()
	key := limiterKey(c)
	if wait := handler.recovery.retryAfter(key, now); wait > 0 {
		handler.metrics.authEvent("recover", "rate_limited")
		setRetryAfter(c, wait)
		return apiError(c, fiber.StatusTooManyRequests, backend.CodeRateLimited, "Too many recovery requests, try again later")
	}
	handler.recovery.record(key, now)

	user, err := handler.repos.AuthUsers.FindByNormalizedEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			handler.logger.Error("recovery lookup failed", "error", err)
		}
		return c.JSON(fiber.Map{})
	}

	token, err := handler.tokens.IssueRecoveryToken(user.ID, user.PasswordHash)
	if err != nil {
		handler.logger.Error("issue recovery token failed", "user_id", user.ID, "error", err)
		return c.JSON(fiber.Map{})
	}
	if err := handler.mailer.SendRecovery(c.UserContext(), user.Email, recoveryLink(firstNonBlank(c.Query("redirect_to"), handler.siteURL), token)); err != nil {
		handler.logger.Error("send recovery failed", "user_id", user.ID, "error", err)
	}

	handler.metrics.authEvent("recover", "sent")
	return c.JSON(fiber.Map{})
}

func (handler *Handler) Verify(c *fiber.Ctx) error {
	var input verifyInput
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "invalid request body")
	}
	if input.Type != "recovery" {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "unsupported verification type "+input.Type)
	}

	claims, err := handler.tokens.ParseRecoveryToken(input.Token)
	if err != nil {
		handler.metrics.authEvent("verify", "invalid")
		return apiError(c, fiber.StatusForbidden, backend.CodeOTPExpired, "Token has expired or is invalid")
	}
	user, err := handler.repos.AuthUsers.FindByID(claims.UserID)
	if err != nil || !security.IsPasswordStateFingerprintMatch(claims.PasswordState, user.PasswordHash) {
		handler.metrics.authEvent("verify", "invalid")
		return apiError(c, fiber.StatusForbidden, backend.CodeOTPExpired, "Token has expired or is invalid")
	}

	handler.metrics.authEvent("verify", "ok")
	return handler.respondSession(c, user)
}

func (handler *Handler) GetUser(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, backend.CodeBadJWT, "missing session")
	}
	return c.JSON(newUserResponse(*user))
}

func (handler *Handler) UpdateUser(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, backend.CodeBadJWT, "missing session")
	}

	var input userUpdateInput
	if err := c.BodyParser(&input); err != nil {
		return apiError(c, fiber.StatusBadRequest, backend.CodeValidationFailed, "invalid request body")
	}

	if input.Password != nil {
		if violations := services.PasswordViolations(*input.Password); len(violations) > 0 {
			return apiError(c, fiber.StatusUnprocessableEntity, backend.CodeWeakPassword, "Password is too weak: "+strings.Join(violations, ", "))
		}
		passwordHash, err := security.HashPassword(*input.Password)
		if err != nil {
			return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to secure password")
		}
		if err := handler.repos.AuthUsers.UpdatePassword(user.ID, passwordHash); err != nil {
			handler.logger.Error("password update failed", "user_id", user.ID, "error", err)
			return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to update password")
		}
		handler.metrics.authEvent("password_update", "ok")
	}
	if input.Data != nil && input.Data.FullName != nil {
		if err := handler.repos.AuthUsers.UpdateFullName(user.ID, services.NormalizeFullName(*input.Data.FullName)); err != nil {
			handler.logger.Error("profile update failed", "user_id", user.ID, "error", err)
			return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to update user")
		}
	}

	updated, err := handler.repos.AuthUsers.FindByID(user.ID)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to load user")
	}
	return c.JSON(newUserResponse(updated))
}
