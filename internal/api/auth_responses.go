package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/us/internal/models"
)

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	ExpiresAt   int64        `json:"expires_at"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID           string       `json:"id"`
	Aud          string       `json:"aud"`
	Role         string       `json:"role"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type userMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

func newUserResponse(user models.AuthUser) userResponse {
	return userResponse{
		ID:           user.ID,
		Aud:          "authenticated",
		Role:         "authenticated",
		Email:        user.Email,
		UserMetadata: userMetadata{FullName: user.FullName},
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func (handler *Handler) respondSession(c *fiber.Ctx, user models.AuthUser) error {
	token, expiresAt, err := handler.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		handler.logger.Error("issue access token failed", "user_id", user.ID, "error", err)
		return apiError(c, fiber.StatusInternalServerError, "unexpected_failure", "failed to create session")
	}

	return c.JSON(sessionResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(handler.tokens.AccessTTL() / time.Second),
		ExpiresAt:   expiresAt.Unix(),
		User:        newUserResponse(user),
	})
}
