package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
)

const PasswordResetRedirect = "us://reset-password"

type AuthService struct {
	client backend.Client
}

func NewAuthService(client backend.Client) *AuthService {
	return &AuthService{client: client}
}

type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

type newProfileRow struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func (service *AuthService) CurrentSession() *models.Session {
	return service.client.GetSession()
}

func (service *AuthService) SignUp(ctx context.Context, input SignUpInput) (*models.Session, error) {
	email := NormalizeAuthEmail(input.Email)
	if email == "" {
		return nil, ErrEmailInvalid
	}
	fullName := NormalizeFullName(input.FullName)
	if fullName == "" {
		return nil, ErrFullNameRequired
	}
	if err := ValidatePasswordStrength(input.Password); err != nil {
		return nil, err
	}

	current, err := service.client.SignUp(ctx, email, input.Password, backend.Profile{FullName: fullName})
	if err != nil {
		if isErrorCode(err, backend.CodeWeakPassword) {
			return nil, wrapError(ErrWeakPassword, err)
		}
		if backend.IsConflict(err) || isStatus(err, http.StatusUnprocessableEntity) {
			return nil, wrapError(ErrEmailTaken, err)
		}
		return nil, wrapError(ErrSignUpFailed, err)
	}
	if current == nil {
		current, err = service.client.SignInWithPassword(ctx, email, input.Password)
		if err != nil {
			return nil, wrapError(ErrSignUpFailed, err)
		}
	}

	profile := newProfileRow{ID: current.User.ID, Email: email, FullName: fullName}
	if err := service.client.Insert(ctx, backend.TableUsers, profile, nil); err != nil && !backend.IsConflict(err) {
		return nil, wrapError(ErrSignUpFailed, err)
	}

	slog.Info("account created", "user_id", current.User.ID)
	return current, nil
}

func (service *AuthService) SignIn(ctx context.Context, rawEmail string, password string) (*models.Session, error) {
	email, password, err := NormalizeCredentialsInput(rawEmail, password)
	if err != nil {
		return nil, err
	}

	current, err := service.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		if isClientError(err) {
			return nil, wrapError(ErrInvalidCredentials, err)
		}
		return nil, wrapError(ErrSignInFailed, err)
	}
	return current, nil
}

// SignOut reports backend failures, but the local session is already gone by then.
func (service *AuthService) SignOut(ctx context.Context) error {
	if err := service.client.SignOut(ctx); err != nil {
		slog.Warn("sign out failed", "error", err)
		return wrapError(ErrSignOutFailed, err)
	}
	return nil
}

// SendPasswordReset never reveals whether the address belongs to an account.
func (service *AuthService) SendPasswordReset(ctx context.Context, rawEmail string) error {
	email := NormalizeAuthEmail(rawEmail)
	if email == "" {
		return ErrEmailInvalid
	}
	if err := service.client.SendPasswordReset(ctx, email, PasswordResetRedirect); err != nil {
		slog.Warn("password reset request failed", "error", err)
	}
	return nil
}

func (service *AuthService) CompletePasswordReset(ctx context.Context, token string, newPassword string) (*models.Session, error) {
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return nil, err
	}

	current, err := service.client.VerifyRecovery(ctx, token)
	if err != nil {
		if isClientError(err) {
			return nil, wrapError(ErrResetTokenInvalid, err)
		}
		return nil, wrapError(ErrPasswordResetFailed, err)
	}
	if current == nil {
		return nil, ErrResetTokenInvalid
	}

	if err := service.client.UpdatePassword(ctx, newPassword); err != nil {
		return nil, wrapError(ErrPasswordResetFailed, err)
	}
	return current, nil
}

func isStatus(err error, status int) bool {
	var backendErr *backend.Error
	return errors.As(err, &backendErr) && backendErr.Status == status
}

func isErrorCode(err error, code string) bool {
	var backendErr *backend.Error
	return errors.As(err, &backendErr) && backendErr.Code == code
}

func isClientError(err error) bool {
	var backendErr *backend.Error
	return errors.As(err, &backendErr) && backendErr.Status >= 400 && backendErr.Status < 500
}
