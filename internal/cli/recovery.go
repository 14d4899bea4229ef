package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/terraincognita07/us/internal/db"
	"github.com/terraincognita07/us/internal/security"
	"github.com/terraincognita07/us/internal/services"
	"gorm.io/gorm"
)

// RunRecoveryLinkCommand issues a one-time password recovery token for email without sending mail.
func RunRecoveryLinkCommand(database *gorm.DB, secretKey string, email string, out io.Writer) error {
	normalizedEmail := services.NormalizeAuthEmail(email)
	if normalizedEmail == "" {
		return errors.New("a valid email address is required")
	}

	user, err := db.NewAuthUserRepository(database).FindByNormalizedEmail(normalizedEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %s not found", normalizedEmail)
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := security.NewTokenIssuer([]byte(secretKey), 0).IssueRecoveryToken(user.ID, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("issue recovery token: %w", err)
	}

	fmt.Fprintf(out, "Recovery token for %s:\n%s\n\n", normalizedEmail, token)
	fmt.Fprintf(out, "Run: us reset-password --token %s\n", token)
	fmt.Fprintln(out, "The token stops working once the password changes.")
	return nil
}
