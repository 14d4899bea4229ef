package services

import (
	"net/mail"
	"strings"
)

func NormalizeAuthEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ""
	}
	address, err := mail.ParseAddress(email)
	if err != nil || address.Address != email {
		return ""
	}
	return email
}

func NormalizeCredentialsInput(emailRaw string, passwordRaw string) (string, string, error) {
	email := NormalizeAuthEmail(emailRaw)
	if email == "" || strings.TrimSpace(passwordRaw) == "" {
		return "", "", ErrCredentialsRequired
	}
	return email, passwordRaw, nil
}

func NormalizeFullName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
