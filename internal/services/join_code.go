package services

import (
	"strings"

	"github.com/terraincognita07/us/internal/security"
)

const maxJoinCodeAttempts = 5

type JoinCodeGenerator func() (string, error)

func GenerateJoinCode() (string, error) {
	return security.JoinCode()
}

func NormalizeJoinCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
