package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL   = 7 * 24 * time.Hour
	DefaultRecoveryTokenTTL = 30 * time.Minute

	accessTokenPurpose   = "access"
	recoveryTokenPurpose = "recovery"
)

var (
	ErrTokenMissing              = errors.New("missing token")
	ErrTokenInvalid              = errors.New("invalid token")
	ErrTokenInvalidPurpose       = errors.New("invalid token purpose")
	ErrTokenExpired              = errors.New("expired token")
	ErrTokenInvalidUserID        = errors.New("invalid token user id")
	ErrTokenInvalidPasswordState = errors.New("invalid token password state")
)

type TokenClaims struct {
	UserID        string `json:"uid"`
	Email         string `json:"email,omitempty"`
	Purpose       string `json:"purpose"`
	PasswordState string `json:"password_state,omitempty"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secretKey   []byte
	accessTTL   time.Duration
	recoveryTTL time.Duration
	now         func() time.Time
}

func NewTokenIssuer(secretKey []byte, accessTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	return &TokenIssuer{
		secretKey:   secretKey,
		accessTTL:   accessTTL,
		recoveryTTL: DefaultRecoveryTokenTTL,
		now:         time.Now,
	}
}

func (issuer *TokenIssuer) AccessTTL() time.Duration {
	return issuer.accessTTL
}

func (issuer *TokenIssuer) IssueAccessToken(userID string, email string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, ErrTokenInvalidUserID
	}
	now := issuer.now()
	expiresAt := now.Add(issuer.accessTTL)

	claims := TokenClaims{
		UserID:  userID,
		Email:   email,
		Purpose: accessTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (issuer *TokenIssuer) ParseAccessToken(rawToken string) (*TokenClaims, error) {
	claims, err := issuer.parse(rawToken, accessTokenPurpose)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueRecoveryToken binds the token to the current password hash so it stops working once the password changes.
func (issuer *TokenIssuer) IssueRecoveryToken(userID string, passwordHash string) (string, error) {
	passwordState := PasswordStateFingerprint(passwordHash)
	if passwordState == "" {
		return "", ErrTokenInvalidPasswordState
	}
	now := issuer.now()

	claims := TokenClaims{
		UserID:        userID,
		Purpose:       recoveryTokenPurpose,
		PasswordState: passwordState,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(issuer.recoveryTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secretKey)
}

func (issuer *TokenIssuer) ParseRecoveryToken(rawToken string) (*TokenClaims, error) {
	claims, err := issuer.parse(rawToken, recoveryTokenPurpose)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.PasswordState) == "" {
		return nil, ErrTokenInvalidPasswordState
	}
	return claims, nil
}

func (issuer *TokenIssuer) parse(rawToken string, purpose string) (*TokenClaims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrTokenMissing
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return issuer.secretKey, nil
	}, jwt.WithTimeFunc(issuer.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != purpose {
		return nil, ErrTokenInvalidPurpose
	}
	if claims.ExpiresAt == nil {
		return nil, ErrTokenExpired
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalidUserID
	}
	return claims, nil
}

func PasswordStateFingerprint(passwordHash string) string {
	normalizedHash := strings.TrimSpace(passwordHash)
	if normalizedHash == "" {
		return ""
	}

	sum := sha256.Sum256([]byte("us.recovery.password-state.v1:" + normalizedHash))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func IsPasswordStateFingerprintMatch(expected string, passwordHash string) bool {
	actual := PasswordStateFingerprint(passwordHash)
	if strings.TrimSpace(expected) == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
