package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/terraincognita07/us/internal/backend"
)

func TestSignUpIssuesSessionAndSignInWorks(t *testing.T) {
	server := newTestServer(t, Options{})

	token, userID := server.signUp(t, " Ana@Example.com ", "  Ana   Lopez ")
	if token == "" || userID == "" {
		t.Fatal("expected token and user id")
	}

	user := server.call(t, http.MethodGet, "/auth/v1/user", token, nil, nil)
	if user.status != http.StatusOK {
		t.Fatalf("expected 200 for current user, got %d", user.status)
	}
	var profile userResponse
	user.decode(t, &profile)
	if profile.Email != "ana@example.com" || profile.UserMetadata.FullName != "Ana Lopez" {
		t.Fatalf("unexpected user %+v", profile)
	}

	signIn := server.call(t, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "ANA@example.com",
		"password": testPassword,
	}, nil)
	if signIn.status != http.StatusOK {
		t.Fatalf("expected sign in success, got %d %s", signIn.status, signIn.body)
	}
	var session sessionResponse
	signIn.decode(t, &session)
	if session.User.ID != userID || session.TokenType != "bearer" || session.ExpiresIn <= 0 {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestSignUpRejectsInvalidInput(t *testing.T) {
	server := newTestServer(t, Options{})
	server.signUp(t, "ana@example.com", "Ana")

	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{name: "duplicate email ignores case", email: "ANA@example.com", password: testPassword, wantCode: backend.CodeUserAlreadyExists},
		{name: "weak password", email: "ben@example.com", password: "short", wantCode: backend.CodeWeakPassword},
		{name: "malformed email", email: "not-an-email", password: testPassword, wantCode: backend.CodeValidationFailed},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			response := server.call(t, http.MethodPost, "/auth/v1/signup", "", map[string]string{
				"email":    testCase.email,
				"password": testCase.password,
			}, nil)
			if response.status != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d %s", response.status, response.body)
			}
			if code := response.errorCode(t); code != testCase.wantCode {
				t.Fatalf("expected code %q, got %q", testCase.wantCode, code)
			}
		})
	}
}

func TestTokenRejectsBadCredentialsAndRateLimits(t *testing.T) {
	server := newTestServer(t, Options{})
	server.signUp(t, "ana@example.com", "Ana")

	for attempt := 0; attempt < signInAttemptLimit; attempt++ {
		response := server.call(t, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
			"email":    "ana@example.com",
			"password": "Wr0ng!Pass",
		}, nil)
		if response.status != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d", attempt, response.status)
		}
		if code := response.errorCode(t); code != backend.CodeInvalidCredentials {
			t.Fatalf("expected invalid_credentials, got %q", code)
		}
	}

	limited := server.call(t, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "ana@example.com",
		"password": testPassword,
	}, nil)
	if limited.status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", limited.status)
	}
}

func TestTokenRequiresPasswordGrant(t *testing.T) {
	server := newTestServer(t, Options{})

	response := server.call(t, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{}, nil)
	if response.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported grant, got %d", response.status)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	server := newTestServer(t, Options{})
	token, _ := server.signUp(t, "ana@example.com", "Ana")

	if response := server.call(t, http.MethodPost, "/auth/v1/logout", token, nil, nil); response.status != http.StatusNoContent {
		t.Fatalf("expected 204 from logout, got %d", response.status)
	}

	response := server.call(t, http.MethodGet, "/auth/v1/user", token, nil, nil)
	if response.status != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", response.status)
	}
}

func TestAnonKeyIsRequiredWhenConfigured(t *testing.T) {
	server := newTestServer(t, Options{AnonKey: "anon-public-key"})

	missing := server.call(t, http.MethodPost, "/auth/v1/recover", "", map[string]string{"email": "ana@example.com"}, nil)
	if missing.status != http.StatusUnauthorized || missing.errorCode(t) != backend.CodeNoAPIKey {
		t.Fatalf("expected missing apikey to be rejected, got %d %s", missing.status, missing.body)
	}

	present := server.call(t, http.MethodPost, "/auth/v1/recover", "", map[string]string{"email": "ana@example.com"},
		map[string]string{headerAPIKey: "anon-public-key"})
	if present.status != http.StatusOK {
		t.Fatalf("expected recover to succeed with apikey, got %d %s", present.status, present.body)
	}

	anonymousBearer := server.call(t, http.MethodGet, "/rest/v1/couples", "anon-public-key", nil,
		map[string]string{headerAPIKey: "anon-public-key"})
	if anonymousBearer.status != http.StatusUnauthorized {
		t.Fatalf("expected anon key bearer to be rejected on tables, got %d", anonymousBearer.status)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	server := newTestServer(t, Options{})
	server.signUp(t, "ana@example.com", "Ana")

	unknown := server.call(t, http.MethodPost, "/auth/v1/recover?redirect_to=us://reset-password", "", map[string]string{"email": "nobody@example.com"}, nil)
	if unknown.status != http.StatusOK {
		t.Fatalf("expected 200 for unknown email, got %d", unknown.status)
	}
	if link := server.mailer.linkFor("nobody@example.com"); link != "" {
		t.Fatalf("expected no mail for unknown email, got %q", link)
	}

	requested := server.call(t, http.MethodPost, "/auth/v1/recover?redirect_to=us://reset-password", "", map[string]string{"email": "Ana@Example.com"}, nil)
	if requested.status != http.StatusOK {
		t.Fatalf("expected 200 from recover, got %d", requested.status)
	}
	recoveryToken := tokenFromLink(t, server.mailer.linkFor("ana@example.com"))

	verified := server.call(t, http.MethodPost, "/auth/v1/verify", "", map[string]string{"type": "recovery", "token": recoveryToken}, nil)
	if verified.status != http.StatusOK {
		t.Fatalf("expected verify success, got %d %s", verified.status, verified.body)
	}
	var session sessionResponse
	verified.decode(t, &session)

	newPassword := "N3w!Password"
	updated := server.call(t, http.MethodPut, "/auth/v1/user", session.AccessToken, map[string]string{"password": newPassword}, nil)
	if updated.status != http.StatusOK {
		t.Fatalf("expected password update success, got %d %s", updated.status, updated.body)
	}

	reused := server.call(t, http.MethodPost, "/auth/v1/verify", "", map[string]string{"type": "recovery", "token": recoveryToken}, nil)
	if reused.status != http.StatusForbidden || reused.errorCode(t) != backend.CodeOTPExpired {
		t.Fatalf("expected used recovery token to be rejected, got %d %s", reused.status, reused.body)
	}

	signIn := server.call(t, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "ana@example.com",
		"password": newPassword,
	}, nil)
	if signIn.status != http.StatusOK {
		t.Fatalf("expected sign in with new password, got %d", signIn.status)
	}
}

func TestUpdateUserRejectsWeakPassword(t *testing.T) {
	server := newTestServer(t, Options{})
	token, _ := server.signUp(t, "ana@example.com", "Ana")

	response := server.call(t, http.MethodPut, "/auth/v1/user", token, map[string]string{"password": "weak"}, nil)
	if response.status != http.StatusUnprocessableEntity || response.errorCode(t) != backend.CodeWeakPassword {
		t.Fatalf("expected weak password rejection, got %d %s", response.status, response.body)
	}
}

func TestUpdateUserChangesFullName(t *testing.T) {
	server := newTestServer(t, Options{})
	token, _ := server.signUp(t, "ana@example.com", "Ana")

	response := server.call(t, http.MethodPut, "/auth/v1/user", token, map[string]any{"data": map[string]string{"full_name": " Ana  María "}}, nil)
	if response.status != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.status)
	}
	if !strings.Contains(string(response.body), `"full_name":"Ana María"`) {
		t.Fatalf("expected normalized full name, got %s", response.body)
	}
}

func TestRecoveryLinkFallsBackToToken(t *testing.T) {
	if got := recoveryLink("", "abc"); got != "abc" {
		t.Fatalf("expected bare token without redirect, got %q", got)
	}
	if got := recoveryLink("us://reset-password", "abc"); got != "us://reset-password?token=abc&type=recovery" {
		t.Fatalf("unexpected link %q", got)
	}
}

func TestRecoverUsesSiteURLWithoutRedirect(t *testing.T) {
	server := newTestServer(t, Options{SiteURL: "us://reset-password"})
	server.signUp(t, "ana@example.com", "Ana")

	response := server.call(t, http.MethodPost, "/auth/v1/recover", "", map[string]string{"email": "ana@example.com"}, nil)
	if response.status != http.StatusOK {
		t.Fatalf("expected 200 from recover, got %d", response.status)
	}
	tokenFromLink(t, server.mailer.linkFor("ana@example.com"))
}
