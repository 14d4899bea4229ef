package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
)

type sessionBody struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	ExpiresAt   int64    `json:"expires_at"`
	User        userBody `json:"user"`
}

type userBody struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

type userMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

func (body sessionBody) toSession(now time.Time) *models.Session {
	if body.AccessToken == "" {
		return nil
	}

	expiresAt := time.Time{}
	switch {
	case body.ExpiresAt > 0:
		expiresAt = time.Unix(body.ExpiresAt, 0).UTC()
	case body.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(body.ExpiresIn) * time.Second).UTC()
	}

	return &models.Session{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
		ExpiresAt:   expiresAt,
		User: models.SessionUser{
			ID:       body.User.ID,
			Email:    body.User.Email,
			FullName: body.User.UserMetadata.FullName,
		},
	}
}

func (client *Client) GetSession() *models.Session {
	return client.sessions.Current()
}

func (client *Client) OnSessionChange(listener func(*models.Session)) func() {
	return client.sessions.Subscribe(listener)
}

// SignUp returns a nil session when the backend requires email confirmation first.
func (client *Client) SignUp(ctx context.Context, email string, password string, profile backend.Profile) (*models.Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     userMetadata{FullName: profile.FullName},
	}

	var body sessionBody
	if err := client.do(ctx, request{method: http.MethodPost, path: authPrefix + "/signup", body: payload}, &body); err != nil {
		return nil, err
	}
	return client.adoptSession(body)
}

func (client *Client) SignInWithPassword(ctx context.Context, email string, password string) (*models.Session, error) {
	payload := map[string]string{"email": email, "password": password}
	query := url.Values{"grant_type": {"password"}}

	var body sessionBody
	if err := client.do(ctx, request{method: http.MethodPost, path: authPrefix + "/token", query: query, body: payload}, &body); err != nil {
		return nil, err
	}
	return client.adoptSession(body)
}

// SignOut drops the local session before revoking it remotely, so a slow or failing backend never keeps the user signed in.
func (client *Client) SignOut(ctx context.Context) error {
	token := client.accessToken()
	if err := client.sessions.Clear(); err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	return client.do(ctx, request{method: http.MethodPost, path: authPrefix + "/logout", token: token}, nil)
}

func (client *Client) SendPasswordReset(ctx context.Context, email string, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	payload := map[string]string{"email": email}
	return client.do(ctx, request{method: http.MethodPost, path: authPrefix + "/recover", query: query, body: payload}, nil)
}

func (client *Client) VerifyRecovery(ctx context.Context, token string) (*models.Session, error) {
	payload := map[string]string{"type": "recovery", "token": token}

	var body sessionBody
	if err := client.do(ctx, request{method: http.MethodPost, path: authPrefix + "/verify", body: payload}, &body); err != nil {
		return nil, err
	}
	return client.adoptSession(body)
}

func (client *Client) UpdatePassword(ctx context.Context, password string) error {
	token := client.accessToken()
	if token == "" {
		return backend.ErrNoSession
	}
	payload := map[string]string{"password": password}
	return client.do(ctx, request{method: http.MethodPut, path: authPrefix + "/user", body: payload, token: token}, nil)
}

func (client *Client) adoptSession(body sessionBody) (*models.Session, error) {
	current := body.toSession(time.Now())
	if current == nil {
		return nil, nil
	}
	if err := client.sessions.Set(current); err != nil {
		return nil, err
	}
	return current.Clone(), nil
}
