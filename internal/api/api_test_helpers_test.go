package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/us/internal/db"
)

const (
	testSecret   = "test-secret-key-with-at-least-32-characters"
	testPassword = "Str0ng!Pass"
)

type recordingMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (mailer *recordingMailer) SendRecovery(_ context.Context, email string, link string) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	if mailer.links == nil {
		mailer.links = make(map[string]string)
	}
	mailer.links[email] = link
	return nil
}

func (mailer *recordingMailer) linkFor(email string) string {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	return mailer.links[email]
}

type testServer struct {
	app     *fiber.App
	handler *Handler
	mailer  *recordingMailer
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "us.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mailer := &recordingMailer{}
	if opts.Mailer == nil {
		opts.Mailer = mailer
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	handler, err := NewHandler(database, testSecret, opts)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterRoutes(app, handler)
	return &testServer{app: app, handler: handler, mailer: mailer}
}

type testResponse struct {
	status int
	body   []byte
}

func (response testResponse) decode(t *testing.T, dest any) {
	t.Helper()
	if err := json.Unmarshal(response.body, dest); err != nil {
		t.Fatalf("decode %s: %v", string(response.body), err)
	}
}

func (response testResponse) errorCode(t *testing.T) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	response.decode(t, &body)
	return body.Code
}

func (server *testServer) call(t *testing.T, method string, path string, token string, body any, header map[string]string) testResponse {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}

	request := httptest.NewRequest(method, path, payload)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range header {
		request.Header.Set(key, value)
	}

	response, err := server.app.Test(request, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("%s %s read body failed: %v", method, path, err)
	}
	return testResponse{status: response.StatusCode, body: raw}
}

func (server *testServer) signUp(t *testing.T, email string, fullName string) (string, string) {
	t.Helper()

	response := server.call(t, http.MethodPost, "/auth/v1/signup", "", map[string]any{
		"email":    email,
		"password": testPassword,
		"data":     map[string]string{"full_name": fullName},
	}, nil)
	if response.status != http.StatusOK {
		t.Fatalf("sign up %s: status %d body %s", email, response.status, response.body)
	}

	var session sessionResponse
	response.decode(t, &session)
	if session.AccessToken == "" || session.User.ID == "" {
		t.Fatalf("expected session in sign up response, got %s", response.body)
	}
	return session.AccessToken, session.User.ID
}

func (server *testServer) insertCouple(t *testing.T, token string, name string, code string) string {
	t.Helper()

	response := server.call(t, http.MethodPost, "/rest/v1/couples", token,
		map[string]string{"name": name, "join_code": code},
		map[string]string{headerPrefer: "return=representation"})
	if response.status != http.StatusCreated {
		t.Fatalf("insert couple: status %d body %s", response.status, response.body)
	}

	var rows []map[string]any
	response.decode(t, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected one inserted couple, got %s", response.body)
	}
	id, _ := rows[0]["id"].(string)
	if id == "" {
		t.Fatalf("expected generated couple id, got %s", response.body)
	}
	return id
}

func (server *testServer) lookupByCode(t *testing.T, token string, code string) {
	t.Helper()

	response := server.call(t, http.MethodGet, eqPath("couples", map[string]string{"join_code": code}, nil), token, nil, nil)
	if response.status != http.StatusOK {
		t.Fatalf("look up %s: status %d body %s", code, response.status, response.body)
	}
}

func (server *testServer) joinCouple(t *testing.T, token string, userID string, coupleID string, role string, wantStatus int) {
	t.Helper()

	response := server.call(t, http.MethodPost, "/rest/v1/couple_members", token,
		map[string]string{"couple_id": coupleID, "user_id": userID, "role": role}, nil)
	if response.status != wantStatus {
		t.Fatalf("join %s as %s: expected %d, got %d %s", coupleID, role, wantStatus, response.status, response.body)
	}
}

func eqPath(table string, filter map[string]string, extra url.Values) string {
	values := url.Values{}
	for column, value := range filter {
		values.Set(column, "eq."+value)
	}
	for key, list := range extra {
		for _, value := range list {
			values.Add(key, value)
		}
	}
	path := "/rest/v1/" + table
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return path
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	token := parsed.Query().Get("token")
	if token == "" || !strings.HasPrefix(link, "us://reset-password") {
		t.Fatalf("unexpected recovery link %q", link)
	}
	return token
}
