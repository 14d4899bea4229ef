// Package rest talks to a Supabase-compatible backend over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/session"
)

const (
	authPrefix = "/auth/v1"
	restPrefix = "/rest/v1"

	headerAPIKey = "apikey"
	headerPrefer = "Prefer"

	maxErrorBody = 64 << 10
)

var _ backend.Client = (*Client)(nil)

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	sessions   *session.Store
}

func New(baseURL string, anonKey string, sessions *session.Store, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if sessions == nil {
		sessions = session.NewStore("")
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		anonKey:    anonKey,
		httpClient: httpClient,
		sessions:   sessions,
	}
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
	token  string
}

func (client *Client) do(ctx context.Context, req request, dest any) error {
	endpoint := client.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var payload io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if client.anonKey != "" {
		httpReq.Header.Set(headerAPIKey, client.anonKey)
	}
	bearer := req.token
	if bearer == "" {
		bearer = client.anonKey
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", req.method, req.path, err)
	}
	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

func (client *Client) accessToken() string {
	current := client.sessions.Current()
	if current == nil {
		return ""
	}
	return current.AccessToken
}

type errorBody struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return &backend.Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	message := firstNonEmpty(body.Message, body.Msg, body.ErrorDescription, body.Error)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &backend.Error{Status: resp.StatusCode, Code: body.Code, Message: message}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func filterValues(filter backend.Filter) url.Values {
	values := url.Values{}
	for column, value := range filter {
		values.Set(column, "eq."+value)
	}
	return values
}

func queryValues(query backend.Query) url.Values {
	values := filterValues(query.Filter)
	if len(query.Select) > 0 {
		values.Set("select", strings.Join(query.Select, ","))
	}
	if query.Order != "" {
		direction := "asc"
		if query.Desc {
			direction = "desc"
		}
		values.Set("order", query.Order+"."+direction)
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	return values
}
