package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/terraincognita07/us/internal/backend"
	"github.com/terraincognita07/us/internal/models"
)

type stubCall struct {
	Table  string
	Filter backend.Filter
	Row    map[string]any
}

type stubBackend struct {
	mu sync.Mutex

	session *models.Session
	rows    map[string][]map[string]any
	nextID  int

	queryErr   map[string]error
	insertErrs map[string][]error
	deleteErr  error

	signUpSession *models.Session
	signUpErr     error
	signInSession *models.Session
	signInErr     error
	signOutErr    error
	resetErr      error
	verifySession *models.Session
	verifyErr     error
	updateErr     error

	queries     []stubCall
	inserts     []stubCall
	deletes     []stubCall
	signIns     int
	signUps     int
	resetEmails []string
	redirects   []string
	passwords   []string
}

var _ backend.Client = (*stubBackend)(nil)

func newStubBackend() *stubBackend {
	return &stubBackend{
		rows:       map[string][]map[string]any{},
		queryErr:   map[string]error{},
		insertErrs: map[string][]error{},
	}
}

func (stub *stubBackend) signedIn(userID string) *stubBackend {
	stub.session = &models.Session{
		AccessToken: "token-" + userID,
		TokenType:   "bearer",
		User:        models.SessionUser{ID: userID, Email: userID + "@example.com"},
	}
	return stub
}

func (stub *stubBackend) seed(table string, row map[string]any) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.rows[table] = append(stub.rows[table], row)
}

func (stub *stubBackend) count(table string) int {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return len(stub.rows[table])
}

func (stub *stubBackend) insertsInto(table string) []stubCall {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	calls := make([]stubCall, 0)
	for _, call := range stub.inserts {
		if call.Table == table {
			calls = append(calls, call)
		}
	}
	return calls
}

func (stub *stubBackend) GetSession() *models.Session {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return stub.session.Clone()
}

func (stub *stubBackend) OnSessionChange(func(*models.Session)) func() {
	return func() {}
}

func (stub *stubBackend) SignUp(_ context.Context, email string, _ string, profile backend.Profile) (*models.Session, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.signUps++
	if stub.signUpErr != nil {
		return nil, stub.signUpErr
	}
	if stub.signUpSession != nil {
		stub.session = stub.signUpSession.Clone()
	}
	return stub.signUpSession.Clone(), nil
}

func (stub *stubBackend) SignInWithPassword(_ context.Context, email string, _ string) (*models.Session, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.signIns++
	if stub.signInErr != nil {
		return nil, stub.signInErr
	}
	next := stub.signInSession
	if next == nil {
		next = &models.Session{AccessToken: "token", User: models.SessionUser{ID: "user-signed-in", Email: email}}
	}
	stub.session = next.Clone()
	return next.Clone(), nil
}

func (stub *stubBackend) SignOut(context.Context) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.session = nil
	return stub.signOutErr
}

func (stub *stubBackend) SendPasswordReset(_ context.Context, email string, redirectTo string) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.resetEmails = append(stub.resetEmails, email)
	stub.redirects = append(stub.redirects, redirectTo)
	return stub.resetErr
}

func (stub *stubBackend) VerifyRecovery(context.Context, string) (*models.Session, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.verifyErr != nil {
		return nil, stub.verifyErr
	}
	stub.session = stub.verifySession.Clone()
	return stub.verifySession.Clone(), nil
}

func (stub *stubBackend) UpdatePassword(_ context.Context, password string) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.passwords = append(stub.passwords, password)
	return stub.updateErr
}

func (stub *stubBackend) Query(_ context.Context, table string, query backend.Query, dest any) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	stub.queries = append(stub.queries, stubCall{Table: table, Filter: query.Filter})
	if err := stub.queryErr[table]; err != nil {
		return err
	}

	matched := make([]map[string]any, 0)
	for _, row := range stub.rows[table] {
		if matchesFilter(row, query.Filter) {
			matched = append(matched, row)
		}
	}
	if query.Order != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			left := fmt.Sprint(matched[i][query.Order])
			right := fmt.Sprint(matched[j][query.Order])
			if query.Desc {
				return left > right
			}
			return left < right
		})
	}
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return remarshal(matched, dest)
}

func (stub *stubBackend) Insert(_ context.Context, table string, row any, dest any) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	fields := map[string]any{}
	if err := remarshal(row, &fields); err != nil {
		return err
	}
	stub.inserts = append(stub.inserts, stubCall{Table: table, Row: fields})

	if queued := stub.insertErrs[table]; len(queued) > 0 {
		stub.insertErrs[table] = queued[1:]
		if queued[0] != nil {
			return queued[0]
		}
	}
	if stub.violatesUnique(table, fields) {
		return &backend.Error{Status: http.StatusConflict, Code: backend.CodeUniqueViolation, Message: "duplicate key"}
	}

	if _, ok := fields["id"]; !ok {
		stub.nextID++
		fields["id"] = fmt.Sprintf("%s-%d", table, stub.nextID)
	}
	stub.rows[table] = append(stub.rows[table], fields)
	if dest == nil {
		return nil
	}
	return remarshal([]map[string]any{fields}, dest)
}

func (stub *stubBackend) Delete(_ context.Context, table string, filter backend.Filter) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	stub.deletes = append(stub.deletes, stubCall{Table: table, Filter: filter})
	if stub.deleteErr != nil {
		return stub.deleteErr
	}
	kept := make([]map[string]any, 0)
	for _, row := range stub.rows[table] {
		if !matchesFilter(row, filter) {
			kept = append(kept, row)
		}
	}
	stub.rows[table] = kept
	return nil
}

func (stub *stubBackend) violatesUnique(table string, fields map[string]any) bool {
	for _, existing := range stub.rows[table] {
		switch table {
		case backend.TableCouples:
			if existing["join_code"] == fields["join_code"] {
				return true
			}
		case backend.TableCoupleMembers:
			if existing["couple_id"] == fields["couple_id"] && existing["user_id"] == fields["user_id"] {
				return true
			}
		}
	}
	return false
}

func matchesFilter(row map[string]any, filter backend.Filter) bool {
	for column, value := range filter {
		if fmt.Sprint(row[column]) != value {
			return false
		}
	}
	return true
}

func remarshal(source any, dest any) error {
	raw, err := json.Marshal(source)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

type stubGate struct {
	mu       sync.Mutex
	rechecks int
	err      error
}

func (gate *stubGate) Recheck(context.Context) error {
	gate.mu.Lock()
	defer gate.mu.Unlock()
	gate.rechecks++
	return gate.err
}

func (gate *stubGate) count() int {
	gate.mu.Lock()
	defer gate.mu.Unlock()
	return gate.rechecks
}

func sequenceGenerator(codes ...string) JoinCodeGenerator {
	index := 0
	return func() (string, error) {
		code := codes[index%len(codes)]
		index++
		return code, nil
	}
}
