package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/terraincognita07/us/internal/models"
)

type fakeSessions struct {
	mu        sync.Mutex
	current   *models.Session
	listeners map[int]func(*models.Session)
	nextID    int
}

func newFakeSessions(current *models.Session) *fakeSessions {
	return &fakeSessions{current: current, listeners: map[int]func(*models.Session){}}
}

func (sessions *fakeSessions) GetSession() *models.Session {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	return sessions.current.Clone()
}

func (sessions *fakeSessions) OnSessionChange(listener func(*models.Session)) func() {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	id := sessions.nextID
	sessions.nextID++
	sessions.listeners[id] = listener
	return func() {
		sessions.mu.Lock()
		defer sessions.mu.Unlock()
		delete(sessions.listeners, id)
	}
}

func (sessions *fakeSessions) set(current *models.Session) {
	sessions.mu.Lock()
	sessions.current = current
	listeners := make([]func(*models.Session), 0, len(sessions.listeners))
	for _, listener := range sessions.listeners {
		listeners = append(listeners, listener)
	}
	sessions.mu.Unlock()

	for _, listener := range listeners {
		listener(current.Clone())
	}
}

func (sessions *fakeSessions) subscribers() int {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	return len(sessions.listeners)
}

// switchingSessions moves to another session right after handing out the current one.
type switchingSessions struct {
	*fakeSessions
	switchMu sync.Mutex
	next     *models.Session
	armed    bool
}

func (sessions *switchingSessions) switchAfterNextRead(next *models.Session) {
	sessions.switchMu.Lock()
	defer sessions.switchMu.Unlock()
	sessions.next = next
	sessions.armed = true
}

func (sessions *switchingSessions) GetSession() *models.Session {
	current := sessions.fakeSessions.GetSession()

	sessions.switchMu.Lock()
	next, armed := sessions.next, sessions.armed
	sessions.armed = false
	sessions.switchMu.Unlock()

	if armed {
		sessions.fakeSessions.set(next)
	}
	return current
}

type fakeMembership struct {
	mu      sync.Mutex
	couples map[string]bool
	errs    map[string]error
	holds   map[string]chan struct{}
	calls   int
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{couples: map[string]bool{}, errs: map[string]error{}, holds: map[string]chan struct{}{}}
}

func (members *fakeMembership) HasCouple(ctx context.Context, userID string) (bool, error) {
	members.mu.Lock()
	members.calls++
	hold := members.holds[userID]
	members.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	members.mu.Lock()
	defer members.mu.Unlock()
	return members.couples[userID], members.errs[userID]
}

func (members *fakeMembership) hold(userID string) chan struct{} {
	members.mu.Lock()
	defer members.mu.Unlock()
	release := make(chan struct{})
	members.holds[userID] = release
	return release
}

func (members *fakeMembership) callCount() int {
	members.mu.Lock()
	defer members.mu.Unlock()
	return members.calls
}

func (members *fakeMembership) setCouple(userID string, has bool) {
	members.mu.Lock()
	defer members.mu.Unlock()
	members.couples[userID] = has
}

func userSession(userID string) *models.Session {
	return &models.Session{AccessToken: "token-" + userID, User: models.SessionUser{ID: userID}}
}

func userIDOf(current *models.Session) string {
	if current == nil {
		return ""
	}
	return current.User.ID
}

func waitForState(t *testing.T, gate *Gate, state State, userID string) Snapshot {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snapshot, err := gate.Wait(ctx, func(snapshot Snapshot) bool {
		return snapshot.State == state && snapshot.UserID() == userID
	})
	if err != nil {
		t.Fatalf("waiting for %s/%q: %v (last %s/%q)", state, userID, err, snapshot.State, snapshot.UserID())
	}
	return snapshot
}

func startGate(t *testing.T, sessions *fakeSessions, members *fakeMembership) *Gate {
	t.Helper()

	gate := New(sessions, members, Options{CheckTimeout: time.Second})
	gate.Start()
	t.Cleanup(gate.Stop)
	return gate
}

func TestGateShowsMainStackOnlyWithSessionAndCouple(t *testing.T) {
	tests := []struct {
		name      string
		session   *models.Session
		hasCouple bool
		checkErr  error
		wantState State
		want      Screen
	}{
		{name: "no session", wantState: Unauthenticated, want: Screen{Stack: StackAuth, Route: RouteWelcome}},
		{name: "session without couple", session: userSession("ana"), wantState: AuthenticatedNoCouple, want: Screen{Stack: StackAuth, Route: RouteCoupleProfileChoice}},
		{name: "session with couple", session: userSession("ana"), hasCouple: true, wantState: AuthenticatedWithCouple, want: Screen{Stack: StackMain, Route: RouteHome}},
		{name: "check error", session: userSession("ana"), hasCouple: true, checkErr: errors.New("offline"), wantState: AuthenticatedNoCouple, want: Screen{Stack: StackAuth, Route: RouteCoupleProfileChoice}},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			members := newFakeMembership()
			members.couples["ana"] = testCase.hasCouple
			members.errs["ana"] = testCase.checkErr

			gate := startGate(t, newFakeSessions(testCase.session), members)
			snapshot := waitForState(t, gate, testCase.wantState, userIDOf(testCase.session))

			if got := snapshot.Screen(); got != testCase.want {
				t.Fatalf("expected screen %+v, got %+v", testCase.want, got)
			}
			mainStack := snapshot.Screen().Stack == StackMain
			if mainStack != (testCase.session != nil && testCase.hasCouple && testCase.checkErr == nil) {
				t.Fatalf("main stack shown=%v for session=%v couple=%v err=%v", mainStack, testCase.session != nil, testCase.hasCouple, testCase.checkErr)
			}
		})
	}
}

func TestGateRendersNothingWhileChecking(t *testing.T) {
	members := newFakeMembership()
	release := members.hold("ana")

	gate := startGate(t, newFakeSessions(userSession("ana")), members)
	snapshot := gate.Snapshot()
	if snapshot.State != Checking {
		t.Fatalf("expected checking, got %s", snapshot.State)
	}
	if snapshot.Screen() != (Screen{}) {
		t.Fatalf("expected blank screen while checking, got %+v", snapshot.Screen())
	}

	close(release)
	waitForState(t, gate, AuthenticatedNoCouple, "ana")
}

func TestGateDiscardsStaleMembershipResult(t *testing.T) {
	sessions := newFakeSessions(userSession("ana"))
	members := newFakeMembership()
	members.couples["ana"] = true
	releaseAna := members.hold("ana")

	gate := startGate(t, sessions, members)
	sessions.set(userSession("ben"))
	waitForState(t, gate, AuthenticatedNoCouple, "ben")

	close(releaseAna)
	gate.inflight.Wait()

	snapshot := gate.Snapshot()
	if snapshot.State != AuthenticatedNoCouple || snapshot.UserID() != "ben" {
		t.Fatalf("expected stale result to be discarded, got %s/%q", snapshot.State, snapshot.UserID())
	}
}

func TestGateSignOutDuringCheck(t *testing.T) {
	sessions := newFakeSessions(userSession("ana"))
	members := newFakeMembership()
	members.couples["ana"] = true
	release := members.hold("ana")

	gate := startGate(t, sessions, members)
	sessions.set(nil)
	waitForState(t, gate, Unauthenticated, "")

	close(release)
	gate.inflight.Wait()

	if state := gate.Snapshot().State; state != Unauthenticated {
		t.Fatalf("expected unauthenticated after sign out, got %s", state)
	}
}

func TestGateRecheckAppliesNewMembershipWithoutBlankScreen(t *testing.T) {
	members := newFakeMembership()
	gate := startGate(t, newFakeSessions(userSession("ana")), members)
	waitForState(t, gate, AuthenticatedNoCouple, "ana")

	var mu sync.Mutex
	seen := make([]State, 0)
	unsubscribe := gate.Subscribe(func(snapshot Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, snapshot.State)
	})
	defer unsubscribe()

	members.setCouple("ana", true)
	if err := gate.Recheck(context.Background()); err != nil {
		t.Fatalf("recheck: %v", err)
	}

	if state := gate.Snapshot().State; state != AuthenticatedWithCouple {
		t.Fatalf("expected with couple after recheck, got %s", state)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != AuthenticatedWithCouple {
		t.Fatalf("expected a single transition to with-couple, got %v", seen)
	}
}

func TestGateRecheckReportsCheckError(t *testing.T) {
	members := newFakeMembership()
	gate := startGate(t, newFakeSessions(userSession("ana")), members)
	waitForState(t, gate, AuthenticatedNoCouple, "ana")

	members.mu.Lock()
	members.errs["ana"] = errors.New("offline")
	members.mu.Unlock()

	if err := gate.Recheck(context.Background()); err == nil {
		t.Fatal("expected recheck to surface the check error")
	}
	if state := gate.Snapshot().State; state != AuthenticatedNoCouple {
		t.Fatalf("expected no couple after failed check, got %s", state)
	}
}

func TestGateRecheckFollowsSessionChangedDuringRead(t *testing.T) {
	sessions := &switchingSessions{fakeSessions: newFakeSessions(userSession("ana"))}
	members := newFakeMembership()
	members.couples["ana"] = true

	gate := New(sessions, members, Options{CheckTimeout: time.Second})
	gate.Start()
	t.Cleanup(gate.Stop)
	waitForState(t, gate, AuthenticatedWithCouple, "ana")

	sessions.switchAfterNextRead(userSession("ben"))
	if err := gate.Recheck(context.Background()); err != nil {
		t.Fatalf("recheck: %v", err)
	}
	gate.inflight.Wait()

	snapshot := gate.Snapshot()
	if snapshot.State != AuthenticatedNoCouple || snapshot.UserID() != "ben" {
		t.Fatalf("expected ben without couple, got %s/%q", snapshot.State, snapshot.UserID())
	}
	if snapshot.Screen().Stack == StackMain {
		t.Fatal("main stack shown for a user without a couple")
	}
}

func TestGateUnstartedRecheckFollowsSessionChangedDuringCheck(t *testing.T) {
	sessions := &switchingSessions{fakeSessions: newFakeSessions(userSession("ana"))}
	members := newFakeMembership()
	members.couples["ana"] = true

	gate := New(sessions, members, Options{CheckTimeout: time.Second})
	t.Cleanup(gate.Stop)

	sessions.switchAfterNextRead(userSession("ben"))
	if err := gate.Recheck(context.Background()); err != nil {
		t.Fatalf("recheck: %v", err)
	}

	snapshot := gate.Snapshot()
	if snapshot.State != AuthenticatedNoCouple || snapshot.UserID() != "ben" {
		t.Fatalf("expected ben without couple, got %s/%q", snapshot.State, snapshot.UserID())
	}
}

func TestGateRecheckKeepsScreenForSameUser(t *testing.T) {
	members := newFakeMembership()
	members.couples["ana"] = true
	gate := startGate(t, newFakeSessions(userSession("ana")), members)
	waitForState(t, gate, AuthenticatedWithCouple, "ana")

	release := members.hold("ana")
	done := make(chan error, 1)
	go func() { done <- gate.Recheck(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for members.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("recheck never queried membership")
		}
		time.Sleep(time.Millisecond)
	}
	if state := gate.Snapshot().State; state != AuthenticatedWithCouple {
		t.Fatalf("expected the screen to stay during recheck, got %s", state)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("recheck: %v", err)
	}
}

func TestGateStopReleasesSubscription(t *testing.T) {
	sessions := newFakeSessions(nil)
	gate := New(sessions, newFakeMembership(), Options{})
	gate.Start()
	if sessions.subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", sessions.subscribers())
	}

	gate.Stop()
	if sessions.subscribers() != 0 {
		t.Fatalf("expected subscription to be released, got %d", sessions.subscribers())
	}

	sessions.set(userSession("ana"))
	if state := gate.Snapshot().State; state != Unauthenticated {
		t.Fatalf("expected stopped gate to ignore session changes, got %s", state)
	}
	if err := gate.Recheck(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if _, err := gate.Wait(context.Background(), func(Snapshot) bool { return false }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected Wait to return ErrStopped, got %v", err)
	}
}

func TestGateVersionsIncreaseForListeners(t *testing.T) {
	sessions := newFakeSessions(nil)
	members := newFakeMembership()
	members.couples["ana"] = true
	gate := startGate(t, sessions, members)

	var mu sync.Mutex
	versions := make([]uint64, 0)
	unsubscribe := gate.Subscribe(func(snapshot Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, snapshot.Version)
	})
	defer unsubscribe()

	sessions.set(userSession("ana"))
	waitForState(t, gate, AuthenticatedWithCouple, "ana")
	sessions.set(nil)
	waitForState(t, gate, Unauthenticated, "")

	mu.Lock()
	defer mu.Unlock()
	for index := 1; index < len(versions); index++ {
		if versions[index] <= versions[index-1] {
			t.Fatalf("expected increasing versions, got %v", versions)
		}
	}
}

func TestStateAndRouteCatalog(t *testing.T) {
	if AuthenticatedWithCouple.String() != "authenticated_with_couple" || State(42).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
	if len(AuthRoutes()) != 6 || len(MainRoutes()) != 6 {
		t.Fatalf("unexpected route catalog sizes %d/%d", len(AuthRoutes()), len(MainRoutes()))
	}
}
