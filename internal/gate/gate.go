// Package gate decides which screen stack the app shows from the session and couple membership.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/terraincognita07/us/internal/models"
)

const defaultCheckTimeout = 10 * time.Second

var ErrStopped = errors.New("gate stopped")

type SessionSource interface {
	GetSession() *models.Session
	OnSessionChange(listener func(*models.Session)) (unsubscribe func())
}

type MembershipChecker interface {
	HasCouple(ctx context.Context, userID string) (bool, error)
}

type Options struct {
	CheckTimeout time.Duration
	Logger       *slog.Logger
}

// Gate is the only writer of the gate state. Membership results are applied only
// when they belong to the most recent evaluation.
type Gate struct {
	sessions     SessionSource
	members      MembershipChecker
	checkTimeout time.Duration
	logger       *slog.Logger

	mu          sync.Mutex
	snapshot    Snapshot
	token       uint64
	changed     chan struct{}
	listeners   map[int]func(Snapshot)
	nextID      int
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	events      uint64
	evaluated   bool
	inflight    sync.WaitGroup

	notifyMu  sync.Mutex
	delivered uint64
}

func New(sessions SessionSource, members MembershipChecker, options Options) *Gate {
	if options.CheckTimeout <= 0 {
		options.CheckTimeout = defaultCheckTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		sessions:     sessions,
		members:      members,
		checkTimeout: options.CheckTimeout,
		logger:       options.Logger,
		snapshot:     Snapshot{State: Checking},
		changed:      make(chan struct{}),
		listeners:    make(map[int]func(Snapshot)),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to session changes and evaluates the current session.
func (gate *Gate) Start() {
	gate.mu.Lock()
	if gate.started || gate.stopped {
		gate.mu.Unlock()
		return
	}
	gate.started = true
	gate.mu.Unlock()

	unsubscribe := gate.sessions.OnSessionChange(gate.handleSessionChange)

	gate.mu.Lock()
	gate.unsubscribe = unsubscribe
	seen := gate.events
	gate.mu.Unlock()

	// A change event that lands before the initial read is newer than it.
	gate.evaluate(gate.sessions.GetSession(), func() bool { return gate.events == seen })
}

// Stop releases the session subscription and waits for in-flight checks. Their results are discarded.
func (gate *Gate) Stop() {
	gate.mu.Lock()
	if gate.stopped {
		gate.mu.Unlock()
		return
	}
	gate.stopped = true
	gate.cancel()
	unsubscribe := gate.unsubscribe
	gate.unsubscribe = nil
	gate.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	gate.inflight.Wait()
}

func (gate *Gate) Snapshot() Snapshot {
	gate.mu.Lock()
	defer gate.mu.Unlock()
	return gate.snapshot
}

// Subscribe registers a listener for transitions. Listeners run on the goroutine that
// caused the transition and must not call back into the gate synchronously.
func (gate *Gate) Subscribe(listener func(Snapshot)) func() {
	gate.mu.Lock()
	id := gate.nextID
	gate.nextID++
	gate.listeners[id] = listener
	gate.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			gate.mu.Lock()
			delete(gate.listeners, id)
			gate.mu.Unlock()
		})
	}
}

// Wait blocks until a snapshot satisfies match or ctx ends.
func (gate *Gate) Wait(ctx context.Context, match func(Snapshot) bool) (Snapshot, error) {
	for {
		gate.mu.Lock()
		snapshot := gate.snapshot
		changed := gate.changed
		stopped := gate.stopped
		gate.mu.Unlock()

		if match(snapshot) {
			return snapshot, nil
		}
		if stopped {
			return snapshot, ErrStopped
		}

		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-changed:
		}
	}
}

// Recheck re-runs the membership check for the current session and returns once the
// result is applied. Used after the user creates or joins a couple.
//
// A started gate evaluates the session from the latest change event. An unstarted gate
// reads the source and retries when the source moved on before the result landed.
func (gate *Gate) Recheck(ctx context.Context) error {
	for {
		observed := gate.sessions.GetSession()

		gate.mu.Lock()
		if gate.stopped {
			gate.mu.Unlock()
			return ErrStopped
		}
		listening := gate.started && gate.evaluated
		current := observed
		if listening {
			current = gate.snapshot.Session.Clone()
		}
		token, published := gate.beginLocked(current)
		gate.mu.Unlock()
		gate.publish(published)

		if current == nil {
			return nil
		}

		var confirm func() bool
		if !listening {
			confirm = func() bool { return sameUser(gate.sessions.GetSession(), current) }
		}
		applied, err := gate.check(ctx, token, current, confirm)
		if applied || listening || ctx.Err() != nil {
			return err
		}

		gate.mu.Lock()
		superseded := gate.stopped || token != gate.token
		gate.mu.Unlock()
		if superseded {
			return err
		}
	}
}

func (gate *Gate) handleSessionChange(current *models.Session) {
	gate.evaluate(current, nil)
}

// evaluate starts a check for a session delivered by the source. Change events pass a
// nil fresh; the initial read in Start passes one that rejects it once an event arrived.
func (gate *Gate) evaluate(current *models.Session, fresh func() bool) {
	gate.mu.Lock()
	if gate.stopped {
		gate.mu.Unlock()
		return
	}
	if fresh == nil {
		gate.events++
	} else if !fresh() {
		gate.mu.Unlock()
		return
	}
	token, published := gate.beginLocked(current)
	if current != nil {
		gate.inflight.Add(1)
	}
	gate.mu.Unlock()
	gate.publish(published)

	if current == nil {
		return
	}
	go func() {
		defer gate.inflight.Done()
		_, _ = gate.check(gate.ctx, token, current, nil)
	}()
}

// beginLocked starts a new evaluation. A session for a different user drops back to
// Checking. A session for the user already on screen does not enter Checking: rechecks and
// token refreshes keep the current screen until the new result lands.
func (gate *Gate) beginLocked(current *models.Session) (uint64, *Snapshot) {
	gate.token++
	token := gate.token
	gate.evaluated = true

	if current == nil {
		return token, gate.transitionLocked(Unauthenticated, nil)
	}

	if sameUser(gate.snapshot.Session, current) && gate.snapshot.State != Unauthenticated && gate.snapshot.State != Checking {
		return token, gate.transitionLocked(gate.snapshot.State, current)
	}
	return token, gate.transitionLocked(Checking, current)
}

// check runs the membership query and applies its result when token is still the latest.
// A non-nil confirm is consulted before applying and discards the result when it fails.
func (gate *Gate) check(ctx context.Context, token uint64, current *models.Session, confirm func() bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, gate.checkTimeout)
	defer cancel()

	hasCouple, err := gate.members.HasCouple(ctx, current.User.ID)
	next := AuthenticatedNoCouple
	if err != nil {
		gate.logger.Warn("couple membership check failed", "user_id", current.User.ID, "token", token, "error", err)
	} else if hasCouple {
		next = AuthenticatedWithCouple
	}

	if confirm != nil && !confirm() {
		gate.logger.Debug("session changed during membership check", "user_id", current.User.ID, "token", token)
		return false, err
	}

	gate.mu.Lock()
	if gate.stopped || token != gate.token {
		gate.mu.Unlock()
		gate.logger.Debug("discarding stale membership result", "user_id", current.User.ID, "token", token)
		return false, err
	}
	published := gate.transitionLocked(next, current)
	gate.mu.Unlock()
	gate.publish(published)
	return true, err
}

func (gate *Gate) transitionLocked(state State, current *models.Session) *Snapshot {
	previous := gate.snapshot
	if previous.State == state && sameSession(previous.Session, current) {
		return nil
	}

	gate.snapshot = Snapshot{State: state, Session: current.Clone(), Version: previous.Version + 1}
	close(gate.changed)
	gate.changed = make(chan struct{})
	gate.logger.Debug("gate transition", "from", previous.State.String(), "state", state.String(), "user_id", gate.snapshot.UserID(), "token", gate.token)

	published := gate.snapshot
	return &published
}

func (gate *Gate) publish(snapshot *Snapshot) {
	if snapshot == nil {
		return
	}

	gate.notifyMu.Lock()
	defer gate.notifyMu.Unlock()
	if snapshot.Version <= gate.delivered {
		return
	}
	gate.delivered = snapshot.Version

	gate.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(gate.listeners))
	for _, listener := range gate.listeners {
		listeners = append(listeners, listener)
	}
	gate.mu.Unlock()

	for _, listener := range listeners {
		listener(*snapshot)
	}
}

func sameUser(left *models.Session, right *models.Session) bool {
	return left != nil && right != nil && left.User.ID == right.User.ID
}

func sameSession(left *models.Session, right *models.Session) bool {
	if left == nil || right == nil {
		return left == right
	}
	return left.User.ID == right.User.ID && left.AccessToken == right.AccessToken
}
