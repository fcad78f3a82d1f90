package sokoclient

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSession is returned when a refresh is requested but no session (or no
// refresh token) is stored.
var ErrNoSession = errors.New("sokoclient: no session stored")

// refreshFunc performs the actual network call to the refresh endpoint and
// returns the new access token.
type refreshFunc func(ctx context.Context, refreshToken string) (string, error)

// coordinatorState is the refresh state machine. Exactly one refresh episode
// may be in flight at a time.
type coordinatorState int

const (
	stateIdle coordinatorState = iota
	stateRefreshing
)

type refreshResult struct {
	token string
	err   error
}

// RefreshCoordinator serializes concurrent refresh attempts. The first
// caller after expiry starts a single call to the refresh endpoint; callers
// arriving while that call is in flight join a FIFO queue and receive the
// same outcome. FIFO refers to delivery: results are handed to waiter
// channels in arrival order, but the goroutines behind them resume at the
// scheduler's discretion, which is indistinguishable since every waiter
// observes the identical outcome. On success the new access token is
// written to the session store before any waiter is released; on failure
// the whole session is cleared, so a failed refresh is terminal.
//
// The coordinator is the sole writer of the session store during a refresh
// episode, which is what makes the single-flight invariant sufficient
// without further locking around the store.
type RefreshCoordinator struct {
	mu      sync.Mutex
	state   coordinatorState
	waiters []chan refreshResult

	store   SessionStore
	refresh refreshFunc
}

// NewRefreshCoordinator builds a coordinator over the given store and
// refresh call.
func NewRefreshCoordinator(store SessionStore, refresh refreshFunc) *RefreshCoordinator {
	return &RefreshCoordinator{store: store, refresh: refresh}
}

// Refresh returns a fresh access token, starting a refresh episode if none
// is in flight and otherwise joining the one in progress. It blocks until
// the episode completes; an in-flight refresh always runs to completion.
func (rc *RefreshCoordinator) Refresh() (string, error) {
	rc.mu.Lock()
	ch := make(chan refreshResult, 1)
	rc.waiters = append(rc.waiters, ch)
	if rc.state == stateIdle {
		rc.state = stateRefreshing
		go rc.run()
	}
	rc.mu.Unlock()

	res := <-ch
	return res.token, res.err
}

// run executes one refresh episode and fans the outcome out to every caller
// queued during it, in the order they queued.
func (rc *RefreshCoordinator) run() {
	res := rc.performRefresh()

	rc.mu.Lock()
	waiters := rc.waiters
	rc.waiters = nil
	rc.state = stateIdle
	rc.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
}

func (rc *RefreshCoordinator) performRefresh() refreshResult {
	session, err := rc.store.Load()
	if err == nil && (session == nil || session.RefreshToken == "") {
		err = ErrNoSession
	}

	var token string
	if err == nil {
		// The refresh call is detached from any single caller's context:
		// it serves every queued caller and must run to completion.
		token, err = rc.refresh(context.Background(), session.RefreshToken)
	}

	if err == nil {
		session.AccessToken = token
		err = rc.store.Save(session)
	}

	if err != nil {
		// Terminal: both tokens and the user snapshot go together.
		_ = rc.store.Clear()
		return refreshResult{err: err}
	}
	return refreshResult{token: token}
}
