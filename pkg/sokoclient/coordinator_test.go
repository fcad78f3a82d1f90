package sokoclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func seedSession(t *testing.T, store SessionStore) {
	t.Helper()
	err := store.Save(&Session{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		User:         User{ID: "user-1", Name: "Amina", Role: "BUYER"},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	store := NewMemorySessionStore()
	seedSession(t, store)

	var calls atomic.Int32
	gate := make(chan struct{})
	coordinator := NewRefreshCoordinator(store, func(ctx context.Context, refreshToken string) (string, error) {
		calls.Add(1)
		<-gate
		if refreshToken != "refresh-1" {
			t.Errorf("unexpected refresh token %q", refreshToken)
		}
		return "fresh-access", nil
	})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coordinator.Refresh()
		}(i)
	}

	// Give every caller time to queue behind the blocked episode, then
	// release it.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != "fresh-access" {
			t.Fatalf("caller %d got %q, want fresh-access", i, results[i])
		}
	}

	session, err := store.Load()
	if err != nil || session == nil {
		t.Fatalf("load session: %v", err)
	}
	if session.AccessToken != "fresh-access" {
		t.Fatalf("store not updated, access token %q", session.AccessToken)
	}
	if session.RefreshToken != "refresh-1" {
		t.Fatalf("refresh token must not rotate, got %q", session.RefreshToken)
	}
	if session.User.ID != "user-1" {
		t.Fatalf("user snapshot lost: %+v", session.User)
	}
}

func TestRefreshFailureRejectsAllAndClearsSession(t *testing.T) {
	store := NewMemorySessionStore()
	seedSession(t, store)

	refreshErr := errors.New("refresh token expired")
	var calls atomic.Int32
	gate := make(chan struct{})
	coordinator := NewRefreshCoordinator(store, func(context.Context, string) (string, error) {
		calls.Add(1)
		<-gate
		return "", refreshErr
	})

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)

	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coordinator.Refresh()
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	for i := 0; i < n; i++ {
		if !errors.Is(errs[i], refreshErr) {
			t.Fatalf("caller %d: expected shared failure, got %v", i, errs[i])
		}
	}

	session, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if session != nil {
		t.Fatalf("expected cleared session, got %+v", session)
	}
}

func TestRefreshReturnsToIdle(t *testing.T) {
	store := NewMemorySessionStore()
	seedSession(t, store)

	var calls atomic.Int32
	coordinator := NewRefreshCoordinator(store, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "fresh-access", nil
	})

	// Sequential refreshes are separate episodes; each dispatches its own
	// call.
	if _, err := coordinator.Refresh(); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := coordinator.Refresh(); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two episodes, got %d calls", got)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	store := NewMemorySessionStore()
	coordinator := NewRefreshCoordinator(store, func(context.Context, string) (string, error) {
		t.Fatal("refresh endpoint must not be called without a session")
		return "", nil
	})

	if _, err := coordinator.Refresh(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
