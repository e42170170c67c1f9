package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
)

func newTestRefresher(api *fakeRefreshAPI) (*Refresher, *fakeClock) {
	clock := newFakeClock()
	r := NewRefresher(api)
	r.now = clock.Now
	return r, clock
}

func TestRefresher_EmptyTokenMakesNoCall(t *testing.T) {
	api := &fakeRefreshAPI{}
	r, _ := newTestRefresher(api)
	if _, err := r.Refresh(context.Background(), ""); !errors.Is(err, client.ErrRefreshTokenRequired) {
		t.Errorf("err = %v", err)
	}
	if api.Calls() != 0 {
		t.Error("empty token reached the API")
	}
}

func TestRefresher_ConcurrentCallersShareOneCall(t *testing.T) {
	api := &fakeRefreshAPI{tokens: domain.Tokens{AccessToken: "A2", RefreshToken: "R2"}, gate: make(chan struct{})}
	r, _ := newTestRefresher(api)

	const n = 8
	var wg sync.WaitGroup
	results := make([]domain.Tokens, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Refresh(context.Background(), "R1")
		}(i)
	}
	for api.Calls() == 0 {
		time.Sleep(time.Millisecond)
	}
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	if got := api.Calls(); got != 1 {
		t.Errorf("API calls = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i].RefreshToken != "R2" {
			t.Errorf("caller %d: %+v, %v", i, results[i], errs[i])
		}
	}
}

func TestRefresher_CancelledWaiterDoesNotFailOthers(t *testing.T) {
	api := &fakeRefreshAPI{tokens: domain.Tokens{AccessToken: "A2", RefreshToken: "R2"}, gate: make(chan struct{})}
	r, _ := newTestRefresher(api)

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := r.Refresh(ctx, "R1")
		abandoned <- err
	}()
	for api.Calls() == 0 {
		time.Sleep(time.Millisecond)
	}
	stayed := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), "R1")
		stayed <- err
	}()
	cancel()
	if err := <-abandoned; !errors.Is(err, context.Canceled) {
		t.Errorf("abandoned waiter err = %v", err)
	}
	close(api.gate)
	if err := <-stayed; err != nil {
		t.Errorf("remaining waiter err = %v", err)
	}
	if api.Calls() != 1 {
		t.Errorf("API calls = %d, want 1", api.Calls())
	}
}

func TestRefresher_LateCallerReusesRecentRotation(t *testing.T) {
	api := &fakeRefreshAPI{tokens: domain.Tokens{AccessToken: "A2", RefreshToken: "R2"}}
	r, clock := newTestRefresher(api)
	ctx := context.Background()

	if _, err := r.Refresh(ctx, "R1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	got, err := r.Refresh(ctx, "R1")
	if err != nil || got.RefreshToken != "R2" {
		t.Errorf("late caller got %+v, %v", got, err)
	}
	if api.Calls() != 1 {
		t.Errorf("API calls = %d, want 1", api.Calls())
	}

	clock.Advance(reuseWindow + time.Second)
	if _, err := r.Refresh(ctx, "R1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if api.Calls() != 2 {
		t.Errorf("API calls after window = %d, want 2", api.Calls())
	}
}

func TestRefresher_FailureIsNotRemembered(t *testing.T) {
	api := &fakeRefreshAPI{err: &client.AuthError{Status: 401, Message: "expired"}}
	r, _ := newTestRefresher(api)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := r.Refresh(ctx, "R1"); !errors.Is(err, client.ErrAuthentication) {
			t.Errorf("err = %v", err)
		}
	}
	if api.Calls() != 2 {
		t.Errorf("API calls = %d, want 2", api.Calls())
	}
}
