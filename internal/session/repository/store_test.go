package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
)

// failingBackend returns the configured errors for every call.
type failingBackend struct {
	loadErr   error
	saveErr   error
	deleteErr error
	data      []byte
}

func (f *failingBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.data, nil
}

func (f *failingBackend) Save(ctx context.Context, key string, data []byte) error {
	return f.saveErr
}

func (f *failingBackend) Delete(ctx context.Context, key string) error {
	return f.deleteErr
}

func testSession() domain.Session {
	return domain.Session{
		User:         &domain.User{ID: "u1", Name: "A", Username: "a"},
		AccessToken:  "old",
		RefreshToken: "r1",
	}
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(), "")
	if store.Key() != DefaultKey {
		t.Errorf("Key() = %q, want %q", store.Key(), DefaultKey)
	}

	want := testSession()
	store.Set(ctx, want)
	got := store.Get(ctx)
	if got.User == nil || *got.User != *want.User {
		t.Errorf("User = %+v, want %+v", got.User, want.User)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("tokens = %+v, want %+v", got.Tokens(), want.Tokens())
	}
}

func TestStore_ClearThenGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(), "k")
	store.Set(ctx, testSession())
	store.Clear(ctx)

	got := store.Get(ctx)
	if got.IsAuthenticated() || got.User != nil {
		t.Errorf("Get after Clear = %+v, want anonymous", got)
	}
	// Clearing an empty store is a no-op.
	store.Clear(ctx)
}

func TestStore_GetEmpty(t *testing.T) {
	got := NewStore(NewMemoryBackend(), "k").Get(context.Background())
	if got.IsAuthenticated() || got.User != nil {
		t.Errorf("Get on empty store = %+v, want anonymous", got)
	}
}

func TestStore_GetSwallowsErrors(t *testing.T) {
	testCases := []struct {
		name    string
		backend *failingBackend
	}{
		{"load error", &failingBackend{loadErr: errors.New("disk unplugged")}},
		{"not json", &failingBackend{data: []byte("{broken")}},
		{"json string", &failingBackend{data: []byte(`"hello"`)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewStore(tc.backend, "k").Get(context.Background())
			if got.IsAuthenticated() || got.User != nil {
				t.Errorf("Get = %+v, want anonymous", got)
			}
		})
	}
}

func TestStore_SetAndClearSwallowErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&failingBackend{
		saveErr:   errors.New("quota exceeded"),
		deleteErr: errors.New("storage disabled"),
	}, "k")
	// Must not panic.
	store.Set(ctx, testSession())
	store.Clear(ctx)
}

func TestStore_PartialSnapshotIsNotAuthenticated(t *testing.T) {
	backend := NewMemoryBackend()
	_ = backend.Save(context.Background(), "k", []byte(`{"user":{"id":"u1"},"accessToken":"a"}`))
	got := NewStore(backend, "k").Get(context.Background())
	if got.IsAuthenticated() {
		t.Error("snapshot without refresh token must not be authenticated")
	}
	if got.AccessToken != "a" || got.User == nil {
		t.Errorf("Get = %+v, want fields coerced as stored", got)
	}
}
