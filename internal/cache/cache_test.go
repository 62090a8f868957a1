package cache

import (
	"context"
	"errors"
	"testing"
)

func TestGetOrFetch(t *testing.T) {
	store, err := New(10)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fetches := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		fetches++
		return []byte("content"), nil
	}

	for i := 0; i < 3; i++ {
		content, err := store.GetOrFetch(context.Background(), "abc123", fetch)
		if err != nil {
			t.Fatalf("GetOrFetch() error = %v", err)
		}
		if string(content) != "content" {
			t.Errorf("content = %q, want %q", content, "content")
		}
	}

	if fetches != 1 {
		t.Errorf("fetch called %d times, want 1", fetches)
	}
}

func TestGetOrFetchError(t *testing.T) {
	store, err := New(10)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wantErr := errors.New("network down")
	_, err = store.GetOrFetch(context.Background(), "abc123", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("GetOrFetch() error = %v, want %v", err, wantErr)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after failed fetch, want 0", store.Len())
	}
}

func TestEviction(t *testing.T) {
	store, err := New(2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fetch := func(ctx context.Context) ([]byte, error) { return []byte("x"), nil }
	for _, hash := range []string{"a", "b", "c"} {
		if _, err := store.GetOrFetch(context.Background(), hash, fetch); err != nil {
			t.Fatalf("GetOrFetch(%s) error = %v", hash, err)
		}
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) succeeded, want error")
	}
}
