// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"testing"
)

type mockBackend struct{ endpoint string }

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("alpha", func(_ context.Context, params map[string]string) (*mockBackend, error) {
		return &mockBackend{endpoint: params["endpoint"]}, nil
	})

	b, err := r.New(context.Background(), "alpha", map[string]string{"endpoint": "localhost:9000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.endpoint != "localhost:9000" {
		t.Errorf("expected endpoint 'localhost:9000', got %q", b.endpoint)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry[*mockBackend]("widget")
	r.Register("a", func(_ context.Context, _ map[string]string) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	_, err := r.New(context.Background(), "z", nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	want := `unknown widget provider: "z" (available: [a])`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestRegistry_Registered(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("known", func(_ context.Context, _ map[string]string) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	if !r.Registered("known") {
		t.Error("Registered(known) = false, want true")
	}
	if r.Registered("unknown") {
		t.Error("Registered(unknown) = true, want false")
	}
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("bravo", func(_ context.Context, _ map[string]string) (*mockBackend, error) {
		return &mockBackend{}, nil
	})
	r.Register("alpha", func(_ context.Context, _ map[string]string) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	avail := r.Available()
	if len(avail) != 2 || avail[0] != "alpha" || avail[1] != "bravo" {
		t.Errorf("Available() = %v, want [alpha bravo]", avail)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[*mockBackend]("test")
	r.Register("dup", func(_ context.Context, _ map[string]string) (*mockBackend, error) {
		return &mockBackend{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("dup", func(_ context.Context, _ map[string]string) (*mockBackend, error) {
		return &mockBackend{}, nil
	})
}
