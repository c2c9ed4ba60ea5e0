package profile

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryDirectory_RecentPublicProfiles(t *testing.T) {
	d := NewInMemoryDirectory()
	now := time.Now()

	d.Upsert(Profile{ID: "old", DisplayName: "Old", IsPublic: true, CreatedAt: now.Add(-2 * time.Hour)})
	d.Upsert(Profile{ID: "private", DisplayName: "Private", IsPublic: false, CreatedAt: now})
	d.Upsert(Profile{ID: "new-a", DisplayName: "A", IsPublic: true, CreatedAt: now.Add(-time.Minute)})
	d.Upsert(Profile{ID: "new-b", DisplayName: "B", IsPublic: true, CreatedAt: now.Add(-time.Minute)})

	got, err := d.RecentPublicProfiles(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentPublicProfiles() error = %v", err)
	}
	want := []string{"new-b", "new-a", "old"}
	if len(got) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}

	limited, err := d.RecentPublicProfiles(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].ID != "new-b" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestInMemoryDirectory_UpsertAndGet(t *testing.T) {
	d := NewInMemoryDirectory()
	d.Upsert(Profile{ID: "u1", DisplayName: "First"})
	d.Upsert(Profile{ID: "u1", DisplayName: "Second"})

	p, err := d.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Second" || p.CreatedAt.IsZero() {
		t.Errorf("unexpected profile %+v", p)
	}

	if _, err := d.Get("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestInMemoryDirectory_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewInMemoryDirectory().RecentPublicProfiles(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
