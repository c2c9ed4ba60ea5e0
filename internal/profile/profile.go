// Package profile provides read access to user profiles for feed suggestions.
package profile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrProfileNotFound is returned when a profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the public view of a user.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsPublic    bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Directory lists profiles.
type Directory interface {
	// RecentPublicProfiles returns up to limit public profiles, newest first.
	RecentPublicProfiles(ctx context.Context, limit int) ([]Profile, error)
}

// InMemoryDirectory is a thread-safe in-memory Directory.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{profiles: make(map[string]Profile)}
}

// Upsert stores or replaces a profile. A zero CreatedAt is set to now.
func (d *InMemoryDirectory) Upsert(p Profile) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

// Get returns a profile by id.
func (d *InMemoryDirectory) Get(id string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// RecentPublicProfiles implements Directory. Equal creation times are
// ordered by descending id.
func (d *InMemoryDirectory) RecentPublicProfiles(ctx context.Context, limit int) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	out := make([]Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		if p.IsPublic {
			out = append(out, p)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
