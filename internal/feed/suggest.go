package feed

import (
	"context"
	"fmt"

	"github.com/onnwee/kuchikomi/internal/profile"
)

// Suggestion defaults.
const (
	DefaultSuggestionLimit    = 8
	DefaultSuggestionPosition = 1
	DefaultSuggestionTitle    = "Suggested for you"

	// coldStartMaxFollows is the largest follow count that still gets suggestions.
	coldStartMaxFollows = 1
)

// SuggestionBlock is a per-request list of profiles to follow. Position is the
// index in the page before which the block is shown.
type SuggestionBlock struct {
	Title    string            `json:"title"`
	Position int               `json:"position"`
	Profiles []profile.Profile `json:"profiles"`
}

// Injector builds suggestion blocks for viewers with a small social graph.
type Injector struct {
	directory profile.Directory
	limit     int
	position  int
	title     string
}

// NewInjector creates an Injector. Non-positive limit and negative position
// fall back to the defaults.
func NewInjector(directory profile.Directory, limit, position int) *Injector {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if position < 0 {
		position = DefaultSuggestionPosition
	}
	return &Injector{
		directory: directory,
		limit:     limit,
		position:  position,
		title:     DefaultSuggestionTitle,
	}
}

// MaybeInject returns a block of recent public profiles when followCount is
// zero or one. Profiles in exclude are skipped. It returns nil when the
// viewer follows more than one user or no eligible profile remains.
func (in *Injector) MaybeInject(ctx context.Context, followCount int, exclude map[string]bool) (*SuggestionBlock, error) {
	if followCount > coldStartMaxFollows {
		return nil, nil
	}

	// Over-fetch so that exclusions cannot shrink the block below the cap.
	candidates, err := in.directory.RecentPublicProfiles(ctx, in.limit+len(exclude))
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion candidates: %w", err)
	}

	profiles := make([]profile.Profile, 0, in.limit)
	for _, p := range candidates {
		if exclude[p.ID] {
			continue
		}
		profiles = append(profiles, p)
		if len(profiles) == in.limit {
			break
		}
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	return &SuggestionBlock{
		Title:    in.title,
		Position: in.position,
		Profiles: profiles,
	}, nil
}
