package ranking

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// DefaultFollowBonus is the reference boost for posts by followed authors.
const DefaultFollowBonus = 2.5

// ErrInvalidFollowBonus is returned for a negative or non-finite bonus.
var ErrInvalidFollowBonus = errors.New("follow bonus must be a finite non-negative number")

// Config holds the ranking tuning values.
type Config struct {
	FollowBonus float64 `json:"follow_bonus"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{FollowBonus: DefaultFollowBonus}
}

// Validate checks the tuning values.
func (c Config) Validate() error {
	if c.FollowBonus < 0 || math.IsNaN(c.FollowBonus) || math.IsInf(c.FollowBonus, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFollowBonus, c.FollowBonus)
	}
	return nil
}

// LogOverrides logs tuning values that differ from the defaults.
func (c Config) LogOverrides() {
	defaults := DefaultConfig()
	if c.FollowBonus != defaults.FollowBonus {
		slog.Info("ranking tuning overridden",
			"follow_bonus", fmt.Sprintf("%.2f -> %.2f", defaults.FollowBonus, c.FollowBonus))
	}
}
