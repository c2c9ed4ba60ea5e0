package post

import (
	"errors"
	"slices"
)

// Moderation label constants. Labelled posts stay readable by id but never
// appear in listings, search results or timelines.
const (
	LabelHidden  = "hidden"
	LabelFlagged = "flagged"
	LabelSpam    = "spam"
)

// AllowedLabels is the exhaustive list of valid moderation labels.
var AllowedLabels = []string{
	LabelHidden,
	LabelFlagged,
	LabelSpam,
}

// ErrInvalidLabel is returned when a label is not in AllowedLabels.
var ErrInvalidLabel = errors.New("invalid moderation label")

// ValidateLabels checks that all provided labels are in the allowed list.
func ValidateLabels(labels []string) error {
	for _, label := range labels {
		if !slices.Contains(AllowedLabels, label) {
			return ErrInvalidLabel
		}
	}
	return nil
}

// HasLabel checks if a post has a specific moderation label.
func (p *Post) HasLabel(label string) bool {
	return slices.Contains(p.Labels, label)
}

// Listable reports whether the post may appear in listings: it is not
// soft-deleted and carries no moderation label.
func (p *Post) Listable() bool {
	if p.DeletedAt != nil {
		return false
	}
	return !p.HasLabel(LabelHidden) && !p.HasLabel(LabelFlagged) && !p.HasLabel(LabelSpam)
}
