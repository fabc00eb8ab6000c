package model

import (
	"slices"
	"time"
)

// Template is a parameterized title/body pair keyed by notification type.
// Placeholders use the {{name}} form.
type Template struct {
	Type              Type          `json:"type"`
	TitleTemplate     string        `json:"title_template"`
	BodyTemplate      string        `json:"body_template"`
	DefaultChannels   []Channel     `json:"default_channels"`
	DefaultPriority   Priority      `json:"default_priority"`
	DefaultExpiration time.Duration `json:"default_expiration,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (t Template) Clone() Template {
	t.DefaultChannels = slices.Clone(t.DefaultChannels)
	return t
}
