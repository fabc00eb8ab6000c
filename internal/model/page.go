package model

import (
	"slices"
	"time"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is the envelope returned by list queries.
type Page[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
}

// Pagination is 1-indexed.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize fills defaults and clamps the limit.
func (p *Pagination) Normalize() Pagination {
	out := Pagination{Page: 1, Limit: DefaultPageLimit}
	if p == nil {
		return out
	}
	if p.Page > 0 {
		out.Page = p.Page
	}
	if p.Limit > 0 {
		out.Limit = min(p.Limit, MaxPageLimit)
	}
	return out
}

// Offset is the number of items skipped before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns the page count for total items.
func (p Pagination) TotalPages(total int) int {
	return (total + p.Limit - 1) / p.Limit
}

// Paginate slices items already in display order.
func Paginate[T any](items []T, p *Pagination) Page[T] {
	pg := p.Normalize()
	page := Page[T]{
		Items:       []T{},
		CurrentPage: pg.Page,
		TotalPages:  pg.TotalPages(len(items)),
		TotalItems:  len(items),
	}
	start := pg.Offset()
	if start < len(items) {
		end := min(start+pg.Limit, len(items))
		page.Items = append(page.Items, items[start:end]...)
	}
	return page
}

// Filter narrows a notification listing. Empty fields match everything.
type Filter struct {
	Types      []Type     `json:"types,omitempty"`
	Channels   []Channel  `json:"channels,omitempty"`
	Priorities []Priority `json:"priorities,omitempty"`
	Read       *bool      `json:"read,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
}

// Matches reports whether n passes every set criterion. A channel filter
// matches when the notification has any of the listed channels.
func (f *Filter) Matches(n *Notification) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, n.Type) {
		return false
	}
	if len(f.Channels) > 0 && !slices.ContainsFunc(f.Channels, n.HasChannel) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, n.Priority) {
		return false
	}
	if f.Read != nil && n.IsRead != *f.Read {
		return false
	}
	if f.DateFrom != nil && n.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && n.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}
