package domain

import (
	"strings"
	"time"
)

// ItemTimeLayout is the stored layout of Item.Time.
const ItemTimeLayout = "2006-01-02 15:04:05"

// ZeroItemTime is the legacy "no date" marker found in older catalogs.
const ZeroItemTime = "0000-00-00 00:00:00"

// Item is a catalogued file or web link.
type Item struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`   // item type table name, e.g. "document"
	Source      string  `json:"source"` // file name or URL
	Time        *string `json:"time,omitempty"`
	Description string  `json:"description,omitempty"`
}

// NormalizeItemTime maps empty and zero dates to nil.
func NormalizeItemTime(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || v == ZeroItemTime {
		return nil
	}
	return &v
}

// ParsedTime returns Item.Time as a time.Time, or the zero time when unset or
// unparsable.
func (i *Item) ParsedTime() time.Time {
	if i.Time == nil {
		return time.Time{}
	}
	t, err := time.Parse(ItemTimeLayout, *i.Time)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatItemTime formats t in the stored layout.
func FormatItemTime(t time.Time) string {
	return t.UTC().Format(ItemTimeLayout)
}

// Relation links an item to a term.
type Relation struct {
	ItemID int64 `json:"item_id"`
	TermID int64 `json:"term_id"`
}

// RelationSide selects which end of a relation a bulk removal targets.
type RelationSide int

const (
	// SideItem removes every relation of an item.
	SideItem RelationSide = iota
	// SideTerm removes every relation of a term.
	SideTerm
)

func (s RelationSide) String() string {
	if s == SideTerm {
		return "term"
	}
	return "item"
}
