// Package store defines storage errors and the contracts shared between the
// SQL store and the services built on top of it.
package store

import (
	"context"

	"github.com/filecatman/catalog/internal/domain"
)

// EventEmitter publishes catalog change events.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter.
func NewNoopEmitter() EventEmitter { return NoopEmitter{} }

// SearchIndexer keeps the search index in step with catalog writes.
type SearchIndexer interface {
	IndexItem(ctx context.Context, item *domain.Item) error
	DeleteItem(ctx context.Context, itemID int64) error
	IndexTerm(ctx context.Context, term *domain.Term) error
	DeleteTerm(ctx context.Context, termID int64) error
}

// NoopSearchIndexer is a no-op implementation for when search is disabled.
type NoopSearchIndexer struct{}

func (NoopSearchIndexer) IndexItem(context.Context, *domain.Item) error { return nil }
func (NoopSearchIndexer) DeleteItem(context.Context, int64) error       { return nil }
func (NoopSearchIndexer) IndexTerm(context.Context, *domain.Term) error { return nil }
func (NoopSearchIndexer) DeleteTerm(context.Context, int64) error       { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer.
func NewNoopSearchIndexer() SearchIndexer { return NoopSearchIndexer{} }

// TermFilter narrows term listings.
type TermFilter struct {
	Taxonomy string
	ParentID *int64 // only children of this term
	RootOnly bool
}

// ItemFilter narrows item listings. Every set field must hold.
type ItemFilter struct {
	Type    string
	TypeNot bool   // items whose type differs from Type
	TermID  int64  // only items related to this term
	Query   string // case-insensitive substring of Field
	// Keywords matches each whitespace-separated word of Query on its own
	// instead of the whole phrase.
	Keywords  bool
	Field     string // one of the ItemField constants; empty means ItemFieldName
	Relations []RelationConstraint
	TimeFrom  string // inclusive lower bound in the stored time layout
	TimeTo    string // inclusive upper bound in the stored time layout
	TimeNull  *bool  // true keeps only undated items, false only dated ones
	Limit     int
	Offset    int
}

// Item fields a text query can target.
const (
	ItemFieldName        = "name"
	ItemFieldSource      = "source"
	ItemFieldDescription = "description"
	ItemFieldAny         = "any"
)

// RelationConstraint keeps items related to a taxonomy, or to one term of it,
// or with Exclude set, items that are not.
type RelationConstraint struct {
	Taxonomy string `json:"taxonomy,omitempty"`
	TermID   int64  `json:"term_id,omitempty"` // 0 matches any term of Taxonomy
	Exclude  bool   `json:"exclude,omitempty"`
}

// RelationChange reports the outcome of a relation set replacement.
type RelationChange struct {
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}
