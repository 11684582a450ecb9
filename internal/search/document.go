// Package search provides full-text search over catalog items and terms
// using Bleve. Items and terms share one index and are told apart by type.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeItem DocType = "item"
	DocTypeTerm DocType = "term"
)

// ParseDocType accepts "item", "term" or "" (all).
func ParseDocType(s string) (DocType, error) {
	switch DocType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case DocTypeItem:
		return DocTypeItem, nil
	case DocTypeTerm:
		return DocTypeTerm, nil
	}
	return "", fmt.Errorf("unknown search kind %q", s)
}

// DocID returns the index key of an entity, e.g. "item-12".
func DocID(t DocType, id int64) string {
	return string(t) + "-" + strconv.FormatInt(id, 10)
}

// SearchDocument is the unified document structure for the Bleve index.
type SearchDocument struct {
	ID       string  `json:"id"`
	Type     DocType `json:"type"`
	EntityID int64   `json:"entity_id"`

	// Item name or term name.
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Item fields.
	Source   string `json:"source,omitempty"`
	ItemType string `json:"item_type,omitempty"`

	// Term fields.
	Slug     string `json:"slug,omitempty"`
	Taxonomy string `json:"taxonomy,omitempty"`
	Count    int64  `json:"count,omitempty"`
}

// ToMap converts the document to a map keyed by the mapped field names.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":        d.ID,
		"type":      string(d.Type),
		"entity_id": d.EntityID,
		"name":      d.Name,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Source != "" {
		m["source"] = d.Source
	}
	if d.ItemType != "" {
		m["item_type"] = d.ItemType
	}
	if d.Slug != "" {
		m["slug"] = d.Slug
	}
	if d.Taxonomy != "" {
		m["taxonomy"] = d.Taxonomy
	}
	if d.Type == DocTypeTerm {
		m["count"] = d.Count
	}

	return m
}

// ItemToSearchDocument converts a catalog item to a SearchDocument.
func ItemToSearchDocument(item *domain.Item) *SearchDocument {
	return &SearchDocument{
		ID:          DocID(DocTypeItem, item.ID),
		Type:        DocTypeItem,
		EntityID:    item.ID,
		Name:        item.Name,
		Description: item.Description,
		Source:      item.Source,
		ItemType:    item.Type,
	}
}

// TermToSearchDocument converts a term to a SearchDocument.
func TermToSearchDocument(term *domain.Term) *SearchDocument {
	return &SearchDocument{
		ID:          DocID(DocTypeTerm, term.ID),
		Type:        DocTypeTerm,
		EntityID:    term.ID,
		Name:        term.Name,
		Description: term.Description,
		Slug:        term.Slug,
		Taxonomy:    term.Taxonomy,
		Count:       term.Count,
	}
}
