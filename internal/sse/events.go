// Package sse implements Server-Sent Events for catalog change notifications
// and count audit progress.
package sse

import (
	"strings"
	"time"

	"github.com/filecatman/catalog/internal/domain"
)

// EventType represents the type of SSE Event. The part before the first dot
// is the topic clients can subscribe to.
type EventType string

const (
	EventTermCreated EventType = "term.created"
	EventTermUpdated EventType = "term.updated"
	EventTermDeleted EventType = "term.deleted"

	EventItemCreated  EventType = "item.created"
	EventItemUpdated  EventType = "item.updated"
	EventItemsDeleted EventType = "item.deleted"

	EventRelationAdded     EventType = "relation.added"
	EventRelationRemoved   EventType = "relation.removed"
	EventRelationsReplaced EventType = "relation.replaced"
	EventRelationsCleared  EventType = "relation.cleared"

	// Audit lifecycle. Exactly one of completed, cancelled or failed follows
	// every started.
	EventAuditStarted   EventType = "audit.started"
	EventAuditProgress  EventType = "audit.progress"
	EventAuditCompleted EventType = "audit.completed"
	EventAuditCancelled EventType = "audit.cancelled"
	EventAuditFailed    EventType = "audit.failed"

	EventCatalogImported EventType = "catalog.imported"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Topic returns the subscription topic of the event type.
func (t EventType) Topic() string {
	topic, _, _ := strings.Cut(string(t), ".")
	return topic
}

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, map[string]any{})
}

// TermEventData is the payload of term events.
type TermEventData struct {
	Term *domain.Term `json:"term"`
}

// NewTermEvent creates a term created/updated/deleted event.
func NewTermEvent(t EventType, term *domain.Term) Event {
	return newEvent(t, TermEventData{Term: term})
}

// ItemEventData is the payload of item created/updated events.
type ItemEventData struct {
	Item *domain.Item `json:"item"`
}

// NewItemEvent creates an item created/updated event.
func NewItemEvent(t EventType, item *domain.Item) Event {
	return newEvent(t, ItemEventData{Item: item})
}

// ItemsDeletedData lists deleted item ids.
type ItemsDeletedData struct {
	ItemIDs []int64 `json:"item_ids"`
}

// NewItemsDeletedEvent creates an item deletion event.
func NewItemsDeletedEvent(ids []int64) Event {
	return newEvent(EventItemsDeleted, ItemsDeletedData{ItemIDs: ids})
}

// RelationEventData is the payload of single relation events.
type RelationEventData struct {
	ItemID int64 `json:"item_id"`
	TermID int64 `json:"term_id"`
}

// NewRelationEvent creates a relation added/removed event.
func NewRelationEvent(t EventType, itemID, termID int64) Event {
	return newEvent(t, RelationEventData{ItemID: itemID, TermID: termID})
}

// RelationsReplacedData is the payload of a relation set replacement.
type RelationsReplacedData struct {
	ItemID  int64   `json:"item_id"`
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}

// NewRelationsReplacedEvent creates a relation.replaced event.
func NewRelationsReplacedEvent(itemID int64, added, removed []int64) Event {
	return newEvent(EventRelationsReplaced, RelationsReplacedData{ItemID: itemID, Added: added, Removed: removed})
}

// RelationsClearedData reports the removal of every relation of one item or
// one term.
type RelationsClearedData struct {
	Side    string `json:"side"` // "item" or "term"
	ID      int64  `json:"id"`
	Removed int64  `json:"removed"`
}

// NewRelationsClearedEvent creates a relation.cleared event.
func NewRelationsClearedEvent(side string, id, removed int64) Event {
	return newEvent(EventRelationsCleared, RelationsClearedData{Side: side, ID: id, Removed: removed})
}

// NewAuditEvent creates an audit lifecycle event carrying the job snapshot.
func NewAuditEvent(t EventType, job domain.AuditJob) Event {
	return newEvent(t, job)
}

// CatalogImportedData summarises an import.
type CatalogImportedData struct {
	ItemTypes  int `json:"item_types"`
	Taxonomies int `json:"taxonomies"`
	Terms      int `json:"terms"`
	Items      int `json:"items"`
	Relations  int `json:"relations"`
}

// NewCatalogImportedEvent creates a catalog.imported event.
func NewCatalogImportedEvent(d CatalogImportedData) Event {
	return newEvent(EventCatalogImported, d)
}
