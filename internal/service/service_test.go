package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// recordingEmitter keeps every emitted event for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (e *recordingEmitter) Emit(event any) {
	ev, ok := event.(sse.Event)
	if !ok {
		return
	}
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *recordingEmitter) types() []sse.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sse.EventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func (e *recordingEmitter) count(t sse.EventType) int {
	n := 0
	for _, got := range e.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}

// testEnv bundles a store on a temp SQLite file with the services under test.
type testEnv struct {
	dbPath    string
	store     *sqlstore.Store
	emitter   *recordingEmitter
	terms     *TermService
	items     *ItemService
	relations *RelationService
	trees     *TreeService
	catalog   *CatalogService
	transfer  *TransferService
	audit     *AuditService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T, path string) *sqlstore.Store {
	t.Helper()
	st, err := sqlstore.OpenSQLite(path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// newTestEnv builds services over a fresh catalog seeded with the default
// item types and taxonomies. levels < 0 uses the catLvls option.
func newTestEnv(t *testing.T, levels int) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	st := openTestStore(t, dbPath)
	logger := discardLogger()
	emitter := &recordingEmitter{}
	indexer := store.NewNoopSearchIndexer()

	env := &testEnv{
		dbPath:    dbPath,
		store:     st,
		emitter:   emitter,
		terms:     NewTermService(st, emitter, indexer, levels, logger),
		items:     NewItemService(st, emitter, indexer, logger),
		relations: NewRelationService(st, emitter, indexer, logger),
		trees:     NewTreeService(st, levels, "", logger),
		catalog:   NewCatalogService(st, logger),
		transfer:  NewTransferService(st, emitter, indexer, logger),
		audit:     NewAuditService(st, emitter, logger),
	}
	t.Cleanup(func() { _ = env.audit.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) term(t *testing.T, taxonomy, name string, parent *domain.Term) *domain.Term {
	t.Helper()
	req := CreateTermRequest{Name: name, Taxonomy: taxonomy}
	if parent != nil {
		req.ParentID = domain.Int64Ptr(parent.ID)
	}
	term, err := e.terms.CreateTerm(context.Background(), req)
	require.NoError(t, err)
	return term
}

func (e *testEnv) item(t *testing.T, name string, terms ...*domain.Term) *domain.Item {
	t.Helper()
	req := CreateItemRequest{Name: name, Type: "document", Source: name + ".pdf"}
	for _, term := range terms {
		req.TermIDs = append(req.TermIDs, term.ID)
	}
	item, err := e.items.CreateItem(context.Background(), req)
	require.NoError(t, err)
	return item
}

func (e *testEnv) count(t *testing.T, termID int64) int64 {
	t.Helper()
	term, err := e.store.GetTerm(context.Background(), termID)
	require.NoError(t, err)
	return term.Count
}

// setCount writes a term count behind the relation bookkeeping, through a
// second connection to the catalog file.
func (e *testEnv) setCount(t *testing.T, termID, count int64) {
	t.Helper()
	db, err := sql.Open("sqlite", e.dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE terms SET term_count = ? WHERE term_id = ?`, count, termID)
	require.NoError(t, err)
}

// chain creates a path of n subject terms, root first.
func (e *testEnv) chain(t *testing.T, n int) []*domain.Term {
	t.Helper()
	var (
		out    []*domain.Term
		parent *domain.Term
	)
	for i := range n {
		parent = e.term(t, "subject", "Level "+string(rune('A'+i)), parent)
		out = append(out, parent)
	}
	return out
}
