package sqlstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/slug"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := OpenSQLite(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustTerm creates a term in taxonomy under parent (nil for a root).
func mustTerm(t *testing.T, s *Store, taxonomy, name string, parent *int64) *domain.Term {
	t.Helper()
	term := &domain.Term{
		Name:     name,
		Slug:     slug.Make(name),
		Taxonomy: taxonomy,
		ParentID: parent,
	}
	if err := s.CreateTerm(context.Background(), term); err != nil {
		t.Fatalf("CreateTerm(%q): %v", name, err)
	}
	return term
}

func mustItem(t *testing.T, s *Store, name string) *domain.Item {
	t.Helper()
	it := &domain.Item{Name: name, Type: "document", Source: name + ".pdf"}
	if err := s.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("CreateItem(%q): %v", name, err)
	}
	return it
}

func termCount(t *testing.T, s *Store, id int64) int64 {
	t.Helper()
	term, err := s.GetTerm(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTerm(%d): %v", id, err)
	}
	return term.Count
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	if s.Dialect() != DialectSQLite {
		t.Errorf("Dialect: got %q", s.Dialect())
	}
}

func TestOpen_SeedsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	types, err := s.ListItemTypes(ctx, false)
	if err != nil {
		t.Fatalf("ListItemTypes: %v", err)
	}
	if len(types) != len(domain.DefaultItemTypes()) {
		t.Fatalf("item types: got %d, want %d", len(types), len(domain.DefaultItemTypes()))
	}

	weblink, err := s.GetItemType(ctx, "weblink")
	if err != nil {
		t.Fatalf("GetItemType: %v", err)
	}
	if !weblink.IsWeblink() {
		t.Errorf("weblink should have no extensions, got %v", weblink.Extensions)
	}

	subject, err := s.GetTaxonomy(ctx, "subject")
	if err != nil {
		t.Fatalf("GetTaxonomy: %v", err)
	}
	if !subject.HasChildren {
		t.Error("subject taxonomy should allow children")
	}

	levels, err := s.CategoryLevels(ctx)
	if err != nil {
		t.Fatalf("CategoryLevels: %v", err)
	}
	if levels != domain.DefaultCategoryLevels {
		t.Errorf("CategoryLevels: got %d, want %d", levels, domain.DefaultCategoryLevels)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := slog.New(slog.DiscardHandler)

	s, err := OpenSQLite(dbPath, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.CreateTerm(context.Background(), &domain.Term{Name: "Kept", Slug: "kept", Taxonomy: "subject"}); err != nil {
		t.Fatalf("CreateTerm: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(dbPath, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	if _, err := s.GetTermBySlug(context.Background(), "subject", "kept"); err != nil {
		t.Fatalf("term lost across reopen: %v", err)
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"", DialectSQLite, false},
		{"sqlite", DialectSQLite, false},
		{" MySQL ", DialectMySQL, false},
		{"postgres", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDialect(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetOption(ctx, domain.OptionCategoryLevels, "3"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	levels, err := s.CategoryLevels(ctx)
	if err != nil {
		t.Fatalf("CategoryLevels: %v", err)
	}
	if levels != 3 {
		t.Errorf("CategoryLevels: got %d, want 3", levels)
	}

	if err := s.SetOption(ctx, domain.OptionCategoryLevels, "99"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if levels, _ = s.CategoryLevels(ctx); levels != domain.MaxCategoryLevels {
		t.Errorf("CategoryLevels should clamp to %d, got %d", domain.MaxCategoryLevels, levels)
	}

	if err := s.SetOption(ctx, domain.OptionCategoryLevels, "lots"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if levels, _ = s.CategoryLevels(ctx); levels != domain.DefaultCategoryLevels {
		t.Errorf("CategoryLevels should fall back to default, got %d", levels)
	}

	if err := s.SetOption(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetOption new: %v", err)
	}
	v, err := s.GetOption(ctx, "theme")
	if err != nil || v != "dark" {
		t.Errorf("GetOption: got %q, %v", v, err)
	}

	opts, err := s.ListOptions(ctx)
	if err != nil {
		t.Fatalf("ListOptions: %v", err)
	}
	if len(opts) != 2 {
		t.Errorf("ListOptions: got %d options, want 2", len(opts))
	}
}

func TestUpsertItemTypeAndTaxonomy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ebook := &domain.ItemType{
		NounName: "Ebook", PluralName: "Ebooks", DirName: "Ebooks", TableName: "ebook",
		Enabled: true, Extensions: []string{"epub", "mobi"},
	}
	created, err := s.UpsertItemType(ctx, ebook)
	if err != nil || !created {
		t.Fatalf("UpsertItemType create: created=%v err=%v", created, err)
	}

	ebook.Enabled = false
	created, err = s.UpsertItemType(ctx, ebook)
	if err != nil || created {
		t.Fatalf("UpsertItemType replace: created=%v err=%v", created, err)
	}

	enabled, err := s.ListItemTypes(ctx, true)
	if err != nil {
		t.Fatalf("ListItemTypes: %v", err)
	}
	for _, it := range enabled {
		if it.TableName == "ebook" {
			t.Error("disabled item type listed as enabled")
		}
	}

	got, err := s.GetItemType(ctx, "ebook")
	if err != nil {
		t.Fatalf("GetItemType: %v", err)
	}
	if len(got.Extensions) != 2 || got.Extensions[0] != "epub" {
		t.Errorf("Extensions: got %v", got.Extensions)
	}

	genre := &domain.Taxonomy{NounName: "Genre", PluralName: "Genres", DirName: "Genres", TableName: "genre", Enabled: true, HasChildren: true}
	if created, err := s.UpsertTaxonomy(ctx, genre); err != nil || !created {
		t.Fatalf("UpsertTaxonomy: created=%v err=%v", created, err)
	}
	taxes, err := s.ListTaxonomies(ctx, false)
	if err != nil {
		t.Fatalf("ListTaxonomies: %v", err)
	}
	if len(taxes) != len(domain.DefaultTaxonomies())+1 {
		t.Errorf("ListTaxonomies: got %d", len(taxes))
	}
}
