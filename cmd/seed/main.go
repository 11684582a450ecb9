// Package main seeds the catalog with a demo data set: a subject hierarchy,
// tags, authors, and items related to them.
//
// Terms are matched by slug, so running it twice adds items but no
// duplicate terms. Stop the server first when search is enabled; the index
// allows one writer.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed -items 500 -seed 7
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/id"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/search"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/slug"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

var (
	itemCount = flag.Int("items", 100, "Number of items to create")
	seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
)

// subjects is the demo hierarchy, parent before child.
var subjects = []struct{ name, parent string }{
	{"Science", ""},
	{"Physics", "Science"},
	{"Optics", "Physics"},
	{"Quantum Mechanics", "Physics"},
	{"Biology", "Science"},
	{"Genetics", "Biology"},
	{"Humanities", ""},
	{"History", "Humanities"},
	{"Ancient History", "History"},
	{"Modern History", "History"},
	{"Philosophy", "Humanities"},
	{"Arts", ""},
	{"Music", "Arts"},
	{"Painting", "Arts"},
}

var (
	tags    = []string{"Favourite", "To Read", "Archive", "Work", "Reference"}
	authors = []string{"Ada Lovelace", "Émilie du Châtelet", "Carl Sagan", "Mary Beard", "Hannah Arendt", "Brian Eno"}

	adjectives = []string{"Illustrated", "Collected", "Annotated", "Brief", "Complete", "Practical", "Early"}
	nouns      = []string{"Notes", "Lectures", "Essays", "Letters", "Field Guide", "Handbook", "Sketches", "Recordings"}
	itemTypes  = []struct{ table, ext string }{
		{"document", "pdf"},
		{"document", "epub"},
		{"image", "png"},
		{"audio", "flac"},
		{"webpage", "html"},
		{"weblink", ""},
	}
)

type seeder struct {
	terms *service.TermService
	items *service.ItemService
	rng   *rand.Rand
}

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	st, err := sqlstore.Open(sqlstore.Config{Dialect: dialect, Path: cfg.Database.Path, DSN: cfg.Database.DSN}, log.Logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var indexer store.SearchIndexer = store.NewNoopSearchIndexer()
	if cfg.Search.Enabled {
		index, err := search.NewSearchIndex(search.Options{Path: cfg.Search.IndexPath, Logger: log.Logger})
		if err != nil {
			return fmt.Errorf("open search index (is the server running?): %w", err)
		}
		defer index.Close()
		indexer = index
	}

	emitter := store.NewNoopEmitter()
	s := &seeder{
		terms: service.NewTermService(st, emitter, indexer, cfg.Catalog.CategoryLevels, log.Logger),
		items: service.NewItemService(st, emitter, indexer, log.Logger),
		rng:   rand.New(rand.NewPCG(*seed, *seed>>1)),
	}

	fmt.Printf("Seeding %s catalog (seed %d)\n", dialect, *seed)

	subjectIDs, leafIDs, err := s.seedSubjects(ctx)
	if err != nil {
		return err
	}
	tagIDs, err := s.seedFlat(ctx, "tag", tags)
	if err != nil {
		return err
	}
	authorIDs, err := s.seedFlat(ctx, "author", authors)
	if err != nil {
		return err
	}
	fmt.Printf("Terms: %d subjects, %d tags, %d authors\n", len(subjectIDs), len(tagIDs), len(authorIDs))

	created, relations := 0, 0
	for range *itemCount {
		termIDs := []int64{pick(s.rng, leafIDs), pick(s.rng, authorIDs)}
		for range s.rng.IntN(3) {
			termIDs = appendUnique(termIDs, pick(s.rng, tagIDs))
		}

		item, err := s.items.CreateItem(ctx, s.randomItem(termIDs))
		if err != nil {
			return fmt.Errorf("create item %d: %w", created+1, err)
		}
		created++
		relations += len(termIDs)
		if created%50 == 0 {
			fmt.Printf("  %d items (last: %q)\n", created, item.Name)
		}
	}

	fmt.Printf("Done: %d items, %d relations\n", created, relations)
	return nil
}

// seedSubjects creates the subject hierarchy and returns every subject id
// and the ids of the leaves.
func (s *seeder) seedSubjects(ctx context.Context) (all, leaves []int64, err error) {
	ids := make(map[string]int64, len(subjects))
	hasChild := make(map[string]bool)
	for _, sub := range subjects {
		req := service.CreateTermRequest{Name: sub.name, Taxonomy: "subject"}
		if sub.parent != "" {
			parent := ids[sub.parent]
			req.ParentID = &parent
			hasChild[sub.parent] = true
		}
		term, err := s.ensureTerm(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		ids[sub.name] = term.ID
		all = append(all, term.ID)
	}
	for _, sub := range subjects {
		if !hasChild[sub.name] {
			leaves = append(leaves, ids[sub.name])
		}
	}
	return all, leaves, nil
}

func (s *seeder) seedFlat(ctx context.Context, taxonomy string, names []string) ([]int64, error) {
	out := make([]int64, 0, len(names))
	for _, name := range names {
		term, err := s.ensureTerm(ctx, service.CreateTermRequest{Name: name, Taxonomy: taxonomy})
		if err != nil {
			return nil, err
		}
		out = append(out, term.ID)
	}
	return out, nil
}

// ensureTerm creates the term, or returns the one already holding its slug.
func (s *seeder) ensureTerm(ctx context.Context, req service.CreateTermRequest) (*domain.Term, error) {
	term, err := s.terms.CreateTerm(ctx, req)
	if err == nil {
		return term, nil
	}
	if !errors.Is(err, domainerrors.ErrAlreadyExists) {
		return nil, fmt.Errorf("create %s %q: %w", req.Taxonomy, req.Name, err)
	}
	return s.terms.GetTermBySlug(ctx, req.Taxonomy, slug.Make(req.Name))
}

func (s *seeder) randomItem(termIDs []int64) service.CreateItemRequest {
	name := pickString(s.rng, adjectives) + " " + pickString(s.rng, nouns)
	t := itemTypes[s.rng.IntN(len(itemTypes))]

	suffix, err := id.Short("", 6)
	if err != nil {
		suffix = fmt.Sprintf("-%d", s.rng.IntN(1_000_000))
	}
	base := slug.Make(name) + suffix

	source := "https://example.com/" + base
	if t.ext != "" {
		source = base + "." + t.ext
	}

	when := time.Date(2000+s.rng.IntN(25), time.Month(1+s.rng.IntN(12)), 1+s.rng.IntN(28),
		s.rng.IntN(24), s.rng.IntN(60), s.rng.IntN(60), 0, time.UTC).Format(domain.ItemTimeLayout)

	return service.CreateItemRequest{
		Name:        name,
		Type:        t.table,
		Source:      source,
		Time:        &when,
		Description: "Seeded demo item.",
		TermIDs:     termIDs,
	}
}

func pick(rng *rand.Rand, ids []int64) int64 {
	return ids[rng.IntN(len(ids))]
}

func pickString(rng *rand.Rand, s []string) string {
	return s[rng.IntN(len(s))]
}

func appendUnique(ids []int64, v int64) []int64 {
	for _, x := range ids {
		if x == v {
			return ids
		}
	}
	return append(ids, v)
}
