package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
	"github.com/filecatman/catalog/internal/transfer"
	"github.com/filecatman/catalog/internal/validation"
)

// TransferService exports and imports whole catalogs as XML.
type TransferService struct {
	store   *sqlstore.Store
	emitter store.EventEmitter
	indexer store.SearchIndexer
	logger  *slog.Logger
}

// NewTransferService creates a new transfer service.
func NewTransferService(st *sqlstore.Store, emitter store.EventEmitter, indexer store.SearchIndexer, logger *slog.Logger) *TransferService {
	return &TransferService{store: st, emitter: emitter, indexer: indexer, logger: logger}
}

// ExportSummary counts exported elements.
type ExportSummary struct {
	ItemTypes  int `json:"item_types"`
	Taxonomies int `json:"taxonomies"`
	Categories int `json:"categories"`
	Items      int `json:"items"`
	Relations  int `json:"relations"`
}

// Export writes the whole catalog to w.
func (s *TransferService) Export(ctx context.Context, w io.Writer) (ExportSummary, error) {
	doc, sum, err := s.buildDocument(ctx)
	if err != nil {
		return ExportSummary{}, err
	}
	if err := transfer.Encode(w, doc); err != nil {
		return ExportSummary{}, err
	}

	s.logger.Info("catalog exported",
		"item_types", sum.ItemTypes,
		"taxonomies", sum.Taxonomies,
		"categories", sum.Categories,
		"items", sum.Items,
		"relations", sum.Relations)
	return sum, nil
}

func (s *TransferService) buildDocument(ctx context.Context) (*transfer.Document, ExportSummary, error) {
	var sum ExportSummary
	doc := &transfer.Document{}

	itemTypes, err := s.store.ListItemTypes(ctx, false)
	if err != nil {
		return nil, sum, err
	}
	for _, t := range itemTypes {
		doc.ItemTypes = append(doc.ItemTypes, transfer.FromItemType(t))
	}

	taxonomies, err := s.store.ListTaxonomies(ctx, false)
	if err != nil {
		return nil, sum, err
	}
	for _, t := range taxonomies {
		doc.Taxonomies = append(doc.Taxonomies, transfer.FromTaxonomy(t))
	}

	terms, err := s.store.ListAllTerms(ctx)
	if err != nil {
		return nil, sum, err
	}
	byID := make(map[int64]*domain.Term, len(terms))
	for _, t := range terms {
		byID[t.ID] = t
	}
	cats := make([]transfer.Category, 0, len(terms))
	for _, t := range terms {
		var parentSlug string
		if t.ParentID != nil {
			if p, ok := byID[*t.ParentID]; ok {
				parentSlug = p.Slug
			}
		}
		cats = append(cats, transfer.FromTerm(t, parentSlug))
	}
	doc.Categories = transfer.SortCategories(cats)

	items, err := s.store.ListItems(ctx, store.ItemFilter{})
	if err != nil {
		return nil, sum, err
	}
	relations, err := s.store.ListRelations(ctx)
	if err != nil {
		return nil, sum, err
	}
	related := make(map[int64][]*domain.Term)
	for _, r := range relations {
		if t, ok := byID[r.TermID]; ok {
			related[r.ItemID] = append(related[r.ItemID], t)
		}
	}
	for _, it := range items {
		itemTerms := related[it.ID]
		slices.SortFunc(itemTerms, func(a, b *domain.Term) int { return strings.Compare(a.Name, b.Name) })
		doc.Items = append(doc.Items, transfer.FromItem(it, itemTerms))
		sum.Relations += len(itemTerms)
	}

	sum.ItemTypes = len(doc.ItemTypes)
	sum.Taxonomies = len(doc.Taxonomies)
	sum.Categories = len(doc.Categories)
	sum.Items = len(doc.Items)
	return doc, sum, nil
}

// ImportSummary counts what an import changed.
type ImportSummary struct {
	ItemTypesCreated  int `json:"item_types_created"`
	ItemTypesUpdated  int `json:"item_types_updated"`
	TaxonomiesCreated int `json:"taxonomies_created"`
	TaxonomiesUpdated int `json:"taxonomies_updated"`
	TermsCreated      int `json:"terms_created"`
	TermsUpdated      int `json:"terms_updated"`
	ItemsCreated      int `json:"items_created"`
	ItemsMatched      int `json:"items_matched"`
	RelationsAdded    int `json:"relations_added"`
	RelationsSkipped  int `json:"relations_skipped"`
	// CategoryLevelsRaised is the new catLvls value when the imported
	// categories nest deeper than the old one allowed, 0 otherwise.
	CategoryLevelsRaised int `json:"category_levels_raised,omitempty"`
}

// Import reads a catalog document from r and merges it in one transaction.
//
// Item types and taxonomies are upserted by table name. Categories are
// upserted by slug and taxonomy, parents first; a parent that cannot be
// found, or that would close a loop, leaves the category at the root. Items
// already present with the same name and type are reused. Relations go
// through the paired relation insert, so counts stay exact. When the merged
// categories nest deeper than catLvls, the option is raised to fit; deeper
// than the supported maximum rejects the import.
func (s *TransferService) Import(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var sum ImportSummary

	doc, err := transfer.Decode(r)
	if err != nil {
		return sum, domainerrors.Validation(err.Error())
	}
	if err := checkDocument(doc); err != nil {
		return sum, err
	}

	var (
		touchedTerms []*domain.Term
		touchedItems []*domain.Item
	)

	err = s.store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		for _, x := range doc.ItemTypes {
			created, err := tx.UpsertItemType(ctx, x.Domain())
			if err != nil {
				return err
			}
			countUpsert(created, &sum.ItemTypesCreated, &sum.ItemTypesUpdated)
		}

		for _, x := range doc.Taxonomies {
			created, err := tx.UpsertTaxonomy(ctx, x.Domain())
			if err != nil {
				return err
			}
			countUpsert(created, &sum.TaxonomiesCreated, &sum.TaxonomiesUpdated)
		}

		ids := make(map[transfer.TermKey]int64)
		for _, c := range transfer.SortCategories(doc.Categories) {
			t, created, err := s.importCategory(ctx, tx, c, ids)
			if err != nil {
				return err
			}
			ids[c.Key()] = t.ID
			touchedTerms = append(touchedTerms, t)
			countUpsert(created, &sum.TermsCreated, &sum.TermsUpdated)
		}

		raised, err := fitCategoryLevels(ctx, tx)
		if err != nil {
			return err
		}
		sum.CategoryLevelsRaised = raised

		for _, x := range doc.Items {
			item, created, err := importItem(ctx, tx, x)
			if err != nil {
				return err
			}
			if created {
				sum.ItemsCreated++
				touchedItems = append(touchedItems, item)
			} else {
				sum.ItemsMatched++
			}

			for _, rel := range x.Relations {
				termID, ok := ids[rel.Key()]
				if !ok {
					t, err := tx.GetTermBySlug(ctx, rel.Key().Taxonomy, rel.Key().Slug)
					if errors.Is(err, store.ErrNotFound) {
						s.logger.Warn("import: relation to unknown term skipped",
							"item", item.Name, "taxonomy", rel.Taxonomy, "slug", rel.Slug)
						sum.RelationsSkipped++
						continue
					}
					if err != nil {
						return err
					}
					termID = t.ID
				}
				added, err := tx.AddRelation(ctx, item.ID, termID)
				if err != nil {
					return err
				}
				if added {
					sum.RelationsAdded++
				}
			}
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}

	if sum.CategoryLevelsRaised > 0 {
		s.logger.Warn("import raised category levels to fit the imported categories",
			"category_levels", sum.CategoryLevelsRaised)
	}
	s.logger.Info("catalog imported",
		"terms_created", sum.TermsCreated,
		"terms_updated", sum.TermsUpdated,
		"items_created", sum.ItemsCreated,
		"items_matched", sum.ItemsMatched,
		"relations_added", sum.RelationsAdded,
		"relations_skipped", sum.RelationsSkipped)

	s.emitter.Emit(sse.NewCatalogImportedEvent(sse.CatalogImportedData{
		ItemTypes:  sum.ItemTypesCreated + sum.ItemTypesUpdated,
		Taxonomies: sum.TaxonomiesCreated + sum.TaxonomiesUpdated,
		Terms:      sum.TermsCreated + sum.TermsUpdated,
		Items:      sum.ItemsCreated,
		Relations:  sum.RelationsAdded,
	}))

	for _, it := range touchedItems {
		if err := s.indexer.IndexItem(ctx, it); err != nil {
			s.logger.Warn("failed to index imported item", "item_id", it.ID, "error", err)
		}
	}
	termIDs := make([]int64, len(touchedTerms))
	for i, t := range touchedTerms {
		termIDs[i] = t.ID
	}
	// Reload so indexed counts include the imported relations.
	refreshTermIndex(ctx, s.store, s.indexer, s.logger, uniqueIDs(termIDs))

	return sum, nil
}

// fitCategoryLevels raises catLvls to the deepest stored level when that
// exceeds it and returns the new value, or 0 when nothing changed.
func fitCategoryLevels(ctx context.Context, tx *sqlstore.Tx) (int, error) {
	deepest, err := tx.DeepestLevel(ctx)
	if err != nil {
		return 0, err
	}
	levels, err := tx.CategoryLevels(ctx)
	if err != nil {
		return 0, err
	}
	if deepest <= levels {
		return 0, nil
	}
	if deepest > domain.MaxCategoryLevels {
		return 0, domainerrors.ValidationWithDetails("imported categories nest deeper than the supported maximum", map[string]int{
			"deepest_level": deepest,
			"max_level":     domain.MaxCategoryLevels,
		})
	}
	if err := tx.SetOption(ctx, domain.OptionCategoryLevels, strconv.Itoa(deepest)); err != nil {
		return 0, err
	}
	return deepest, nil
}

func (s *TransferService) importCategory(ctx context.Context, tx *sqlstore.Tx, c transfer.Category, ids map[transfer.TermKey]int64) (*domain.Term, bool, error) {
	key := c.Key()
	tax, err := tx.GetTaxonomy(ctx, key.Taxonomy)
	if err != nil {
		return nil, false, notFoundAsValidation(err, "category %q uses unknown taxonomy %q", key.Slug, key.Taxonomy)
	}

	name := strings.TrimSpace(c.Name.Text)
	if name == "" {
		name = key.Slug
	}
	t := &domain.Term{
		Name:        name,
		Slug:        key.Slug,
		Taxonomy:    key.Taxonomy,
		Description: c.Description.Text,
	}

	if pk, ok := c.ParentKey(); ok && tax.HasChildren {
		parentID, err := resolveTerm(ctx, tx, pk, ids)
		if err != nil {
			return nil, false, err
		}
		if parentID != 0 {
			loop, err := wouldLoop(ctx, tx, key, parentID)
			if err != nil {
				return nil, false, err
			}
			if loop {
				s.logger.Warn("import: parent would create a loop, category kept at root",
					"taxonomy", key.Taxonomy, "slug", key.Slug, "parent", pk.Slug)
			} else {
				t.ParentID = domain.Int64Ptr(parentID)
			}
		}
	}

	created, err := tx.UpsertTermBySlug(ctx, t)
	if err != nil {
		return nil, false, err
	}
	return t, created, nil
}

// resolveTerm finds a term imported in this run or already stored. It
// returns 0 when there is none.
func resolveTerm(ctx context.Context, tx *sqlstore.Tx, key transfer.TermKey, ids map[transfer.TermKey]int64) (int64, error) {
	if id, ok := ids[key]; ok {
		return id, nil
	}
	t, err := tx.GetTermBySlug(ctx, key.Taxonomy, key.Slug)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

// wouldLoop reports whether the stored term for key is parentID or one of
// its ancestors.
func wouldLoop(ctx context.Context, tx *sqlstore.Tx, key transfer.TermKey, parentID int64) (bool, error) {
	existing, err := tx.GetTermBySlug(ctx, key.Taxonomy, key.Slug)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.ID == parentID {
		return true, nil
	}
	chain, err := tx.Ancestors(ctx, parentID)
	if err != nil {
		return false, err
	}
	for _, a := range chain {
		if a.ID == existing.ID {
			return true, nil
		}
	}
	return false, nil
}

func importItem(ctx context.Context, tx *sqlstore.Tx, x transfer.Item) (*domain.Item, bool, error) {
	item := x.Domain()
	if _, err := tx.GetItemType(ctx, item.Type); err != nil {
		return nil, false, notFoundAsValidation(err, "item %q uses unknown item type %q", item.Name, item.Type)
	}

	existing, err := tx.FindItem(ctx, item.Name, item.Type)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if err := tx.CreateItem(ctx, item); err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// checkDocument rejects documents with unusable keys before any write.
func checkDocument(doc *transfer.Document) error {
	for _, x := range doc.ItemTypes {
		if t := x.Domain(); !validation.ValidTableName(t.TableName) || t.NounName == "" {
			return domainerrors.Validationf("item type %q has an invalid table name or no noun name", t.TableName)
		}
	}
	for _, x := range doc.Taxonomies {
		if t := x.Domain(); !validation.ValidTableName(t.TableName) || t.NounName == "" {
			return domainerrors.Validationf("taxonomy %q has an invalid table name or no noun name", t.TableName)
		}
	}
	for _, c := range doc.Categories {
		if k := c.Key(); k.Slug == "" || k.Taxonomy == "" {
			return domainerrors.Validationf("category %q is missing its slug or taxonomy", c.Name.Text)
		}
	}
	for i, x := range doc.Items {
		if strings.TrimSpace(x.Title) == "" || strings.TrimSpace(x.Type) == "" {
			return domainerrors.Validationf("item %d is missing its title or type", i+1)
		}
	}
	return nil
}

func countUpsert(created bool, createdN, updatedN *int) {
	if created {
		*createdN++
	} else {
		*updatedN++
	}
}
