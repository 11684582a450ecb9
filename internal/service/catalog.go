package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
	"github.com/filecatman/catalog/internal/validation"
)

// CatalogService manages item types, taxonomies and options.
type CatalogService struct {
	store     *sqlstore.Store
	logger    *slog.Logger
	validator *validation.Validator
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(st *sqlstore.Store, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: st, logger: logger, validator: validation.New()}
}

// ListItemTypes returns item types, optionally only enabled ones.
func (s *CatalogService) ListItemTypes(ctx context.Context, enabledOnly bool) ([]*domain.ItemType, error) {
	return s.store.ListItemTypes(ctx, enabledOnly)
}

// GetItemType returns one item type.
func (s *CatalogService) GetItemType(ctx context.Context, tableName string) (*domain.ItemType, error) {
	return s.store.GetItemType(ctx, tableName)
}

// ItemTypeRequest creates or replaces an item type.
type ItemTypeRequest struct {
	NounName   string   `json:"noun_name" validate:"required,max=100"`
	PluralName string   `json:"plural_name" validate:"required,max=100"`
	TableName  string   `json:"table_name" validate:"required,tablename"`
	DirName    string   `json:"dir_name,omitempty" validate:"max=100"`
	IconName   string   `json:"icon_name,omitempty" validate:"max=100"`
	Enabled    *bool    `json:"enabled,omitempty"`
	Extensions []string `json:"extensions,omitempty" validate:"max=100,dive,min=1,max=16"`
}

// UpsertItemType creates or replaces an item type. Returns true when created.
func (s *CatalogService) UpsertItemType(ctx context.Context, req ItemTypeRequest) (*domain.ItemType, bool, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, false, err
	}

	t := &domain.ItemType{
		NounName:   strings.TrimSpace(req.NounName),
		PluralName: strings.TrimSpace(req.PluralName),
		TableName:  req.TableName,
		DirName:    orDefault(req.DirName, req.PluralName),
		IconName:   orDefault(req.IconName, req.PluralName),
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	for _, e := range req.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" && !slices.Contains(t.Extensions, e) {
			t.Extensions = append(t.Extensions, e)
		}
	}

	created, err := s.store.UpsertItemType(ctx, t)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("item type saved", "table_name", t.TableName, "created", created, "extensions", len(t.Extensions))
	return t, created, nil
}

// ListTaxonomies returns taxonomies, optionally only enabled ones.
func (s *CatalogService) ListTaxonomies(ctx context.Context, enabledOnly bool) ([]*domain.Taxonomy, error) {
	return s.store.ListTaxonomies(ctx, enabledOnly)
}

// GetTaxonomy returns one taxonomy.
func (s *CatalogService) GetTaxonomy(ctx context.Context, tableName string) (*domain.Taxonomy, error) {
	return s.store.GetTaxonomy(ctx, tableName)
}

// TaxonomyRequest creates or replaces a taxonomy.
type TaxonomyRequest struct {
	NounName    string `json:"noun_name" validate:"required,max=100"`
	PluralName  string `json:"plural_name" validate:"required,max=100"`
	TableName   string `json:"table_name" validate:"required,tablename"`
	DirName     string `json:"dir_name,omitempty" validate:"max=100"`
	IconName    string `json:"icon_name,omitempty" validate:"max=100"`
	Enabled     *bool  `json:"enabled,omitempty"`
	HasChildren bool   `json:"has_children"`
	IsTags      bool   `json:"is_tags"`
}

// UpsertTaxonomy creates or replaces a taxonomy. Turning has_children off is
// refused while any of its terms has a parent.
func (s *CatalogService) UpsertTaxonomy(ctx context.Context, req TaxonomyRequest) (*domain.Taxonomy, bool, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, false, err
	}

	if !req.HasChildren {
		terms, err := s.store.ListTerms(ctx, store.TermFilter{Taxonomy: req.TableName})
		if err != nil {
			return nil, false, err
		}
		for _, t := range terms {
			if !t.IsRoot() {
				return nil, false, domainerrors.Validationf(
					"taxonomy %q has child terms (e.g. %q); move them to the root first", req.TableName, t.Name)
			}
		}
	}

	t := &domain.Taxonomy{
		NounName:    strings.TrimSpace(req.NounName),
		PluralName:  strings.TrimSpace(req.PluralName),
		TableName:   req.TableName,
		DirName:     orDefault(req.DirName, req.PluralName),
		IconName:    orDefault(req.IconName, "Categories"),
		Enabled:     req.Enabled == nil || *req.Enabled,
		HasChildren: req.HasChildren,
		IsTags:      req.IsTags,
	}
	created, err := s.store.UpsertTaxonomy(ctx, t)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("taxonomy saved", "table_name", t.TableName, "created", created)
	return t, created, nil
}

// ListOptions returns every option.
func (s *CatalogService) ListOptions(ctx context.Context) ([]domain.Option, error) {
	return s.store.ListOptions(ctx)
}

// GetOption returns one option.
func (s *CatalogService) GetOption(ctx context.Context, name string) (domain.Option, error) {
	v, err := s.store.GetOption(ctx, name)
	if err != nil {
		return domain.Option{}, err
	}
	return domain.Option{Name: name, Value: v}, nil
}

// SetOption writes an option. catLvls must be an integer in 0..10 and no
// lower than the deepest level already stored.
func (s *CatalogService) SetOption(ctx context.Context, name, value string) (domain.Option, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return domain.Option{}, domainerrors.Validation("option name must be 1 to 64 characters")
	}

	if name != domain.OptionCategoryLevels {
		if err := s.store.SetOption(ctx, name, value); err != nil {
			return domain.Option{}, err
		}
		s.logger.Info("option saved", "name", name, "value", value)
		return domain.Option{Name: name, Value: value}, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 || n > domain.MaxCategoryLevels {
		return domain.Option{}, domainerrors.Validationf("%s must be an integer between 0 and %d",
			domain.OptionCategoryLevels, domain.MaxCategoryLevels)
	}
	value = strconv.Itoa(n)

	err = s.store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		deepest, err := tx.DeepestLevel(ctx)
		if err != nil {
			return err
		}
		if deepest > n {
			return domainerrors.ValidationWithDetails(
				fmt.Sprintf("terms already sit %d levels deep, lower them before setting %s", deepest, domain.OptionCategoryLevels),
				map[string]int{
					"deepest_level": deepest,
					"max_level":     n,
				})
		}
		return tx.SetOption(ctx, name, value)
	})
	if err != nil {
		return domain.Option{}, err
	}
	s.logger.Info("option saved", "name", name, "value", value)
	return domain.Option{Name: name, Value: value}, nil
}

// CategoryLevels returns the catLvls option.
func (s *CatalogService) CategoryLevels(ctx context.Context) (int, error) {
	return s.store.CategoryLevels(ctx)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return strings.TrimSpace(def)
}


// Stats counts items, terms and relations, broken down by item type and
// taxonomy.
func (s *CatalogService) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	return s.store.Stats(ctx)
}
