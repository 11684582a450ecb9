package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/service"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listItemTypes",
		Method:      http.MethodGet,
		Path:        "/api/v1/item-types",
		Summary:     "List item types",
		Tags:        []string{tagCatalog},
	}, s.handleListItemTypes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getItemType",
		Method:      http.MethodGet,
		Path:        "/api/v1/item-types/{table}",
		Summary:     "Get item type",
		Tags:        []string{tagCatalog},
	}, s.handleGetItemType)

	huma.Register(s.api, huma.Operation{
		OperationID: "putItemType",
		Method:      http.MethodPut,
		Path:        "/api/v1/item-types/{table}",
		Summary:     "Create or replace item type",
		Description: "Answers 201 when the item type is new",
		Tags:        []string{tagCatalog},
	}, s.handlePutItemType)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTaxonomies",
		Method:      http.MethodGet,
		Path:        "/api/v1/taxonomies",
		Summary:     "List taxonomies",
		Tags:        []string{tagCatalog},
	}, s.handleListTaxonomies)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTaxonomy",
		Method:      http.MethodGet,
		Path:        "/api/v1/taxonomies/{table}",
		Summary:     "Get taxonomy",
		Tags:        []string{tagCatalog},
	}, s.handleGetTaxonomy)

	huma.Register(s.api, huma.Operation{
		OperationID: "putTaxonomy",
		Method:      http.MethodPut,
		Path:        "/api/v1/taxonomies/{table}",
		Summary:     "Create or replace taxonomy",
		Description: "Answers 201 when the taxonomy is new. has_children cannot be turned off while terms have parents",
		Tags:        []string{tagCatalog},
	}, s.handlePutTaxonomy)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/options",
		Summary:     "List options",
		Tags:        []string{tagCatalog},
	}, s.handleListOptions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getOption",
		Method:      http.MethodGet,
		Path:        "/api/v1/options/{name}",
		Summary:     "Get option",
		Tags:        []string{tagCatalog},
	}, s.handleGetOption)

	huma.Register(s.api, huma.Operation{
		OperationID: "setOption",
		Method:      http.MethodPut,
		Path:        "/api/v1/options/{name}",
		Summary:     "Set option",
		Description: "Sets an option. catLvls must be an integer between 0 and 10 and not below the deepest stored term",
		Tags:        []string{tagCatalog},
	}, s.handleSetOption)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Catalog statistics",
		Description: "Counts items, terms and relations, broken down by item type and taxonomy",
		Tags:        []string{tagCatalog},
	}, s.handleGetStats)
}

// === DTOs ===

// EnabledFilterInput filters a definition listing.
type EnabledFilterInput struct {
	EnabledOnly bool `query:"enabled_only" doc:"Only enabled definitions"`
}

// TableInput identifies a definition by table name.
type TableInput struct {
	Table string `path:"table" doc:"Table name"`
}

// ItemTypesOutput wraps the item type list for Huma.
type ItemTypesOutput struct {
	Body struct {
		ItemTypes []*domain.ItemType `json:"item_types" doc:"Item types"`
	}
}

// ItemTypeOutput wraps one item type for Huma.
type ItemTypeOutput struct {
	Status int
	Body   *domain.ItemType
}

// ItemTypeBody is an item type definition; the table name comes from the path.
type ItemTypeBody struct {
	NounName   string   `json:"noun_name" doc:"Singular display name"`
	PluralName string   `json:"plural_name" doc:"Plural display name"`
	DirName    string   `json:"dir_name,omitempty" doc:"Directory name, defaults to the plural name"`
	IconName   string   `json:"icon_name,omitempty" doc:"Icon name"`
	Enabled    *bool    `json:"enabled,omitempty" doc:"Defaults to true"`
	Extensions []string `json:"extensions,omitempty" doc:"File extensions; none makes it a weblink type"`
}

// PutItemTypeInput wraps the item type definition for Huma.
type PutItemTypeInput struct {
	Table string `path:"table" doc:"Table name"`
	Body  ItemTypeBody
}

// TaxonomiesOutput wraps the taxonomy list for Huma.
type TaxonomiesOutput struct {
	Body struct {
		Taxonomies []*domain.Taxonomy `json:"taxonomies" doc:"Taxonomies"`
	}
}

// TaxonomyOutput wraps one taxonomy for Huma.
type TaxonomyOutput struct {
	Status int
	Body   *domain.Taxonomy
}

// TaxonomyBody is a taxonomy definition; the table name comes from the path.
type TaxonomyBody struct {
	NounName    string `json:"noun_name" doc:"Singular display name"`
	PluralName  string `json:"plural_name" doc:"Plural display name"`
	DirName     string `json:"dir_name,omitempty" doc:"Directory name, defaults to the plural name"`
	IconName    string `json:"icon_name,omitempty" doc:"Icon name"`
	Enabled     *bool  `json:"enabled,omitempty" doc:"Defaults to true"`
	HasChildren bool   `json:"has_children,omitempty" doc:"Terms may have parents"`
	IsTags      bool   `json:"is_tags,omitempty" doc:"Flat free-form tags"`
}

// PutTaxonomyInput wraps the taxonomy definition for Huma.
type PutTaxonomyInput struct {
	Table string `path:"table" doc:"Table name"`
	Body  TaxonomyBody
}

// OptionsOutput wraps the option list for Huma.
type OptionsOutput struct {
	Body struct {
		Options []domain.Option `json:"options" doc:"Options"`
	}
}

// OptionNameInput identifies an option.
type OptionNameInput struct {
	Name string `path:"name" doc:"Option name"`
}

// SetOptionInput wraps an option value for Huma.
type SetOptionInput struct {
	Name string `path:"name" doc:"Option name"`
	Body struct {
		Value string `json:"value" maxLength:"10000" doc:"Option value"`
	}
}

// OptionOutput wraps one option for Huma.
type OptionOutput struct {
	Body domain.Option
}

// StatsOutput wraps catalog statistics for Huma.
type StatsOutput struct {
	Body *domain.CatalogStats
}

// === Handlers ===

func (s *Server) handleListItemTypes(ctx context.Context, input *EnabledFilterInput) (*ItemTypesOutput, error) {
	types, err := s.services.Catalog.ListItemTypes(ctx, input.EnabledOnly)
	if err != nil {
		return nil, err
	}
	out := &ItemTypesOutput{}
	out.Body.ItemTypes = types
	if out.Body.ItemTypes == nil {
		out.Body.ItemTypes = []*domain.ItemType{}
	}
	return out, nil
}

func (s *Server) handleGetItemType(ctx context.Context, input *TableInput) (*ItemTypeOutput, error) {
	t, err := s.services.Catalog.GetItemType(ctx, input.Table)
	if err != nil {
		return nil, err
	}
	return &ItemTypeOutput{Status: http.StatusOK, Body: t}, nil
}

func (s *Server) handlePutItemType(ctx context.Context, input *PutItemTypeInput) (*ItemTypeOutput, error) {
	t, created, err := s.services.Catalog.UpsertItemType(ctx, service.ItemTypeRequest{
		NounName:   input.Body.NounName,
		PluralName: input.Body.PluralName,
		TableName:  input.Table,
		DirName:    input.Body.DirName,
		IconName:   input.Body.IconName,
		Enabled:    input.Body.Enabled,
		Extensions: input.Body.Extensions,
	})
	if err != nil {
		return nil, err
	}
	return &ItemTypeOutput{Status: createdStatus(created), Body: t}, nil
}

func (s *Server) handleListTaxonomies(ctx context.Context, input *EnabledFilterInput) (*TaxonomiesOutput, error) {
	taxonomies, err := s.services.Catalog.ListTaxonomies(ctx, input.EnabledOnly)
	if err != nil {
		return nil, err
	}
	out := &TaxonomiesOutput{}
	out.Body.Taxonomies = taxonomies
	if out.Body.Taxonomies == nil {
		out.Body.Taxonomies = []*domain.Taxonomy{}
	}
	return out, nil
}

func (s *Server) handleGetTaxonomy(ctx context.Context, input *TableInput) (*TaxonomyOutput, error) {
	t, err := s.services.Catalog.GetTaxonomy(ctx, input.Table)
	if err != nil {
		return nil, err
	}
	return &TaxonomyOutput{Status: http.StatusOK, Body: t}, nil
}

func (s *Server) handlePutTaxonomy(ctx context.Context, input *PutTaxonomyInput) (*TaxonomyOutput, error) {
	t, created, err := s.services.Catalog.UpsertTaxonomy(ctx, service.TaxonomyRequest{
		NounName:    input.Body.NounName,
		PluralName:  input.Body.PluralName,
		TableName:   input.Table,
		DirName:     input.Body.DirName,
		IconName:    input.Body.IconName,
		Enabled:     input.Body.Enabled,
		HasChildren: input.Body.HasChildren,
		IsTags:      input.Body.IsTags,
	})
	if err != nil {
		return nil, err
	}
	return &TaxonomyOutput{Status: createdStatus(created), Body: t}, nil
}

func (s *Server) handleListOptions(ctx context.Context, _ *struct{}) (*OptionsOutput, error) {
	opts, err := s.services.Catalog.ListOptions(ctx)
	if err != nil {
		return nil, err
	}
	out := &OptionsOutput{}
	out.Body.Options = opts
	if out.Body.Options == nil {
		out.Body.Options = []domain.Option{}
	}
	return out, nil
}

func (s *Server) handleGetOption(ctx context.Context, input *OptionNameInput) (*OptionOutput, error) {
	opt, err := s.services.Catalog.GetOption(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	return &OptionOutput{Body: opt}, nil
}

func (s *Server) handleSetOption(ctx context.Context, input *SetOptionInput) (*OptionOutput, error) {
	opt, err := s.services.Catalog.SetOption(ctx, input.Name, input.Body.Value)
	if err != nil {
		return nil, err
	}
	return &OptionOutput{Body: opt}, nil
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (s *Server) handleGetStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	st, err := s.services.Catalog.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{Body: st}, nil
}
