package service

import (
	"context"
	"log/slog"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/store/sqlstore"
	"github.com/filecatman/catalog/internal/tree"
	"github.com/filecatman/catalog/internal/treequery"
)

// TreeService builds category trees: one flat query, reconstruction into a
// leveled pre-order list, then the in-memory model.
type TreeService struct {
	store          *sqlstore.Store
	logger         *slog.Logger
	levelsOverride int
	strategy       treequery.Strategy
}

// NewTreeService creates a new tree service. levelsOverride < 0 uses the
// catLvls option; strategy is the default query strategy.
func NewTreeService(st *sqlstore.Store, levelsOverride int, strategy treequery.Strategy, logger *slog.Logger) *TreeService {
	if strategy == "" {
		strategy = treequery.StrategyJoins
	}
	return &TreeService{store: st, logger: logger, levelsOverride: levelsOverride, strategy: strategy}
}

// TreeRequest selects and decorates a tree.
type TreeRequest struct {
	// Taxonomy limits the tree to one taxonomy. Empty builds the forest of
	// every enabled taxonomy.
	Taxonomy string
	Complete bool
	Levels   *int   // nil uses the configured category levels
	Strategy string // empty uses the service default
	// Checked pre-checks these term ids.
	Checked []int64
	// ItemID, when set, also pre-checks the terms the item is related to.
	ItemID int64
	// Check applies all, none or inverse after pre-checking.
	Check string
	// Toggle flips these term ids last. Ids outside the tree are ignored.
	Toggle []int64
	// Sort re-sorts siblings by name, ignoring case.
	Sort bool
}

// TreeResult is a built tree and the parameters it was built with.
type TreeResult struct {
	Taxonomy string
	Levels   int
	Strategy treequery.Strategy
	Model    *tree.Model
}

// BuildTree runs the tree query for req and builds the model.
func (s *TreeService) BuildTree(ctx context.Context, req TreeRequest) (*TreeResult, error) {
	apply, err := checkOperation(req.Check)
	if err != nil {
		return nil, err
	}
	opts, err := s.options(ctx, req)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.LoadTree(ctx, opts)
	if err != nil {
		return nil, err
	}

	model := tree.Build(entries)
	if req.Sort {
		model.Sort()
	}

	checked := req.Checked
	if req.ItemID != 0 {
		related, err := s.store.ItemTermIDs(ctx, req.ItemID)
		if err != nil {
			return nil, err
		}
		checked = append(append([]int64{}, checked...), related...)
	}
	if len(checked) > 0 {
		model.CheckSelection(checked)
	}
	if apply != nil {
		apply(model)
	}
	for _, id := range req.Toggle {
		if !model.CheckInverseSingle(id) {
			s.logger.Debug("toggled term not in tree", "term_id", id, "taxonomy", req.Taxonomy)
		}
	}

	return &TreeResult{
		Taxonomy: req.Taxonomy,
		Levels:   opts.Levels,
		Strategy: opts.Strategy,
		Model:    model,
	}, nil
}

// Entries returns the leveled pre-order list for req without building a
// model.
func (s *TreeService) Entries(ctx context.Context, req TreeRequest) ([]tree.Entry, error) {
	opts, err := s.options(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.store.LoadTree(ctx, opts)
}

func (s *TreeService) options(ctx context.Context, req TreeRequest) (treequery.Options, error) {
	opts := treequery.Options{Complete: req.Complete}

	strategy := s.strategy
	if req.Strategy != "" {
		parsed, err := treequery.ParseStrategy(req.Strategy)
		if err != nil {
			return opts, domainerrors.Validation(err.Error())
		}
		strategy = parsed
	}
	opts.Strategy = strategy

	if req.Levels != nil {
		if *req.Levels < 0 || *req.Levels > domain.MaxCategoryLevels {
			return opts, domainerrors.Validationf("levels must be between 0 and %d", domain.MaxCategoryLevels)
		}
		opts.Levels = *req.Levels
	} else {
		levels, err := categoryLevels(ctx, s.store, s.levelsOverride)
		if err != nil {
			return opts, err
		}
		opts.Levels = levels
	}

	if req.Taxonomy != "" {
		if _, err := s.store.GetTaxonomy(ctx, req.Taxonomy); err != nil {
			return opts, err
		}
		opts.Filter.Taxonomy = req.Taxonomy
		return opts, nil
	}

	taxonomies, err := s.store.ListTaxonomies(ctx, false)
	if err != nil {
		return opts, err
	}
	for _, t := range taxonomies {
		if !t.Enabled {
			opts.Filter.ExcludeTaxonomies = append(opts.Filter.ExcludeTaxonomies, t.TableName)
		}
	}
	return opts, nil
}

func checkOperation(op string) (func(*tree.Model), error) {
	switch op {
	case "":
		return nil, nil
	case "all":
		return (*tree.Model).CheckAll, nil
	case "none":
		return (*tree.Model).CheckNone, nil
	case "inverse":
		return (*tree.Model).CheckInverse, nil
	default:
		return nil, domainerrors.Validationf("unknown check operation %q", op)
	}
}
