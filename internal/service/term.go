package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/slug"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
	"github.com/filecatman/catalog/internal/validation"
)

// TermService enforces the tree rules on term edits: parents live in the same
// taxonomy, only taxonomies with children allow parents, a term is never its
// own ancestor and no term sits deeper than the category level limit.
type TermService struct {
	store          *sqlstore.Store
	emitter        store.EventEmitter
	indexer        store.SearchIndexer
	logger         *slog.Logger
	validator      *validation.Validator
	levelsOverride int
}

// termReader is the read side shared by *sqlstore.Store and *sqlstore.Tx. The
// tree checks run against a Tx so the write they guard sees the same rows.
type termReader interface {
	GetTerm(ctx context.Context, id int64) (*domain.Term, error)
	GetTermBySlug(ctx context.Context, taxonomy, slug string) (*domain.Term, error)
	GetTaxonomy(ctx context.Context, tableName string) (*domain.Taxonomy, error)
	Ancestors(ctx context.Context, id int64) ([]*domain.Term, error)
	SubtreeHeight(ctx context.Context, id int64) (int, error)
	CategoryLevels(ctx context.Context) (int, error)
}

// NewTermService creates a new term service. levelsOverride < 0 uses the
// catLvls option.
func NewTermService(st *sqlstore.Store, emitter store.EventEmitter, indexer store.SearchIndexer, levelsOverride int, logger *slog.Logger) *TermService {
	return &TermService{
		store:          st,
		emitter:        emitter,
		indexer:        indexer,
		logger:         logger,
		validator:      validation.New(),
		levelsOverride: levelsOverride,
	}
}

// GetTerm returns a single term.
func (s *TermService) GetTerm(ctx context.Context, id int64) (*domain.Term, error) {
	return s.store.GetTerm(ctx, id)
}

// GetTermBySlug returns the term with slug in taxonomy.
func (s *TermService) GetTermBySlug(ctx context.Context, taxonomy, termSlug string) (*domain.Term, error) {
	return s.store.GetTermBySlug(ctx, taxonomy, termSlug)
}

// ListTerms returns terms matching f ordered by name.
func (s *TermService) ListTerms(ctx context.Context, f store.TermFilter) ([]*domain.Term, error) {
	return s.store.ListTerms(ctx, f)
}

// Ancestors returns the path from the root down to the term's parent.
func (s *TermService) Ancestors(ctx context.Context, id int64) ([]*domain.Term, error) {
	return s.store.Ancestors(ctx, id)
}

// CreateTermRequest contains fields for creating a term.
type CreateTermRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug,omitempty" validate:"omitempty,slug,max=200"`
	Taxonomy    string `json:"taxonomy" validate:"required,tablename"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Description string `json:"description,omitempty" validate:"max=10000"`
}

// CreateTerm creates a term. The slug is derived from the name unless given.
func (s *TermService) CreateTerm(ctx context.Context, req CreateTermRequest) (*domain.Term, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.ParentID != nil && *req.ParentID == 0 {
		req.ParentID = nil
	}

	var t *domain.Term
	err := s.store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		tax, err := tx.GetTaxonomy(ctx, req.Taxonomy)
		if err != nil {
			return notFoundAsValidation(err, "unknown taxonomy %q", req.Taxonomy)
		}

		termSlug := req.Slug
		if termSlug == "" {
			termSlug = slug.Make(req.Name)
		}
		if termSlug == "" {
			return domainerrors.Validation("name does not yield a slug, give one explicitly")
		}
		if err := s.ensureSlugFree(ctx, tx, tax.TableName, termSlug, 0); err != nil {
			return err
		}
		if req.ParentID != nil {
			if err := s.checkParent(ctx, tx, tax, *req.ParentID, 0, 0); err != nil {
				return err
			}
		}

		t = &domain.Term{
			Name:        req.Name,
			Slug:        termSlug,
			Taxonomy:    tax.TableName,
			ParentID:    req.ParentID,
			Description: req.Description,
		}
		return tx.CreateTerm(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("term created", "term_id", t.ID, "name", t.Name, "taxonomy", t.Taxonomy, "parent", t.ParentID)
	s.emitter.Emit(sse.NewTermEvent(sse.EventTermCreated, t))
	s.index(ctx, t)
	return t, nil
}

// UpdateTermRequest contains the fields to change. Nil fields are kept.
type UpdateTermRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Slug        *string `json:"slug,omitempty" validate:"omitempty,slug,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	// ParentID re-parents the term; 0 makes it a root.
	ParentID *int64 `json:"parent_id,omitempty"`
}

// UpdateTerm renames, re-slugs, re-describes or moves a term.
func (s *TermService) UpdateTerm(ctx context.Context, id int64, req UpdateTermRequest) (*domain.Term, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var t *domain.Term
	err := s.store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		var err error
		t, err = tx.GetTerm(ctx, id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Slug != nil && *req.Slug != t.Slug {
			if err := s.ensureSlugFree(ctx, tx, t.Taxonomy, *req.Slug, t.ID); err != nil {
				return err
			}
			t.Slug = *req.Slug
		}

		if req.ParentID != nil {
			switch {
			case *req.ParentID == 0:
				t.ParentID = nil
			case t.ParentID == nil || *t.ParentID != *req.ParentID:
				tax, err := tx.GetTaxonomy(ctx, t.Taxonomy)
				if err != nil {
					return err
				}
				height, err := tx.SubtreeHeight(ctx, t.ID)
				if err != nil {
					return err
				}
				if err := s.checkParent(ctx, tx, tax, *req.ParentID, t.ID, height); err != nil {
					return err
				}
				t.ParentID = domain.Int64Ptr(*req.ParentID)
			}
		}

		return tx.UpdateTerm(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("term updated", "term_id", t.ID, "name", t.Name, "parent", t.ParentID)
	s.emitter.Emit(sse.NewTermEvent(sse.EventTermUpdated, t))
	s.index(ctx, t)
	return t, nil
}

// DeleteTerm deletes a term together with its relations. Its children move
// up to its parent.
func (s *TermService) DeleteTerm(ctx context.Context, id int64) (sqlstore.DeleteTermResult, error) {
	res, err := s.store.DeleteTerm(ctx, id)
	if err != nil {
		return res, err
	}

	s.logger.Info("term deleted",
		"term_id", id,
		"name", res.Term.Name,
		"relations_removed", res.RelationsRemoved,
		"children_lifted", res.ChildrenLifted)
	s.emitter.Emit(sse.NewTermEvent(sse.EventTermDeleted, res.Term))
	if err := s.indexer.DeleteTerm(ctx, id); err != nil {
		s.logger.Warn("failed to remove term from search index", "term_id", id, "error", err)
	}
	return res, nil
}

// checkParent validates parentID as the parent of term selfID (0 for a new
// term) whose subtree is height levels tall.
func (s *TermService) checkParent(ctx context.Context, r termReader, tax *domain.Taxonomy, parentID, selfID int64, height int) error {
	if !tax.HasChildren {
		return domainerrors.Validationf("taxonomy %q does not allow child terms", tax.TableName)
	}
	if parentID == selfID {
		return domainerrors.Validation("a term cannot be its own parent")
	}

	parent, err := r.GetTerm(ctx, parentID)
	if err != nil {
		return notFoundAsValidation(err, "parent term %d does not exist", parentID)
	}
	if parent.Taxonomy != tax.TableName {
		return domainerrors.Validationf("parent term %d belongs to taxonomy %q, not %q",
			parentID, parent.Taxonomy, tax.TableName)
	}

	chain, err := r.Ancestors(ctx, parentID)
	if err != nil {
		return err
	}
	if selfID != 0 {
		for _, a := range chain {
			if a.ID == selfID {
				return domainerrors.Validation("a term cannot be moved under its own descendant")
			}
		}
	}

	levels, err := categoryLevels(ctx, r, s.levelsOverride)
	if err != nil {
		return err
	}
	// The term lands one below its parent; its deepest descendant height
	// levels further down.
	if deepest := len(chain) + 1 + height; deepest > levels {
		return domainerrors.ValidationWithDetails("category level limit exceeded", map[string]int{
			"deepest_level": deepest,
			"max_level":     levels,
		})
	}
	return nil
}

func (s *TermService) ensureSlugFree(ctx context.Context, r termReader, taxonomy, termSlug string, selfID int64) error {
	existing, err := r.GetTermBySlug(ctx, taxonomy, termSlug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return domainerrors.AlreadyExistsf("taxonomy %q already has a term with slug %q", taxonomy, termSlug)
	}
	return nil
}

func (s *TermService) index(ctx context.Context, t *domain.Term) {
	if err := s.indexer.IndexTerm(ctx, t); err != nil {
		s.logger.Warn("failed to index term", "term_id", t.ID, "error", err)
	}
}
