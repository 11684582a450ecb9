package sqlstore

import (
	"context"

	"github.com/filecatman/catalog/internal/domain"
)

// The Tx methods mirror the Store methods of the same name.

func (t *Tx) GetTermBySlug(ctx context.Context, taxonomy, slug string) (*domain.Term, error) {
	return getTermBySlug(ctx, t.tx, taxonomy, slug)
}

func (t *Tx) UpsertTermBySlug(ctx context.Context, term *domain.Term) (bool, error) {
	return upsertTermBySlug(ctx, t.tx, term)
}

func (t *Tx) GetTaxonomy(ctx context.Context, tableName string) (*domain.Taxonomy, error) {
	return getTaxonomy(ctx, t.tx, tableName)
}

func (t *Tx) UpsertItemType(ctx context.Context, it *domain.ItemType) (bool, error) {
	return upsertItemType(ctx, t.tx, it)
}

func (t *Tx) UpsertTaxonomy(ctx context.Context, tax *domain.Taxonomy) (bool, error) {
	return upsertTaxonomy(ctx, t.tx, tax)
}

func (t *Tx) CreateItem(ctx context.Context, it *domain.Item) error {
	return createItem(ctx, t.tx, it)
}

func (t *Tx) FindItem(ctx context.Context, name, itemType string) (*domain.Item, error) {
	return findItem(ctx, t.tx, name, itemType)
}

func (t *Tx) AddRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	return t.s.addRelation(ctx, t.tx, itemID, termID)
}

func (t *Tx) Ancestors(ctx context.Context, id int64) ([]*domain.Term, error) {
	return ancestors(ctx, t.tx, id)
}

func (t *Tx) GetItemType(ctx context.Context, tableName string) (*domain.ItemType, error) {
	return getItemType(ctx, t.tx, tableName)
}

func (t *Tx) GetTerm(ctx context.Context, id int64) (*domain.Term, error) {
	return getTerm(ctx, t.tx, id)
}

func (t *Tx) CreateTerm(ctx context.Context, term *domain.Term) error {
	return createTerm(ctx, t.tx, term)
}

func (t *Tx) UpdateTerm(ctx context.Context, term *domain.Term) error {
	return updateTerm(ctx, t.tx, term)
}

func (t *Tx) SubtreeHeight(ctx context.Context, id int64) (int, error) {
	return levelsBelow(ctx, t.tx, []int64{id})
}

func (t *Tx) DeepestLevel(ctx context.Context) (int, error) {
	return deepestLevel(ctx, t.tx)
}

func (t *Tx) CategoryLevels(ctx context.Context) (int, error) {
	return categoryLevels(ctx, t.tx, t.s.logger)
}

func (t *Tx) SetOption(ctx context.Context, name, value string) error {
	return setOption(ctx, t.tx, name, value)
}
