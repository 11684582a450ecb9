package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

// itemColumns must match the scan order in scanItem.
const itemColumns = `item_id, item_name, type_id, item_source, item_time, item_description`

func scanItem(scanner interface{ Scan(dest ...any) error }) (*domain.Item, error) {
	var (
		it       domain.Item
		itemTime sql.NullString
	)
	if err := scanner.Scan(&it.ID, &it.Name, &it.Type, &it.Source, &itemTime, &it.Description); err != nil {
		return nil, err
	}
	it.Time = domain.NormalizeItemTime(ptrString(itemTime))
	return &it, nil
}

func queryItems(ctx context.Context, q querier, query string, args ...any) ([]*domain.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func createItem(ctx context.Context, q querier, it *domain.Item) error {
	it.Time = domain.NormalizeItemTime(it.Time)
	res, err := q.ExecContext(ctx, `
		INSERT INTO items (item_name, type_id, item_source, item_time, item_description)
		VALUES (?, ?, ?, ?, ?)`,
		it.Name,
		it.Type,
		it.Source,
		nullString(it.Time),
		it.Description,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	it.ID = id
	return nil
}

func getItem(ctx context.Context, q querier, id int64) (*domain.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE item_id = ?`, id)
	it, err := scanItem(row)
	if err != nil {
		return nil, notFound(err, store.ErrItemNotFound)
	}
	return it, nil
}

func findItem(ctx context.Context, q querier, name, itemType string) (*domain.Item, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE item_name = ? AND type_id = ?
		ORDER BY item_id LIMIT 1`, name, itemType)
	it, err := scanItem(row)
	if err != nil {
		return nil, notFound(err, store.ErrItemNotFound)
	}
	return it, nil
}

// deleteItem removes an item together with its relations.
func deleteItem(ctx context.Context, q querier, id int64) error {
	if _, err := removeAllForItem(ctx, q, id); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM items WHERE item_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

// CreateItem inserts an item and sets it.ID.
func (s *Store) CreateItem(ctx context.Context, it *domain.Item) error {
	return createItem(ctx, s.db, it)
}

// GetItem retrieves an item by id.
// Returns store.ErrItemNotFound if the item does not exist.
func (s *Store) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return getItem(ctx, s.db, id)
}

// FindItem looks an item up by name and type.
func (s *Store) FindItem(ctx context.Context, name, itemType string) (*domain.Item, error) {
	return findItem(ctx, s.db, name, itemType)
}

// UpdateItem writes every column of an item.
func (s *Store) UpdateItem(ctx context.Context, it *domain.Item) error {
	it.Time = domain.NormalizeItemTime(it.Time)
	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET item_name = ?, type_id = ?, item_source = ?, item_time = ?, item_description = ?
		WHERE item_id = ?`,
		it.Name,
		it.Type,
		it.Source,
		nullString(it.Time),
		it.Description,
		it.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return requireAffected(ctx, s.db, res, `SELECT 1 FROM items WHERE item_id = ?`, it.ID, store.ErrItemNotFound)
}

// DeleteItem removes an item and its relations, decrementing each related
// term, in one transaction.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(q querier) error {
		return deleteItem(ctx, q, id)
	})
}

// BulkDeleteItems deletes several items in one transaction. Ids that do not
// exist are skipped. Returns the ids actually deleted.
func (s *Store) BulkDeleteItems(ctx context.Context, ids []int64) ([]int64, error) {
	deleted := []int64{}
	err := s.inTx(ctx, func(q querier) error {
		for _, id := range ids {
			err := deleteItem(ctx, q, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			deleted = append(deleted, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

var itemFieldColumns = map[string][]string{
	"":                         {"i.item_name"},
	store.ItemFieldName:        {"i.item_name"},
	store.ItemFieldSource:      {"i.item_source"},
	store.ItemFieldDescription: {"i.item_description"},
	store.ItemFieldAny:         {"i.item_name", "i.item_source", "i.item_description"},
}

// likeEscaper escapes LIKE wildcards for an ESCAPE '!' clause, which both
// dialects read the same way.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func itemWhere(f store.ItemFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		op := "="
		if f.TypeNot {
			op = "<>"
		}
		where = append(where, "i.type_id "+op+" ?")
		args = append(args, f.Type)
	}
	if f.TermID != 0 {
		where = append(where, "i.item_id IN (SELECT r.item_id FROM term_relationships AS r WHERE r.term_id = ?)")
		args = append(args, f.TermID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		words := []string{q}
		if f.Keywords {
			words = strings.Fields(q)
		}
		cols, ok := itemFieldColumns[f.Field]
		if !ok {
			cols = itemFieldColumns[""]
		}
		// Each column must hold every word; any column may match.
		var alts []string
		for _, col := range cols {
			conds := make([]string, len(words))
			for i, w := range words {
				conds[i] = "LOWER(COALESCE(" + col + ", '')) LIKE ? ESCAPE '!'"
				args = append(args, "%"+likeEscaper.Replace(strings.ToLower(w))+"%")
			}
			alts = append(alts, "("+strings.Join(conds, " AND ")+")")
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}
	for _, rc := range f.Relations {
		var conds []string
		if rc.Taxonomy != "" {
			conds = append(conds, "t.term_taxonomy = ?")
			args = append(args, rc.Taxonomy)
		}
		if rc.TermID != 0 {
			conds = append(conds, "r.term_id = ?")
			args = append(args, rc.TermID)
		}
		if len(conds) == 0 {
			continue
		}
		op := "IN"
		if rc.Exclude {
			op = "NOT IN"
		}
		where = append(where, "i.item_id "+op+` (SELECT r.item_id FROM term_relationships AS r
			INNER JOIN terms AS t ON t.term_id = r.term_id
			WHERE `+strings.Join(conds, " AND ")+")")
	}
	if f.TimeFrom != "" {
		where = append(where, "i.item_time >= ?")
		args = append(args, f.TimeFrom)
	}
	if f.TimeTo != "" {
		where = append(where, "i.item_time <= ?")
		args = append(args, f.TimeTo)
	}
	if f.TimeNull != nil {
		if *f.TimeNull {
			where = append(where, "i.item_time IS NULL")
		} else {
			where = append(where, "i.item_time IS NOT NULL")
		}
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// ListItems returns items matching f ordered by name, then id.
func (s *Store) ListItems(ctx context.Context, f store.ItemFilter) ([]*domain.Item, error) {
	where, args := itemWhere(f)
	query := `SELECT i.item_id, i.item_name, i.type_id, i.item_source, i.item_time, i.item_description
		FROM items AS i` + where + ` ORDER BY i.item_name, i.item_id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}
	return queryItems(ctx, s.db, query, args...)
}

// CountItems returns the number of items matching f, ignoring paging.
func (s *Store) CountItems(ctx context.Context, f store.ItemFilter) (int, error) {
	where, args := itemWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items AS i`+where, args...).Scan(&n)
	return n, err
}
