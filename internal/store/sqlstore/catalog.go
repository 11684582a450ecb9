package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

const itemTypeColumns = `table_name, noun_name, plural_name, dir_name, icon_name, enabled, extensions`

func scanItemType(scanner interface{ Scan(dest ...any) error }) (*domain.ItemType, error) {
	var (
		t    domain.ItemType
		exts string
	)
	if err := scanner.Scan(&t.TableName, &t.NounName, &t.PluralName, &t.DirName, &t.IconName, &t.Enabled, &exts); err != nil {
		return nil, err
	}
	t.Extensions = splitExtensions(exts)
	return &t, nil
}

func splitExtensions(s string) []string {
	exts := []string{}
	for e := range strings.SplitSeq(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			exts = append(exts, e)
		}
	}
	return exts
}

func upsertItemType(ctx context.Context, q querier, t *domain.ItemType) (bool, error) {
	exts := strings.Join(t.Extensions, ",")
	res, err := q.ExecContext(ctx, `
		UPDATE item_types
		SET noun_name = ?, plural_name = ?, dir_name = ?, icon_name = ?, enabled = ?, extensions = ?
		WHERE table_name = ?`,
		t.NounName, t.PluralName, t.DirName, t.IconName, t.Enabled, exts, t.TableName)
	if err != nil {
		return false, fmt.Errorf("update item type: %w", err)
	}
	if err := requireAffectedKey(ctx, q, res, `SELECT 1 FROM item_types WHERE table_name = ?`, t.TableName); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO item_types (`+itemTypeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TableName, t.NounName, t.PluralName, t.DirName, t.IconName, t.Enabled, exts); err != nil {
		return false, fmt.Errorf("insert item type: %w", err)
	}
	return true, nil
}

// requireAffectedKey returns sql.ErrNoRows when the update touched nothing
// because the keyed row is missing.
func requireAffectedKey(ctx context.Context, q querier, res sql.Result, probe, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	return q.QueryRowContext(ctx, probe, key).Scan(&one)
}

// ListItemTypes returns item types in table name order. With enabledOnly,
// disabled types are left out.
func (s *Store) ListItemTypes(ctx context.Context, enabledOnly bool) ([]*domain.ItemType, error) {
	query := `SELECT ` + itemTypeColumns + ` FROM item_types`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY table_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []*domain.ItemType{}
	for rows.Next() {
		t, err := scanItemType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// GetItemType retrieves an item type by table name.
func (s *Store) GetItemType(ctx context.Context, tableName string) (*domain.ItemType, error) {
	return getItemType(ctx, s.db, tableName)
}

func getItemType(ctx context.Context, q querier, tableName string) (*domain.ItemType, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemTypeColumns+` FROM item_types WHERE table_name = ?`, tableName)
	t, err := scanItemType(row)
	if err != nil {
		return nil, notFound(err, store.ErrItemTypeNotFound)
	}
	return t, nil
}

// UpsertItemType inserts or replaces an item type. Returns true when created.
func (s *Store) UpsertItemType(ctx context.Context, t *domain.ItemType) (bool, error) {
	var created bool
	err := s.inTx(ctx, func(q querier) error {
		var err error
		created, err = upsertItemType(ctx, q, t)
		return err
	})
	return created, err
}

const taxonomyColumns = `table_name, noun_name, plural_name, dir_name, icon_name, enabled, has_children, is_tags`

func scanTaxonomy(scanner interface{ Scan(dest ...any) error }) (*domain.Taxonomy, error) {
	var t domain.Taxonomy
	if err := scanner.Scan(&t.TableName, &t.NounName, &t.PluralName, &t.DirName, &t.IconName, &t.Enabled, &t.HasChildren, &t.IsTags); err != nil {
		return nil, err
	}
	return &t, nil
}

func getTaxonomy(ctx context.Context, q querier, tableName string) (*domain.Taxonomy, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taxonomyColumns+` FROM taxonomies WHERE table_name = ?`, tableName)
	t, err := scanTaxonomy(row)
	if err != nil {
		return nil, notFound(err, store.ErrTaxonomyNotFound)
	}
	return t, nil
}

func upsertTaxonomy(ctx context.Context, q querier, t *domain.Taxonomy) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE taxonomies
		SET noun_name = ?, plural_name = ?, dir_name = ?, icon_name = ?, enabled = ?, has_children = ?, is_tags = ?
		WHERE table_name = ?`,
		t.NounName, t.PluralName, t.DirName, t.IconName, t.Enabled, t.HasChildren, t.IsTags, t.TableName)
	if err != nil {
		return false, fmt.Errorf("update taxonomy: %w", err)
	}
	if err := requireAffectedKey(ctx, q, res, `SELECT 1 FROM taxonomies WHERE table_name = ?`, t.TableName); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO taxonomies (`+taxonomyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TableName, t.NounName, t.PluralName, t.DirName, t.IconName, t.Enabled, t.HasChildren, t.IsTags); err != nil {
		return false, fmt.Errorf("insert taxonomy: %w", err)
	}
	return true, nil
}

// ListTaxonomies returns taxonomies in table name order.
func (s *Store) ListTaxonomies(ctx context.Context, enabledOnly bool) ([]*domain.Taxonomy, error) {
	query := `SELECT ` + taxonomyColumns + ` FROM taxonomies`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY table_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taxes := []*domain.Taxonomy{}
	for rows.Next() {
		t, err := scanTaxonomy(rows)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, t)
	}
	return taxes, rows.Err()
}

// GetTaxonomy retrieves a taxonomy by table name.
func (s *Store) GetTaxonomy(ctx context.Context, tableName string) (*domain.Taxonomy, error) {
	return getTaxonomy(ctx, s.db, tableName)
}

// UpsertTaxonomy inserts or replaces a taxonomy. Returns true when created.
func (s *Store) UpsertTaxonomy(ctx context.Context, t *domain.Taxonomy) (bool, error) {
	var created bool
	err := s.inTx(ctx, func(q querier) error {
		var err error
		created, err = upsertTaxonomy(ctx, q, t)
		return err
	})
	return created, err
}

// GetOption returns an option value.
// Returns store.ErrOptionNotFound when unset.
func (s *Store) GetOption(ctx context.Context, name string) (string, error) {
	return getOption(ctx, s.db, name)
}

func getOption(ctx context.Context, q querier, name string) (string, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT option_value FROM options WHERE option_name = ?`, name).Scan(&v)
	if err != nil {
		return "", notFound(err, store.ErrOptionNotFound)
	}
	return v, nil
}

// SetOption creates or overwrites an option.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	return s.inTx(ctx, func(q querier) error {
		return setOption(ctx, q, name, value)
	})
}

func setOption(ctx context.Context, q querier, name, value string) error {
	res, err := q.ExecContext(ctx, `UPDATE options SET option_value = ? WHERE option_name = ?`, value, name)
	if err != nil {
		return fmt.Errorf("update option: %w", err)
	}
	err = requireAffectedKey(ctx, q, res, `SELECT 1 FROM options WHERE option_name = ?`, name)
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO options (option_name, option_value) VALUES (?, ?)`, name, value); err != nil {
		return fmt.Errorf("insert option: %w", err)
	}
	return nil
}

// ListOptions returns every option ordered by name.
func (s *Store) ListOptions(ctx context.Context) ([]domain.Option, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT option_name, option_value FROM options ORDER BY option_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opts := []domain.Option{}
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.Name, &o.Value); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// CategoryLevels returns the catLvls option clamped to the supported range,
// or the default when the option is missing or not a number.
func (s *Store) CategoryLevels(ctx context.Context) (int, error) {
	return categoryLevels(ctx, s.db, s.logger)
}

func categoryLevels(ctx context.Context, q querier, logger *slog.Logger) (int, error) {
	v, err := getOption(ctx, q, domain.OptionCategoryLevels)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DefaultCategoryLevels, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn("invalid category levels option, using default", "value", v)
		return domain.DefaultCategoryLevels, nil
	}
	return domain.ClampCategoryLevels(n), nil
}
