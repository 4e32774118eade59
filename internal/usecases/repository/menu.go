package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/restaurant-orders-app/backend/internal/entities"
	"github.com/sand/restaurant-orders-app/backend/pkg/database"
)

const menuColumns = "id, name, description, price, created_at, updated_at"

type MenuRepository struct {
	logger *slog.Logger

	db      tx.DBGetter
	builder sq.StatementBuilderType
}

func NewMenuRepository(logger *slog.Logger, pg *database.Postgres) *MenuRepository {
	return &MenuRepository{
		logger:  logger,
		db:      pg.DBGetter,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *MenuRepository) FindAll(ctx context.Context) ([]entities.MenuItem, error) {
	rows, err := r.db(ctx).Query(ctx, `SELECT `+menuColumns+` FROM menu_items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.MenuItem])
	if err != nil {
		r.logger.Error("failed to collect menu items rows", "error", err)
		return nil, err
	}

	return items, nil
}

func (r *MenuRepository) FindByID(ctx context.Context, id string) (*entities.MenuItem, error) {
	rows, err := r.db(ctx).Query(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu item: %w", err)
	}

	item, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.MenuItem])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// FindPrice resolves the current catalog price for a menu item. It is called
// inside the order-creation transaction through the DBGetter, so the captured
// price is consistent with the rest of the write.
func (r *MenuRepository) FindPrice(ctx context.Context, id string) (float64, error) {
	var price float64
	err := r.db(ctx).QueryRow(ctx, `SELECT price FROM menu_items WHERE id = $1`, id).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, entities.ErrMenuItemNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query menu item price: %w", err)
	}

	return price, nil
}

func (r *MenuRepository) Insert(ctx context.Context, item *entities.MenuItem) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO menu_items (id, name, description, price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.Name, item.Description, item.Price, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert menu item: %w", err)
	}

	return nil
}

func (r *MenuRepository) Update(ctx context.Context, item *entities.MenuItem) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE menu_items SET name = $2, description = $3, price = $4, updated_at = $5 WHERE id = $1`,
		item.ID, item.Name, item.Description, item.Price, item.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update menu item: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *MenuRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete menu item: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
