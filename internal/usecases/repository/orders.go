package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sand/restaurant-orders-app/backend/internal/entities"
	"github.com/sand/restaurant-orders-app/backend/pkg/database"
)

const orderColumns = "id, user_id, total_amount, order_status, payment_status, payment_method, idempotency_key, status_updated_at, created_at"

type OrdersRepository struct {
	logger *slog.Logger

	db      tx.DBGetter
	builder sq.StatementBuilderType
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{
		logger:  logger,
		db:      pg.DBGetter,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InsertOrder persists an order together with all of its lines. Statements
// issued here join the transaction carried by ctx, so a failed line insert
// rolls the order back as well.
func (r *OrdersRepository) InsertOrder(ctx context.Context, order *entities.Order) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.UserID, order.TotalAmount, order.OrderStatus, order.PaymentStatus,
		order.PaymentMethod, order.IdempotencyKey, order.StatusUpdatedAt, order.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "orders_idempotency_key_idx" {
			return entities.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		_, err = r.db(ctx).Exec(ctx,
			`INSERT INTO order_items (id, order_id, menu_item_id, price, quantity)
			 VALUES ($1, $2, $3, $4, $5)`,
			item.ID, item.OrderID, item.MenuItemID, item.Price, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *OrdersRepository) FindOrderByID(ctx context.Context, orderID string) (*entities.Order, error) {
	return r.findOne(ctx, sq.Eq{"id": orderID})
}

func (r *OrdersRepository) FindUserOrder(ctx context.Context, orderID, userID string) (*entities.Order, error) {
	return r.findOne(ctx, sq.Eq{"id": orderID, "user_id": userID})
}

func (r *OrdersRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.Order, error) {
	return r.findOne(ctx, sq.Eq{"idempotency_key": key})
}

// FindUserOrders returns the user's orders, newest first, optionally narrowed
// by status and creation date range.
func (r *OrdersRepository) FindUserOrders(ctx context.Context, userID string, filter entities.OrderFilter) ([]entities.Order, error) {
	query := r.builder.
		Select(orderColumns).
		From("orders").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	if filter.Status != "" {
		query = query.Where(sq.Eq{"order_status": filter.Status})
	}
	if filter.From != nil {
		query = query.Where(sq.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(sq.LtOrEq{"created_at": *filter.To})
	}

	return r.findMany(ctx, query)
}

// UpdateOrderStatus performs a conditional transition: the write only happens
// if the order is still in the expected status, so a concurrent transition
// makes this a no-op reported as false.
func (r *OrdersRepository) UpdateOrderStatus(ctx context.Context, orderID string, expected entities.OrderStatus, change entities.StatusChange) (bool, error) {
	query := r.builder.
		Update("orders").
		Set("order_status", change.OrderStatus).
		Set("status_updated_at", change.StatusUpdatedAt).
		Where(sq.Eq{"id": orderID, "order_status": expected})

	if change.PaymentStatus != nil {
		query = query.Set("payment_status", *change.PaymentStatus)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// FindDueOrderIDs selects the orders eligible for one automatic transition
// rule at the moment of the call. The transition itself goes through
// UpdateOrderStatus, which re-verifies the status.
func (r *OrdersRepository) FindDueOrderIDs(ctx context.Context, criteria entities.SweepCriteria) ([]string, error) {
	ageColumn := "status_updated_at"
	if criteria.ByCreatedAt {
		ageColumn = "created_at"
	}

	query := r.builder.
		Select("id").
		From("orders").
		Where(sq.Eq{"order_status": criteria.Status}).
		Where(sq.Lt{ageColumn: criteria.Before})

	if criteria.PaymentStatus != "" {
		query = query.Where(sq.Eq{"payment_status": criteria.PaymentStatus})
	}
	if criteria.Method != "" {
		query = query.Where(sq.Eq{"payment_method": criteria.Method})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build due orders query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due orders: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect due order ids: %w", err)
	}

	return ids, nil
}

func (r *OrdersRepository) findOne(ctx context.Context, pred sq.Eq) (*entities.Order, error) {
	query := r.builder.Select(orderColumns).From("orders").Where(pred)

	orders, err := r.findMany(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	return &orders[0], nil
}

func (r *OrdersRepository) findMany(ctx context.Context, query sq.SelectBuilder) ([]entities.Order, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sqlStr, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect orders rows", "error", err)
		return nil, err
	}

	if err = r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *OrdersRepository) attachItems(ctx context.Context, orders []entities.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
	}

	sqlStr, args, err := r.builder.
		Select("id, order_id, menu_item_id, price, quantity").
		From("order_items").
		Where(sq.Eq{"order_id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order items query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.OrderItem])
	if err != nil {
		r.logger.Error("failed to collect order items rows", "error", err)
		return err
	}

	byOrder := make(map[string][]entities.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}

	return nil
}
