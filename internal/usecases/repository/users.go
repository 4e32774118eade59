package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sand/restaurant-orders-app/backend/internal/entities"
	"github.com/sand/restaurant-orders-app/backend/pkg/database"
)

const userColumns = "id, email, password_hash, first_name, last_name, created_at"

type UsersRepository struct {
	logger *slog.Logger

	db tx.DBGetter
}

func NewUsersRepository(logger *slog.Logger, pg *database.Postgres) *UsersRepository {
	return &UsersRepository{logger: logger, db: pg.DBGetter}
}

func (r *UsersRepository) InsertUser(ctx context.Context, user *entities.User) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return entities.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (r *UsersRepository) FindUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UsersRepository) FindUserByID(ctx context.Context, id string) (*entities.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepository) findOne(ctx context.Context, sqlStr string, arg any) (*entities.User, error) {
	rows, err := r.db(ctx).Query(ctx, sqlStr, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to collect user row", "error", err)
		return nil, err
	}

	return &user, nil
}
