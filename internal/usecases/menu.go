package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
	"github.com/sand/restaurant-orders-app/backend/internal/entities"
	"github.com/sand/restaurant-orders-app/backend/pkg/cache"
)

type MenuRepository interface {
	FindAll(ctx context.Context) ([]entities.MenuItem, error)
	FindByID(ctx context.Context, id string) (*entities.MenuItem, error)
	FindPrice(ctx context.Context, id string) (float64, error)
	Insert(ctx context.Context, item *entities.MenuItem) error
	Update(ctx context.Context, item *entities.MenuItem) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

const priceCacheOperation = "menu-price"

// MenuService manages the menu catalog and doubles as the Catalog used by the
// order lifecycle. Price lookups go through an optional read-through cache
// that is invalidated on every mutation, so a captured price is always the
// price in effect at order time.
type MenuService struct {
	logger *slog.Logger

	repo     MenuRepository
	cache    cache.Cache // nil disables caching
	priceTTL time.Duration
}

func NewMenuService(logger *slog.Logger, repo MenuRepository, priceCache cache.Cache, priceTTL time.Duration) *MenuService {
	return &MenuService{
		logger:   logger,
		repo:     repo,
		cache:    priceCache,
		priceTTL: priceTTL,
	}
}

func (s *MenuService) GetMenuItems(ctx context.Context) ([]entities.MenuItem, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list menu items", err)
	}

	return items, nil
}

func (s *MenuService) GetMenuItemByID(ctx context.Context, id string) (*entities.MenuItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to look up menu item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("Menu item not found")
	}

	return item, nil
}

func (s *MenuService) CreateMenuItem(ctx context.Context, name string, description *string, price float64) (*entities.MenuItem, error) {
	if name == "" {
		return nil, apperr.Validation("Menu item name is required")
	}
	if price <= 0 {
		return nil, apperr.Validation("Menu item price must be positive")
	}

	now := time.Now().UTC()
	item := &entities.MenuItem{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, item); err != nil {
		return nil, apperr.Internal("failed to create menu item", err)
	}

	return item, nil
}

func (s *MenuService) UpdateMenuItem(ctx context.Context, id string, name string, description *string, price float64) (*entities.MenuItem, error) {
	if name == "" {
		return nil, apperr.Validation("Menu item name is required")
	}
	if price <= 0 {
		return nil, apperr.Validation("Menu item price must be positive")
	}

	item := &entities.MenuItem{
		ID:          id,
		Name:        name,
		Description: description,
		Price:       price,
		UpdatedAt:   time.Now().UTC(),
	}

	ok, err := s.repo.Update(ctx, item)
	if err != nil {
		return nil, apperr.Internal("failed to update menu item", err)
	}
	if !ok {
		return nil, apperr.NotFound("Menu item not found")
	}

	s.invalidatePrice(ctx, id)

	return s.GetMenuItemByID(ctx, id)
}

func (s *MenuService) DeleteMenuItem(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("failed to delete menu item", err)
	}
	if !ok {
		return apperr.NotFound("Menu item not found")
	}

	s.invalidatePrice(ctx, id)

	return nil
}

// FindPrice implements the catalog contract consumed by the order lifecycle.
func (s *MenuService) FindPrice(ctx context.Context, id string) (float64, error) {
	if s.cache != nil {
		key := s.cache.GenerateKey(priceCacheOperation, id)

		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Debug("price cache read failed, falling back to database", "menu_item_id", id, "error", err)
		} else if cached != "" {
			price, parseErr := strconv.ParseFloat(cached, 64)
			if parseErr == nil {
				return price, nil
			}
			s.logger.Debug("discarding malformed cached price", "menu_item_id", id, "value", cached)
		}
	}

	price, err := s.repo.FindPrice(ctx, id)
	if errors.Is(err, entities.ErrMenuItemNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve price: %w", err)
	}

	if s.cache != nil {
		key := s.cache.GenerateKey(priceCacheOperation, id)
		if err := s.cache.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), s.priceTTL); err != nil {
			s.logger.Debug("price cache write failed", "menu_item_id", id, "error", err)
		}
	}

	return price, nil
}

func (s *MenuService) invalidatePrice(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}

	key := s.cache.GenerateKey(priceCacheOperation, id)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to invalidate cached price", "menu_item_id", id, "error", err)
	}
}
