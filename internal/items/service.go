package items

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the sellable item catalog.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Item, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	List(ctx context.Context, onlyListed bool, limit, offset int) ([]models.Item, error)
	Restock(ctx context.Context, id uuid.UUID, qty int) (*models.Item, error)
	SetListed(ctx context.Context, id uuid.UUID, listed bool) (*models.Item, error)
}

// CreateInput captures the fields needed to list a donated item.
type CreateInput struct {
	Title      string
	Quantity   int
	PricePaise *int64
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
}

// NewService builds the item catalog service.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Item, error) {
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.PricePaise != nil && *input.PricePaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	item := &models.Item{
		ID:               uuid.New(),
		Title:            input.Title,
		TotalQty:         input.Quantity,
		AvailableQty:     input.Quantity,
		ListedPricePaise: input.PricePaise,
		Listed:           true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"item_id":  item.ID.String(),
		"quantity": item.TotalQty,
	})
	s.logg.Info(ctx, "item listed")
	return item, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, onlyListed bool, limit, offset int) ([]models.Item, error) {
	return s.repo.List(ctx, onlyListed, limit, offset)
}

func (s *service) Restock(ctx context.Context, id uuid.UUID, qty int) (*models.Item, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var item *models.Item
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddStock(ctx, id, qty); err != nil {
			return err
		}
		loaded, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		item = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"item_id": id.String(),
		"added":   qty,
	})
	s.logg.Info(ctx, "item restocked")
	return item, nil
}

func (s *service) SetListed(ctx context.Context, id uuid.UUID, listed bool) (*models.Item, error) {
	var item *models.Item
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetListed(ctx, id, listed); err != nil {
			return err
		}
		loaded, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		item = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
