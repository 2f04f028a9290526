package items

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
)

// Repository owns reads and guarded stock mutations on the items table.
// Availability never changes through plain saves; callers go through the
// conditional helpers so concurrent holds cannot oversell.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	List(ctx context.Context, onlyListed bool, limit, offset int) ([]models.Item, error)
	DecrementAvailable(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	ReturnStock(ctx context.Context, itemID uuid.UUID, qty int) error
	AddStock(ctx context.Context, itemID uuid.UUID, qty int) error
	MarkSoldIfExhausted(ctx context.Context, itemID uuid.UUID) (bool, error)
	SetListed(ctx context.Context, itemID uuid.UUID, listed bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an item repository backed by the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.Item) error {
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item required")
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	var item models.Item
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context, onlyListed bool, limit, offset int) ([]models.Item, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := r.db.WithContext(ctx).Model(&models.Item{})
	if onlyListed {
		query = query.Where("listed = ? AND sold = ?", true, false)
	}
	var rows []models.Item
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

// DecrementAvailable performs the compare-and-decrement that backs every
// acquire. The WHERE clause keeps available_qty from going negative; a zero
// rows-affected result means another buyer won the stock first.
func (r *repository) DecrementAvailable(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND listed = ? AND sold = ? AND available_qty >= ?", itemID, true, false, qty).
		UpdateColumn("available_qty", gorm.Expr("available_qty - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReturnStock credits quantity back after a release or expiry. The cap at
// total_qty guards against double releases crediting phantom stock.
func (r *repository) ReturnStock(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND available_qty + ? <= total_qty", itemID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"sold":          false,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "stock return exceeds total quantity")
	}
	return nil
}

// AddStock raises both total and available quantity for a restock.
func (r *repository) AddStock(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"total_qty":     gorm.Expr("total_qty + ?", qty),
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"sold":          false,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}

// MarkSoldIfExhausted flips the sold flag once the last unit settles. It only
// fires when no stock remains and no held reservation could still return some.
func (r *repository) MarkSoldIfExhausted(ctx context.Context, itemID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND available_qty = 0 AND sold = ?", itemID, false).
		Where("NOT EXISTS (SELECT 1 FROM reservations WHERE reservations.item_id = items.id AND reservations.status = ?)", "held").
		UpdateColumn("sold", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) SetListed(ctx context.Context, itemID uuid.UUID, listed bool) error {
	result := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", itemID).
		UpdateColumn("listed", listed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}
