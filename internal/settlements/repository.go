package settlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
)

// Repository persists append-only settlement rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.Settlement) error
	FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, itemID *uuid.UUID, limit, offset int) ([]models.Settlement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository backed by the provided DB handle.
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

func (r *repository) Create(ctx context.Context, settlement *models.Settlement) error {
	if settlement == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "settlement required")
	}
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.Settlement, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	var settlement models.Settlement
	err := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) List(ctx context.Context, itemID *uuid.UUID, limit, offset int) ([]models.Settlement, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := r.db.WithContext(ctx).Model(&models.Settlement{})
	if itemID != nil && *itemID != uuid.Nil {
		query = query.Where("item_id = ?", *itemID)
	}
	var rows []models.Settlement
	err := query.Order("paid_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

// GatewayOrderRepository mirrors gateway orders locally and guards their
// single verification.
type GatewayOrderRepository interface {
	WithTx(tx *gorm.DB) GatewayOrderRepository
	Create(ctx context.Context, order *models.GatewayOrder) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.GatewayOrder, error)
	FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.GatewayOrder, error)
	MarkVerified(ctx context.Context, id uuid.UUID, paymentID string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type gatewayOrderRepository struct {
	db *gorm.DB
}

// NewGatewayOrderRepository builds the gateway order repository.
func NewGatewayOrderRepository(db *gorm.DB) GatewayOrderRepository {
	if db == nil {
		return nil
	}
	return &gatewayOrderRepository{db: db}
}

func (r *gatewayOrderRepository) WithTx(tx *gorm.DB) GatewayOrderRepository {
	if tx == nil {
		return r
	}
	return &gatewayOrderRepository{db: tx}
}

func (r *gatewayOrderRepository) Create(ctx context.Context, order *models.GatewayOrder) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order required")
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gatewayOrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.GatewayOrder, error) {
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	var order models.GatewayOrder
	err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gateway order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *gatewayOrderRepository) FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.GatewayOrder, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	var order models.GatewayOrder
	err := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gateway order not found")
		}
		return nil, err
	}
	return &order, nil
}

// MarkVerified flips created to verified exactly once. A false return means
// another confirm path already verified the order.
func (r *gatewayOrderRepository) MarkVerified(ctx context.Context, id uuid.UUID, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	result := r.db.WithContext(ctx).Model(&models.GatewayOrder{}).
		Where("id = ? AND status = ?", id, enums.GatewayOrderStatusCreated).
		Updates(map[string]any{
			"status":     enums.GatewayOrderStatusVerified,
			"payment_id": paymentID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *gatewayOrderRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.GatewayOrder{}).
		Where("id = ? AND status = ?", id, enums.GatewayOrderStatusCreated).
		UpdateColumn("status", enums.GatewayOrderStatusFailed).Error
}
