package transactions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

// Repository handles transaction persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	Update(ctx context.Context, transaction *models.Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	ListSuccessfulSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error)
	ListPendingSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) Update(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Save(transaction).Error
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if transactionID == "" {
		return nil, nil
	}
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) ListSuccessfulSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error) {
	return r.listByStatusSince(ctx, []enums.PaymentStatus{
		enums.PaymentStatusSuccess,
		enums.PaymentStatusCompleted,
	}, lookback, limit)
}

func (r *repository) ListPendingSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error) {
	return r.listByStatusSince(ctx, []enums.PaymentStatus{
		enums.PaymentStatusPending,
	}, lookback, limit)
}

func (r *repository) listByStatusSince(ctx context.Context, statuses []enums.PaymentStatus, lookback time.Duration, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 250
	}
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-lookback)

	var results []models.Transaction
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("status IN (?)", statuses).
		Where("updated_at >= ?", cutoff).
		Order("updated_at DESC").
		Limit(limit)
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
