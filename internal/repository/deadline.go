package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zelyx-order-tracker/internal/model"
)

var ErrNotFound = errors.New("deadline not found")

// DeadlineRepository persists the payment deadline of an order so a countdown
// survives a restart without asking the backend again.
type DeadlineRepository interface {
	Get(ctx context.Context, orderNumber string) (time.Time, error)
	Save(ctx context.Context, orderNumber string, expiresAt time.Time) error
	Delete(ctx context.Context, orderNumber string) error
}

type deadlineRepoImpl struct {
	db *gorm.DB
}

func NewDeadlineRepository(db *gorm.DB) DeadlineRepository {
	return &deadlineRepoImpl{
		db: db,
	}
}

func (r *deadlineRepoImpl) Get(ctx context.Context, orderNumber string) (time.Time, error) {
	var deadline model.OrderDeadline
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		First(&deadline).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}

	return deadline.ExpiresAt, nil
}

func (r *deadlineRepoImpl) Save(ctx context.Context, orderNumber string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_number"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"expires_at": expiresAt,
			"updated_at": time.Now(),
		}),
	}).Create(&model.OrderDeadline{
		OrderNumber: orderNumber,
		ExpiresAt:   expiresAt,
	}).Error
}

func (r *deadlineRepoImpl) Delete(ctx context.Context, orderNumber string) error {
	return r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Delete(&model.OrderDeadline{}).Error
}
