package shops

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/pkg/db/models"
)

// Repository handles shop persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]models.Shop, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Shop, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Shop, error)
	Update(ctx context.Context, shop *models.Shop) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shop repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&shop).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]models.Shop, error) {
	var shopList []models.Shop
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&shopList).Error; err != nil {
		return nil, err
	}
	return shopList, nil
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Shop, error) {
	if customerID == "" {
		return nil, nil
	}
	var shop models.Shop
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&shop).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Shop, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	var shop models.Shop
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&shop).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *repository) Update(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}
