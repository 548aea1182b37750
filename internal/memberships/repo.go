package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/pkg/db/models"
)

// Repository handles membership persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Membership, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error)
	Create(ctx context.Context, membership *models.Membership) error
	Update(ctx context.Context, membership *models.Membership) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a membership repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&membership).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&membership).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Membership, error) {
	if customerID == "" {
		return nil, nil
	}
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&membership).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *repository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&membership).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *repository) Create(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *repository) Update(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Save(membership).Error
}
