package models

import (
	"time"

	"github.com/dripspot/dripspot-backend/pkg/enums"
	"github.com/google/uuid"
)

// Shop is a coffee-shop listing plus its subscription snapshot. Only the
// billing-owned columns are written by this service; content columns belong to
// the listings collaborator.
type Shop struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`

	Tier                 enums.ShopTier           `gorm:"column:tier;not null;default:'free'"`
	SubscriptionStatus   enums.SubscriptionStatus `gorm:"column:subscription_status;not null;default:'inactive'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;uniqueIndex"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;index"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	DiscountEnabled      bool                     `gorm:"column:discount_enabled;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (Shop) TableName() string {
	return "shops"
}
