package models

import (
	"time"

	"github.com/dripspot/dripspot-backend/pkg/enums"
	"github.com/google/uuid"
)

// Membership is a consumer DripClub account and its subscription snapshot.
// At most one row exists per user.
type Membership struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`

	Tier                 enums.MembershipTier     `gorm:"column:tier;not null;default:'none'"`
	SubscriptionStatus   enums.SubscriptionStatus `gorm:"column:subscription_status;not null;default:'inactive'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;uniqueIndex"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;index"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (Membership) TableName() string {
	return "memberships"
}
