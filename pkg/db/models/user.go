package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal profile surface billing needs: identity plus the billing
// customer reference reused across checkout attempts. Account management lives
// in the identity collaborator.
type User struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string    `gorm:"column:email;not null;uniqueIndex"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;uniqueIndex"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (User) TableName() string {
	return "users"
}
