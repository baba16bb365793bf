package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

// Subscription is the entitlement state embedded in a user row. Activation
// rewrites the whole block except PromptsUsed, which is carried forward.
type Subscription struct {
	Plan         enums.Plan               `gorm:"column:plan;not null;default:'free'"`
	Status       enums.SubscriptionStatus `gorm:"column:status;not null;default:'inactive'"`
	PromptsUsed  int                      `gorm:"column:prompts_used;not null;default:0"`
	PromptsLimit int                      `gorm:"column:prompts_limit;not null;default:10"`
	StartDate    *time.Time               `gorm:"column:start_date"`
	EndDate      *time.Time               `gorm:"column:end_date"`
	BillingCycle enums.BillingCycle       `gorm:"column:billing_cycle;not null;default:'monthly'"`
}

// User represents the canonical identity entity. Account creation and login
// live outside this service; webhook processing only updates the embedded
// subscription.
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email string    `gorm:"type:text;not null;uniqueIndex"`
	Name  string    `gorm:"column:name;not null"`

	Subscription Subscription `gorm:"embedded;embeddedPrefix:subscription_"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
