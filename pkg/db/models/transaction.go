package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

// Transaction records one checkout session with the payment provider.
// Rows are created by checkout initiation and thereafter mutated only by
// webhook deliveries; TransactionID is the correlation key the provider
// echoes back through metadata.
type Transaction struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID string     `gorm:"column:transaction_id;not null;uniqueIndex"`
	UserID        *uuid.UUID `gorm:"column:user_id;type:uuid;index"`

	GatewayReference    *string `gorm:"column:gateway_reference"`
	CustomerName        *string `gorm:"column:customer_name"`
	CustomerEmailMobile *string `gorm:"column:customer_email_mobile"`
	PaymentMethod       *string `gorm:"column:payment_method"`

	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	Fee          decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null;default:0"`
	RefundAmount decimal.Decimal `gorm:"column:refund_amount;type:numeric(12,2);not null;default:0"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Currency     string          `gorm:"column:currency;not null;default:'BDT'"`

	Status       enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Plan         *string             `gorm:"column:plan"`
	BillingCycle *string             `gorm:"column:billing_cycle"`

	// PaymentDate is stored verbatim as the provider sent it; formats vary
	// between sandbox and production.
	PaymentDate *string `gorm:"column:payment_date"`

	Metadata json.RawMessage `gorm:"column:metadata;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
