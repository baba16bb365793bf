package transactions

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

// Patch carries the fields a gateway notification may update on a stored
// transaction. Nil fields leave the stored value untouched. Plan and billing
// cycle are recorded at checkout and are not patchable from a notification.
type Patch struct {
	Status              *enums.PaymentStatus
	GatewayReference    *string
	CustomerName        *string
	CustomerEmailMobile *string
	PaymentMethod       *string
	Amount              *decimal.Decimal
	Fee                 *decimal.Decimal
	RefundAmount        *decimal.Decimal
	Total               *decimal.Decimal
	Currency            *string
	PaymentDate         *string
	Metadata            json.RawMessage
}

// Apply overlays the patch onto the stored transaction. Metadata is merged
// key by key, one level deep. UpdatedAt is always refreshed so reconciliation
// can tell when the gateway last spoke.
func (p Patch) Apply(t *models.Transaction, now time.Time) {
	if t == nil {
		return
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.GatewayReference != nil {
		t.GatewayReference = p.GatewayReference
	}
	if p.CustomerName != nil {
		t.CustomerName = p.CustomerName
	}
	if p.CustomerEmailMobile != nil {
		t.CustomerEmailMobile = p.CustomerEmailMobile
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = p.PaymentMethod
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Fee != nil {
		t.Fee = *p.Fee
	}
	if p.RefundAmount != nil {
		t.RefundAmount = *p.RefundAmount
	}
	if p.Total != nil {
		t.Total = *p.Total
	}
	if p.Currency != nil && *p.Currency != "" {
		t.Currency = *p.Currency
	}
	if p.PaymentDate != nil {
		t.PaymentDate = p.PaymentDate
	}
	if len(p.Metadata) > 0 {
		t.Metadata = mergeMetadata(t.Metadata, p.Metadata)
	}
	t.UpdatedAt = now.UTC()
}

func mergeMetadata(stored, incoming json.RawMessage) json.RawMessage {
	var base map[string]any
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &base); err != nil {
			base = nil
		}
	}
	if base == nil {
		base = map[string]any{}
	}

	var overlay map[string]any
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		// non-object payloads replace the stored document wholesale
		return incoming
	}
	for k, v := range overlay {
		base[k] = v
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return stored
	}
	return merged
}
