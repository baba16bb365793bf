package piprapay

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ChargeCreateParams describes a hosted-checkout charge request.
type ChargeCreateParams struct {
	FullName    string            `json:"full_name"`
	EmailMobile string            `json:"email_mobile"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	ReturnType  string            `json:"return_type,omitempty"`
	SuccessURL  string            `json:"success_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
	WebhookURL  string            `json:"webhook_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Charge is the gateway's view of a created charge.
type Charge struct {
	PaymentID   string `json:"pp_id"`
	CheckoutURL string `json:"pp_url"`
	Status      string `json:"status"`
}

// Payment is the gateway's record of a payment.
type Payment struct {
	PaymentID     string          `json:"pp_id"`
	TransactionID string          `json:"transaction_id"`
	FullName      string          `json:"customer_name"`
	EmailMobile   string          `json:"customer_email_mobile"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Date          string          `json:"date"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
