package piprapaywebhook

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
)

// PaymentEvent is the raw webhook payload as the provider sends it. Numeric
// fields arrive as either JSON numbers or strings depending on the provider
// version, so they are kept raw until normalization.
type PaymentEvent struct {
	PaymentID           string          `json:"pp_id"`
	TransactionID       string          `json:"transaction_id"`
	Status              string          `json:"status"`
	CustomerName        string          `json:"customer_name"`
	CustomerEmailMobile string          `json:"customer_email_mobile"`
	PaymentMethod       string          `json:"payment_method"`
	Amount              json.RawMessage `json:"amount"`
	Fee                 json.RawMessage `json:"fee"`
	RefundAmount        json.RawMessage `json:"refund_amount"`
	Total               json.RawMessage `json:"total"`
	Currency            string          `json:"currency"`
	Date                string          `json:"date"`
	Metadata            json.RawMessage `json:"metadata"`
}

// ParsePaymentEvent decodes the raw body. An unparseable body is a client
// error; the provider will not fix it by retrying.
func ParsePaymentEvent(body []byte) (*PaymentEvent, error) {
	if len(body) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty webhook body")
	}
	var event PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	return &event, nil
}

// Normalize reduces the payload to the correlation key and a merge patch.
// metadata.transaction_id outranks the top-level field: metadata is echoed
// back verbatim from checkout initiation, so it is the trusted copy.
func (e *PaymentEvent) Normalize() (string, transactions.Patch, error) {
	var patch transactions.Patch

	transactionID := e.CorrelationID()
	if transactionID == "" {
		return "", patch, pkgerrors.New(pkgerrors.CodeValidation, "transaction_id is required")
	}

	rawStatus := strings.TrimSpace(e.Status)
	if rawStatus == "" {
		return "", patch, pkgerrors.New(pkgerrors.CodeValidation, "status is required")
	}
	// the provider's status vocabulary is open; unknown values are stored
	// as reported and simply never count as successful
	status := enums.NormalizePaymentStatus(rawStatus)
	patch.Status = &status

	patch.GatewayReference = usableString(e.PaymentID)
	patch.CustomerName = usableString(e.CustomerName)
	patch.CustomerEmailMobile = usableString(e.CustomerEmailMobile)
	patch.PaymentMethod = usableString(e.PaymentMethod)
	patch.Currency = usableString(e.Currency)
	patch.PaymentDate = usableString(e.Date)

	patch.Amount = parseDecimal(e.Amount)
	patch.Fee = parseDecimal(e.Fee)
	patch.RefundAmount = parseDecimal(e.RefundAmount)
	patch.Total = parseDecimal(e.Total)

	// plan and billing_cycle columns are written at checkout and stay
	// authoritative; the metadata merge below keeps the payload copy
	// available as the activation fallback
	if len(e.Metadata) > 0 && string(e.Metadata) != "null" {
		patch.Metadata = e.Metadata
	}

	return transactionID, patch, nil
}

// CorrelationID returns the transaction id the delivery correlates to,
// preferring the metadata copy the same way Normalize does.
func (e *PaymentEvent) CorrelationID() string {
	if nested := e.metadataString("transaction_id"); nested != "" {
		return nested
	}
	return strings.TrimSpace(e.TransactionID)
}

func (e *PaymentEvent) metadataString(key string) string {
	if len(e.Metadata) == 0 {
		return ""
	}
	var doc map[string]any
	if err := json.Unmarshal(e.Metadata, &doc); err != nil {
		return ""
	}
	value, ok := doc[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// parseDecimal accepts a JSON number or a numeric string. Anything else
// returns nil so the stored value survives the merge.
func parseDecimal(raw json.RawMessage) *decimal.Decimal {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if unquoted := strings.Trim(trimmed, `"`); unquoted != trimmed {
		trimmed = strings.TrimSpace(unquoted)
	}
	if trimmed == "" {
		return nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil
	}
	return &value
}

func usableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
