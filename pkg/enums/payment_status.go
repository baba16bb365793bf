package enums

import (
	"strings"
)

// PaymentStatus mirrors the status strings PipraPay reports for a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusSuccess,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusCanceled,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSuccessful reports whether the status is a successful terminal value.
// The provider is inconsistent about casing, so the comparison is
// case-insensitive.
func (p PaymentStatus) IsSuccessful() bool {
	switch PaymentStatus(strings.ToLower(string(p))) {
	case PaymentStatusSuccess, PaymentStatusCompleted:
		return true
	default:
		return false
	}
}

// NormalizePaymentStatus canonicalizes known status strings and keeps
// anything else verbatim. The provider's status vocabulary is open; an
// unrecognized value is recorded as reported and never activates
// entitlements.
func NormalizePaymentStatus(value string) PaymentStatus {
	trimmed := strings.TrimSpace(value)
	lowered := PaymentStatus(strings.ToLower(trimmed))
	if lowered.IsValid() {
		return lowered
	}
	return PaymentStatus(trimmed)
}
