package enums

import "time"

// BillingCycle defines the cadence a subscription renews on.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// String implements fmt.Stringer.
func (b BillingCycle) String() string {
	return string(b)
}

// NormalizeBillingCycle maps raw input onto a cycle. Only the literal
// "yearly" selects the annual cadence; every other value, including empty
// and differently cased variants, is treated as monthly.
func NormalizeBillingCycle(raw string) BillingCycle {
	if raw == string(BillingCycleYearly) {
		return BillingCycleYearly
	}
	return BillingCycleMonthly
}

// PeriodEnd advances from by one calendar year or one calendar month.
func (b BillingCycle) PeriodEnd(from time.Time) time.Time {
	if b == BillingCycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
