package enums

import "strings"

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "Starter"
	PlanLifetime Plan = "lifetime"
)

// UnlimitedPrompts marks a tier without a prompt quota.
const UnlimitedPrompts = -1

var promptQuotas = map[Plan]int{
	PlanFree:     10,
	PlanStarter:  100,
	PlanLifetime: UnlimitedPrompts,
}

var validPlans = []Plan{
	PlanFree,
	PlanStarter,
	PlanLifetime,
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Plan.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// PromptQuota returns the fixed prompt quota for the plan.
// UnlimitedPrompts means no quota is enforced.
func (p Plan) PromptQuota() int {
	if quota, ok := promptQuotas[p]; ok {
		return quota
	}
	return promptQuotas[PlanFree]
}

// ResolvePlan matches raw input case-insensitively against the known tiers.
// Unknown or empty names resolve to PlanFree rather than an error so a bad
// plan string in a webhook payload can never block entitlement derivation.
func ResolvePlan(raw string) Plan {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range validPlans {
		if strings.ToLower(string(candidate)) == normalized {
			return candidate
		}
	}
	return PlanFree
}
