package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/internal/users"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
)

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Users users.Repository
}

// Service grants plan entitlements when payments settle.
type Service struct {
	users users.Repository
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, errors.New("users repo is required")
	}
	return &Service{users: params.Users}, nil
}

// WithTx returns a service bound to the given transaction handle.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{users: s.users.WithTx(tx)}
}

// Activate grants the user the entitlements purchased by the transaction.
// The user's consumed prompt count survives the rewrite; everything else is
// derived from the transaction. A missing user is not an error: the payment
// stands on its own and the grant happens when the account shows up.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID, txn *models.Transaction, now time.Time) error {
	if txn == nil {
		return errors.New("transaction is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	next := BuildSubscription(user.Subscription, txn, now)
	return s.users.UpdateSubscription(ctx, user.ID, next)
}

// BuildSubscription computes the entitlement block a settled transaction
// grants, carrying forward the prompts already consumed.
func BuildSubscription(current models.Subscription, txn *models.Transaction, now time.Time) models.Subscription {
	plan := ResolvePlanFor(txn)
	cycle := resolveBillingCycle(txn)

	start := now.UTC()
	next := models.Subscription{
		Plan:         plan,
		Status:       enums.SubscriptionStatusActive,
		PromptsUsed:  current.PromptsUsed,
		PromptsLimit: plan.PromptQuota(),
		StartDate:    &start,
		BillingCycle: cycle,
	}

	// lifetime grants never expire
	if plan != enums.PlanLifetime {
		end := cycle.PeriodEnd(start)
		next.EndDate = &end
	}

	return next
}

// ResolvePlanFor picks the purchased plan: the transaction column wins,
// then the metadata echo, then free.
func ResolvePlanFor(txn *models.Transaction) enums.Plan {
	if txn == nil {
		return enums.PlanFree
	}
	if txn.Plan != nil && strings.TrimSpace(*txn.Plan) != "" {
		return enums.ResolvePlan(*txn.Plan)
	}
	if raw := metadataString(txn.Metadata, "plan"); raw != "" {
		return enums.ResolvePlan(raw)
	}
	return enums.PlanFree
}

func resolveBillingCycle(txn *models.Transaction) enums.BillingCycle {
	if txn == nil {
		return enums.BillingCycleMonthly
	}
	if txn.BillingCycle != nil && strings.TrimSpace(*txn.BillingCycle) != "" {
		return enums.NormalizeBillingCycle(*txn.BillingCycle)
	}
	return enums.NormalizeBillingCycle(metadataString(txn.Metadata, "billing_cycle"))
}

func metadataString(raw json.RawMessage, key string) string {
	if len(raw) == 0 {
		return ""
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	value, ok := doc[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
