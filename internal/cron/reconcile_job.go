package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promptstudio-ai/promptstudio-backend/internal/subscriptions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/users"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
)

const (
	defaultReconcileLookback  = 72 * time.Hour
	defaultReconcileBatchSize = 200
)

// EntitlementReconcileJobParams configures the reconciliation job.
type EntitlementReconcileJobParams struct {
	Transactions  transactions.Repository
	Users         users.Repository
	Subscriptions *subscriptions.Service
	Logger        *logger.Logger
	Lookback      time.Duration
	BatchSize     int
}

// EntitlementReconcileJob re-derives subscription entitlements from settled
// transactions. A crash between the transaction update and the subscription
// grant leaves a paid user without entitlements; this job closes that gap.
type EntitlementReconcileJob struct {
	transactions  transactions.Repository
	users         users.Repository
	subscriptions *subscriptions.Service
	logg          *logger.Logger
	lookback      time.Duration
	batchSize     int
	now           func() time.Time
}

// NewEntitlementReconcileJob builds the reconciliation job.
func NewEntitlementReconcileJob(params EntitlementReconcileJobParams) (*EntitlementReconcileJob, error) {
	if params.Transactions == nil {
		return nil, errors.New("transactions repo required")
	}
	if params.Users == nil {
		return nil, errors.New("users repo required")
	}
	if params.Subscriptions == nil {
		return nil, errors.New("subscriptions service required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	return &EntitlementReconcileJob{
		transactions:  params.Transactions,
		users:         params.Users,
		subscriptions: params.Subscriptions,
		logg:          params.Logger,
		lookback:      lookback,
		batchSize:     batchSize,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *EntitlementReconcileJob) Name() string {
	return "entitlement-reconcile"
}

// Run scans recently settled transactions and re-activates any subscription
// that missed its grant.
func (j *EntitlementReconcileJob) Run(ctx context.Context) error {
	settled, err := j.transactions.ListSuccessfulSince(ctx, j.lookback, j.batchSize)
	if err != nil {
		return fmt.Errorf("list settled transactions: %w", err)
	}

	var scanned, repaired, failed int
	for i := range settled {
		txn := &settled[i]
		if txn.UserID == nil {
			continue
		}
		scanned++

		user, err := j.users.FindByID(ctx, *txn.UserID)
		if err != nil {
			failed++
			j.logg.Error(j.logg.WithTransactionID(ctx, txn.TransactionID), "reconcile: load user", err)
			continue
		}
		if user == nil {
			continue
		}
		if user.Subscription.Status == enums.SubscriptionStatusActive {
			continue
		}

		if err := j.subscriptions.Activate(ctx, user.ID, txn, j.now()); err != nil {
			failed++
			j.logg.Error(j.logg.WithTransactionID(ctx, txn.TransactionID), "reconcile: activate subscription", err)
			continue
		}
		repaired++
	}

	summary := j.logg.WithFields(ctx, map[string]any{
		"settled":  len(settled),
		"scanned":  scanned,
		"repaired": repaired,
		"failed":   failed,
	})
	j.logg.Info(summary, "entitlement reconciliation complete")

	if failed > 0 {
		return fmt.Errorf("reconciliation finished with %d failures", failed)
	}
	return nil
}
