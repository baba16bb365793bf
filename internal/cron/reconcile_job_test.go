package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/internal/subscriptions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/users"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
)

type stubReconcileTransactions struct {
	settled []models.Transaction
	listErr error

	lookback time.Duration
	limit    int
}

func (s *stubReconcileTransactions) WithTx(tx *gorm.DB) transactions.Repository { return s }

func (s *stubReconcileTransactions) Create(ctx context.Context, txn *models.Transaction) error {
	return nil
}

func (s *stubReconcileTransactions) Update(ctx context.Context, txn *models.Transaction) error {
	return nil
}

func (s *stubReconcileTransactions) FindByTransactionID(ctx context.Context, id string) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubReconcileTransactions) ListSuccessfulSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error) {
	s.lookback = lookback
	s.limit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.settled, nil
}

func (s *stubReconcileTransactions) ListPendingSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error) {
	return nil, nil
}

type stubReconcileUsers struct {
	byID    map[uuid.UUID]*models.User
	findErr error

	updates map[uuid.UUID]models.Subscription
}

func (s *stubReconcileUsers) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubReconcileUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.byID[id], nil
}

func (s *stubReconcileUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (s *stubReconcileUsers) UpdateSubscription(ctx context.Context, userID uuid.UUID, sub models.Subscription) error {
	if s.updates == nil {
		s.updates = map[uuid.UUID]models.Subscription{}
	}
	s.updates[userID] = sub
	return nil
}

func newReconcileJob(t *testing.T, txns *stubReconcileTransactions, usersRepo *stubReconcileUsers) *EntitlementReconcileJob {
	t.Helper()
	subs, err := subscriptions.NewService(subscriptions.ServiceParams{Users: usersRepo})
	if err != nil {
		t.Fatalf("subscriptions service: %v", err)
	}
	job, err := NewEntitlementReconcileJob(EntitlementReconcileJobParams{
		Transactions:  txns,
		Users:         usersRepo,
		Subscriptions: subs,
		Logger:        logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("reconcile job: %v", err)
	}
	return job
}

func settledTransaction(userID *uuid.UUID) models.Transaction {
	plan := "Starter"
	cycle := "yearly"
	return models.Transaction{
		ID:            uuid.New(),
		TransactionID: "TXN-RECON-1",
		UserID:        userID,
		Status:        enums.PaymentStatusCompleted,
		Amount:        decimal.NewFromInt(499),
		Currency:      "BDT",
		Plan:          &plan,
		BillingCycle:  &cycle,
	}
}

func TestReconcileRepairsMissedGrant(t *testing.T) {
	userID := uuid.New()
	usersRepo := &stubReconcileUsers{byID: map[uuid.UUID]*models.User{
		userID: {
			ID: userID,
			Subscription: models.Subscription{
				Plan:        enums.PlanFree,
				Status:      enums.SubscriptionStatusInactive,
				PromptsUsed: 3,
			},
		},
	}}
	txns := &stubReconcileTransactions{settled: []models.Transaction{settledTransaction(&userID)}}
	job := newReconcileJob(t, txns, usersRepo)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	sub, ok := usersRepo.updates[userID]
	if !ok {
		t.Fatal("expected subscription grant")
	}
	if sub.Plan != enums.PlanStarter {
		t.Errorf("plan = %q, want starter", sub.Plan)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
	if sub.PromptsUsed != 3 {
		t.Errorf("prompts used = %d, want 3", sub.PromptsUsed)
	}
}

func TestReconcileSkipsActiveSubscription(t *testing.T) {
	userID := uuid.New()
	usersRepo := &stubReconcileUsers{byID: map[uuid.UUID]*models.User{
		userID: {
			ID: userID,
			Subscription: models.Subscription{
				Plan:   enums.PlanStarter,
				Status: enums.SubscriptionStatusActive,
			},
		},
	}}
	txns := &stubReconcileTransactions{settled: []models.Transaction{settledTransaction(&userID)}}
	job := newReconcileJob(t, txns, usersRepo)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(usersRepo.updates) != 0 {
		t.Fatalf("expected no grant for active subscription, got %d", len(usersRepo.updates))
	}
}

func TestReconcileSkipsAnonymousAndMissingUsers(t *testing.T) {
	missing := uuid.New()
	txns := &stubReconcileTransactions{settled: []models.Transaction{
		settledTransaction(nil),
		settledTransaction(&missing),
	}}
	usersRepo := &stubReconcileUsers{byID: map[uuid.UUID]*models.User{}}
	job := newReconcileJob(t, txns, usersRepo)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(usersRepo.updates) != 0 {
		t.Fatalf("expected no grants, got %d", len(usersRepo.updates))
	}
}

func TestReconcileListFailurePropagates(t *testing.T) {
	txns := &stubReconcileTransactions{listErr: errors.New("db down")}
	job := newReconcileJob(t, txns, &stubReconcileUsers{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestReconcileUserLookupFailureCountsAsFailure(t *testing.T) {
	userID := uuid.New()
	txns := &stubReconcileTransactions{settled: []models.Transaction{settledTransaction(&userID)}}
	job := newReconcileJob(t, txns, &stubReconcileUsers{findErr: errors.New("timeout")})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected failure summary error")
	}
}

func TestReconcileDefaultsApplied(t *testing.T) {
	txns := &stubReconcileTransactions{}
	job := newReconcileJob(t, txns, &stubReconcileUsers{})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if txns.lookback != defaultReconcileLookback {
		t.Errorf("lookback = %v, want %v", txns.lookback, defaultReconcileLookback)
	}
	if txns.limit != defaultReconcileBatchSize {
		t.Errorf("limit = %d, want %d", txns.limit, defaultReconcileBatchSize)
	}
}
