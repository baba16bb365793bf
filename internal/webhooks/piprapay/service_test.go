package piprapaywebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/internal/subscriptions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/users"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/pubsub"
)

type stubTxRunner struct {
	err error
}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.err != nil {
		return s.err
	}
	return fn(nil)
}

type stubTransactionsRepo struct {
	stored  *models.Transaction
	findErr error

	updated *models.Transaction
}

func (s *stubTransactionsRepo) WithTx(tx *gorm.DB) transactions.Repository { return s }

func (s *stubTransactionsRepo) Create(ctx context.Context, txn *models.Transaction) error {
	return nil
}

func (s *stubTransactionsRepo) Update(ctx context.Context, txn *models.Transaction) error {
	s.updated = txn
	return nil
}

func (s *stubTransactionsRepo) FindByTransactionID(ctx context.Context, id string) (*models.Transaction, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.stored != nil && s.stored.TransactionID == id {
		return s.stored, nil
	}
	return nil, nil
}

func (s *stubTransactionsRepo) ListSuccessfulSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func (s *stubTransactionsRepo) ListPendingSince(ctx context.Context, lookback time.Duration, limit int) ([]models.Transaction, error) {
	return nil, nil
}

type stubUsersRepo struct {
	user *models.User

	updatedSub *models.Subscription
}

func (s *stubUsersRepo) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, nil
}

func (s *stubUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (s *stubUsersRepo) UpdateSubscription(ctx context.Context, userID uuid.UUID, sub models.Subscription) error {
	s.updatedSub = &sub
	return nil
}

type stubPublisher struct {
	events []pubsub.PaymentEvent
	err    error
}

func (s *stubPublisher) PublishPaymentEvent(ctx context.Context, event pubsub.PaymentEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, txns *stubTransactionsRepo, usersRepo *stubUsersRepo, pub *stubPublisher) *Service {
	t.Helper()
	subs, err := subscriptions.NewService(subscriptions.ServiceParams{Users: usersRepo})
	if err != nil {
		t.Fatalf("subscriptions service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Transactions:      txns,
		Subscriptions:     subs,
		TransactionRunner: &stubTxRunner{},
		Publisher:         pub,
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	return svc
}

func pendingTransaction(userID *uuid.UUID) *models.Transaction {
	return &models.Transaction{
		ID:            uuid.New(),
		TransactionID: "TXN-1",
		UserID:        userID,
		Status:        enums.PaymentStatusPending,
		Currency:      "BDT",
		Metadata:      json.RawMessage(`{"plan":"Starter"}`),
	}
}

func completedEvent(t *testing.T) *PaymentEvent {
	t.Helper()
	event, err := ParsePaymentEvent([]byte(`{
		"pp_id": "pp_77",
		"status": "completed",
		"amount": "499.99",
		"metadata": {"transaction_id": "TXN-1", "plan": "Starter", "billing_cycle": "yearly"}
	}`))
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	return event
}

func TestHandlePaymentActivatesOnSettlement(t *testing.T) {
	userID := uuid.New()
	txns := &stubTransactionsRepo{stored: pendingTransaction(&userID)}
	usersRepo := &stubUsersRepo{user: &models.User{
		ID:           userID,
		Email:        "user@example.com",
		Subscription: models.Subscription{PromptsUsed: 4, PromptsLimit: 10},
	}}
	pub := &stubPublisher{}
	svc := newTestService(t, txns, usersRepo, pub)

	if err := svc.HandlePayment(context.Background(), completedEvent(t)); err != nil {
		t.Fatalf("handle payment: %v", err)
	}

	if txns.updated == nil || txns.updated.Status != enums.PaymentStatusCompleted {
		t.Fatalf("transaction not updated: %+v", txns.updated)
	}
	if txns.updated.GatewayReference == nil || *txns.updated.GatewayReference != "pp_77" {
		t.Fatalf("gateway reference not recorded")
	}

	if usersRepo.updatedSub == nil {
		t.Fatalf("subscription not activated")
	}
	if usersRepo.updatedSub.Plan != enums.PlanStarter || usersRepo.updatedSub.PromptsLimit != 100 {
		t.Fatalf("unexpected subscription %+v", usersRepo.updatedSub)
	}
	if usersRepo.updatedSub.PromptsUsed != 4 {
		t.Fatalf("prompts used not carried forward")
	}
	if usersRepo.updatedSub.BillingCycle != enums.BillingCycleYearly {
		t.Fatalf("expected yearly cycle, got %s", usersRepo.updatedSub.BillingCycle)
	}

	if len(pub.events) != 1 || pub.events[0].TransactionID != "TXN-1" {
		t.Fatalf("expected published payment event, got %+v", pub.events)
	}
}

func TestHandlePaymentStoredPlanOutranksPayloadMetadata(t *testing.T) {
	userID := uuid.New()
	stored := pendingTransaction(&userID)
	plan := "Starter"
	stored.Plan = &plan
	txns := &stubTransactionsRepo{stored: stored}
	usersRepo := &stubUsersRepo{user: &models.User{ID: userID}}
	svc := newTestService(t, txns, usersRepo, &stubPublisher{})

	event, err := ParsePaymentEvent([]byte(`{
		"status": "completed",
		"metadata": {"transaction_id": "TXN-1", "plan": "Pro-X"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := svc.HandlePayment(context.Background(), event); err != nil {
		t.Fatalf("handle payment: %v", err)
	}

	if txns.updated == nil || txns.updated.Plan == nil || *txns.updated.Plan != "Starter" {
		t.Fatalf("stored plan must survive a disagreeing payload: %+v", txns.updated)
	}
	if usersRepo.updatedSub == nil || usersRepo.updatedSub.Plan != enums.PlanStarter {
		t.Fatalf("activation must grant the checkout plan, got %+v", usersRepo.updatedSub)
	}
	if usersRepo.updatedSub.PromptsLimit != 100 {
		t.Fatalf("expected starter quota, got %d", usersRepo.updatedSub.PromptsLimit)
	}
}

func TestHandlePaymentRecordsUnknownStatusWithoutActivation(t *testing.T) {
	userID := uuid.New()
	txns := &stubTransactionsRepo{stored: pendingTransaction(&userID)}
	usersRepo := &stubUsersRepo{user: &models.User{ID: userID}}
	svc := newTestService(t, txns, usersRepo, &stubPublisher{})

	event, err := ParsePaymentEvent([]byte(`{"transaction_id":"TXN-1","status":"on_hold"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := svc.HandlePayment(context.Background(), event); err != nil {
		t.Fatalf("unknown status must still update the transaction: %v", err)
	}

	if txns.updated == nil || txns.updated.Status != enums.PaymentStatus("on_hold") {
		t.Fatalf("status not recorded verbatim: %+v", txns.updated)
	}
	if usersRepo.updatedSub != nil {
		t.Fatalf("unknown status must not touch the subscription")
	}
}

func TestHandlePaymentReplayDoesNotReactivate(t *testing.T) {
	userID := uuid.New()
	stored := pendingTransaction(&userID)
	stored.Status = enums.PaymentStatusCompleted
	txns := &stubTransactionsRepo{stored: stored}
	usersRepo := &stubUsersRepo{user: &models.User{ID: userID}}
	svc := newTestService(t, txns, usersRepo, &stubPublisher{})

	if err := svc.HandlePayment(context.Background(), completedEvent(t)); err != nil {
		t.Fatalf("handle payment: %v", err)
	}

	if txns.updated == nil {
		t.Fatalf("replay should still refresh the transaction")
	}
	if usersRepo.updatedSub != nil {
		t.Fatalf("replayed settlement must not extend the subscription")
	}
}

func TestHandlePaymentPendingSkipsActivation(t *testing.T) {
	userID := uuid.New()
	txns := &stubTransactionsRepo{stored: pendingTransaction(&userID)}
	usersRepo := &stubUsersRepo{user: &models.User{ID: userID}}
	svc := newTestService(t, txns, usersRepo, &stubPublisher{})

	event, err := ParsePaymentEvent([]byte(`{"transaction_id":"TXN-1","status":"pending"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := svc.HandlePayment(context.Background(), event); err != nil {
		t.Fatalf("handle payment: %v", err)
	}

	if usersRepo.updatedSub != nil {
		t.Fatalf("pending status must not touch the subscription")
	}
	if txns.updated == nil || txns.updated.Status != enums.PaymentStatusPending {
		t.Fatalf("transaction should record pending status")
	}
}

func TestHandlePaymentUnknownTransaction(t *testing.T) {
	svc := newTestService(t, &stubTransactionsRepo{}, &stubUsersRepo{}, &stubPublisher{})

	err := svc.HandlePayment(context.Background(), completedEvent(t))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHandlePaymentMissingUserIsNotAnError(t *testing.T) {
	userID := uuid.New()
	txns := &stubTransactionsRepo{stored: pendingTransaction(&userID)}
	svc := newTestService(t, txns, &stubUsersRepo{}, &stubPublisher{})

	if err := svc.HandlePayment(context.Background(), completedEvent(t)); err != nil {
		t.Fatalf("missing user should not fail the webhook: %v", err)
	}
	if txns.updated == nil {
		t.Fatalf("transaction update must still happen")
	}
}

func TestHandlePaymentPublishFailureIsNonFatal(t *testing.T) {
	userID := uuid.New()
	txns := &stubTransactionsRepo{stored: pendingTransaction(&userID)}
	usersRepo := &stubUsersRepo{user: &models.User{ID: userID}}
	pub := &stubPublisher{err: errors.New("broker down")}
	svc := newTestService(t, txns, usersRepo, pub)

	if err := svc.HandlePayment(context.Background(), completedEvent(t)); err != nil {
		t.Fatalf("publish failure must not fail the webhook: %v", err)
	}
}

func TestHandlePaymentStoreFailureIsRetryable(t *testing.T) {
	txns := &stubTransactionsRepo{findErr: errors.New("connection reset")}
	svc := newTestService(t, txns, &stubUsersRepo{}, &stubPublisher{})

	err := svc.HandlePayment(context.Background(), completedEvent(t))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !pkgerrors.MetadataFor(typed.Code()).Retryable {
		t.Fatalf("store failures must be retryable")
	}
}
