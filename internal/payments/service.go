package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/users"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/db/models"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/enums"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/piprapay"
)

type chargeGateway interface {
	CreateCharge(ctx context.Context, params piprapay.ChargeCreateParams) (*piprapay.Charge, error)
	VerifyPayment(ctx context.Context, paymentID string) (*piprapay.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*piprapay.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*piprapay.Payment, error)
}

// CheckoutParams describes a plan purchase started by an authenticated user.
type CheckoutParams struct {
	UserID       uuid.UUID
	Plan         string
	BillingCycle string
	Amount       decimal.Decimal
	Currency     string
	SuccessURL   string
	CancelURL    string
	WebhookURL   string
}

// CheckoutSession is handed back to the client so it can redirect to the
// hosted payment page.
type CheckoutSession struct {
	TransactionID string `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
	CheckoutURL   string `json:"checkout_url"`
}

type ServiceParams struct {
	Transactions transactions.Repository
	Users        users.Repository
	Gateway      chargeGateway
	Logger       *logger.Logger
}

// Service owns checkout initiation: it creates the pending transaction the
// webhook flow later reconciles against.
type Service struct {
	transactions transactions.Repository
	users        users.Repository
	gateway      chargeGateway
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactions repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	return &Service{
		transactions: params.Transactions,
		users:        params.Users,
		gateway:      params.Gateway,
		logger:       params.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// InitiateCheckout records a pending transaction and opens a hosted checkout
// session. The transaction id is echoed through charge metadata so the
// webhook can correlate the eventual notification.
func (s *Service) InitiateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	user, err := s.users.FindByID(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	plan := enums.ResolvePlan(params.Plan)
	cycle := enums.NormalizeBillingCycle(params.BillingCycle)
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "BDT"
	}

	transactionID := newTransactionID()
	now := s.now()

	planName := plan.String()
	cycleName := cycle.String()
	txn := &models.Transaction{
		ID:            uuid.New(),
		TransactionID: transactionID,
		UserID:        &params.UserID,
		Amount:        params.Amount,
		Total:         params.Amount,
		Currency:      currency,
		Status:        enums.PaymentStatusPending,
		Plan:          &planName,
		BillingCycle:  &cycleName,
		Metadata: []byte(fmt.Sprintf(`{"transaction_id":%q,"plan":%q,"billing_cycle":%q}`,
			transactionID, planName, cycleName)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}

	charge, err := s.gateway.CreateCharge(ctx, piprapay.ChargeCreateParams{
		FullName:    user.Name,
		EmailMobile: user.Email,
		Amount:      params.Amount,
		Currency:    currency,
		SuccessURL:  params.SuccessURL,
		CancelURL:   params.CancelURL,
		WebhookURL:  params.WebhookURL,
		Metadata: map[string]string{
			"transaction_id": transactionID,
			"plan":           planName,
			"billing_cycle":  cycleName,
		},
	})
	if err != nil {
		// leave the row pending; the reconciliation job sweeps stale checkouts
		return nil, err
	}

	if charge.PaymentID != "" {
		txn.GatewayReference = &charge.PaymentID
		txn.UpdatedAt = s.now()
		if err := s.transactions.Update(ctx, txn); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record gateway reference")
		}
	}

	if s.logger != nil {
		ctx = s.logger.WithTransactionID(ctx, transactionID)
		s.logger.Info(ctx, "checkout initiated")
	}

	return &CheckoutSession{
		TransactionID: transactionID,
		PaymentID:     charge.PaymentID,
		CheckoutURL:   charge.CheckoutURL,
	}, nil
}

// VerifyPayment asks the gateway to confirm the payment backing a stored
// transaction.
func (s *Service) VerifyPayment(ctx context.Context, transactionID string) (*piprapay.Payment, error) {
	txn, err := s.loadWithGatewayRef(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.gateway.VerifyPayment(ctx, *txn.GatewayReference)
}

// GetPayment fetches the gateway's record for a stored transaction.
func (s *Service) GetPayment(ctx context.Context, transactionID string) (*piprapay.Payment, error) {
	txn, err := s.loadWithGatewayRef(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.gateway.GetPayment(ctx, *txn.GatewayReference)
}

// CancelPayment cancels the checkout at the gateway and marks the stored
// transaction canceled.
func (s *Service) CancelPayment(ctx context.Context, transactionID string) error {
	txn, err := s.loadWithGatewayRef(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.Status.IsSuccessful() {
		return pkgerrors.New(pkgerrors.CodeConflict, "settled payments cannot be canceled")
	}

	if _, err := s.gateway.CancelPayment(ctx, *txn.GatewayReference); err != nil {
		return err
	}

	txn.Status = enums.PaymentStatusCanceled
	txn.UpdatedAt = s.now()
	if err := s.transactions.Update(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cancellation")
	}
	return nil
}

func (s *Service) loadWithGatewayRef(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.transactions.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if txn.GatewayReference == nil || *txn.GatewayReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction has no gateway reference")
	}
	return txn, nil
}

func newTransactionID() string {
	return fmt.Sprintf("TXN-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20])
}
