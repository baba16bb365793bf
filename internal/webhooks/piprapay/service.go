package piprapaywebhook

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/promptstudio-ai/promptstudio-backend/internal/subscriptions"
	"github.com/promptstudio-ai/promptstudio-backend/internal/transactions"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/pubsub"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentPublisher interface {
	PublishPaymentEvent(ctx context.Context, event pubsub.PaymentEvent) error
}

type ServiceParams struct {
	Transactions      transactions.Repository
	Subscriptions     *subscriptions.Service
	TransactionRunner txRunner
	Publisher         paymentPublisher
	Logger            *logger.Logger
}

// Service applies payment notifications to stored transactions and grants
// entitlements when a payment settles.
type Service struct {
	transactions  transactions.Repository
	subscriptions *subscriptions.Service
	txRunner      txRunner
	publisher     paymentPublisher
	logger        *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactions repo required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		transactions:  params.Transactions,
		subscriptions: params.Subscriptions,
		txRunner:      params.TransactionRunner,
		publisher:     params.Publisher,
		logger:        params.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandlePayment reconciles one delivery: the transaction patch and any
// entitlement grant commit or roll back together. Activation is skipped when
// the stored status was already terminal-successful, so a replayed success
// notification cannot extend a subscription a second time.
func (s *Service) HandlePayment(ctx context.Context, event *PaymentEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}

	transactionID, patch, err := event.Normalize()
	if err != nil {
		return err
	}

	if s.logger != nil {
		ctx = s.logger.WithTransactionID(ctx, transactionID)
	}

	var published *pubsub.PaymentEvent
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.transactions.WithTx(tx)
		stored, err := repo.FindByTransactionID(ctx, transactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}

		wasSettled := stored.Status.IsSuccessful()
		patch.Apply(stored, s.now())

		if err := repo.Update(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction")
		}

		if stored.Status.IsSuccessful() && !wasSettled && stored.UserID != nil {
			if err := s.subscriptions.WithTx(tx).Activate(ctx, *stored.UserID, stored, s.now()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate subscription")
			}
		}

		evt := pubsub.PaymentEvent{
			TransactionID: stored.TransactionID,
			Status:        stored.Status.String(),
			Plan:          subscriptions.ResolvePlanFor(stored).String(),
			OccurredAt:    s.now(),
		}
		if stored.UserID != nil {
			evt.UserID = stored.UserID.String()
		}
		published = &evt
		return nil
	})
	if err != nil {
		return err
	}

	// best effort after commit; a lost event is recovered by reconciliation
	if s.publisher != nil && published != nil {
		if err := s.publisher.PublishPaymentEvent(ctx, *published); err != nil && s.logger != nil {
			s.logger.Error(ctx, "publish payment event", err)
		}
	}

	if s.logger != nil {
		s.logger.Info(ctx, "payment webhook processed")
	}
	return nil
}
